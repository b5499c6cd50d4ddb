package app

import (
	"fmt"

	"github.com/allisson/nostr-signer/internal/database"
	keysRepository "github.com/allisson/nostr-signer/internal/keys/repository"
	keysUseCase "github.com/allisson/nostr-signer/internal/keys/usecase"
)

// UserKeyRepository returns the user key repository for the configured driver.
func (c *Container) UserKeyRepository() (keysUseCase.UserKeyRepository, error) {
	var err error
	c.userKeyRepositoryInit.Do(func() {
		c.userKeyRepository, err = c.initUserKeyRepository()
		if err != nil {
			c.initErrors["userKeyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["userKeyRepository"]; exists {
		return nil, storedErr
	}
	return c.userKeyRepository, nil
}

// OptionRepository returns the option repository for the configured driver.
func (c *Container) OptionRepository() (keysUseCase.OptionRepository, error) {
	var err error
	c.optionRepositoryInit.Do(func() {
		c.optionRepository, err = c.initOptionRepository()
		if err != nil {
			c.initErrors["optionRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["optionRepository"]; exists {
		return nil, storedErr
	}
	return c.optionRepository, nil
}

// KeyUseCase returns the key use case, instrumented when metrics are enabled.
func (c *Container) KeyUseCase() (keysUseCase.KeyUseCase, error) {
	var err error
	c.keyUseCaseInit.Do(func() {
		c.keyUseCase, err = c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

func (c *Container) initUserKeyRepository() (keysUseCase.UserKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user key repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return keysRepository.NewPostgreSQLUserKeyRepository(db), nil
	case database.DriverMySQL:
		return keysRepository.NewMySQLUserKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOptionRepository() (keysUseCase.OptionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for option repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return keysRepository.NewPostgreSQLOptionRepository(db), nil
	case database.DriverMySQL:
		return keysRepository.NewMySQLOptionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyUseCase() (keysUseCase.KeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key use case: %w", err)
	}

	userKeyRepository, err := c.UserKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user key repository for key use case: %w", err)
	}

	optionRepository, err := c.OptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get option repository for key use case: %w", err)
	}

	envelopeCrypto, err := c.EnvelopeCrypto()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope crypto for key use case: %w", err)
	}

	baseUseCase := keysUseCase.NewKeyUseCase(
		txManager,
		userKeyRepository,
		optionRepository,
		envelopeCrypto,
		c.Signer(),
		c.config.SiteURL,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for key use case: %w", err)
		}
		return keysUseCase.NewKeyUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
