package app

import (
	"fmt"

	"github.com/allisson/nostr-signer/internal/database"
	"github.com/allisson/nostr-signer/internal/http"
	rotationRepository "github.com/allisson/nostr-signer/internal/rotation/repository"
	rotationUseCase "github.com/allisson/nostr-signer/internal/rotation/usecase"
)

// RotationStateRepository returns the rotation state repository for the configured driver.
func (c *Container) RotationStateRepository() (rotationUseCase.StateRepository, error) {
	var err error
	c.rotationStateRepositoryInit.Do(func() {
		c.rotationStateRepository, err = c.initRotationStateRepository()
		if err != nil {
			c.initErrors["rotationStateRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationStateRepository"]; exists {
		return nil, storedErr
	}
	return c.rotationStateRepository, nil
}

// RotationUseCase returns the rotation use case, instrumented when metrics are enabled.
func (c *Container) RotationUseCase() (rotationUseCase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

// MetricsServer returns the worker's health and metrics server.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

func (c *Container) initRotationStateRepository() (rotationUseCase.StateRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rotation state repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return rotationRepository.NewPostgreSQLStateRepository(db), nil
	case database.DriverMySQL:
		return rotationRepository.NewMySQLStateRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRotationUseCase() (rotationUseCase.RotationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	userKeyRepository, err := c.UserKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user key repository for rotation use case: %w", err)
	}

	optionRepository, err := c.OptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get option repository for rotation use case: %w", err)
	}

	stateRepository, err := c.RotationStateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get state repository for rotation use case: %w", err)
	}

	envelopeCrypto, err := c.EnvelopeCrypto()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope crypto for rotation use case: %w", err)
	}

	baseUseCase := rotationUseCase.NewRotationUseCase(
		txManager,
		userKeyRepository,
		optionRepository,
		stateRepository,
		envelopeCrypto,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
		}
		return rotationUseCase.NewRotationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for metrics server: %w", err)
	}

	envelopeCrypto, err := c.EnvelopeCrypto()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope crypto for metrics server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.MetricsHost,
		c.config.MetricsPort,
		db,
		envelopeCrypto,
		c.Logger(),
		provider,
		c.config.MetricsNamespace,
	), nil
}
