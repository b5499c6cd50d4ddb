package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	cryptoService "github.com/allisson/nostr-signer/internal/crypto/service"
	nostrService "github.com/allisson/nostr-signer/internal/nostr/service"
)

// KMSService returns the KMS service used to unwrap key material.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// Keyring returns the keyring built from the configured key material.
func (c *Container) Keyring() (*cryptoDomain.Keyring, error) {
	var err error
	c.keyringInit.Do(func() {
		c.keyring, err = c.initKeyring()
		if err != nil {
			c.initErrors["keyring"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyring"]; exists {
		return nil, storedErr
	}
	return c.keyring, nil
}

// EnvelopeCrypto returns the crypto facade over the keyring.
func (c *Container) EnvelopeCrypto() (cryptoService.EnvelopeCrypto, error) {
	var err error
	c.envelopeCryptoInit.Do(func() {
		c.envelopeCrypto, err = c.initEnvelopeCrypto()
		if err != nil {
			c.initErrors["envelopeCrypto"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelopeCrypto"]; exists {
		return nil, storedErr
	}
	return c.envelopeCrypto, nil
}

// Signer returns the Nostr signer.
func (c *Container) Signer() nostrService.Signer {
	c.signerInit.Do(func() {
		c.signer = nostrService.NewSigner()
	})
	return c.signer
}

func (c *Container) initKeyring() (*cryptoDomain.Keyring, error) {
	keyring, err := cryptoService.LoadKeyring(
		context.Background(),
		cryptoDomain.KeyringConfig{
			ActiveVersion: c.config.ActiveKeyVersion,
			MaxVersions:   c.config.MaxKeyVersions,
			MasterKey:     c.config.MasterKey,
			Materials:     c.config.KeyMaterials,
		},
		c.KMSService(),
		c.config.KMSKeyURI,
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyring: %w", err)
	}
	return keyring, nil
}

func (c *Container) initEnvelopeCrypto() (cryptoService.EnvelopeCrypto, error) {
	keyring, err := c.Keyring()
	if err != nil {
		return nil, fmt.Errorf("failed to get keyring for envelope crypto: %w", err)
	}
	return cryptoService.NewEnvelopeCrypto(keyring, cryptoService.NewLegacyCBC()), nil
}
