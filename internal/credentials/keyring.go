package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zalando/go-keyring"

	"prdeck/internal/config"
	"prdeck/internal/store"
)

const ServiceName = "prdeck"

// KeyringStore adapts the OS secret service to store.SecretStore.
type KeyringStore struct{}

func (KeyringStore) Get(_ context.Context, service, key string) (string, error) {
	value, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", store.ErrSecretNotFound
		}
		return "", err
	}
	return value, nil
}

func (KeyringStore) Set(_ context.Context, service, key, value string) error {
	return keyring.Set(service, key, value)
}

func (KeyringStore) Delete(_ context.Context, service, key string) error {
	if err := keyring.Delete(service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore returns the secret backend selected in config. The closer must
// be called on shutdown; for the keyring backend it does nothing.
func OpenStore(cfg config.CoreConfig) (store.SecretStore, io.Closer, error) {
	switch cfg.CredentialsBackend() {
	case config.CredentialsBackendFile:
		path, err := config.SecretsDBPath()
		if err != nil {
			return nil, nil, err
		}
		secrets, err := store.NewBboltSecretStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open secrets db: %w", err)
		}
		return secrets, secrets, nil
	default:
		return KeyringStore{}, nopCloser{}, nil
	}
}
