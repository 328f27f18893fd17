package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrSecretNotFound is returned by SecretStore.Get when no value exists.
var ErrSecretNotFound = errors.New("secret not found")

type SecretStore interface {
	Get(ctx context.Context, service, key string) (string, error)
	Set(ctx context.Context, service, key, value string) error
	Delete(ctx context.Context, service, key string) error
}

var bucketSecrets = []byte("secrets")

// BboltSecretStore keeps secrets in a 0600 bbolt file under the data dir.
// It backs hosts without an OS keyring.
type BboltSecretStore struct {
	db *bolt.DB
}

func NewBboltSecretStore(path string) (*BboltSecretStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("secret db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSecrets)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BboltSecretStore{db: db}, nil
}

func (s *BboltSecretStore) Get(_ context.Context, service, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSecrets).Get(secretKey(service, key))
		if raw == nil {
			return ErrSecretNotFound
		}
		value = string(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *BboltSecretStore) Set(_ context.Context, service, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Put(secretKey(service, key), []byte(value))
	})
}

// Delete is idempotent; removing a missing key is not an error.
func (s *BboltSecretStore) Delete(_ context.Context, service, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Delete(secretKey(service, key))
	})
}

func (s *BboltSecretStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func secretKey(service, key string) []byte {
	return []byte(strings.TrimSpace(service) + "/" + strings.TrimSpace(key))
}
