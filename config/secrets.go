package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from environment variables. A variable
// named KEY_FILE, when set, points at a file holding the secret (the Docker
// and Kubernetes convention) and takes precedence over KEY.
type EnvironmentSecretStore struct {
	lookup   lookupFunc
	readFile func(string) ([]byte, error)
}

func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{lookup: os.LookupEnv, readFile: os.ReadFile}
}

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if path, ok := s.lookup(key + "_FILE"); ok && path != "" {
		data, err := s.readFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret %s from file: %w", key, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if v, ok := s.lookup(key); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// GetWithDefault returns def when the secret is missing or unreadable.
func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// secretFields maps secret names onto the config fields they fill.
func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"BOARDKIT_SECURITY_MASTER_TOKEN": &c.Security.MasterToken,
		"BOARDKIT_REDIS_PASSWORD":        &c.Storage.Redis.Password,
		"BOARDKIT_REDIS_URL":             &c.Storage.Redis.URL,
		"BOARDKIT_SQL_DSN":               &c.Storage.SQL.DSN,
	}
}

// LoadSecrets fills secret fields from store. Missing secrets leave the
// current value alone; unreadable ones are errors.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	for key, field := range c.secretFields() {
		v, err := store.Get(ctx, key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
		*field = v
	}
	return nil
}

// LoadSecretsFromEnv fills secret fields from the environment, honoring *_FILE variables.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}
