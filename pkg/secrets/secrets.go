package secrets

import (
	"context"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Keys read at startup
const (
	KeyJWTSecret  = "jwt_secret"
	KeyDBPassword = "db_password"
)

var _ Manager = (*VaultManager)(nil)
