package jwt

import (
	"time"
)

const devSecret = "devJwtSecretDoNotUseInProduction"

// Service is a wrapper for session token operations
type Service struct {
	secretKey string
	expiry    time.Duration
	now       func() time.Time
}

// NewService creates a new token service
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = devSecret
	}

	if expiry == 0 {
		expiry = 24 * time.Hour // Default to 24 hours
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
		now:       time.Now,
	}
}

// Expiry returns how long issued tokens stay valid
func (s *Service) Expiry() time.Duration {
	return s.expiry
}

// GenerateToken generates a session token for a user
func (s *Service) GenerateToken(userID uint, name string) (string, error) {
	return GenerateToken(s.secretKey, s.expiry, userID, name, s.now())
}

// ValidateToken validates a session token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*SessionClaims, error) {
	return ValidateToken(s.secretKey, tokenString)
}
