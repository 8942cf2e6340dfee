package crypto

import (
	"errors"

	"github.com/groceryshare/backend/internal/infrastructure/config"
)

// ErrNoKey is returned when no encryption key is configured
var ErrNoKey = errors.New("crypto: encryption.key is not configured")

// FromConfig builds the gateway for the current key
func FromConfig(cfg config.EncryptionConfig) (*Gateway, error) {
	if cfg.Key == "" {
		return nil, ErrNoKey
	}
	return NewGatewayFromBase64(cfg.KeyID, cfg.Key)
}

// PreviousFromConfig builds the gateway for the key being rotated away from.
// It returns nil, nil when no previous key is configured.
func PreviousFromConfig(cfg config.EncryptionConfig) (*Gateway, error) {
	if cfg.PreviousKey == "" {
		return nil, nil
	}
	return NewGatewayFromBase64(cfg.PreviousKeyID, cfg.PreviousKey)
}
