package secrets

import (
	"context"
	"errors"

	"whatsapp-assistant/backend/pkg/logger"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)
}

// Fill resolves each key whose target is still empty and returns how many
// were filled. Missing secrets are skipped; other errors stop the fill.
func Fill(ctx context.Context, m Manager, targets map[string]*string, log *logger.Logger) (int, error) {
	filled := 0
	for key, target := range targets {
		if target == nil || *target != "" {
			continue
		}
		value, err := m.GetSecret(ctx, key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return filled, err
		}
		*target = value
		filled++
		log.Debug("Secret loaded", "key", key)
	}
	return filled, nil
}
