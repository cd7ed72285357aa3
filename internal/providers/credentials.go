package providers

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// IntegrationStore reads user-scoped vendor API keys.
type IntegrationStore interface {
	GetAPIKey(ctx context.Context, userID uuid.UUID, providerKey string) (string, error)
}

// CredentialResolver resolves a vendor credential for an optional user:
// user-scoped integration first, environment/config fallback second.
type CredentialResolver struct {
	integrations IntegrationStore
	fallback     map[string]string
	logger       *logger.Logger
}

// NewCredentialResolver builds a resolver. fallback maps provider key to the
// environment-level API key (empty entries mean "not configured").
func NewCredentialResolver(integrations IntegrationStore, fallback map[string]string, logger *logger.Logger) *CredentialResolver {
	return &CredentialResolver{
		integrations: integrations,
		fallback:     fallback,
		logger:       logger,
	}
}

// Resolve returns the credential for providerKey, preferring the user's own
// integration. The boolean reports whether any credential was found.
func (c *CredentialResolver) Resolve(ctx context.Context, providerKey string, userID *uuid.UUID) (string, bool) {
	if userID != nil && c.integrations != nil {
		key, err := c.integrations.GetAPIKey(ctx, *userID, providerKey)
		if err == nil && key != "" {
			return key, true
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.Warn("integration lookup failed",
				"provider", providerKey,
				"user_id", userID.String(),
				"error", err)
		}
	}

	if key, ok := c.fallback[providerKey]; ok && key != "" {
		return key, true
	}
	return "", false
}
