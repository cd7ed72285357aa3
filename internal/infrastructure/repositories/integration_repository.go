package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
)

// IntegrationRepository stores user-scoped vendor API keys.
type IntegrationRepository struct {
	db *sqlx.DB
}

func NewIntegrationRepository(db *sqlx.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// GetAPIKey returns the user's key for a provider, or ErrNotFound.
func (r *IntegrationRepository) GetAPIKey(ctx context.Context, userID uuid.UUID, providerKey string) (string, error) {
	query := `SELECT api_key FROM integrations WHERE user_id = $1 AND provider_key = $2`

	var key string
	err := r.db.GetContext(ctx, &key, query, userID, providerKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("integration %s for user %s: %w", providerKey, userID, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get integration: %w", err)
	}

	return key, nil
}

// Upsert stores or replaces a user's key for a provider.
func (r *IntegrationRepository) Upsert(ctx context.Context, integration *entities.Integration) error {
	query := `
		INSERT INTO integrations (id, user_id, provider_key, api_key, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, provider_key) DO UPDATE SET api_key = EXCLUDED.api_key
	`

	id := integration.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	if _, err := r.db.ExecContext(ctx, query, id, integration.UserID, integration.ProviderKey, integration.APIKey); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	return nil
}
