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

// NetworkRepository reads the administratively seeded network catalog.
type NetworkRepository struct {
	db *sqlx.DB
}

func NewNetworkRepository(db *sqlx.DB) *NetworkRepository {
	return &NetworkRepository{db: db}
}

// GetBySlug retrieves a network by its unique slug.
func (r *NetworkRepository) GetBySlug(ctx context.Context, slug entities.NetworkSlug) (*entities.Network, error) {
	query := `
		SELECT id, name, slug, chain_id, currency_symbol, explorer_url, is_active, created_at
		FROM networks
		WHERE slug = $1
	`

	var network entities.Network
	err := r.db.GetContext(ctx, &network, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("network %q: %w", slug, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get network: %w", err)
	}

	return &network, nil
}

// GetByID retrieves a network by ID.
func (r *NetworkRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Network, error) {
	query := `
		SELECT id, name, slug, chain_id, currency_symbol, explorer_url, is_active, created_at
		FROM networks
		WHERE id = $1
	`

	var network entities.Network
	err := r.db.GetContext(ctx, &network, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("network %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get network: %w", err)
	}

	return &network, nil
}

// ListActive retrieves all active networks.
func (r *NetworkRepository) ListActive(ctx context.Context) ([]*entities.Network, error) {
	query := `
		SELECT id, name, slug, chain_id, currency_symbol, explorer_url, is_active, created_at
		FROM networks
		WHERE is_active = TRUE
		ORDER BY name
	`

	var networks []*entities.Network
	if err := r.db.SelectContext(ctx, &networks, query); err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	return networks, nil
}
