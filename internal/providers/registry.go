package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// CatalogEntry pairs a provider with its credential policy. The catalog order
// is the fallback priority order: higher-quality vendors come first by
// design, independent of any latency measurement.
type CatalogEntry struct {
	Provider    HistoryProvider
	KeyRequired bool
}

// Resolved is a provider ready to be invoked, with its credential attached.
type Resolved struct {
	Provider HistoryProvider
	APIKey   string
}

// Registry resolves the ordered list of usable providers for a network.
type Registry struct {
	catalog []CatalogEntry
	creds   *CredentialResolver
	logger  *logger.Logger
}

// NewRegistry builds a registry over a fixed, priority-ordered catalog.
func NewRegistry(catalog []CatalogEntry, creds *CredentialResolver, logger *logger.Logger) *Registry {
	return &Registry{catalog: catalog, creds: creds, logger: logger}
}

// ResolveAll filters the catalog to providers supporting the slug, resolves
// a credential for each, and drops credential-required providers with no key.
// Key-optional providers are kept regardless. Order is catalog order.
func (r *Registry) ResolveAll(ctx context.Context, slug entities.NetworkSlug, userID *uuid.UUID) []Resolved {
	var resolved []Resolved
	for _, entry := range r.catalog {
		if !entry.Provider.SupportedNetworks()[slug] {
			continue
		}

		key, found := r.creds.Resolve(ctx, entry.Provider.Key(), userID)
		if entry.KeyRequired && !found {
			r.logger.Debug("dropping provider without required credential",
				"provider", entry.Provider.Key(),
				"network", slug)
			continue
		}

		resolved = append(resolved, Resolved{Provider: entry.Provider, APIKey: key})
	}
	return resolved
}

// Resolve returns the highest-priority usable provider for the slug.
func (r *Registry) Resolve(ctx context.Context, slug entities.NetworkSlug, userID *uuid.UUID) (Resolved, error) {
	all := r.ResolveAll(ctx, slug, userID)
	if len(all) == 0 {
		return Resolved{}, fmt.Errorf("network %q: %w", slug, apperrors.ErrNoProviders)
	}
	return all[0], nil
}
