package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// IntegrationHandlers manages user-scoped vendor API keys. User keys take
// precedence over the service-level fallback keys during credential
// resolution.
type IntegrationHandlers struct {
	integrations *repositories.IntegrationRepository
	providerKeys map[string]bool
	logger       *logger.Logger
}

func NewIntegrationHandlers(integrations *repositories.IntegrationRepository, providerKeys []string, logger *logger.Logger) *IntegrationHandlers {
	known := make(map[string]bool, len(providerKeys))
	for _, key := range providerKeys {
		known[key] = true
	}
	return &IntegrationHandlers{integrations: integrations, providerKeys: known, logger: logger}
}

type upsertIntegrationRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	ProviderKey string    `json:"provider_key" binding:"required"`
	APIKey      string    `json:"api_key" binding:"required"`
}

// UpsertIntegration handles PUT /api/v1/integrations
func (h *IntegrationHandlers) UpsertIntegration(c *gin.Context) {
	var req upsertIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	if !h.providerKeys[req.ProviderKey] {
		SendBadRequest(c, "UNKNOWN_PROVIDER", "Unknown provider key: "+req.ProviderKey)
		return
	}

	err := h.integrations.Upsert(c.Request.Context(), &entities.Integration{
		UserID:      req.UserID,
		ProviderKey: req.ProviderKey,
		APIKey:      req.APIKey,
	})
	if err != nil {
		h.logger.Error("failed to upsert integration",
			"user_id", req.UserID.String(),
			"provider", req.ProviderKey,
			"error", err)
		SendInternalError(c, "INTEGRATION_UPSERT_FAILED", "Failed to store integration")
		return
	}

	SendSuccess(c, gin.H{"status": "stored", "provider_key": req.ProviderKey})
}
