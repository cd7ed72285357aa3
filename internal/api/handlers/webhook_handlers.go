package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// SignatureVerifier authenticates a raw webhook body against a vendor header.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// WebhookLogStore captures raw payloads before acknowledgement.
type WebhookLogStore interface {
	Create(ctx context.Context, source entities.WebhookSource, payload json.RawMessage) (*entities.WebhookLog, error)
}

// WebhookHandlers receives vendor push notifications. The synchronous path is
// deliberately minimal: verify the signature, persist the raw body, respond
// 202. Parsing and ingestion happen asynchronously off the log table, so a
// malformed payload from an authenticated vendor is still accepted here.
type WebhookHandlers struct {
	logs    WebhookLogStore
	alchemy SignatureVerifier
	moralis SignatureVerifier
	logger  *logger.Logger
}

func NewWebhookHandlers(logs WebhookLogStore, alchemy, moralis SignatureVerifier, logger *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{logs: logs, alchemy: alchemy, moralis: moralis, logger: logger}
}

// AlchemyWebhook handles POST /api/v1/webhooks/alchemy
func (h *WebhookHandlers) AlchemyWebhook(c *gin.Context) {
	h.receive(c, entities.SourceAlchemy, h.alchemy, c.GetHeader("X-Alchemy-Signature"))
}

// MoralisStreamsWebhook handles POST /api/v1/webhooks/moralis-streams
func (h *WebhookHandlers) MoralisStreamsWebhook(c *gin.Context) {
	h.receive(c, entities.SourceMoralisStreams, h.moralis, c.GetHeader("x-signature"))
}

func (h *WebhookHandlers) receive(c *gin.Context, source entities.WebhookSource, verifier SignatureVerifier, signature string) {
	rawBody, err := c.GetRawData()
	if err != nil {
		SendBadRequest(c, "INVALID_BODY", "Failed to read request body")
		return
	}

	// A failed signature check must leave no trace: the body is dropped
	// before anything is written.
	if !verifier.VerifySignature(rawBody, signature) {
		h.logger.Warn("webhook rejected",
			"source", source,
			"remote_addr", c.ClientIP(),
			"error", apperrors.ErrBadSignature)
		SendUnauthorized(c, apperrors.ErrBadSignature.Error())
		return
	}

	log, err := h.logs.Create(c.Request.Context(), source, rawBody)
	if err != nil {
		h.logger.Error("failed to persist webhook payload",
			"source", source,
			"error", err)
		SendInternalError(c, "WEBHOOK_PERSIST_FAILED", "Failed to persist webhook")
		return
	}

	h.logger.Debug("webhook accepted",
		"source", source,
		"log_id", log.ID.String(),
		"bytes", len(rawBody))

	SendAccepted(c, gin.H{"status": "accepted", "id": log.ID})
}
