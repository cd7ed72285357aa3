package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// WalletHandlers exposes wallet tracking and history endpoints.
type WalletHandlers struct {
	networks    *repositories.NetworkRepository
	wallets     *repositories.WalletRepository
	userWallets *repositories.UserWalletRepository
	txs         *repositories.TransactionRepository
	syncJobs    *repositories.SyncJobRepository
	logger      *logger.Logger
}

func NewWalletHandlers(
	networks *repositories.NetworkRepository,
	wallets *repositories.WalletRepository,
	userWallets *repositories.UserWalletRepository,
	txs *repositories.TransactionRepository,
	syncJobs *repositories.SyncJobRepository,
	logger *logger.Logger,
) *WalletHandlers {
	return &WalletHandlers{
		networks:    networks,
		wallets:     wallets,
		userWallets: userWallets,
		txs:         txs,
		syncJobs:    syncJobs,
		logger:      logger,
	}
}

type watchRequest struct {
	UserID          uuid.UUID `json:"user_id" binding:"required"`
	Network         string    `json:"network" binding:"required"`
	Address         string    `json:"address" binding:"required"`
	Label           string    `json:"label"`
	NotifyEnabled   bool      `json:"notify_enabled"`
	ThresholdUSD    string    `json:"threshold_usd"`
	Channel         string    `json:"channel"`
	DirectionFilter string    `json:"direction_filter"`
	CooldownMinutes int       `json:"cooldown_minutes"`
	Notes           string    `json:"notes"`
}

// WatchWallet handles POST /api/v1/wallets/watch. The wallet row is created
// on first watch and an initial sync job is queued so history appears without
// waiting for the next scheduled run.
func (h *WalletHandlers) WatchWallet(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	network, err := h.networks.GetBySlug(c.Request.Context(), entities.NetworkSlug(req.Network))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			SendBadRequest(c, "UNKNOWN_NETWORK", "Unsupported network: "+req.Network)
			return
		}
		SendInternalError(c, "NETWORK_LOOKUP_FAILED", "Failed to resolve network")
		return
	}
	if !network.IsActive {
		SendBadRequest(c, "NETWORK_INACTIVE", "Network is not active: "+req.Network)
		return
	}

	wallet, err := h.wallets.FirstOrCreate(c.Request.Context(), network.ID, req.Address)
	if err != nil {
		h.logger.Error("failed to create wallet", "address", req.Address, "error", err)
		SendInternalError(c, "WALLET_CREATE_FAILED", "Failed to create wallet")
		return
	}

	threshold := decimal.Zero
	if req.ThresholdUSD != "" {
		threshold, err = decimal.NewFromString(req.ThresholdUSD)
		if err != nil || threshold.IsNegative() {
			SendBadRequest(c, "INVALID_THRESHOLD", "threshold_usd must be a non-negative decimal string")
			return
		}
	}

	channel := entities.AlertChannel(req.Channel)
	if channel == "" {
		channel = entities.ChannelEmail
	}
	filter := entities.DirectionFilter(req.DirectionFilter)
	if filter == "" {
		filter = entities.FilterAll
	}

	tracking, err := h.userWallets.Track(c.Request.Context(), &entities.UserWallet{
		UserID:          req.UserID,
		WalletID:        wallet.ID,
		Label:           req.Label,
		NotifyEnabled:   req.NotifyEnabled,
		ThresholdUSD:    threshold,
		Channel:         channel,
		DirectionFilter: filter,
		CooldownMinutes: req.CooldownMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logger.Error("failed to track wallet", "wallet_id", wallet.ID.String(), "error", err)
		SendInternalError(c, "TRACK_FAILED", "Failed to track wallet")
		return
	}

	userID := req.UserID
	if _, err := h.syncJobs.Enqueue(c.Request.Context(), &entities.SyncJob{
		WalletID: wallet.ID,
		UserID:   &userID,
	}); err != nil {
		// Tracking succeeded; the scheduled sync will pick the wallet up.
		h.logger.Warn("failed to enqueue initial sync", "wallet_id", wallet.ID.String(), "error", err)
	}

	SendCreated(c, gin.H{"wallet": wallet, "tracking": tracking})
}

// UnwatchWallet handles DELETE /api/v1/wallets/:id/watch. The wallet row and
// its history stay; only the caller's tracking link is removed.
func (h *WalletHandlers) UnwatchWallet(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, "INVALID_WALLET_ID", "Wallet id must be a UUID")
		return
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		SendBadRequest(c, "INVALID_USER_ID", "user_id query parameter must be a UUID")
		return
	}

	if err := h.userWallets.Untrack(c.Request.Context(), userID, walletID); err != nil {
		h.logger.Error("failed to untrack wallet", "wallet_id", walletID.String(), "error", err)
		SendInternalError(c, "UNTRACK_FAILED", "Failed to untrack wallet")
		return
	}

	SendSuccess(c, gin.H{"status": "untracked"})
}

// GetWallet handles GET /api/v1/wallets/:id
func (h *WalletHandlers) GetWallet(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, "INVALID_WALLET_ID", "Wallet id must be a UUID")
		return
	}

	wallet, err := h.wallets.GetByID(c.Request.Context(), walletID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			SendNotFound(c, "WALLET_NOT_FOUND", "Wallet not found")
			return
		}
		SendInternalError(c, "WALLET_LOOKUP_FAILED", "Failed to load wallet")
		return
	}

	SendSuccess(c, gin.H{"wallet": wallet})
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions
func (h *WalletHandlers) ListTransactions(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, "INVALID_WALLET_ID", "Wallet id must be a UUID")
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := h.txs.ListByWallet(c.Request.Context(), walletID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list transactions", "wallet_id", walletID.String(), "error", err)
		SendInternalError(c, "TX_LIST_FAILED", "Failed to list transactions")
		return
	}

	SendSuccess(c, gin.H{"transactions": txs, "limit": limit, "offset": offset})
}

type backfillRequest struct {
	UserID *uuid.UUID `json:"user_id"`
	From   time.Time  `json:"from" binding:"required"`
	To     time.Time  `json:"to" binding:"required"`
}

// RequestBackfill handles POST /api/v1/wallets/:id/backfill. It queues a
// date-ranged history fetch rather than fetching inline.
func (h *WalletHandlers) RequestBackfill(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, "INVALID_WALLET_ID", "Wallet id must be a UUID")
		return
	}

	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if !req.To.After(req.From) {
		SendBadRequest(c, "INVALID_RANGE", "to must be after from")
		return
	}

	if _, err := h.wallets.GetByID(c.Request.Context(), walletID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			SendNotFound(c, "WALLET_NOT_FOUND", "Wallet not found")
			return
		}
		SendInternalError(c, "WALLET_LOOKUP_FAILED", "Failed to load wallet")
		return
	}

	from := req.From.UTC()
	to := req.To.UTC()
	queued, err := h.syncJobs.Enqueue(c.Request.Context(), &entities.SyncJob{
		WalletID:  walletID,
		UserID:    req.UserID,
		RangeFrom: &from,
		RangeTo:   &to,
	})
	if err != nil {
		h.logger.Error("failed to enqueue backfill", "wallet_id", walletID.String(), "error", err)
		SendInternalError(c, "BACKFILL_ENQUEUE_FAILED", "Failed to queue backfill")
		return
	}
	if !queued {
		// Another job for this wallet is already live; the caller should
		// retry the backfill once it drains.
		SendAccepted(c, gin.H{"status": "already_queued"})
		return
	}

	SendAccepted(c, gin.H{"status": "queued"})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
