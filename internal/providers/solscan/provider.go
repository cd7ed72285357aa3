// Package solscan integrates the Solscan pro API for Solana wallet history.
// The vendor key is mandatory and travels in a "token" header.
package solscan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/httpclient"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

const (
	ProviderKey = "solscan"
	pageSize    = 100
)

type Provider struct {
	http    *httpclient.Client
	baseURL string
	deps    providers.Deps
	logger  *logger.Logger
}

func New(http *httpclient.Client, baseURL string, deps providers.Deps, logger *logger.Logger) *Provider {
	return &Provider{http: http, baseURL: baseURL, deps: deps, logger: logger}
}

func (p *Provider) Key() string { return ProviderKey }

func (p *Provider) SupportedNetworks() map[entities.NetworkSlug]bool {
	return map[entities.NetworkSlug]bool{
		entities.NetworkSolana: true,
	}
}

type transferResponse struct {
	Success bool              `json:"success"`
	Data    []transferPayload `json:"data"`
}

type transferPayload struct {
	TransID     string `json:"trans_id"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Slot        int64  `json:"slot"`
	BlockTime   int64  `json:"block_time"`
}

type accountDetailResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Lamports int64 `json:"lamports"`
	} `json:"data"`
}

// SyncTransactions fetches the most recent page of SOL transfers.
func (p *Provider) SyncTransactions(ctx context.Context, target providers.SyncTarget) (int, error) {
	transfers, err := p.fetchPage(ctx, target, 1, time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return p.writePage(ctx, target, transfers)
}

// FetchTransactions pages through transfers constrained to [from, to] by the
// vendor-side block_time filter.
func (p *Provider) FetchTransactions(ctx context.Context, target providers.SyncTarget, from, to time.Time) (int, error) {
	total := 0

	for pageNum := 1; pageNum <= providers.MaxPages; pageNum++ {
		transfers, err := p.fetchPage(ctx, target, pageNum, from, to)
		if err != nil {
			return total, err
		}

		written, err := p.writePage(ctx, target, transfers)
		if err != nil {
			return total, err
		}
		total += written

		if len(transfers) < pageSize {
			break
		}
	}

	return total, nil
}

// SyncBalance fetches the account detail and persists the lamport balance.
func (p *Provider) SyncBalance(ctx context.Context, target providers.SyncTarget) error {
	headers, err := p.headers(target)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/account/detail?address=%s", p.baseURL, url.QueryEscape(target.Wallet.Address))

	var resp accountDetailResponse
	if err := p.http.Get(ctx, endpoint, headers, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return apperrors.DataShapeError(ProviderKey, "account detail")
	}

	return providers.SettleBalance(ctx, p.deps, target,
		strconv.FormatInt(resp.Data.Lamports, 10), p.logger)
}

func (p *Provider) fetchPage(ctx context.Context, target providers.SyncTarget, page int, from, to time.Time) ([]transferPayload, error) {
	headers, err := p.headers(target)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("address", target.Wallet.Address)
	query.Set("token", "SOL")
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if !from.IsZero() {
		query.Set("from_time", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		query.Set("to_time", strconv.FormatInt(to.Unix(), 10))
	}

	endpoint := fmt.Sprintf("%s/account/transfer?%s", p.baseURL, query.Encode())

	var resp transferResponse
	if err := p.http.Get(ctx, endpoint, headers, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.DataShapeError(ProviderKey, "transfer list")
	}

	return resp.Data, nil
}

func (p *Provider) headers(target providers.SyncTarget) (map[string]string, error) {
	if target.APIKey == "" {
		return nil, fmt.Errorf("solscan: %w", apperrors.ErrMissingAPIKey)
	}
	return map[string]string{"token": target.APIKey}, nil
}

func (p *Provider) writePage(ctx context.Context, target providers.SyncTarget, transfers []transferPayload) (int, error) {
	written := 0
	for _, raw := range transfers {
		ct, err := p.normalize(target, raw)
		if err != nil {
			return written, err
		}
		if _, err := p.deps.Sink.Write(ctx, target.Wallet.ID, ct); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (p *Provider) normalize(target providers.SyncTarget, raw transferPayload) (*entities.CanonicalTransaction, error) {
	if raw.TransID == "" {
		return nil, apperrors.DataShapeError(ProviderKey, "trans_id")
	}

	amount, err := units.FromBaseUnitsInt(target.Network.Slug, raw.Amount)
	if err != nil {
		return nil, err
	}

	ct := &entities.CanonicalTransaction{
		NetworkSlug:   target.Network.Slug,
		WalletAddress: target.Wallet.Address,
		Hash:          raw.TransID,
		FromAddress:   raw.FromAddress,
		ToAddress:     raw.ToAddress,
		Amount:        amount,
	}

	if raw.Fee > 0 {
		fee, ferr := units.FromBaseUnitsInt(target.Network.Slug, raw.Fee)
		if ferr == nil {
			ct.Fee = &fee
		}
	}
	if raw.Slot > 0 {
		slot := raw.Slot
		ct.BlockNumber = &slot
	}
	if raw.BlockTime > 0 {
		minedAt := time.Unix(raw.BlockTime, 0).UTC()
		ct.MinedAt = &minedAt
	}

	return ct, nil
}
