// Package trongrid integrates the TronGrid v1 API for TRON wallet history.
// Only native TRX TransferContract entries are ingested; contract calls and
// TRC-20 movements are other contract types and are skipped.
package trongrid

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
	ProviderKey = "trongrid"
	pageSize    = 50

	transferContract = "TransferContract"
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
		entities.NetworkTron: true,
	}
}

type txListResponse struct {
	Success bool        `json:"success"`
	Data    []txPayload `json:"data"`
	Meta    struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

type txPayload struct {
	TxID           string `json:"txID"`
	BlockNumber    int64  `json:"blockNumber"`
	BlockTimestamp int64  `json:"block_timestamp"`
	Ret            []struct {
		Fee int64 `json:"fee"`
	} `json:"ret"`
	RawData struct {
		Contract []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value struct {
					Amount       int64  `json:"amount"`
					OwnerAddress string `json:"owner_address"`
					ToAddress    string `json:"to_address"`
				} `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
}

type accountResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Balance int64 `json:"balance"`
	} `json:"data"`
}

// SyncTransactions fetches the most recent page of account transactions.
func (p *Provider) SyncTransactions(ctx context.Context, target providers.SyncTarget) (int, error) {
	resp, err := p.fetchPage(ctx, target, "", time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return p.writePage(ctx, target, resp.Data)
}

// FetchTransactions pages through the account transaction list using the
// vendor fingerprint cursor, bounded by [from, to] millisecond timestamps.
func (p *Provider) FetchTransactions(ctx context.Context, target providers.SyncTarget, from, to time.Time) (int, error) {
	total := 0
	fingerprint := ""

	for pageNum := 0; pageNum < providers.MaxPages; pageNum++ {
		resp, err := p.fetchPage(ctx, target, fingerprint, from, to)
		if err != nil {
			return total, err
		}

		written, err := p.writePage(ctx, target, resp.Data)
		if err != nil {
			return total, err
		}
		total += written

		if len(resp.Data) < pageSize || resp.Meta.Fingerprint == "" {
			break
		}
		fingerprint = resp.Meta.Fingerprint
	}

	return total, nil
}

// SyncBalance fetches the account and persists the sun balance.
func (p *Provider) SyncBalance(ctx context.Context, target providers.SyncTarget) error {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s", p.baseURL, url.PathEscape(target.Wallet.Address))

	var resp accountResponse
	if err := p.http.Get(ctx, endpoint, p.headers(target), &resp); err != nil {
		return err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return apperrors.DataShapeError(ProviderKey, "account")
	}

	return providers.SettleBalance(ctx, p.deps, target,
		strconv.FormatInt(resp.Data[0].Balance, 10), p.logger)
}

func (p *Provider) fetchPage(ctx context.Context, target providers.SyncTarget, fingerprint string, from, to time.Time) (*txListResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("visible", "true")
	query.Set("only_confirmed", "true")
	if !from.IsZero() {
		query.Set("min_timestamp", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		query.Set("max_timestamp", strconv.FormatInt(to.UnixMilli(), 10))
	}
	if fingerprint != "" {
		query.Set("fingerprint", fingerprint)
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions?%s",
		p.baseURL, url.PathEscape(target.Wallet.Address), query.Encode())

	var resp txListResponse
	if err := p.http.Get(ctx, endpoint, p.headers(target), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.DataShapeError(ProviderKey, "transaction list")
	}
	return &resp, nil
}

func (p *Provider) headers(target providers.SyncTarget) map[string]string {
	if target.APIKey == "" {
		return nil
	}
	return map[string]string{"TRON-PRO-API-KEY": target.APIKey}
}

func (p *Provider) writePage(ctx context.Context, target providers.SyncTarget, txs []txPayload) (int, error) {
	written := 0
	for _, raw := range txs {
		ct, err := p.normalize(target, raw)
		if err != nil {
			return written, err
		}
		if ct == nil {
			continue
		}
		if _, err := p.deps.Sink.Write(ctx, target.Wallet.ID, ct); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// normalize converts a TransferContract entry to the canonical form. Entries
// of any other contract type return nil without error.
func (p *Provider) normalize(target providers.SyncTarget, raw txPayload) (*entities.CanonicalTransaction, error) {
	if raw.TxID == "" {
		return nil, apperrors.DataShapeError(ProviderKey, "txID")
	}
	if len(raw.RawData.Contract) == 0 {
		return nil, nil
	}

	contract := raw.RawData.Contract[0]
	if contract.Type != transferContract {
		return nil, nil
	}

	amount, err := units.FromBaseUnitsInt(target.Network.Slug, contract.Parameter.Value.Amount)
	if err != nil {
		return nil, err
	}

	ct := &entities.CanonicalTransaction{
		NetworkSlug:   target.Network.Slug,
		WalletAddress: target.Wallet.Address,
		Hash:          raw.TxID,
		FromAddress:   contract.Parameter.Value.OwnerAddress,
		ToAddress:     contract.Parameter.Value.ToAddress,
		Amount:        amount,
	}

	if len(raw.Ret) > 0 && raw.Ret[0].Fee > 0 {
		fee, ferr := units.FromBaseUnitsInt(target.Network.Slug, raw.Ret[0].Fee)
		if ferr == nil {
			ct.Fee = &fee
		}
	}
	if raw.BlockNumber > 0 {
		block := raw.BlockNumber
		ct.BlockNumber = &block
	}
	if raw.BlockTimestamp > 0 {
		minedAt := time.UnixMilli(raw.BlockTimestamp).UTC()
		ct.MinedAt = &minedAt
	}

	return ct, nil
}
