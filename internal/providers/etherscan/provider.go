// Package etherscan integrates the Etherscan account API as the Ethereum
// fallback history source. The vendor key is optional; unauthenticated calls
// run at a reduced rate limit.
package etherscan

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/httpclient"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

const (
	ProviderKey = "etherscan"
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
		entities.NetworkEthereum: true,
	}
}

type listResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Result  []txPayload `json:"result"`
}

type balanceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

type txPayload struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasPrice    string `json:"gasPrice"`
	GasUsed     string `json:"gasUsed"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
}

// SyncTransactions fetches the most recent page of the account tx list.
func (p *Provider) SyncTransactions(ctx context.Context, target providers.SyncTarget) (int, error) {
	txs, err := p.fetchPage(ctx, target, 1, "desc")
	if err != nil {
		return 0, err
	}
	return p.writePage(ctx, target, txs, time.Time{}, time.Time{})
}

// FetchTransactions pages through the tx list in ascending order and keeps
// the records whose timestamps fall inside [from, to]. Etherscan paginates by
// page number, so the loop stops once a page starts past the range, returns
// fewer than a full page, or the safety bound is hit.
func (p *Provider) FetchTransactions(ctx context.Context, target providers.SyncTarget, from, to time.Time) (int, error) {
	total := 0

	for pageNum := 1; pageNum <= providers.MaxPages; pageNum++ {
		txs, err := p.fetchPage(ctx, target, pageNum, "asc")
		if err != nil {
			return total, err
		}

		written, err := p.writePage(ctx, target, txs, from, to)
		if err != nil {
			return total, err
		}
		total += written

		if len(txs) < pageSize {
			break
		}
		if !to.IsZero() && pageStartsAfter(txs, to) {
			break
		}
	}

	return total, nil
}

// SyncBalance fetches the wei balance for the address.
func (p *Provider) SyncBalance(ctx context.Context, target providers.SyncTarget) error {
	query := p.baseQuery(target)
	query.Set("module", "account")
	query.Set("action", "balance")
	query.Set("tag", "latest")

	var resp balanceResponse
	if err := p.http.Get(ctx, p.baseURL+"?"+query.Encode(), nil, &resp); err != nil {
		return err
	}
	if resp.Status != "1" || resp.Result == "" {
		return apperrors.DataShapeError(ProviderKey, "balance result")
	}

	return providers.SettleBalance(ctx, p.deps, target, resp.Result, p.logger)
}

func (p *Provider) fetchPage(ctx context.Context, target providers.SyncTarget, page int, sort string) ([]txPayload, error) {
	query := p.baseQuery(target)
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("startblock", "0")
	query.Set("endblock", "99999999")
	query.Set("page", strconv.Itoa(page))
	query.Set("offset", strconv.Itoa(pageSize))
	query.Set("sort", sort)

	var resp listResponse
	if err := p.http.Get(ctx, p.baseURL+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	// Etherscan signals an empty result set through status "0".
	if resp.Status != "1" {
		if strings.Contains(resp.Message, "No transactions found") {
			return nil, nil
		}
		return nil, apperrors.DataShapeError(ProviderKey, "status "+resp.Message)
	}

	return resp.Result, nil
}

func (p *Provider) baseQuery(target providers.SyncTarget) url.Values {
	query := url.Values{}
	query.Set("address", target.Wallet.Address)
	if target.APIKey != "" {
		query.Set("apikey", target.APIKey)
	}
	return query
}

func (p *Provider) writePage(ctx context.Context, target providers.SyncTarget, txs []txPayload, from, to time.Time) (int, error) {
	written := 0
	for _, raw := range txs {
		ct, err := p.normalize(target, raw)
		if err != nil {
			return written, err
		}
		if ct.MinedAt != nil {
			if !from.IsZero() && ct.MinedAt.Before(from) {
				continue
			}
			if !to.IsZero() && ct.MinedAt.After(to) {
				continue
			}
		}
		if _, err := p.deps.Sink.Write(ctx, target.Wallet.ID, ct); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (p *Provider) normalize(target providers.SyncTarget, raw txPayload) (*entities.CanonicalTransaction, error) {
	if raw.Hash == "" {
		return nil, apperrors.DataShapeError(ProviderKey, "hash")
	}
	if raw.Value == "" {
		return nil, apperrors.DataShapeError(ProviderKey, "value")
	}

	amount, err := units.FromBaseUnits(target.Network.Slug, raw.Value)
	if err != nil {
		return nil, err
	}

	ct := &entities.CanonicalTransaction{
		NetworkSlug:   target.Network.Slug,
		WalletAddress: target.Wallet.Address,
		Hash:          raw.Hash,
		FromAddress:   raw.From,
		ToAddress:     raw.To,
		Amount:        amount,
	}

	if raw.GasPrice != "" && raw.GasUsed != "" {
		fee, ferr := units.FeeFromGas(target.Network.Slug, raw.GasPrice, raw.GasUsed)
		if ferr == nil {
			ct.Fee = &fee
		} else {
			p.logger.Warn("skipping fee conversion",
				"provider", ProviderKey,
				"hash", raw.Hash,
				"error", ferr)
		}
	}

	if raw.BlockNumber != "" {
		if block, berr := strconv.ParseInt(raw.BlockNumber, 10, 64); berr == nil {
			ct.BlockNumber = &block
		}
	}
	if raw.TimeStamp != "" {
		if unix, terr := strconv.ParseInt(raw.TimeStamp, 10, 64); terr == nil {
			minedAt := time.Unix(unix, 0).UTC()
			ct.MinedAt = &minedAt
		}
	}

	return ct, nil
}

func pageStartsAfter(txs []txPayload, to time.Time) bool {
	if len(txs) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(txs[0].TimeStamp, 10, 64)
	if err != nil {
		return false
	}
	return time.Unix(unix, 0).After(to)
}
