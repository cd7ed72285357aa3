// Package moralis integrates the Moralis deep-index API for EVM chains.
package moralis

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
	ProviderKey = "moralis"
	pageSize    = 100
)

// chainParams maps internal slugs to the Moralis chain query parameter.
var chainParams = map[entities.NetworkSlug]string{
	entities.NetworkEthereum: "eth",
	entities.NetworkPolygon:  "polygon",
	entities.NetworkBSC:      "bsc",
}

// Provider fetches wallet history and balances from Moralis. The vendor key
// is mandatory.
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
		entities.NetworkPolygon:  true,
		entities.NetworkBSC:      true,
	}
}

type txPage struct {
	Cursor string      `json:"cursor"`
	Result []txPayload `json:"result"`
}

type txPayload struct {
	Hash           string `json:"hash"`
	FromAddress    string `json:"from_address"`
	ToAddress      string `json:"to_address"`
	Value          string `json:"value"`
	GasPrice       string `json:"gas_price"`
	ReceiptGasUsed string `json:"receipt_gas_used"`
	BlockNumber    string `json:"block_number"`
	BlockTimestamp string `json:"block_timestamp"`
}

type balancePayload struct {
	Balance string `json:"balance"`
}

// SyncTransactions fetches the most recent page of wallet history.
func (p *Provider) SyncTransactions(ctx context.Context, target providers.SyncTarget) (int, error) {
	page, err := p.fetchPage(ctx, target, "", time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return p.writePage(ctx, target, page.Result)
}

// FetchTransactions paginates through the cursor-based history API bounded
// by [from, to], stopping on a short page, an exhausted cursor, or the
// max-page safety bound.
func (p *Provider) FetchTransactions(ctx context.Context, target providers.SyncTarget, from, to time.Time) (int, error) {
	total := 0
	cursor := ""

	for pageNum := 0; pageNum < providers.MaxPages; pageNum++ {
		page, err := p.fetchPage(ctx, target, cursor, from, to)
		if err != nil {
			return total, err
		}

		written, err := p.writePage(ctx, target, page.Result)
		if err != nil {
			return total, err
		}
		total += written

		if len(page.Result) < pageSize || page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return total, nil
}

// SyncBalance fetches the native balance in wei and persists it.
func (p *Provider) SyncBalance(ctx context.Context, target providers.SyncTarget) error {
	chain, headers, err := p.requestBasics(target)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/balance?chain=%s", p.baseURL, url.PathEscape(target.Wallet.Address), chain)

	var payload balancePayload
	if err := p.http.Get(ctx, endpoint, headers, &payload); err != nil {
		return err
	}
	if payload.Balance == "" {
		return apperrors.DataShapeError(ProviderKey, "balance")
	}

	return providers.SettleBalance(ctx, p.deps, target, payload.Balance, p.logger)
}

func (p *Provider) fetchPage(ctx context.Context, target providers.SyncTarget, cursor string, from, to time.Time) (*txPage, error) {
	chain, headers, err := p.requestBasics(target)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("chain", chain)
	query.Set("limit", strconv.Itoa(pageSize))
	if !from.IsZero() {
		query.Set("from_date", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("to_date", to.UTC().Format(time.RFC3339))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	endpoint := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(target.Wallet.Address), query.Encode())

	var page txPage
	if err := p.http.Get(ctx, endpoint, headers, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (p *Provider) requestBasics(target providers.SyncTarget) (string, map[string]string, error) {
	chain, ok := chainParams[target.Network.Slug]
	if !ok {
		return "", nil, fmt.Errorf("moralis does not support network %q", target.Network.Slug)
	}
	if target.APIKey == "" {
		return "", nil, fmt.Errorf("moralis: %w", apperrors.ErrMissingAPIKey)
	}
	return chain, map[string]string{"X-API-Key": target.APIKey}, nil
}

func (p *Provider) writePage(ctx context.Context, target providers.SyncTarget, payloads []txPayload) (int, error) {
	written := 0
	for _, raw := range payloads {
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
		FromAddress:   raw.FromAddress,
		ToAddress:     raw.ToAddress,
		Amount:        amount,
	}

	// Moralis reports gas price and gas used separately; the fee is their
	// product in base units. A failed fee conversion leaves the field
	// unset rather than approximated.
	if raw.GasPrice != "" && raw.ReceiptGasUsed != "" {
		fee, ferr := units.FeeFromGas(target.Network.Slug, raw.GasPrice, raw.ReceiptGasUsed)
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
	if raw.BlockTimestamp != "" {
		if minedAt, terr := time.Parse(time.RFC3339, raw.BlockTimestamp); terr == nil {
			ct.MinedAt = &minedAt
		}
	}

	return ct, nil
}
