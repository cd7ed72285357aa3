// Package blockcypher integrates the BlockCypher full-address API for the
// UTXO chains. UTXO transactions carry no single from/to pair, so each one is
// reduced to the wallet's net change before it enters the canonical form.
package blockcypher

import (
	"context"
	"fmt"
	"math/big"
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
	ProviderKey = "blockcypher"
	pageSize    = 50
)

// coinPaths maps internal slugs to BlockCypher chain path segments.
var coinPaths = map[entities.NetworkSlug]string{
	entities.NetworkBitcoin:  "btc",
	entities.NetworkLitecoin: "ltc",
	entities.NetworkDogecoin: "doge",
}

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
		entities.NetworkBitcoin:  true,
		entities.NetworkLitecoin: true,
		entities.NetworkDogecoin: true,
	}
}

type addressFull struct {
	Txs []txPayload `json:"txs"`
}

type txPayload struct {
	Hash        string     `json:"hash"`
	Fees        int64      `json:"fees"`
	BlockHeight int64      `json:"block_height"`
	Confirmed   *time.Time `json:"confirmed"`
	Inputs      []txInput  `json:"inputs"`
	Outputs     []txOutput `json:"outputs"`
}

type txInput struct {
	Addresses   []string `json:"addresses"`
	OutputValue int64    `json:"output_value"`
}

type txOutput struct {
	Addresses []string `json:"addresses"`
	Value     int64    `json:"value"`
}

type addressBalance struct {
	FinalBalance int64 `json:"final_balance"`
}

// SyncTransactions fetches the most recent page of full transactions.
func (p *Provider) SyncTransactions(ctx context.Context, target providers.SyncTarget) (int, error) {
	page, err := p.fetchPage(ctx, target, 0)
	if err != nil {
		return 0, err
	}
	return p.writePage(ctx, target, page, time.Time{}, time.Time{})
}

// FetchTransactions walks backwards through the chain using before=height
// pagination and keeps confirmed transactions inside [from, to].
func (p *Provider) FetchTransactions(ctx context.Context, target providers.SyncTarget, from, to time.Time) (int, error) {
	total := 0
	before := int64(0)

	for pageNum := 0; pageNum < providers.MaxPages; pageNum++ {
		page, err := p.fetchPage(ctx, target, before)
		if err != nil {
			return total, err
		}

		written, err := p.writePage(ctx, target, page, from, to)
		if err != nil {
			return total, err
		}
		total += written

		if len(page) < pageSize {
			break
		}
		oldest := page[len(page)-1]
		if oldest.BlockHeight <= 0 {
			break
		}
		if !from.IsZero() && oldest.Confirmed != nil && oldest.Confirmed.Before(from) {
			break
		}
		before = oldest.BlockHeight
	}

	return total, nil
}

// SyncBalance fetches the confirmed balance in satoshi-scale base units.
func (p *Provider) SyncBalance(ctx context.Context, target providers.SyncTarget) error {
	coin, ok := coinPaths[target.Network.Slug]
	if !ok {
		return fmt.Errorf("blockcypher does not support network %q", target.Network.Slug)
	}

	endpoint := fmt.Sprintf("%s/%s/main/addrs/%s/balance%s",
		p.baseURL, coin, url.PathEscape(target.Wallet.Address), p.tokenQuery(target, ""))

	var payload addressBalance
	if err := p.http.Get(ctx, endpoint, nil, &payload); err != nil {
		return err
	}

	return providers.SettleBalance(ctx, p.deps, target, strconv.FormatInt(payload.FinalBalance, 10), p.logger)
}

func (p *Provider) fetchPage(ctx context.Context, target providers.SyncTarget, before int64) ([]txPayload, error) {
	coin, ok := coinPaths[target.Network.Slug]
	if !ok {
		return nil, fmt.Errorf("blockcypher does not support network %q", target.Network.Slug)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}

	endpoint := fmt.Sprintf("%s/%s/main/addrs/%s/full%s",
		p.baseURL, coin, url.PathEscape(target.Wallet.Address), p.tokenQuery(target, query.Encode()))

	var payload addressFull
	if err := p.http.Get(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Txs, nil
}

func (p *Provider) tokenQuery(target providers.SyncTarget, existing string) string {
	query, _ := url.ParseQuery(existing)
	if target.APIKey != "" {
		query.Set("token", target.APIKey)
	}
	if encoded := query.Encode(); encoded != "" {
		return "?" + encoded
	}
	return ""
}

func (p *Provider) writePage(ctx context.Context, target providers.SyncTarget, txs []txPayload, from, to time.Time) (int, error) {
	written := 0
	for _, raw := range txs {
		if raw.Confirmed != nil {
			if !from.IsZero() && raw.Confirmed.Before(from) {
				continue
			}
			if !to.IsZero() && raw.Confirmed.After(to) {
				continue
			}
		}

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

// normalize collapses a UTXO transaction to the wallet's net position.
//
// net = sum(outputs paying the wallet) - sum(inputs spending the wallet).
// A non-negative net is an incoming transfer of that amount. A negative net
// is an outgoing transfer: the wallet spent |net|, of which the fee portion
// went to miners, so the amount sent to the counterpart is |net| - fee.
func (p *Provider) normalize(target providers.SyncTarget, raw txPayload) (*entities.CanonicalTransaction, error) {
	if raw.Hash == "" {
		return nil, apperrors.DataShapeError(ProviderKey, "hash")
	}

	wallet := target.Wallet.Address

	net := big.NewInt(0)
	for _, out := range raw.Outputs {
		if containsAddress(out.Addresses, wallet) {
			net.Add(net, big.NewInt(out.Value))
		}
	}
	for _, in := range raw.Inputs {
		if containsAddress(in.Addresses, wallet) {
			net.Sub(net, big.NewInt(in.OutputValue))
		}
	}

	ct := &entities.CanonicalTransaction{
		NetworkSlug:   target.Network.Slug,
		WalletAddress: wallet,
	}
	ct.Hash = raw.Hash

	fee, err := units.FromBaseUnitsInt(target.Network.Slug, raw.Fees)
	if err != nil {
		return nil, err
	}
	ct.Fee = &fee

	if net.Sign() >= 0 {
		amount, err := units.FromBaseUnits(target.Network.Slug, net.String())
		if err != nil {
			return nil, err
		}
		ct.Amount = amount
		ct.FromAddress = p.counterpart(raw, wallet, true)
		ct.ToAddress = wallet
	} else {
		gross := new(big.Int).Neg(net)
		sent := new(big.Int).Sub(gross, big.NewInt(raw.Fees))
		if sent.Sign() < 0 {
			sent.SetInt64(0)
		}
		amount, err := units.FromBaseUnits(target.Network.Slug, sent.String())
		if err != nil {
			return nil, err
		}
		ct.Amount = amount
		ct.FromAddress = wallet
		ct.ToAddress = p.counterpart(raw, wallet, false)
	}

	if raw.BlockHeight > 0 {
		block := raw.BlockHeight
		ct.BlockNumber = &block
	}
	if raw.Confirmed != nil {
		minedAt := raw.Confirmed.UTC()
		ct.MinedAt = &minedAt
	}

	return ct, nil
}

// counterpart picks the single distinct non-wallet address on the opposite
// side of the transfer, or the aggregate placeholder when there is none or
// more than one.
func (p *Provider) counterpart(raw txPayload, wallet string, incoming bool) string {
	distinct := map[string]bool{}

	if incoming {
		for _, in := range raw.Inputs {
			for _, addr := range in.Addresses {
				if !equalAddress(addr, wallet) {
					distinct[entities.NormalizeAddress(addr)] = true
				}
			}
		}
	} else {
		for _, out := range raw.Outputs {
			for _, addr := range out.Addresses {
				if !equalAddress(addr, wallet) {
					distinct[entities.NormalizeAddress(addr)] = true
				}
			}
		}
	}

	if len(distinct) == 1 {
		for addr := range distinct {
			return addr
		}
	}
	return entities.ExternalCounterparty
}

func containsAddress(addrs []string, wallet string) bool {
	for _, addr := range addrs {
		if equalAddress(addr, wallet) {
			return true
		}
	}
	return false
}

func equalAddress(a, b string) bool {
	return entities.NormalizeAddress(a) == entities.NormalizeAddress(b)
}
