// Package pricing provides cached USD price lookup per asset with a bounded
// staleness window. Price failures are always non-fatal to callers: the
// oracle reports ErrPriceUnavailable and the caller decides what to persist.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/infrastructure/cache"
	"github.com/whalewatch/whalewatch/pkg/httpclient"
)

// assetIDBySlug maps internal network slugs to CoinGecko asset ids.
var assetIDBySlug = map[entities.NetworkSlug]string{
	entities.NetworkBitcoin:  "bitcoin",
	entities.NetworkLitecoin: "litecoin",
	entities.NetworkDogecoin: "dogecoin",
	entities.NetworkEthereum: "ethereum",
	entities.NetworkPolygon:  "matic-network",
	entities.NetworkBSC:      "binancecoin",
	entities.NetworkSolana:   "solana",
	entities.NetworkTron:     "tron",
}

// AssetID resolves the oracle asset id for a network slug.
func AssetID(slug entities.NetworkSlug) (string, bool) {
	id, ok := assetIDBySlug[slug]
	return id, ok
}

// Oracle is a CoinGecko-backed price client with a Redis cache in front.
type Oracle struct {
	http    *httpclient.Client
	cache   cache.RedisClient
	baseURL string
	apiKey  string
	ttl     time.Duration
	logger  *zap.Logger
}

func NewOracle(http *httpclient.Client, redis cache.RedisClient, baseURL, apiKey string, ttl time.Duration, logger *zap.Logger) *Oracle {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Oracle{
		http:    http,
		cache:   redis,
		baseURL: baseURL,
		apiKey:  apiKey,
		ttl:     ttl,
		logger:  logger,
	}
}

// GetUSDPrice returns the current USD price for an asset. A cached quote
// within the staleness window is served without a vendor call. Any failure
// surfaces as ErrPriceUnavailable so "could not price this" is a visible
// branch for callers, never a silent zero.
func (o *Oracle) GetUSDPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	cacheKey := "price:usd:" + assetID

	var cached string
	if err := o.cache.Get(ctx, cacheKey, &cached); err == nil {
		price, perr := decimal.NewFromString(cached)
		if perr == nil {
			return price, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		o.logger.Warn("price cache read failed", zap.String("asset_id", assetID), zap.Error(err))
	}

	price, err := o.fetch(ctx, assetID)
	if err != nil {
		o.logger.Warn("price lookup failed",
			zap.String("asset_id", assetID),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %s: %v", apperrors.ErrPriceUnavailable, assetID, err)
	}

	if err := o.cache.Set(ctx, cacheKey, price.String(), o.ttl); err != nil {
		o.logger.Warn("price cache write failed", zap.String("asset_id", assetID), zap.Error(err))
	}

	return price, nil
}

// GetUSDPriceForNetwork is a convenience wrapper keyed by network slug.
func (o *Oracle) GetUSDPriceForNetwork(ctx context.Context, slug entities.NetworkSlug) (decimal.Decimal, error) {
	assetID, ok := AssetID(slug)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no asset mapping for network %q", apperrors.ErrPriceUnavailable, slug)
	}
	return o.GetUSDPrice(ctx, assetID)
}

func (o *Oracle) fetch(ctx context.Context, assetID string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", o.baseURL, url.QueryEscape(assetID))

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["x-cg-pro-api-key"] = o.apiKey
	}

	// Quotes decode through json.Number so the vendor's decimal string never
	// round-trips through a float.
	var resp map[string]map[string]json.Number
	if err := o.http.Get(ctx, endpoint, headers, &resp); err != nil {
		return decimal.Zero, err
	}

	quote, ok := resp[assetID]
	if !ok {
		return decimal.Zero, apperrors.DataShapeError("coingecko", assetID)
	}
	usd, ok := quote["usd"]
	if !ok {
		return decimal.Zero, apperrors.DataShapeError("coingecko", "usd")
	}

	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, apperrors.DataShapeError("coingecko", "usd")
	}

	return price, nil
}
