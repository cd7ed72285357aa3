package etherscan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/httpclient"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

type captureSink struct {
	writes []*entities.CanonicalTransaction
}

func (c *captureSink) Write(_ context.Context, _ uuid.UUID, tx *entities.CanonicalTransaction) (bool, error) {
	c.writes = append(c.writes, tx)
	return true, nil
}

func testTarget() providers.SyncTarget {
	return providers.SyncTarget{
		Wallet:  &entities.Wallet{ID: uuid.New(), Address: "0xwallet"},
		Network: &entities.Network{Slug: entities.NetworkEthereum},
		APIKey:  "test-key",
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *captureSink) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sink := &captureSink{}
	client := httpclient.New(httpclient.Config{RetryMax: 1}, zap.NewNop())
	p := New(client, server.URL, providers.Deps{Sink: sink}, logger.NewLogger(zap.NewNop()))
	return p, sink
}

func TestSyncTransactions(t *testing.T) {
	var gotQuery map[string]string
	p, sink := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"module": q.Get("module"),
			"action": q.Get("action"),
			"sort":   q.Get("sort"),
			"apikey": q.Get("apikey"),
		}
		json.NewEncoder(w).Encode(listResponse{
			Status: "1",
			Result: []txPayload{
				{
					Hash:        "0xabc",
					From:        "0xsender",
					To:          "0xwallet",
					Value:       "2500000000000000000",
					GasPrice:    "20000000000",
					GasUsed:     "21000",
					BlockNumber: "19000000",
					TimeStamp:   "1706000000",
				},
			},
		})
	})

	count, err := p.SyncTransactions(context.Background(), testTarget())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, "account", gotQuery["module"])
	assert.Equal(t, "txlist", gotQuery["action"])
	assert.Equal(t, "desc", gotQuery["sort"])
	assert.Equal(t, "test-key", gotQuery["apikey"])

	require.Len(t, sink.writes, 1)
	tx := sink.writes[0]
	assert.Equal(t, "2.5", tx.Amount.String())
	require.NotNil(t, tx.Fee)
	assert.Equal(t, "0.00042", tx.Fee.String())
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, int64(19000000), *tx.BlockNumber)
	require.NotNil(t, tx.MinedAt)
	assert.Equal(t, int64(1706000000), tx.MinedAt.Unix())
}

func TestSyncTransactions_NoTransactionsFound(t *testing.T) {
	p, sink := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Status: "0", Message: "No transactions found"})
	})

	count, err := p.SyncTransactions(context.Background(), testTarget())
	require.NoError(t, err, "an empty account is a success, not an error")
	assert.Zero(t, count)
	assert.Empty(t, sink.writes)
}

func TestSyncTransactions_VendorErrorStatus(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Status: "0", Message: "NOTOK"})
	})

	_, err := p.SyncTransactions(context.Background(), testTarget())
	assert.Error(t, err)
}

func TestFetchTransactions_FiltersRange(t *testing.T) {
	inRange := "1706000000"
	before := "1600000000"
	after := "1800000000"

	p, sink := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{
			Status: "1",
			Result: []txPayload{
				{Hash: "0xold", From: "0xa", To: "0xwallet", Value: "1", TimeStamp: before},
				{Hash: "0xhit", From: "0xa", To: "0xwallet", Value: "1", TimeStamp: inRange},
				{Hash: "0xnew", From: "0xa", To: "0xwallet", Value: "1", TimeStamp: after},
			},
		})
	})

	from := time.Unix(1700000000, 0).UTC()
	to := time.Unix(1710000000, 0).UTC()
	count, err := p.FetchTransactions(context.Background(), testTarget(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, sink.writes, 1)
	assert.Equal(t, "0xhit", sink.writes[0].Hash)
}

func TestFetchTransactions_BoundedPages(t *testing.T) {
	pages := 0
	full := make([]txPayload, pageSize)
	for i := range full {
		full[i] = txPayload{Hash: "0x1", From: "0xa", To: "0xwallet", Value: "1", TimeStamp: "1706000000"}
	}

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		json.NewEncoder(w).Encode(listResponse{Status: "1", Result: full})
	})

	_, err := p.FetchTransactions(context.Background(), testTarget(), time.Unix(1700000000, 0).UTC(), time.Unix(1710000000, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, providers.MaxPages, pages, "pagination must stop at the safety bound")
}

func TestNormalize_MissingFeeFieldsOmitFee(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	ct, err := p.normalize(testTarget(), txPayload{Hash: "0x1", From: "0xa", To: "0xb", Value: "1000000000000000000"})
	require.NoError(t, err)
	assert.Nil(t, ct.Fee)
	assert.Equal(t, "1", ct.Amount.String())
}
