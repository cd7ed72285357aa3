package alchemy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

func testParser(key string) *Parser {
	return NewParser(key, logger.NewLogger(zap.NewNop()))
}

func sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"ADDRESS_ACTIVITY"}`)
	p := testParser("whsec_test")

	assert.True(t, p.VerifySignature(body, sign("whsec_test", body)))
	assert.True(t, p.VerifySignature(body, strings.ToUpper(sign("whsec_test", body))), "header casing is normalized")
	assert.False(t, p.VerifySignature(body, sign("wrong-key", body)))
	assert.False(t, p.VerifySignature(body, ""))
	assert.False(t, p.VerifySignature(append(body, ' '), sign("whsec_test", body)), "signature binds the exact raw body")
}

func TestVerifySignature_MissingKeyFailsClosed(t *testing.T) {
	body := []byte(`{}`)
	p := testParser("")
	assert.False(t, p.VerifySignature(body, sign("", body)))
}

func TestParseTransactions_ExternalOnly(t *testing.T) {
	body := []byte(`{
		"type": "ADDRESS_ACTIVITY",
		"event": {
			"network": "ETH_MAINNET",
			"activity": [
				{
					"category": "external",
					"hash": "0xaaa",
					"fromAddress": "0xfrom",
					"toAddress": "0xto",
					"blockNum": "0x112a880",
					"rawContract": {"rawValue": "0x2386f26fc10000"}
				},
				{
					"category": "token",
					"hash": "0xbbb",
					"fromAddress": "0xfrom",
					"toAddress": "0xto",
					"rawContract": {"rawValue": "0x1"}
				},
				{
					"category": "internal",
					"hash": "0xccc",
					"fromAddress": "0xfrom",
					"toAddress": "0xto",
					"rawContract": {"rawValue": "0x1"}
				}
			]
		}
	}`)

	txs, err := testParser("k").ParseTransactions(body)
	require.NoError(t, err)
	require.Len(t, txs, 1, "token and internal categories are skipped")

	tx := txs[0]
	assert.Equal(t, entities.NetworkEthereum, tx.NetworkSlug)
	assert.Equal(t, "0xaaa", tx.Hash)
	assert.Equal(t, "0.01", tx.Amount.String())
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, int64(0x112a880), *tx.BlockNumber)
}

func TestParseTransactions_UnknownTypeYieldsEmpty(t *testing.T) {
	txs, err := testParser("k").ParseTransactions([]byte(`{"type":"MINED_TRANSACTION"}`))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseTransactions_UnknownNetworkYieldsEmpty(t *testing.T) {
	body := []byte(`{
		"type": "ADDRESS_ACTIVITY",
		"event": {"network": "ARB_MAINNET", "activity": [{"category":"external","hash":"0x1","fromAddress":"0xa","toAddress":"0xb","rawContract":{"rawValue":"0x1"}}]}
	}`)
	txs, err := testParser("k").ParseTransactions(body)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseTransactions_BadValueSkipsActivity(t *testing.T) {
	body := []byte(`{
		"type": "ADDRESS_ACTIVITY",
		"event": {
			"network": "MATIC_MAINNET",
			"activity": [
				{"category":"external","hash":"0xgood","fromAddress":"0xa","toAddress":"0xb","rawContract":{"rawValue":"0xde0b6b3a7640000"}},
				{"category":"external","hash":"0xbad","fromAddress":"0xa","toAddress":"0xb","rawContract":{"rawValue":"not-hex"}}
			]
		}
	}`)

	txs, err := testParser("k").ParseTransactions(body)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xgood", txs[0].Hash)
	assert.Equal(t, entities.NetworkPolygon, txs[0].NetworkSlug)
	assert.Equal(t, "1", txs[0].Amount.String())
}

func TestParseTransactions_MalformedJSON(t *testing.T) {
	_, err := testParser("k").ParseTransactions([]byte(`{`))
	assert.Error(t, err)
}
