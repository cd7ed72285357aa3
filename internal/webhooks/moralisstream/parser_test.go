package moralisstream

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

func testParser(secret string) *Parser {
	return NewParser(secret, logger.NewLogger(zap.NewNop()))
}

func sign(secret string, body []byte) string {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(body)
	hash.Write([]byte(secret))
	return "0x" + hex.EncodeToString(hash.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"confirmed":true}`)
	p := testParser("stream-secret")

	assert.True(t, p.VerifySignature(body, sign("stream-secret", body)))
	assert.False(t, p.VerifySignature(body, sign("other-secret", body)))
	assert.False(t, p.VerifySignature(body, ""))
	assert.False(t, p.VerifySignature([]byte(`{"confirmed":false}`), sign("stream-secret", body)))
}

func TestVerifySignature_MissingSecretFailsClosed(t *testing.T) {
	body := []byte(`{}`)
	assert.False(t, testParser("").VerifySignature(body, sign("", body)))
}

func TestParseTransactions_Confirmed(t *testing.T) {
	body := []byte(`{
		"confirmed": true,
		"chainId": "0x1",
		"block": {"number": "19000000", "timestamp": "1706000000"},
		"txs": [
			{
				"hash": "0xaaa",
				"fromAddress": "0xfrom",
				"toAddress": "0xto",
				"value": "2500000000000000000",
				"gasPrice": "20000000000",
				"receiptGasUsed": "21000"
			}
		]
	}`)

	txs, err := testParser("s").ParseTransactions(body)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, entities.NetworkEthereum, tx.NetworkSlug)
	assert.Equal(t, "2.5", tx.Amount.String())
	require.NotNil(t, tx.Fee)
	assert.Equal(t, "0.00042", tx.Fee.String())
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, int64(19000000), *tx.BlockNumber)
	require.NotNil(t, tx.MinedAt)
	assert.Equal(t, int64(1706000000), tx.MinedAt.Unix())
}

func TestParseTransactions_UnconfirmedDropped(t *testing.T) {
	body := []byte(`{
		"confirmed": false,
		"chainId": "0x1",
		"txs": [{"hash": "0xaaa", "fromAddress": "0xa", "toAddress": "0xb", "value": "1"}]
	}`)

	txs, err := testParser("s").ParseTransactions(body)
	require.NoError(t, err)
	assert.Empty(t, txs, "only the confirmed re-delivery is ingested")
}

func TestParseTransactions_UnknownChainYieldsEmpty(t *testing.T) {
	body := []byte(`{
		"confirmed": true,
		"chainId": "0xa4b1",
		"txs": [{"hash": "0xaaa", "fromAddress": "0xa", "toAddress": "0xb", "value": "1"}]
	}`)

	txs, err := testParser("s").ParseTransactions(body)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseTransactions_ChainIDMap(t *testing.T) {
	for chainID, want := range map[string]entities.NetworkSlug{
		"0x89": entities.NetworkPolygon,
		"0x38": entities.NetworkBSC,
	} {
		body := []byte(`{
			"confirmed": true,
			"chainId": "` + chainID + `",
			"txs": [{"hash": "0xaaa", "fromAddress": "0xa", "toAddress": "0xb", "value": "1000000000000000000"}]
		}`)

		txs, err := testParser("s").ParseTransactions(body)
		require.NoError(t, err)
		require.Len(t, txs, 1, chainID)
		assert.Equal(t, want, txs[0].NetworkSlug)
	}
}

func TestParseTransactions_MissingGasFieldsOmitFee(t *testing.T) {
	body := []byte(`{
		"confirmed": true,
		"chainId": "0x1",
		"txs": [{"hash": "0xaaa", "fromAddress": "0xa", "toAddress": "0xb", "value": "1000000000000000000"}]
	}`)

	txs, err := testParser("s").ParseTransactions(body)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].Fee)
}
