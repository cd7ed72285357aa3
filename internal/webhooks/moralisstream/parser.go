// Package moralisstream verifies and parses Moralis Streams webhooks.
// Signature verification happens over the raw request body before any JSON
// decoding.
package moralisstream

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

const Source = entities.SourceMoralisStreams

// networkByChainID maps Moralis hex chain ids to internal slugs.
var networkByChainID = map[string]entities.NetworkSlug{
	"0x1":  entities.NetworkEthereum,
	"0x89": entities.NetworkPolygon,
	"0x38": entities.NetworkBSC,
}

// Parser handles the Moralis Streams webhook vendor.
type Parser struct {
	secret string
	logger *logger.Logger
}

func NewParser(secret string, logger *logger.Logger) *Parser {
	return &Parser{secret: secret, logger: logger}
}

// VerifySignature checks the x-signature header: "0x" followed by the hex
// Keccak-256 digest of the raw body concatenated with the stream secret.
// Comparison is constant time. A missing secret or header fails closed.
func (p *Parser) VerifySignature(body []byte, signature string) bool {
	if p.secret == "" || signature == "" {
		return false
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write(body)
	hash.Write([]byte(p.secret))
	expected := "0x" + hex.EncodeToString(hash.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

type payload struct {
	Confirmed bool   `json:"confirmed"`
	ChainID   string `json:"chainId"`
	Block     struct {
		Number    string `json:"number"`
		Timestamp string `json:"timestamp"`
	} `json:"block"`
	Txs []txPayload `json:"txs"`
}

type txPayload struct {
	Hash           string `json:"hash"`
	FromAddress    string `json:"fromAddress"`
	ToAddress      string `json:"toAddress"`
	Value          string `json:"value"`
	GasPrice       string `json:"gasPrice"`
	ReceiptGasUsed string `json:"receiptGasUsed"`
}

// ParseTransactions extracts canonical transactions from a stream payload.
// Unconfirmed deliveries are dropped wholesale: Moralis re-delivers the same
// block with confirmed=true once it settles, and only that delivery is
// ingested. Unknown chain ids yield an empty list, not an error.
func (p *Parser) ParseTransactions(body []byte) ([]*entities.CanonicalTransaction, error) {
	var pl payload
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, err
	}

	if !pl.Confirmed {
		p.logger.Debug("ignoring unconfirmed stream delivery", "chain_id", pl.ChainID)
		return nil, nil
	}

	slug, ok := networkByChainID[pl.ChainID]
	if !ok {
		p.logger.Warn("ignoring stream for unknown chain", "chain_id", pl.ChainID)
		return nil, nil
	}

	blockNumber := parseBlockNumber(pl.Block.Number)
	minedAt := parseBlockTimestamp(pl.Block.Timestamp)

	var txs []*entities.CanonicalTransaction
	for _, raw := range pl.Txs {
		if raw.Hash == "" || (raw.FromAddress == "" && raw.ToAddress == "") {
			continue
		}

		amount, err := units.FromBaseUnits(slug, raw.Value)
		if err != nil {
			p.logger.Warn("skipping stream tx with unparseable value",
				"hash", raw.Hash,
				"value", raw.Value,
				"error", err)
			continue
		}

		ct := &entities.CanonicalTransaction{
			NetworkSlug: slug,
			Hash:        raw.Hash,
			FromAddress: raw.FromAddress,
			ToAddress:   raw.ToAddress,
			Amount:      amount,
			BlockNumber: blockNumber,
			MinedAt:     minedAt,
		}

		if raw.GasPrice != "" && raw.ReceiptGasUsed != "" {
			if fee, ferr := units.FeeFromGas(slug, raw.GasPrice, raw.ReceiptGasUsed); ferr == nil {
				ct.Fee = &fee
			}
		}

		txs = append(txs, ct)
	}

	return txs, nil
}

func parseBlockNumber(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseBlockTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}
