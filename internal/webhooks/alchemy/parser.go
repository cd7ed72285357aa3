// Package alchemy verifies and parses Alchemy Notify address-activity
// webhooks. Signature verification happens over the raw request body before
// any JSON decoding.
package alchemy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

const Source = entities.SourceAlchemy

// networkBySlug maps Alchemy network identifiers to internal slugs.
var networkBySlug = map[string]entities.NetworkSlug{
	"ETH_MAINNET":   entities.NetworkEthereum,
	"MATIC_MAINNET": entities.NetworkPolygon,
	"BNB_MAINNET":   entities.NetworkBSC,
}

// Parser handles the Alchemy webhook vendor.
type Parser struct {
	signingKey string
	logger     *logger.Logger
}

func NewParser(signingKey string, logger *logger.Logger) *Parser {
	return &Parser{signingKey: signingKey, logger: logger}
}

// VerifySignature checks the X-Alchemy-Signature header: a lowercase hex
// HMAC-SHA256 of the raw body under the signing key. Comparison is constant
// time. A missing key or header fails closed.
func (p *Parser) VerifySignature(body []byte, signature string) bool {
	if p.signingKey == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.signingKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

type payload struct {
	Type  string `json:"type"`
	Event struct {
		Network  string     `json:"network"`
		Activity []activity `json:"activity"`
	} `json:"event"`
}

type activity struct {
	Category    string `json:"category"`
	Hash        string `json:"hash"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	BlockNum    string `json:"blockNum"`
	RawContract struct {
		RawValue string `json:"rawValue"`
	} `json:"rawContract"`
}

// ParseTransactions extracts canonical transactions from an address-activity
// payload. Only "external" native transfers are ingested; token and internal
// categories are skipped. Unknown event types or networks yield an empty
// list, not an error, so one vendor-side format drift cannot wedge the queue.
func (p *Parser) ParseTransactions(body []byte) ([]*entities.CanonicalTransaction, error) {
	var pl payload
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, err
	}

	if pl.Type != "ADDRESS_ACTIVITY" {
		p.logger.Debug("ignoring webhook of unhandled type", "type", pl.Type)
		return nil, nil
	}

	slug, ok := networkBySlug[pl.Event.Network]
	if !ok {
		p.logger.Warn("ignoring webhook for unknown network", "network", pl.Event.Network)
		return nil, nil
	}

	var txs []*entities.CanonicalTransaction
	for _, act := range pl.Event.Activity {
		if act.Category != "external" {
			continue
		}
		if act.Hash == "" || (act.FromAddress == "" && act.ToAddress == "") {
			continue
		}

		amount, err := units.FromHexBaseUnits(slug, act.RawContract.RawValue)
		if err != nil {
			p.logger.Warn("skipping activity with unparseable value",
				"hash", act.Hash,
				"raw_value", act.RawContract.RawValue,
				"error", err)
			continue
		}

		ct := &entities.CanonicalTransaction{
			NetworkSlug: slug,
			Hash:        act.Hash,
			FromAddress: act.FromAddress,
			ToAddress:   act.ToAddress,
			Amount:      amount,
		}

		if act.BlockNum != "" {
			hexNum := strings.TrimPrefix(act.BlockNum, "0x")
			if block, berr := strconv.ParseInt(hexNum, 16, 64); berr == nil {
				ct.BlockNumber = &block
			}
		}

		txs = append(txs, ct)
	}

	return txs, nil
}
