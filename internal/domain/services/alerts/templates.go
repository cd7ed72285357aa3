package alerts

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
)

func buildEmailAlert(tracker *repositories.Tracker, wallet *entities.Wallet, network *entities.Network, tx *entities.Transaction, direction entities.Direction, usdValue decimal.Decimal) (subject, htmlContent, textContent string) {
	label := trackerLabel(tracker, wallet)
	amount := fmt.Sprintf("%s %s", tx.Amount.String(), network.CurrencySymbol)
	usd := "$" + usdValue.Round(2).StringFixed(2)

	subject = fmt.Sprintf("%s transfer on %s (%s)", titleDirection(direction), label, usd)
	if wallet.IsWhale {
		subject = "🐋 " + subject
	}

	explorerLink := explorerURL(network, tx.Hash)

	htmlContent = fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><title>Transfer Alert</title></head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8f9fa; padding: 24px; border-radius: 8px; border: 1px solid #e9ecef;">
				<h2 style="color: #333; margin-bottom: 16px;">%s transfer detected</h2>
				<div style="background-color: white; border-radius: 8px; padding: 16px; margin: 20px 0; border: 1px solid #dee2e6;">
					<p style="margin: 4px 0; color: #333;"><strong>Wallet:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>Network:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>Amount:</strong> %s (%s)</p>
					<p style="margin: 4px 0; color: #333;"><strong>From:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>To:</strong> %s</p>
					<p style="margin: 4px 0; color: #333;"><strong>Hash:</strong> <a href="%s">%s</a></p>
				</div>
			</div>
		</body>
		</html>
	`, titleDirection(direction),
		html.EscapeString(label),
		html.EscapeString(network.Name),
		html.EscapeString(amount), html.EscapeString(usd),
		html.EscapeString(tx.FromAddress),
		html.EscapeString(tx.ToAddress),
		explorerLink, html.EscapeString(tx.Hash))

	textContent = fmt.Sprintf(`%s transfer detected.

Wallet:  %s
Network: %s
Amount:  %s (%s)
From:    %s
To:      %s
Hash:    %s
`, titleDirection(direction), label, network.Name, amount, usd, tx.FromAddress, tx.ToAddress, explorerLink)

	return subject, htmlContent, textContent
}

func buildMessengerAlert(tracker *repositories.Tracker, wallet *entities.Wallet, network *entities.Network, tx *entities.Transaction, direction entities.Direction, usdValue decimal.Decimal) string {
	label := trackerLabel(tracker, wallet)
	emoji := "📥"
	if direction == entities.DirectionOutgoing {
		emoji = "📤"
	}
	if wallet.IsWhale {
		emoji = "🐋 " + emoji
	}

	return fmt.Sprintf(`%s <b>%s transfer</b> on <b>%s</b>
Wallet: <code>%s</code>
Amount: <b>%s %s</b> ($%s)
From: <code>%s</code>
To: <code>%s</code>
<a href="%s">View on explorer</a>`,
		emoji, titleDirection(direction), html.EscapeString(network.Name),
		html.EscapeString(label),
		tx.Amount.String(), network.CurrencySymbol, usdValue.Round(2).StringFixed(2),
		html.EscapeString(tx.FromAddress),
		html.EscapeString(tx.ToAddress),
		explorerURL(network, tx.Hash))
}

func titleDirection(d entities.Direction) string {
	s := string(d)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func trackerLabel(tracker *repositories.Tracker, wallet *entities.Wallet) string {
	if tracker.Label != "" {
		return tracker.Label
	}
	return wallet.Address
}

func explorerURL(network *entities.Network, hash string) string {
	if network.ExplorerURL == "" {
		return hash
	}
	return strings.TrimSuffix(network.ExplorerURL, "/") + "/tx/" + hash
}
