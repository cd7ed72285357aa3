package providers

import (
	"context"
	"fmt"

	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// SettleBalance converts a base-unit balance to native units, values it in
// USD, and persists both. A failed price lookup is non-fatal: the native
// balance is still written and the previous USD value is kept, with the
// failure logged.
func SettleBalance(ctx context.Context, deps Deps, target SyncTarget, baseUnits string, log *logger.Logger) error {
	balance, err := units.FromBaseUnits(target.Network.Slug, baseUnits)
	if err != nil {
		return fmt.Errorf("converting balance for wallet %s: %w", target.Wallet.Address, err)
	}

	balanceUSD := target.Wallet.BalanceUSD
	price, err := deps.Prices.GetUSDPriceForNetwork(ctx, target.Network.Slug)
	if err != nil {
		log.Warn("balance priced with stale USD value",
			"wallet", target.Wallet.Address,
			"network", target.Network.Slug,
			"error", err)
	} else {
		balanceUSD = units.USDValue(balance, price)
	}

	if err := deps.Store.UpdateBalance(ctx, target.Wallet.ID, balance, balanceUSD); err != nil {
		return fmt.Errorf("persisting balance for wallet %s: %w", target.Wallet.Address, err)
	}

	log.Info("wallet balance synced",
		"wallet", target.Wallet.Address,
		"network", target.Network.Slug,
		"balance", balance.String(),
		"balance_usd", balanceUSD.String())

	return nil
}
