// Package routes wires the HTTP surface: public wallet endpoints, vendor
// webhook receivers, health probes, and Prometheus metrics.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whalewatch/whalewatch/internal/api/handlers"
	"github.com/whalewatch/whalewatch/internal/api/middleware"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// Handlers bundles every handler group the router mounts.
type Handlers struct {
	Health       *handlers.HealthHandler
	Wallets      *handlers.WalletHandlers
	Webhooks     *handlers.WebhookHandlers
	Integrations *handlers.IntegrationHandlers
}

// SetupRoutes builds the gin engine with the shared middleware chain.
func SetupRoutes(h Handlers, log *logger.Logger, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	router.GET("/health/liveness", h.Health.Liveness)
	router.GET("/health/readiness", h.Health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		wallets := v1.Group("/wallets")
		{
			wallets.POST("/watch", h.Wallets.WatchWallet)
			wallets.GET("/:id", h.Wallets.GetWallet)
			wallets.DELETE("/:id/watch", h.Wallets.UnwatchWallet)
			wallets.GET("/:id/transactions", h.Wallets.ListTransactions)
			wallets.POST("/:id/backfill", h.Wallets.RequestBackfill)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/alchemy", h.Webhooks.AlchemyWebhook)
			webhooks.POST("/moralis-streams", h.Webhooks.MoralisStreamsWebhook)
		}

		v1.PUT("/integrations", h.Integrations.UpsertIntegration)
	}

	return router
}
