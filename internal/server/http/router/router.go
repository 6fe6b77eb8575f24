package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storepay/internal/config"
	"github.com/polkiloo/storepay/internal/server/http/handlers"
	"github.com/polkiloo/storepay/internal/server/http/middleware"
)

const maxBodyBytes = 1 << 20

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.PaymentFacade, stream handlers.StatusStream, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	// responses only; request bodies are decompressed behind webhook auth
	engine.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/orders/[^/]+/stream$`}),
		gzip.WithDecompressFn(nil),
	))

	webhookHandler := handlers.NewWebhookHandler(facade, cfg.MismatchPolicy, logger)
	orderHandler := handlers.NewOrderHandler(facade, stream, logger)
	healthHandler := handlers.NewHealthHandler(facade, logger)

	engine.GET("/healthz", healthHandler.Check)

	api := engine.Group("/api")
	webhooks := api.Group("/webhooks")
	// credentials are checked before the body is touched
	webhooks.Use(middleware.WebhookAuthRequired(facade), middleware.DecompressRequest(maxBodyBytes))
	webhooks.POST("/sepay", webhookHandler.SePay)

	orders := api.Group("/orders")
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/:id/stream", orderHandler.Stream)

	return engine
}
