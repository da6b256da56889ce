package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wallet-vault/internal/app"
	"wallet-vault/internal/handler"
	"wallet-vault/pkg/logger"
	"wallet-vault/pkg/validator"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(a *app.App) *gin.Engine {
	// 自定义校验规则注册在 gin 的校验引擎上
	validator.Init()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), a.Metrics.PrometheusMiddleware())

	h := handler.New(a)

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		session := api.Group("/session")
		session.GET("", h.SessionStatus)
		session.POST("/unlock", h.Unlock)
		session.POST("/lock", h.Lock)
		session.POST("/extend", h.Extend)

		wallets := api.Group("/wallets")
		wallets.GET("", h.ListWallets)
		wallets.POST("/generate", h.GenerateWallet)
		wallets.POST("/import", h.ImportWallet)
		wallets.POST("/refresh", h.RefreshBalances)
		wallets.GET("/active", h.ActiveWallet)
		wallets.PUT("/active", h.SetActiveWallet)
		wallets.GET("/:id", h.GetWallet)
		wallets.PATCH("/:id", h.RenameWallet)
		wallets.DELETE("/:id", h.RemoveWallet)
		wallets.GET("/:id/tokens", h.ListTokens)
		wallets.POST("/:id/tokens", h.AddToken)
		wallets.DELETE("/:id/tokens/:contract", h.RemoveToken)

		api.POST("/discovery", h.Discover)
		api.POST("/discovery/import", h.ImportDiscovered)
		api.POST("/tokens/migrate", h.MigrateTokens)
		api.DELETE("/vault", h.DestroyVault)
	}

	return r
}

// requestLogger 用 zap 记录每个请求，不记录请求体与请求头
func requestLogger() gin.HandlerFunc {
	log := logger.Named(nil, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
