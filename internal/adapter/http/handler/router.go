package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	OnlineSvc      ports.OnlineRechargeService
	OfflineSvc     ports.OfflineRechargeService
	QuerySvc       ports.QueryService
	CallbackSvc    ports.CallbackService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = no /metrics endpoint
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// Gateway notifications authenticate by body signature, not bearer token.
	callbackHandler := NewCallbackHandler(deps.CallbackSvc)
	v1.POST("/gateway/callback", rl("callback"), callbackHandler.Handle)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.OnlineSvc, deps.QuerySvc)
	rechargeHandler := NewRechargeHandler(deps.OfflineSvc, deps.QuerySvc)
	adminHandler := NewAdminHandler(deps.LedgerSvc, deps.OfflineSvc, deps.QuerySvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet_read"), walletHandler.GetWallet)
		wallet.GET("/wallet-balance", rl("wallet_read"), walletHandler.GetBalance)
		wallet.GET("/transactions", rl("wallet_read"), walletHandler.GetTransactions)
		wallet.GET("/recent-transactions", rl("wallet_read"), walletHandler.GetRecentTransactions)
		wallet.POST("/create-order", rl("create_order"), walletHandler.CreateOrder)
		wallet.POST("/check-order-status", rl("order_status"), walletHandler.CheckOrderStatus)
		wallet.POST("/offline-request", rl("offline_submit"), rechargeHandler.SubmitOfflineRequest)
		wallet.GET("/my-offline-requests", rl("wallet_read"), rechargeHandler.ListMyOfflineRequests)
	}

	admin := wallet.Group("", middleware.RequireRole(domain.RoleAdmin), rl("admin"))
	{
		admin.POST("/credit-wallet", adminHandler.CreditWallet)
		admin.POST("/debit-wallet", adminHandler.DebitWallet)
		admin.GET("/offline-requests", adminHandler.ListOfflineRequests)
		admin.GET("/pending-recharges", adminHandler.PendingRecharges)
		admin.POST("/process-offline-request", adminHandler.ProcessOfflineRequest)
	}

	return r
}
