package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/gateway/pgclient"
	"wallet-ledger/internal/adapter/gateway/stripegw"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// stores groups the persistence ports the services are built on.
type stores struct {
	wallets    ports.WalletRepository
	entries    ports.EntryRepository
	orders     ports.OrderRepository
	requests   ports.OfflineRequestRepository
	idem       ports.IdempotencyRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	// A missing .env is fine; real deployments set WLT_* directly.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("wallet ledger stopped")
	}
	log.Info().Msg("Server exited")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Str("gateway", cfg.Gateway.Provider).
		Msg("Starting Wallet Ledger")

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	checkers := []ports.HealthChecker{st.health}

	// Redis is optional. Interfaces stay nil when it is off so the services
	// fall back to their database-only paths.
	var (
		idempCache     ports.IdempotencyCache
		eventGuard     ports.EventGuard
		rateLimitStore *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		eventGuard = redisStorage.NewEventGuard(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	gwLog := logger.Component(log, "gateway")
	var (
		gateway  ports.PaymentGateway
		verifier ports.CallbackVerifier
	)
	switch cfg.Gateway.Provider {
	case "stripe":
		gateway = stripegw.New(cfg.Stripe, cfg.Gateway.Timeout, m, gwLog)
		verifier = stripegw.NewWebhookVerifier(cfg.Gateway.WebhookSecret)
	default:
		gateway = pgclient.New(cfg.Gateway, sigSvc, nil, m, gwLog)
		verifier = service.NewHMACCallbackVerifier(cfg.Gateway.WebhookSecret, sigSvc)
	}

	ledgerSvc := service.NewLedgerService(st.wallets, st.entries, st.idem, idempCache, st.transactor, m, log)
	onlineSvc := service.NewOnlineRechargeService(st.orders, st.entries, ledgerSvc, gateway, st.transactor, m, log)
	offlineSvc := service.NewOfflineRechargeService(st.requests, ledgerSvc, st.transactor, m, log)
	querySvc := service.NewQueryService(st.wallets, st.entries, st.requests)
	callbackSvc := service.NewCallbackService(cfg.Gateway.Provider, verifier, eventGuard, onlineSvc, logger.Component(log, "callback"))
	auditSvc := service.NewAuditService(st.audit, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		OnlineSvc:      onlineSvc,
		OfflineSvc:     offlineSvc,
		QuerySvc:       querySvc,
		CallbackSvc:    callbackSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		AuditSvc:       auditSvc,
		Metrics:        m,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Reconciler.Enabled {
		sweeper := service.NewOrderSweeper(
			st.orders, onlineSvc,
			cfg.Reconciler.Interval, cfg.Reconciler.MinAge, cfg.Reconciler.BatchSize,
			m, logger.Component(log, "sweeper"),
		)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store; balances are lost on restart")
		s := memory.NewStore()
		return &stores{
			wallets:    memory.NewWalletRepo(s),
			entries:    memory.NewEntryRepo(s),
			orders:     memory.NewOrderRepo(s),
			requests:   memory.NewOfflineRequestRepo(s),
			idem:       memory.NewIdempotencyRepo(s),
			audit:      memory.NewAuditRepo(s),
			transactor: s,
			health:     s,
			close:      func() {},
		}, nil
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return nil, err
			}
		}

		return &stores{
			wallets:    pgStorage.NewWalletRepo(pool),
			entries:    pgStorage.NewEntryRepo(pool),
			orders:     pgStorage.NewOrderRepo(pool),
			requests:   pgStorage.NewOfflineRequestRepo(pool),
			idem:       pgStorage.NewIdempotencyRepo(pool),
			audit:      pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     pgStorage.NewHealthCheck(pool),
			close:      pool.Close,
		}, nil
	}
}
