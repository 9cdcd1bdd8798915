package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/adapters/discord"
	"rust-vip-platform/internal/infra/adapters/gameserver"
	payAdapters "rust-vip-platform/internal/infra/adapters/payment"
	"rust-vip-platform/internal/infra/api"
	"rust-vip-platform/internal/infra/cache"
	pg "rust-vip-platform/internal/infra/db/postgres"
	"rust-vip-platform/internal/infra/logging"
	"rust-vip-platform/internal/infra/metrics"
	red "rust-vip-platform/internal/infra/redis"
	"rust-vip-platform/internal/infra/retry"
	"rust-vip-platform/internal/infra/sched"
	"rust-vip-platform/internal/usecase"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const sessionTTL = 7 * 24 * time.Hour

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop payment gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrate")
		}
	}

	userRepo := pg.NewPostgresUserRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	logRepo := pg.NewSystemLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect")
		}
		defer redisClient.Close()
	}

	markers, locker := stores(cfg, redisClient, pool, logger)

	// ---- External services ----
	policy := retry.FromConfig(cfg.Retry)
	gateway := paymentGateway(cfg, policy, logger)

	discordProv, err := discord.NewRoleProvisioner(cfg.Discord, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("discord provisioner")
	}
	gameProv := gameserver.NewVIPProvisioner(cfg.GameServer, policy, logger)

	// ---- Use cases ----
	sweepCfg := usecase.SweepConfig{
		BatchSize:  cfg.Cron.BatchSize,
		TimeBudget: cfg.Cron.TimeBudget,
		LockTTL:    cfg.Cron.LockTTL,
	}
	processor := usecase.NewNotificationProcessor(gateway, markers, logger)
	ledger := usecase.NewLedgerUseCase(userRepo, subRepo, tm, logger)
	provisioning := usecase.NewProvisioningUseCase(discordProv, gameProv, userRepo, subRepo, logger)
	notifications := usecase.NewPaymentNotificationUseCase(processor, ledger, provisioning, logger)
	reconcile := usecase.NewReconcileUseCase(subRepo, userRepo, gateway, notifications, ledger, provisioning, locker, logRepo, sweepCfg, logger)
	expiry := usecase.NewExpiryUseCase(subRepo, ledger, provisioning, locker, logRepo, sweepCfg, logger)
	checkout := usecase.NewCheckoutUseCase(userRepo, subRepo, gateway, usecase.CheckoutConfig{
		PublicURL:     cfg.HTTP.PublicURL,
		Currency:      cfg.Payment.MercadoPago.Currency,
		ExcludedTypes: cfg.Payment.MercadoPago.ExcludedTypes,
		Installments:  cfg.Payment.MercadoPago.Installments,
	}, logger)
	users := usecase.NewUserUseCase(userRepo, tm, logger)

	// ---- HTTP ----
	svc := api.Services{
		Notifications: notifications,
		Reconcile:     reconcile,
		Expiry:        expiry,
		Checkout:      checkout,
		Users:         users,
		Provisioning:  provisioning,
	}
	if redisClient != nil {
		svc.RateLimiter = red.NewRateLimiter(redisClient)
	}
	srv := api.NewServer(svc, api.NewAuthManager(cfg.Auth, sessionTTL), api.Options{
		Port:           cfg.HTTP.Port,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CheckoutLimit:  cfg.HTTP.CheckoutLimit,
		Webhook:        cfg.Webhook,
		AdminSecret:    cfg.Admin.Secret,
		Cron:           cfg.Cron,
		Dev:            cfg.Runtime.Dev,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return poolStats(gctx, pool) })

	if cfg.Scheduler.Enabled {
		pending := sched.NewSweepWorker(model.JobCheckPending, cfg.Scheduler.PendingInterval, reconcile.CheckPending, logger)
		expire := sched.NewSweepWorker(model.JobExpireSubscriptions, cfg.Scheduler.ExpiryInterval, expiry.ExpireDue, logger)
		g.Go(func() error { return ignoreCanceled(pending.Run(gctx)) })
		g.Go(func() error { return ignoreCanceled(expire.Run(gctx)) })
	}

	logger.Info().Str("version", version).Int("port", cfg.HTTP.Port).Bool("scheduler", cfg.Scheduler.Enabled).Msg("platform started")
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
	}
	logger.Info().Msg("bye")
}

// stores picks the idempotency marker backend and the job lock. Redis is
// used for both when configured; otherwise markers stay in memory and the
// lock is a Postgres lease.
func stores(cfg *config.Config, rc *red.Client, pool *pgxpool.Pool, logger *zerolog.Logger) (repository.MarkerStore, repository.Locker) {
	var markers repository.MarkerStore = cache.NewMarkerSet(cfg.Idempotency.Capacity)
	if cfg.Idempotency.Backend == "redis" && rc != nil {
		markers = red.NewMarkerStore(rc, cfg.Idempotency.TTL)
	}
	logger.Info().Str("markers", cfg.Idempotency.Backend).Bool("redis_lock", rc != nil).Msg("stores selected")
	if rc != nil {
		return markers, red.NewLocker(rc)
	}
	return markers, pg.NewJobLocker(pool)
}

func paymentGateway(cfg *config.Config, policy retry.Policy, logger *zerolog.Logger) adapter.PaymentGateway {
	mp := cfg.Payment.MercadoPago
	if mp.AccessToken == "" {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("payment.mercadopago.access_token is required outside dev mode")
		}
		logger.Warn().Msg("no payment access token; using the in-memory gateway")
		return payAdapters.NewNoopPaymentGateway()
	}
	gw, err := payAdapters.NewMercadoPagoGateway(mp, cfg.Cache, policy, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	return gw
}

func poolStats(ctx context.Context, pool *pgxpool.Pool) error {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
