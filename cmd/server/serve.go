package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/estate-listings/internal/config"
	"github.com/iliyamo/estate-listings/internal/database"
	"github.com/iliyamo/estate-listings/internal/handler"
	"github.com/iliyamo/estate-listings/internal/metrics"
	"github.com/iliyamo/estate-listings/internal/middleware"
	"github.com/iliyamo/estate-listings/internal/queue"
	"github.com/iliyamo/estate-listings/internal/repository"
	"github.com/iliyamo/estate-listings/internal/router"
	"github.com/iliyamo/estate-listings/internal/service"
	"github.com/iliyamo/estate-listings/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled", zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	signer := utils.NewTokenSigner(cfg.JWTSecret, config.SessionTTL, nil)
	creds := service.NewCredentialService(repository.NewUserRepo(db), signer, cfg.BcryptCost, cfg.QueryTimeout, log)
	listings := service.NewListingAggregator(cfg.QueryTimeout, log,
		repository.NewPropertySource(db),
		repository.NewProjectSource(db),
		repository.NewLandSource(db),
	)
	var events service.EventPublisher
	if cfg.AMQPURL != "" {
		events = service.NewAMQPPublisher(cfg.AMQPURL, log)
	}
	contacts := service.NewContactRecorder(repository.NewContactRepo(db), events, cfg.QueryTimeout, log)

	e := router.New(router.Deps{
		Config:        cfg,
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
		Log:           log,
		Metrics:       metrics.NewHTTPMetrics("estate-listings", reg),
		Redis:         rdb,
		DB:            db,
		Guard:         middleware.NewSessionGuard(signer, cfg.CookieName),
		Auth:          handler.NewAuthHandler(cfg, creds),
		Listings:      handler.NewListingHandler(listings, cfg.LegacyNotFound),
		Contacts:      handler.NewContactHandler(contacts),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			err := queue.NewContactConsumer(cfg.AMQPURL, log).Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	err = g.Wait()
	contacts.Drain()
	return err
}
