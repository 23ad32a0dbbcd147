package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/database"
	"github.com/iliyamo/cinema-seat-checkout/internal/handler"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/payment"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/repository"
	"github.com/iliyamo/cinema-seat-checkout/internal/reservation"
	"github.com/iliyamo/cinema-seat-checkout/internal/router"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis is optional; without it idempotency falls back to process
	// memory and rate limiting and caching are off.
	var rdb redis.UniversalClient
	if c := config.NewRedisClient(ctx, config.LoadRedisConfig()); c != nil {
		defer c.Close()
		rdb = c
	} else {
		zl.Warn("redis unavailable, running without rate limits and shared idempotency")
	}

	engine, err := pricing.NewEngine(pricing.TierTable{
		model.TierSilver: cfg.SilverDiscountPct,
		model.TierGold:   cfg.GoldDiscountPct,
	})
	if err != nil {
		return err
	}

	seats := reservation.NewService(repository.NewSeatMapRepo(db), reservation.DefaultLayout,
		reservation.WithHoldTTL(cfg.HoldTTL),
		reservation.WithLogger(zl))
	bookings := repository.NewBookingRepo(db)
	memberships := repository.NewMembershipRepo(db)
	shows := repository.NewShowRepo(db)

	idem := checkout.IdempotencyStore(checkout.NewMemoryIdempotency(nil))
	if rdb != nil {
		idem = checkout.NewRedisIdempotency(rdb, "idem")
	}
	co := checkout.NewService(checkout.Deps{
		Seats:       seats,
		Pricing:     engine,
		Gateway:     payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentKeyID, cfg.PaymentKeySecret, &http.Client{Timeout: 10 * time.Second}),
		Verifier:    payment.NewVerifier(cfg.PaymentKeySecret),
		Shows:       shows,
		Memberships: memberships,
		Ledger:      bookings,
		Publisher:   queue.NewPublisher(cfg.RabbitURL, zl),
		Idempotency: idem,
	},
		checkout.WithCurrency(cfg.Currency),
		checkout.WithKeyID(cfg.PaymentKeyID),
		checkout.WithIdempotencyTTL(cfg.IdempotencyTTL),
		checkout.WithLogger(zl),
	)

	e := router.New(router.Deps{
		DB:         db,
		Redis:      rdb,
		Checkout:   handler.NewCheckoutHandler(seats, co, bookings, shows, zl),
		Membership: handler.NewMembershipHandler(engine, memberships, zl),
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  config.LoadRateLimitConfig(),
		Cache:      config.LoadCacheConfig(),
		Log:        zl,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return reservation.NewSweeper(seats, cfg.HoldSweepInterval, zl).Run(gctx)
	})
	if cfg.RabbitURL != "" {
		g.Go(func() error {
			return queue.NewConsumer(cfg.RabbitURL, cfg.EventLogDir, zl).Run(gctx)
		})
	}
	return g.Wait()
}
