package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"b2bmarket/internal/cache"
	"b2bmarket/internal/config"
	"b2bmarket/internal/database"
	"b2bmarket/internal/gst"
	"b2bmarket/internal/logger"
	"b2bmarket/internal/middleware"
	"b2bmarket/internal/notify"
	"b2bmarket/internal/sourcing"
)

const serviceName = "b2bmarket"

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	cfg := config.AppEnv
	logger.Setup(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo")
	}
	db := client.Database(cfg.DBName)
	log.Info().Str("db", db.Name()).Msg("MongoDB connected")

	if err := database.EnsureIndexes(db); err != nil {
		log.Warn().Err(err).Msg("index warning")
	}
	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("validators")
	}

	var (
		rdb   *redis.Client
		tree  cache.CategoryTree = cache.Noop{}
		dedup notify.Deduper     = notify.NewMemoryDeduper()
	)
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without cache")
		} else {
			tree = cache.NewRedisCategoryTree(rdb, cfg.CategoryCacheTTL)
			dedup = notify.NewRedisDeduper(rdb, serviceName)
		}
	}

	var opts []sourcing.Option
	if cfg.PaymentGatewaySecret != "" {
		opts = append(opts, sourcing.WithGatewaySecret(cfg.PaymentGatewaySecret))
	}
	svc := sourcing.NewService(sourcing.NewMongoStore(db, cfg.MongoTransactions), opts...)

	deps := routeDeps{
		cfg:  cfg,
		db:   db,
		svc:  svc,
		tree: tree,
		gst:  gst.NewClient(cfg.GSTAPIURL, cfg.GSTAPIKey, cfg.GSTRatePerMinute),
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pipeline := newEventPipeline(cfg, db, dedup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pipeline.run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	closeErr := multierr.Combine(pipeline.close(), client.Disconnect(closeCtx))
	if rdb != nil {
		closeErr = multierr.Append(closeErr, rdb.Close())
	}

	if err := multierr.Append(runErr, closeErr); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with errors")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
