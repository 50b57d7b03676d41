package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/ipmt/internal/api"
	"example.com/ipmt/internal/app"
	"example.com/ipmt/internal/auth"
	"example.com/ipmt/internal/config"
	"example.com/ipmt/internal/logging"
	"example.com/ipmt/internal/outbox"
	persistence "example.com/ipmt/internal/persistence/postgres"
	httptransport "example.com/ipmt/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ipmt-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := persistence.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", zap.Strings("files", applied))
	}

	if written, err := app.EnsureTemplate(cfg.TemplatePath); err != nil {
		logger.Warn("template unavailable", zap.String("path", cfg.TemplatePath), zap.Error(err))
	} else if written {
		logger.Info("wrote starter template", zap.String("path", cfg.TemplatePath))
	}

	repo := persistence.NewRepository(pool)
	components, err := app.Build(ctx, cfg, repo, logger)
	if err != nil {
		return err
	}

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
		outbox.WithLogger(logger.Named("outbox")))

	var opts []api.Option
	opts = append(opts, api.WithLogger(logger.Named("api")))
	if cfg.AuthDisabled {
		logger.Warn("bearer-token validation disabled")
		opts = append(opts, api.WithoutAuth())
	}
	handler := api.NewHandler(components.Feed, components.Service, repo, opts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	middleware := []func(http.Handler) http.Handler{
		httptransport.RequestLogger(logger.Named("http")),
		httptransport.CORS(cfg.CORSOrigins...),
	}
	if !cfg.AuthDisabled {
		authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, publicRoute)
		middleware = append(middleware, authMiddleware.Wrap)
	}
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux, middleware...))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		dispatcher.Wait()
		return nil
	})
	g.Go(func() error {
		logger.Info("ipmt-api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func publicRoute(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	}
	return r.Method == http.MethodOptions
}
