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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/extrato-ingest-go/internal/config"
	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/handler"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/cache"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/memory"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/observability"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/resilience"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/sqlite"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/supabase"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
	"github.com/boddenberg/extrato-ingest-go/internal/port"
	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Int("max_transactions", cfg.MaxTransactions),
		zap.Int("max_concurrent_parses", cfg.MaxConcurrentParses),
		zap.Duration("parse_timeout", cfg.ParseTimeout),
		zap.Duration("preview_ttl", cfg.PreviewTTL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "extrato-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// --- Preview cache ---
	previews := cache.New[*domain.Preview](cfg.PreviewTTL)
	defer previews.Close()

	// --- Services ---
	categorizer := ingest.NewDefaultCategorizer()
	registry := ingest.NewRegistry(ingest.Options{Categorizer: categorizer, Logger: logger})

	ingestion := service.NewIngestion(
		registry,
		categorizer,
		store,
		previews,
		service.IngestionConfig{
			Limits:              ingest.Limits{MaxBytes: cfg.MaxUploadBytes, MaxTransactions: cfg.MaxTransactions},
			ParseTimeout:        cfg.ParseTimeout,
			MaxConcurrentParses: cfg.MaxConcurrentParses,
		},
		metrics,
		logger,
	)
	verifier := service.NewTokenVerifier(cfg.JWTSecret)

	// --- Router ---
	router := handler.NewRouter(ingestion, store, verifier, metrics, cfg.CORSAllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ParseTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStore builds the configured persistence backend.
func openStore(cfg *config.Config, logger *zap.Logger) (port.TransactionStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreSupabase:
		logger.Info("using Supabase as transaction store",
			zap.String("supabase_url", cfg.SupabaseURL),
			zap.String("table", cfg.SupabaseTable),
		)
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
			logger,
		)
		return supabase.NewTransactionStore(client, cfg.SupabaseTable), func() {}, nil

	case config.StoreSQLite:
		logger.Info("using SQLite as transaction store", zap.String("path", cfg.SQLitePath))
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		logger.Warn("using in-memory transaction store, confirmed rows are lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
