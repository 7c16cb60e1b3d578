package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/observability"
	"github.com/boddenberg/extrato-ingest-go/internal/port"
	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

var tracer = otel.Tracer("handler")

const healthCheckTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	svc *service.Ingestion,
	store port.TransactionStore,
	verifier *service.TokenVerifier,
	metrics *observability.Metrics,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/metrics/ingestion", ingestionMetricsHandler(metrics))

	// =============================================
	// Statement ingestion (public)
	// =============================================
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload-extrato", uploadStatementHandler(svc, logger))
		r.Post("/extrair", extractHandler(svc, logger))
		r.Get("/previews/{previewId}", getPreviewHandler(svc, logger))
	})

	// =============================================
	// Persistence (protected)
	// =============================================
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(verifier, logger))
		r.Post("/confirmar", confirmHandler(svc, logger))
	})

	return corsHandler(allowedOrigins).Handler(r)
}

func corsHandler(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-Id",
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(store port.TransactionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "extrato-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := store.Ping(ctx)
			check := domain.ServiceHealth{
				Name:        "store",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				check.Status = "degraded"
				check.Error = err.Error()
			}
			services = append(services, check)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ingestionMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
