package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// Upload outcomes.
const (
	UploadAccepted = "accepted"
	UploadRejected = "rejected" // client input errors
	UploadFailed   = "failed"   // processing errors
)

// Metrics holds all Prometheus metrics of the ingestion service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	parseDuration  *prometheus.HistogramVec
	parsesInFlight prometheus.Gauge
	parsed         *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	persisted      *prometheus.CounterVec
	previewCache   *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// repeatedly without "duplicate collector" panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_uploads_total",
				Help: "Statement uploads by endpoint, format and outcome.",
			},
			[]string{"endpoint", "format", "status"},
		),
		parseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extrato_parse_duration_seconds",
				Help:    "Time spent parsing a statement, by format.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		parsesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "extrato_parses_in_flight",
				Help: "Parses currently holding a bulkhead slot.",
			},
		),
		parsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_transactions_parsed_total",
				Help: "Transactions produced by the parsers.",
			},
			[]string{"format"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_rows_dropped_total",
				Help: "Candidate rows discarded as per-record anomalies.",
			},
			[]string{"format"},
		),
		persisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_transactions_persisted_total",
				Help: "Confirmed rows by persistence outcome.",
			},
			[]string{"status"},
		),
		previewCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_preview_cache_total",
				Help: "Preview cache lookups by result.",
			},
			[]string{"result"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extrato_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
	}
}

// RecordUpload counts one upload with its outcome.
func (m *Metrics) RecordUpload(endpoint string, format domain.Format, status string) {
	f := string(format)
	if f == "" {
		f = "unknown"
	}
	m.uploads.WithLabelValues(endpoint, f, status).Inc()
}

// RecordParse records a finished parse.
func (m *Metrics) RecordParse(format domain.Format, d time.Duration, parsed, dropped int) {
	f := string(format)
	m.parseDuration.WithLabelValues(f).Observe(d.Seconds())
	m.parsed.WithLabelValues(f).Add(float64(parsed))
	m.dropped.WithLabelValues(f).Add(float64(dropped))
}

// ParseStarted and ParseFinished track bulkhead occupancy.
func (m *Metrics) ParseStarted()  { m.parsesInFlight.Inc() }
func (m *Metrics) ParseFinished() { m.parsesInFlight.Dec() }

// RecordPersisted counts confirm results.
func (m *Metrics) RecordPersisted(saved, failed int) {
	m.persisted.WithLabelValues("saved").Add(float64(saved))
	m.persisted.WithLabelValues("failed").Add(float64(failed))
}

// IncrPreviewCache counts a preview lookup.
func (m *Metrics) IncrPreviewCache(hit bool) {
	if hit {
		m.previewCache.WithLabelValues("hit").Inc()
		return
	}
	m.previewCache.WithLabelValues("miss").Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// Snapshot returns the cumulative counters for GET /v1/metrics/ingestion.
func (m *Metrics) Snapshot() *domain.IngestionMetrics {
	families, err := m.Registry.Gather()
	if err != nil {
		return &domain.IngestionMetrics{}
	}

	hits := sumCounter(families, "extrato_preview_cache_total", "result", "hit")
	misses := sumCounter(families, "extrato_preview_cache_total", "result", "miss")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.IngestionMetrics{
		UploadsAccepted:       int64(sumCounter(families, "extrato_uploads_total", "status", UploadAccepted)),
		UploadsRejected:       int64(sumCounter(families, "extrato_uploads_total", "status", UploadRejected)),
		UploadsFailed:         int64(sumCounter(families, "extrato_uploads_total", "status", UploadFailed)),
		TransactionsParsed:    int64(sumCounter(families, "extrato_transactions_parsed_total", "", "")),
		RowsDropped:           int64(sumCounter(families, "extrato_rows_dropped_total", "", "")),
		TransactionsPersisted: int64(sumCounter(families, "extrato_transactions_persisted_total", "status", "saved")),
		TransactionsFailed:    int64(sumCounter(families, "extrato_transactions_persisted_total", "status", "failed")),
		PreviewCacheHitRate:   hitRate,
	}
}

// sumCounter adds every series of a counter family, optionally filtered by
// one label value. An empty label name sums all series.
func sumCounter(families []*dto.MetricFamily, name, label, value string) float64 {
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label != "" && !hasLabel(metric, label, value) {
				continue
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
