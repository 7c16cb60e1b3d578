package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// IngestionMetrics is returned by GET /v1/metrics/ingestion.
type IngestionMetrics struct {
	UploadsAccepted       int64   `json:"uploadsAccepted"`
	UploadsRejected       int64   `json:"uploadsRejected"`
	UploadsFailed         int64   `json:"uploadsFailed"`
	TransactionsParsed    int64   `json:"transactionsParsed"`
	RowsDropped           int64   `json:"rowsDropped"`
	TransactionsPersisted int64   `json:"transactionsPersisted"`
	TransactionsFailed    int64   `json:"transactionsFailed"`
	PreviewCacheHitRate   float64 `json:"previewCacheHitRate"`
}
