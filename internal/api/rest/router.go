package rest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the knobs the router needs.
type RouterConfig struct {
	UploadsDir        string
	RequestsPerSecond int
	BurstSize         int
	Logger            *zap.Logger
}

// NewRouter wires every route and the shared middleware chain.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/invoices/upload", h.Upload)
	mux.HandleFunc("GET /api/invoices", h.List)
	mux.HandleFunc("GET /api/invoices/export.csv", h.ExportCSV)
	mux.HandleFunc("GET /api/invoices/{id}", h.Get)
	mux.HandleFunc("DELETE /api/invoices", h.DeleteAll)
	mux.HandleFunc("POST /api/invoices/{id}/override", h.Override)

	// Stored invoice files, addressed by the file_url in responses.
	mux.Handle("GET /uploads/",
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))

	return Chain(mux,
		RecoveryMiddleware(cfg.Logger),
		RequestIDMiddleware(),
		LoggingMiddleware(cfg.Logger),
		MetricsMiddleware(),
		RateLimitMiddleware(cfg.RequestsPerSecond, cfg.BurstSize),
	)
}
