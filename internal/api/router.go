package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/septivank/waterlevel-monitor/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires every HTTP route onto a chi router.
func NewRouter(h *Handler, metricsHandler http.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/sensors", func(r chi.Router) {
		r.Post("/", h.IngestReading)
		r.Get("/", h.ListReadings)
		r.Get("/data", h.ListReadings)
		r.Get("/latest", h.LatestReading)
		r.Get("/stats", h.Statistics)
		r.Post("/sync", h.Sync)
		r.Get("/export.xlsx", h.ExportXLSX)
		r.Get("/report.pdf", h.ExportPDF)
	})

	return r
}

// requestID takes the caller's X-Request-ID or generates one, echoes it back
// and stores it in the request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logging.FromContext(r.Context(), logger).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
