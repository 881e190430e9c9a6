package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/export"
	"github.com/septivank/waterlevel-monitor/internal/logging"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/service"
	"github.com/septivank/waterlevel-monitor/internal/validator"
)

const maxBodyBytes = 1 << 20

// Handler serves the sensor HTTP API.
type Handler struct {
	svc         *service.ReadingService
	serviceName string
	logger      *zap.Logger
}

func NewHandler(svc *service.ReadingService, serviceName string, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, serviceName: serviceName, logger: logger}
}

type errorResponse struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": h.serviceName})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Statistics(r.Context(), 1); err != nil {
		h.internalError(w, r, "health check failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// IngestReading answers 201 for a new reading and 200 when it merged into an
// existing one.
func (h *Handler) IngestReading(w http.ResponseWriter, r *http.Request) {
	var input validator.ReadingInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&input); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}

	reading, created, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Detail: verr.Error(), Field: verr.Field})
			return
		}
		h.internalError(w, r, "failed to ingest reading", err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	h.writeJSON(w, r, code, reading)
}

func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}
	readings, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "failed to list readings", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, readings)
}

func (h *Handler) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := h.svc.Latest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Detail: "No sensor data"})
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to get latest reading", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, reading)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Statistics(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "failed to compute statistics", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Sync(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "sync failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, result)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.BuildReadingsXLSX)
}

func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", export.BuildReadingsPDF)
}

type reportBuilder func(readings []db.Reading, stats *db.Statistics, generatedAt time.Time) ([]byte, error)

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, build reportBuilder) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}
	readings, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "failed to list readings", err)
		return
	}
	stats := repository.Summarize(readings)

	now := time.Now().UTC()
	data, err := build(readings, stats, now)
	if err != nil {
		h.internalError(w, r, "failed to build report", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="water-levels-%s.%s"`, now.Format("20060102-150405"), ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// queryLimit reads the optional limit query parameter. Zero means the
// service default.
func (h *Handler) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Detail: "limit must be a positive integer", Field: "limit"})
		return 0, false
	}
	return limit, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.FromContext(r.Context(), h.logger).Error(msg, zap.Error(err))
	h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
}

// writeJSON encodes v before committing the status, so a value that cannot be
// encoded turns into a 500 instead of an empty success response.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"detail":"internal server error"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
