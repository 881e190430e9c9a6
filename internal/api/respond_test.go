package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestWriteJSON_UnencodableValueIsServerError(t *testing.T) {
	h := NewHandler(nil, "waterlevel-monitor", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/latest", nil)

	h.writeJSON(rec, req, http.StatusOK, map[string]float64{"water_level": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected a JSON error body, got %q: %v", rec.Body.String(), err)
	}
	if body.Detail != "internal server error" {
		t.Errorf("Unexpected detail %q", body.Detail)
	}
}

func TestWriteJSON_EncodesBeforeStatus(t *testing.T) {
	h := NewHandler(nil, "waterlevel-monitor", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.writeJSON(rec, req, http.StatusCreated, map[string]string{"status": "ok"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Unexpected content type %q", got)
	}
	if rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}
