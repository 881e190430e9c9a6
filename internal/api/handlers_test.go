package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/waterlevel-monitor/internal/api"
	"github.com/septivank/waterlevel-monitor/internal/config"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/metrics"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/service"
	"github.com/septivank/waterlevel-monitor/internal/source"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"github.com/septivank/waterlevel-monitor/internal/validator"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	classifier, err := status.NewClassifier(50, 20)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	m := metrics.New()
	src := source.NewSimulatedSource(source.SimulatedOptions{
		Rows:     5,
		Seed:     1,
		DeviceID: "waterlevel",
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	adapter := source.NewAdapter(source.AdapterConfig{
		Source:        src,
		AllowedDevice: "waterlevel",
		Classifier:    classifier,
		Metrics:       m,
	})
	svc := service.NewReadingService(service.Deps{
		Store:      repository.NewMemoryStore(),
		Classifier: classifier,
		Validator:  validator.NewValidator(24 * time.Hour),
		Fetcher:    adapter,
		Metrics:    m,
		Limits:     config.LimitConfig{SyncDefault: 500, ListDefault: 100, StatsDefault: 1000, ListMax: 5000},
	})
	logger := zap.NewNop()
	return api.NewRouter(api.NewHandler(svc, "waterlevel-monitor", logger), m.Handler(), logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestIngestThenMerge(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodPost, "/sensors", `{"timestamp":"2024-01-01T00:00:00","device_id":"S1","water_level":45}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created db.Reading
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != status.Warning {
		t.Errorf("Expected warning, got %s", created.Status)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Error("Expected generated request id header")
	}

	resp = do(t, h, http.MethodPost, "/sensors", `{"timestamp":"2024-01-01T00:00:00","device_id":"S1","water_level":10}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 on merge, got %d", resp.Code)
	}
	var merged db.Reading
	_ = json.NewDecoder(resp.Body).Decode(&merged)
	if merged.ID != created.ID || merged.Status != status.Critical {
		t.Errorf("Unexpected merged reading %+v", merged)
	}
}

func TestIngestAcceptsMeasurementField(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodPost, "/sensors", `{"timestamp":"2024-01-01T00:00:00","device_id":"S1","measurement":45}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["water_level"] != 45.0 || body["status"] != "warning" {
		t.Errorf("Unexpected response %v", body)
	}

	resp = do(t, h, http.MethodGet, "/sensors/stats", "")
	body = map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	for _, key := range []string{"total_readings", "average_water_level", "max_water_level", "min_water_level", "devices"} {
		if _, ok := body[key]; !ok {
			t.Errorf("Expected %q in statistics response, got %v", key, body)
		}
	}
}

func TestIngestValidation(t *testing.T) {
	h := newServer(t)

	cases := map[string]string{
		"negative":  `{"timestamp":"2024-01-01","device_id":"S1","water_level":-5}`,
		"no device": `{"timestamp":"2024-01-01","water_level":5}`,
		"bad json":  `{"timestamp":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := do(t, h, http.MethodPost, "/sensors", body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.Code)
			}
		})
	}
}

func TestLatestEmpty(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodGet, "/sensors/latest", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "No sensor data") {
		t.Errorf("Unexpected body %s", resp.Body.String())
	}
}

func TestStatsEmpty(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodGet, "/sensors/stats", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["total_readings"].(float64) != 0 {
		t.Errorf("Expected zero readings, got %v", body["total_readings"])
	}
	devices, ok := body["devices"].([]interface{})
	if !ok || len(devices) != 0 {
		t.Errorf("Expected empty devices array, got %v", body["devices"])
	}
}

func TestSyncAndList(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodPost, "/sensors/sync?limit=3", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.Code)
	}
	var result service.SyncResult
	_ = json.NewDecoder(resp.Body).Decode(&result)
	if result.Inserted != 3 || result.TotalFetched != 3 {
		t.Errorf("Unexpected sync result %+v", result)
	}

	resp = do(t, h, http.MethodPost, "/sensors/sync?limit=3", "")
	_ = json.NewDecoder(resp.Body).Decode(&result)
	if result.Inserted != 0 || result.Updated != 0 {
		t.Errorf("Expected idempotent second sync, got %+v", result)
	}

	for _, path := range []string{"/sensors?limit=2", "/sensors/data?limit=2"} {
		resp = do(t, h, http.MethodGet, path, "")
		var readings []db.Reading
		_ = json.NewDecoder(resp.Body).Decode(&readings)
		if len(readings) != 2 {
			t.Fatalf("%s: expected 2 readings, got %d", path, len(readings))
		}
		if !readings[0].Timestamp.After(readings[1].Timestamp) {
			t.Errorf("%s: expected newest first", path)
		}
	}
}

func TestInvalidLimit(t *testing.T) {
	h := newServer(t)

	for _, path := range []string{"/sensors?limit=abc", "/sensors/stats?limit=0"} {
		if resp := do(t, h, http.MethodGet, path, ""); resp.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, resp.Code)
		}
	}
}

func TestRootHealthAndMetrics(t *testing.T) {
	h := newServer(t)

	resp := do(t, h, http.MethodGet, "/", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "waterlevel-monitor") {
		t.Errorf("Unexpected root response %d %s", resp.Code, resp.Body.String())
	}
	if resp := do(t, h, http.MethodGet, "/healthz", ""); resp.Code != http.StatusOK {
		t.Errorf("Expected healthy, got %d", resp.Code)
	}

	do(t, h, http.MethodPost, "/sensors", `{"timestamp":"2024-01-01","device_id":"S1","water_level":5}`)
	resp = do(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(resp.Body.String(), "waterlevel_ingest_requests_total") {
		t.Error("Expected ingest counter in metrics output")
	}
}

func TestExports(t *testing.T) {
	h := newServer(t)
	do(t, h, http.MethodPost, "/sensors", `{"timestamp":"2024-01-01","device_id":"S1","water_level":5}`)

	resp := do(t, h, http.MethodGet, "/sensors/export.xlsx", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Disposition"), "attachment;") {
		t.Errorf("Unexpected disposition %q", resp.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")) {
		t.Error("Expected zip container for xlsx")
	}

	resp = do(t, h, http.MethodGet, "/sensors/report.pdf", "")
	if resp.Code != http.StatusOK || !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("Unexpected pdf response %d", resp.Code)
	}
}
