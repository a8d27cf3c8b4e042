package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vetclinic/vetsched/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		StoreBackend:          config.BackendMemory,
		SlotLock:              config.LockLocal,
		SlotLockWait:          time.Second,
		ClinicTimezone:        "UTC",
		WalkInDurationMinutes: 30,
		CORSOrigins:           []string{"http://localhost:3000"},
		RateLimitRPS:          1000,
		RateLimitBurst:        1000,
		RequestTimeout:        5 * time.Second,
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(context.Background(), memoryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func do(t *testing.T, a *app, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decodeID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.ID == "" {
		t.Fatalf("decode id from %s: %v", rec.Body.String(), err)
	}
	return body.ID
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"backend":"memory"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestOpenAPIDocument(t *testing.T) {
	a := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		Paths map[string]map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range []string{"/api/v1/visits", "/api/v1/visits/{id}/reschedule", "/api/v1/veterinarians/{id}/availabilities"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("expected %s in document", p)
		}
	}
}

func TestBookingFlow(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a, http.MethodPost, "/api/v1/persons", `{"role":"VETERINARIAN","first_name":"Ada","last_name":"Vet"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vet: %d %s", rec.Code, rec.Body.String())
	}
	vetID := decodeID(t, rec)

	rec = do(t, a, http.MethodPost, "/api/v1/persons", `{"role":"PET_OWNER","first_name":"Sam","last_name":"Owner"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create owner: %d %s", rec.Code, rec.Body.String())
	}
	ownerID := decodeID(t, rec)

	rec = do(t, a, http.MethodPost, "/api/v1/pets", `{"name":"Rex","owner_ids":["`+ownerID+`"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pet: %d %s", rec.Code, rec.Body.String())
	}
	petID := decodeID(t, rec)

	rec = do(t, a, http.MethodPost, "/api/v1/veterinarians/"+vetID+"/availabilities",
		`{"day_of_week":4,"start_time":"09:00","end_time":"12:00","period_start":"2025-01-01","period_end":"2025-12-31"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create window: %d %s", rec.Code, rec.Body.String())
	}

	visitBody := func(at string) string {
		return `{"visit_date":"2025-05-01","visit_time":"` + at + `","duration":30,"reason":"Checkup",` +
			`"veterinarian_id":"` + vetID + `","pet_id":"` + petID + `","pet_owner_id":"` + ownerID + `"}`
	}
	rec = do(t, a, http.MethodPost, "/api/v1/visits", visitBody("09:00"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create visit: %d %s", rec.Code, rec.Body.String())
	}
	visitID := decodeID(t, rec)

	if rec := do(t, a, http.MethodPost, "/api/v1/visits", visitBody("09:15")); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for overlapping visit, got %d", rec.Code)
	}

	rec = do(t, a, http.MethodGet, "/api/v1/veterinarians/"+vetID+"/slots/check?date=2025-05-01&start=09:30&end=10:00", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"available":true`) {
		t.Errorf("slot check: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, a, http.MethodPut, "/api/v1/visits/"+visitID+"/cancel", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, a, http.MethodGet, "/api/v1/visits/"+visitID+"/history", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"CANCEL"`) {
		t.Errorf("history: %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewApp_BadTimezone(t *testing.T) {
	cfg := memoryConfig()
	cfg.ClinicTimezone = "Mars/Olympus"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "warn"
	if got := newLogger(cfg).GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", got)
	}
	cfg.LogLevel = "nonsense"
	if got := newLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info level fallback, got %s", got)
	}
}
