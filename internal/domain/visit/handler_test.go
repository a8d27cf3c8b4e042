package visit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetsched/internal/domain/availability"
	"github.com/vetclinic/vetsched/internal/domain/party"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv(t)
	return NewHandler(env.svc), env, echo.New()
}

func withID(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, id string) echo.Context {
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func createBody(vetID, ownerID, petID uuid.UUID, at string) string {
	return fmt.Sprintf(`{"visit_date":"2025-05-01","visit_time":%q,"duration":30,"reason":"Checkup","price_per_fifteen":12.5,"veterinarian_id":%q,"pet_id":%q,"pet_owner_id":%q}`,
		at, vetID, petID, ownerID)
}

func TestHandler_CreateVisit(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	rec := httptest.NewRecorder()

	if err := h.CreateVisit(e.NewContext(jsonRequest(http.MethodPost, createBody(vetID, ownerID, petID, "09:00")), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "SCHEDULED" || body["visit_date"] != "2025-05-01" || body["visit_time"] != "09:00" {
		t.Errorf("unexpected wire format: %v", body)
	}
}

func TestHandler_CreateVisit_Overlap(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))

	err := h.CreateVisit(e.NewContext(jsonRequest(http.MethodPost, createBody(vetID, ownerID, petID, "09:15")), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusConflict)
}

func TestHandler_CreateVisit_BadBody(t *testing.T) {
	h, _, e := newTestHandler(t)
	err := h.CreateVisit(e.NewContext(jsonRequest(http.MethodPost, `{"visit_time":"25:00"}`), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_CreateVisit_MissingFields(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.person(t, party.RoleVeterinarian)
	early := &availability.Window{VeterinarianID: vetID, Recurrence: availability.Recurrence{
		DayOfWeek:   4,
		StartTime:   hm(0, 0),
		EndTime:     hm(8, 0),
		PeriodStart: clinictime.NewDate(2025, 1, 1),
		PeriodEnd:   clinictime.NewDate(2025, 12, 31),
	}}
	if err := env.avail.CreateWindow(context.Background(), early); err != nil {
		t.Fatalf("create window: %v", err)
	}
	ownerID, petID := env.ownerWithPet(t)

	bodies := map[string]string{
		"visit_time": fmt.Sprintf(`{"visit_date":"2025-05-01","duration":30,"reason":"Checkup","veterinarian_id":%q,"pet_id":%q,"pet_owner_id":%q}`,
			vetID, petID, ownerID),
		"veterinarian_id": fmt.Sprintf(`{"visit_date":"2025-05-01","visit_time":"01:00","duration":30,"reason":"Checkup","pet_id":%q,"pet_owner_id":%q}`,
			petID, ownerID),
	}
	for field, body := range bodies {
		err := h.CreateVisit(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("missing %s: expected 400, got %v", field, err)
		}
	}

	visits, err := env.svc.ListVisitsForVeterinarianInRange(context.Background(), vetID, thursday, thursday)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visits) != 0 {
		t.Errorf("expected nothing booked, got %d visits", len(visits))
	}
}

func TestHandler_CreateWalkInVisit(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.vet(t, 1)
	ownerID, petID := env.ownerWithPet(t)

	body := fmt.Sprintf(`{"pet_id":%q,"pet_owner_id":%q}`, petID, ownerID)
	rec := httptest.NewRecorder()
	if err := h.CreateWalkInVisit(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"IN_PROGRESS"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	err := h.CreateWalkInVisit(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusConflict)

	err = h.CreateWalkInVisit(e.NewContext(jsonRequest(http.MethodPost, `{}`), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_GetVisit_InvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := h.GetVisit(withID(e, req, httptest.NewRecorder(), "not-a-uuid"))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_GetVisit_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := h.GetVisit(withID(e, req, httptest.NewRecorder(), uuid.New().String()))
	expectStatus(t, err, http.StatusNotFound)
}

func TestHandler_Transitions(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	v := env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))
	id := v.ID.String()

	rec := httptest.NewRecorder()
	if err := h.StartVisit(withID(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, id)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"IN_PROGRESS"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	err := h.StartVisit(withID(e, httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusConflict)

	err = h.RecordDiagnosis(withID(e, jsonRequest(http.MethodPost, `{"diagnoses":" ","notes":"rest"}`), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	if err := h.RecordDiagnosis(withID(e, jsonRequest(http.MethodPost, `{"diagnoses":"otitis","notes":"drops"}`), rec, id)); err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"otitis"`) {
		t.Errorf("expected diagnoses in body, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.CompleteVisit(withID(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, id)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"COMPLETED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CancelAndHistory(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	v := env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))
	id := v.ID.String()

	if err := h.CancelVisit(withID(e, jsonRequest(http.MethodPut, `{"performed_by":"reception"}`), httptest.NewRecorder(), id)); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.ListHistory(withID(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, id)); err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["action"] != "CANCEL" || entries[0]["performed_by"] != "reception" || entries[0]["new_date"] != nil {
		t.Errorf("unexpected entry %v", entries[0])
	}
}

func TestHandler_RescheduleVisit(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	v := env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))
	env.book(t, command(vetID, ownerID, petID, thursday, hm(11, 0), 30))
	id := v.ID.String()

	rec := httptest.NewRecorder()
	if err := h.RescheduleVisit(withID(e, jsonRequest(http.MethodPut, `{"new_date":"2025-05-01","new_time":"10:00"}`), rec, id)); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	var body struct {
		Visit   map[string]interface{} `json:"visit"`
		History map[string]interface{} `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Visit["visit_time"] != "10:00" || body.History["old_time"] != "09:00" || body.History["action"] != "RESCHEDULE" {
		t.Errorf("unexpected response %s", rec.Body.String())
	}

	err := h.RescheduleVisit(withID(e, jsonRequest(http.MethodPut, `{"new_date":"2025-05-01","new_time":"11:15"}`), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusConflict)

	err = h.RescheduleVisit(withID(e, jsonRequest(http.MethodPut, `{"new_date":"2025-05-01"}`), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_Treatment(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	v := env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))
	id := v.ID.String()

	err := h.GetTreatment(withID(e, httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusNotFound)

	err = h.AssignTreatment(withID(e, jsonRequest(http.MethodPost, `{}`), httptest.NewRecorder(), id))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestHandler_AvailableNow(t *testing.T) {
	h, env, e := newTestHandler(t)

	err := h.AvailableNow(e.NewContext(httptest.NewRequest(http.MethodGet, "/?duration=abc", nil), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusBadRequest)

	err = h.AvailableNow(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	expectStatus(t, err, http.StatusConflict)

	vetID := env.vet(t, 1)
	rec := httptest.NewRecorder()
	if err := h.AvailableNow(e.NewContext(httptest.NewRequest(http.MethodGet, "/?duration=15", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), vetID.String()) {
		t.Errorf("expected %s in body, got %s", vetID, rec.Body.String())
	}
}

func TestHandler_CheckSlot(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?date=2025-05-01&start=09:00&end=09:30", nil)
	if err := h.CheckSlot(withID(e, req, rec, vetID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"available":true`) {
		t.Errorf("expected available slot, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?date=2025-05-01&start=nine&end=09:30", nil)
	expectStatus(t, h.CheckSlot(withID(e, req, httptest.NewRecorder(), vetID.String())), http.StatusBadRequest)
}

func TestHandler_ListVeterinarianVisits(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?start=2025-05-01&end=2025-05-31", nil)
	if err := h.ListVeterinarianVisits(withID(e, req, rec, vetID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?start=2025-05-31&end=2025-05-01", nil)
	expectStatus(t, h.ListVeterinarianVisits(withID(e, req, httptest.NewRecorder(), vetID.String())), http.StatusBadRequest)

	req = httptest.NewRequest(http.MethodGet, "/?start=2025-05-01", nil)
	expectStatus(t, h.ListVeterinarianVisits(withID(e, req, httptest.NewRecorder(), vetID.String())), http.StatusBadRequest)
}

func TestHandler_PetMedicalHistory(t *testing.T) {
	h, env, e := newTestHandler(t)
	vetID := env.vet(t, 4)
	ownerID, petID := env.ownerWithPet(t)
	env.book(t, command(vetID, ownerID, petID, thursday, hm(9, 0), 30))

	rec := httptest.NewRecorder()
	if err := h.PetMedicalHistory(withID(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, petID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0]["visit_date"] != "2025-05-01" {
		t.Errorf("unexpected records %v", records)
	}
}
