package visit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetsched/internal/platform/apperr"
	"github.com/vetclinic/vetsched/pkg/clinictime"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/visits", h.CreateVisit)
	api.POST("/visits/walk-in", h.CreateWalkInVisit)
	api.GET("/visits/:id", h.GetVisit)
	api.DELETE("/visits/:id", h.DeleteVisit)
	api.POST("/visits/:id/start", h.StartVisit)
	api.POST("/visits/:id/complete", h.CompleteVisit)
	api.POST("/visits/:id/no-show", h.MarkNotShowedUp)
	api.POST("/visits/:id/diagnosis", h.RecordDiagnosis)
	api.PUT("/visits/:id/cancel", h.CancelVisit)
	api.PUT("/visits/:id/reschedule", h.RescheduleVisit)
	api.GET("/visits/:id/history", h.ListHistory)
	api.POST("/visits/:id/treatment", h.AssignTreatment)
	api.DELETE("/visits/:id/treatment", h.UnassignTreatment)
	api.GET("/visits/:id/treatment", h.GetTreatment)

	api.GET("/veterinarians/available-now", h.AvailableNow)
	api.GET("/veterinarians/:id/schedule", h.Schedule)
	api.GET("/veterinarians/:id/visits", h.ListVeterinarianVisits)
	api.GET("/veterinarians/:id/slots/check", h.CheckSlot)

	api.GET("/pets/:id/medical-history", h.PetMedicalHistory)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryDate(c echo.Context, name string) (clinictime.Date, error) {
	d, err := clinictime.ParseDate(c.QueryParam(name))
	if err != nil {
		return clinictime.Date{}, echo.NewHTTPError(http.StatusBadRequest, name+": "+err.Error())
	}
	return d, nil
}

func queryTime(c echo.Context, name string) (clinictime.TimeOfDay, error) {
	t, err := clinictime.ParseTimeOfDay(c.QueryParam(name))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+": "+err.Error())
	}
	return t, nil
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var cmd CreateCommand
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), cmd)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

type walkInRequest struct {
	PetID      uuid.UUID `json:"pet_id"`
	PetOwnerID uuid.UUID `json:"pet_owner_id"`
}

func (h *Handler) CreateWalkInVisit(c echo.Context) error {
	var req walkInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PetID == uuid.Nil || req.PetOwnerID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "pet_id and pet_owner_id are required")
	}
	v, err := h.svc.CreateWalkInVisit(c.Request().Context(), req.PetID, req.PetOwnerID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVisit(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// transition runs a visit mutator named by the :id path parameter.
func (h *Handler) transition(c echo.Context, op func(ctx context.Context, id uuid.UUID) (*Visit, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := op(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) StartVisit(c echo.Context) error {
	return h.transition(c, h.svc.StartVisit)
}

func (h *Handler) CompleteVisit(c echo.Context) error {
	return h.transition(c, h.svc.CompleteVisit)
}

func (h *Handler) MarkNotShowedUp(c echo.Context) error {
	return h.transition(c, h.svc.MarkNotShowedUp)
}

type diagnosisRequest struct {
	Diagnoses string `json:"diagnoses"`
	Notes     string `json:"notes"`
}

func (h *Handler) RecordDiagnosis(c echo.Context) error {
	var req diagnosisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.transition(c, func(ctx context.Context, id uuid.UUID) (*Visit, error) {
		return h.svc.RecordDiagnosisAndNotes(ctx, id, req.Diagnoses, req.Notes)
	})
}

type cancelRequest struct {
	PerformedBy *string `json:"performed_by"`
}

func (h *Handler) CancelVisit(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.transition(c, func(ctx context.Context, id uuid.UUID) (*Visit, error) {
		return h.svc.CancelVisit(ctx, id, req.PerformedBy)
	})
}

type rescheduleResponse struct {
	Visit   *Visit   `json:"visit"`
	History *History `json:"history"`
}

func (h *Handler) RescheduleVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cmd RescheduleCommand
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, entry, err := h.svc.RescheduleVisit(c.Request().Context(), id, cmd)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rescheduleResponse{Visit: v, History: entry})
}

func (h *Handler) ListHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListHistory(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*History{}
	}
	return c.JSON(http.StatusOK, items)
}

type treatmentRequest struct {
	TreatmentID uuid.UUID `json:"treatment_id"`
}

func (h *Handler) AssignTreatment(c echo.Context) error {
	var req treatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.transition(c, func(ctx context.Context, id uuid.UUID) (*Visit, error) {
		return h.svc.AssignTreatment(ctx, id, req.TreatmentID)
	})
}

func (h *Handler) UnassignTreatment(c echo.Context) error {
	return h.transition(c, h.svc.UnassignTreatment)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTreatmentOfVisit(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// -- Veterinarian views --

func (h *Handler) dateRange(c echo.Context) (uuid.UUID, clinictime.Date, clinictime.Date, error) {
	id, err := parseID(c)
	if err != nil {
		return uuid.Nil, clinictime.Date{}, clinictime.Date{}, err
	}
	start, err := queryDate(c, "start")
	if err != nil {
		return uuid.Nil, clinictime.Date{}, clinictime.Date{}, err
	}
	end, err := queryDate(c, "end")
	if err != nil {
		return uuid.Nil, clinictime.Date{}, clinictime.Date{}, err
	}
	return id, start, end, nil
}

func (h *Handler) Schedule(c echo.Context) error {
	id, start, end, err := h.dateRange(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.VeterinarianSchedule(c.Request().Context(), id, start, end)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListVeterinarianVisits(c echo.Context) error {
	id, start, end, err := h.dateRange(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVisitsForVeterinarianInRange(c.Request().Context(), id, start, end)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Visit{}
	}
	return c.JSON(http.StatusOK, items)
}

type slotCheckResponse struct {
	VeterinarianID uuid.UUID            `json:"veterinarian_id"`
	Date           clinictime.Date      `json:"date"`
	Start          clinictime.TimeOfDay `json:"start"`
	End            clinictime.TimeOfDay `json:"end"`
	Available      bool                 `json:"available"`
}

func (h *Handler) CheckSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	start, err := queryTime(c, "start")
	if err != nil {
		return err
	}
	end, err := queryTime(c, "end")
	if err != nil {
		return err
	}
	ok, err := h.svc.CheckSlot(c.Request().Context(), id, date, start, end)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, slotCheckResponse{VeterinarianID: id, Date: date, Start: start, End: end, Available: ok})
}

func (h *Handler) AvailableNow(c echo.Context) error {
	duration := 0
	if raw := c.QueryParam("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "duration must be a positive integer")
		}
		duration = d
	}
	vetID, err := h.svc.FindAvailableVeterinarianNow(c.Request().Context(), duration)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]uuid.UUID{"veterinarian_id": vetID})
}

func (h *Handler) PetMedicalHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	records, err := h.svc.PetMedicalHistory(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, records)
}
