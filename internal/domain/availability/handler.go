package availability

import (
	"net/http"

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
	api.POST("/veterinarians/:id/availabilities", h.CreateWindow)
	api.GET("/veterinarians/:id/availabilities", h.ListWindows)
	api.DELETE("/veterinarians/:id/availabilities", h.DeleteAllWindows)

	api.GET("/availabilities/:id", h.GetWindow)
	api.PUT("/availabilities/:id", h.UpdateWindow)
	api.DELETE("/availabilities/:id", h.DeleteWindow)

	api.POST("/availabilities/:id/exceptions", h.CreateException)
	api.GET("/availabilities/:id/exceptions", h.ListExceptions)
	api.DELETE("/availabilities/:id/exceptions", h.DeleteAllExceptions)

	api.GET("/exceptions/:id", h.GetException)
	api.PUT("/exceptions/:id", h.UpdateException)
	api.DELETE("/exceptions/:id", h.DeleteException)
}

// recurrenceRequest is the wire body of a window. Times are pointers so a
// missing field is rejected instead of read as midnight.
type recurrenceRequest struct {
	DayOfWeek   int                   `json:"day_of_week"`
	StartTime   *clinictime.TimeOfDay `json:"start_time"`
	EndTime     *clinictime.TimeOfDay `json:"end_time"`
	PeriodStart clinictime.Date       `json:"period_start"`
	PeriodEnd   clinictime.Date       `json:"period_end"`
}

func (r recurrenceRequest) recurrence() (Recurrence, error) {
	if r.StartTime == nil || r.EndTime == nil {
		return Recurrence{}, apperr.Validation("start_time and end_time are required")
	}
	return Recurrence{
		DayOfWeek:   r.DayOfWeek,
		StartTime:   *r.StartTime,
		EndTime:     *r.EndTime,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
	}, nil
}

type exceptionRequest struct {
	recurrenceRequest
	Reason string `json:"reason"`
}

// bindRecurrence decodes the body into req and returns its recurrence.
func bindRecurrence(c echo.Context, req interface{ recurrence() (Recurrence, error) }) (Recurrence, error) {
	if err := c.Bind(req); err != nil {
		return Recurrence{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := req.recurrence()
	if err != nil {
		return Recurrence{}, apperr.HTTPError(err)
	}
	return rec, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Window handlers --

func (h *Handler) CreateWindow(c echo.Context) error {
	vetID, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := bindRecurrence(c, &recurrenceRequest{})
	if err != nil {
		return err
	}
	w := &Window{VeterinarianID: vetID, Recurrence: rec}
	if err := h.svc.CreateWindow(c.Request().Context(), w); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWindows(c echo.Context) error {
	vetID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListWindows(c.Request().Context(), vetID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Window{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteAllWindows(c echo.Context) error {
	vetID, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAllWindows(c.Request().Context(), vetID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetWindow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWindow(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWindow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := bindRecurrence(c, &recurrenceRequest{})
	if err != nil {
		return err
	}
	w, err := h.svc.UpdateWindow(c.Request().Context(), id, rec)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWindow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWindow(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Exception handlers --

func (h *Handler) CreateException(c echo.Context) error {
	windowID, err := parseID(c)
	if err != nil {
		return err
	}
	var req exceptionRequest
	rec, err := bindRecurrence(c, &req)
	if err != nil {
		return err
	}
	e := &Exception{WindowID: windowID, Recurrence: rec, Reason: req.Reason}
	if err := h.svc.CreateException(c.Request().Context(), e); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListExceptions(c echo.Context) error {
	windowID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListExceptions(c.Request().Context(), windowID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Exception{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteAllExceptions(c echo.Context) error {
	windowID, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAllExceptions(c.Request().Context(), windowID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetException(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetException(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateException(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req exceptionRequest
	rec, err := bindRecurrence(c, &req)
	if err != nil {
		return err
	}
	e, err := h.svc.UpdateException(c.Request().Context(), id, rec, req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteException(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteException(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
