package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/heartwatch/heartwatch/pkg/pagination"
)

// FlexInt accepts both JSON numbers and numeric strings. Bedside monitors in
// the field post quoted integers, so the request layer coerces them before
// the core ever sees the value.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", string(b))
	}
	*f = FlexInt(n)
	return nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/new_attending", h.NewAttending)
	api.POST("/new_patient", h.NewPatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/attendings/:attending_username", h.GetAttending)
}

type newAttendingRequest struct {
	Username string `json:"attending_username"`
	Email    string `json:"attending_email"`
	Phone    string `json:"attending_phone"`
}

func (h *Handler) NewAttending(c echo.Context) error {
	var req newAttendingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RegisterAttending(req.Username, req.Email, req.Phone); err != nil {
		if errors.Is(err, ErrDuplicateAttending) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"attending_username": req.Username,
	})
}

type newPatientRequest struct {
	PatientID FlexInt `json:"patient_id"`
	Attending string  `json:"attending_username"`
	Age       FlexInt `json:"patient_age"`
}

func (h *Handler) NewPatient(c echo.Context) error {
	var req newPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RegisterPatient(int(req.PatientID), req.Attending, int(req.Age)); err != nil {
		switch {
		case errors.Is(err, ErrDuplicatePatient):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrAttendingNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, map[string]int{
		"patient_id": int(req.PatientID),
	})
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total := h.svc.ListPatients(pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAttending(c echo.Context) error {
	a, err := h.svc.Attending(c.Param("attending_username"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
