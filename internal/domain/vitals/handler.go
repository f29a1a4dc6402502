package vitals

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heartwatch/heartwatch/internal/domain/registry"
)

// TimestampLayout is the fixed textual timestamp format used on the wire,
// second resolution, no timezone.
const TimestampLayout = "2006-01-02 15:04:05"

type Handler struct {
	svc *Service
	now func() time.Time // injectable for deterministic tests
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/heart_rate", h.PostHeartRate)
	api.GET("/heart_rate/average/:patient_id", h.GetAverage)
	api.POST("/heart_rate/interval_average", h.PostIntervalAverage)
	api.GET("/heart_rate/:patient_id", h.GetSeries)
	api.GET("/status/:patient_id", h.GetStatus)
	api.GET("/patients/:attending_username", h.GetRoster)
}

type heartRateRequest struct {
	PatientID registry.FlexInt `json:"patient_id"`
	HeartRate registry.FlexInt `json:"heart_rate"`
}

type recordResponse struct {
	PatientID int             `json:"patient_id"`
	HeartRate int             `json:"heart_rate"`
	Timestamp string          `json:"timestamp"`
	Status    registry.Status `json:"status"`
	Alert     *AlertOutcome   `json:"alert,omitempty"`
}

// PostHeartRate ingests one reading. The server stamps the receipt time at
// second resolution; readings therefore arrive in non-decreasing time order.
func (h *Handler) PostHeartRate(c echo.Context) error {
	var req heartRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	taken := h.now().Truncate(time.Second)
	res, err := h.svc.Record(c.Request().Context(), int(req.PatientID), int(req.HeartRate), taken)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, recordResponse{
		PatientID: res.PatientID,
		HeartRate: res.Reading.HeartRate,
		Timestamp: res.Reading.Taken.Format(TimestampLayout),
		Status:    res.Status,
		Alert:     res.Alert,
	})
}

func (h *Handler) GetSeries(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	rates, err := h.svc.Series(id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rates)
}

func (h *Handler) GetAverage(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	avg, err := h.svc.Average(id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]float64{"heart_rate_average": avg})
}

type intervalAverageRequest struct {
	PatientID registry.FlexInt `json:"patient_id"`
	Since     string           `json:"heart_rate_average_since"`
}

func (h *Handler) PostIntervalAverage(c echo.Context) error {
	var req intervalAverageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	since, err := time.Parse(TimestampLayout, req.Since)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			"heart_rate_average_since must be in format "+TimestampLayout)
	}

	avg, err := h.svc.AverageSince(int(req.PatientID), since)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]float64{"heart_rate_average": avg})
}

type statusResponse struct {
	PatientID int             `json:"patient_id"`
	HeartRate *int            `json:"heart_rate"`
	Timestamp *string         `json:"timestamp"`
	Status    registry.Status `json:"status"`
}

func (h *Handler) GetStatus(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.Snapshot(id)
	if err != nil {
		return mapError(err)
	}

	resp := statusResponse{PatientID: snap.PatientID, Status: snap.Status}
	if snap.HasReading {
		hr := snap.HeartRate
		ts := snap.Taken.Format(TimestampLayout)
		resp.HeartRate = &hr
		resp.Timestamp = &ts
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetRoster(c echo.Context) error {
	roster, err := h.svc.Roster(c.Param("attending_username"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, roster)
}

func patientParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("patient_id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, registry.ErrPatientNotFound),
		errors.Is(err, registry.ErrAttendingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoReadings), errors.Is(err, ErrOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
