// Package handlers contains the HTTP handler implementations for the
// irricast API:
//   - Schedule retrieval (GET /v1/schedule)
//   - Next-day decision (GET /v1/decision)
//   - Model ranking (GET /v1/models)
//   - Dataset reload (POST /v1/datasets/reload)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"irricast/internal/advisor"
	"irricast/internal/core"
	"irricast/internal/types"
)

// AdvisorServiceInterface is the service contract for the schedule handler.
// Defined locally to avoid tight coupling to the advisor package.
type AdvisorServiceInterface interface {
	BuildSchedule(ctx context.Context, loc types.Location, days int) (*types.Schedule, error)
	Decide(ctx context.Context, loc types.Location) (*advisor.DecisionReport, error)
	Models(ctx context.Context) (*advisor.ModelsReport, error)
}

// ScheduleHandler maps HTTP requests onto the advisor service.
type ScheduleHandler struct {
	service     AdvisorServiceInterface
	validator   *core.Validator
	logger      *slog.Logger
	defaultDays int
	maxDays     int
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(svc AdvisorServiceInterface, val *core.Validator, logger *slog.Logger, maxDays int) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{
		service:     svc,
		validator:   val,
		logger:      logger,
		defaultDays: 7,
		maxDays:     maxDays,
	}
}

// RegisterRoutes mounts the schedule endpoints onto the /v1 group.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/schedule", h.HandleGetSchedule)
	r.Get("/decision", h.HandleGetDecision)
	r.Get("/models", h.HandleGetModels)
}

// scheduleParams are the validated query parameters of the schedule and
// decision endpoints.
type scheduleParams struct {
	Lat  float64 `validate:"min=-90,max=90"`
	Lon  float64 `validate:"min=-180,max=180"`
	Days int     `validate:"min=1"`
}

// HandleGetSchedule handles GET /v1/schedule?lat=&lon=&days=.
func (h *ScheduleHandler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r, true)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sched, err := h.service.BuildSchedule(r.Context(), types.Location{Lat: params.Lat, Lon: params.Lon}, params.Days)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: sched}
	if sched.Partial {
		resp.Meta = &core.ResponseMeta{Partial: true, Warnings: sched.Warnings}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleGetDecision handles GET /v1/decision?lat=&lon=.
func (h *ScheduleHandler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r, false)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.service.Decide(r.Context(), types.Location{Lat: params.Lat, Lon: params.Lon})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: report.Decision}
	if report.Partial {
		resp.Meta = &core.ResponseMeta{Partial: true, Warnings: report.Warnings}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleGetModels handles GET /v1/models.
func (h *ScheduleHandler) HandleGetModels(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Models(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// parseParams extracts and validates lat/lon and, when withDays is set, the
// optional days parameter (default 7, capped at the forecast maximum).
func (h *ScheduleHandler) parseParams(r *http.Request, withDays bool) (scheduleParams, error) {
	q := r.URL.Query()
	params := scheduleParams{Days: 1}

	latStr := q.Get("lat")
	if latStr == "" {
		return params, types.NewAppError(types.ErrCodeValidationMissingField, "lat query parameter is required", nil)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return params, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be a valid number", nil)
	}
	params.Lat = lat

	lonStr := q.Get("lon")
	if lonStr == "" {
		return params, types.NewAppError(types.ErrCodeValidationMissingField, "lon query parameter is required", nil)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return params, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be a valid number", nil)
	}
	params.Lon = lon

	if withDays {
		params.Days = h.defaultDays
		if daysStr := q.Get("days"); daysStr != "" {
			days, err := strconv.Atoi(daysStr)
			if err != nil {
				return params, types.NewAppError(types.ErrCodeValidationInvalidDays, "days must be an integer", nil)
			}
			params.Days = days
		}
		if params.Days > h.maxDays {
			return params, types.NewAppError(types.ErrCodeValidationInvalidDays, "days exceeds the forecast horizon", nil).
				WithDetails(map[string]any{"max_days": h.maxDays})
		}
	}

	if err := h.validator.ValidateStruct(params); err != nil {
		return params, err
	}
	return params, nil
}
