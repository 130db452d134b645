package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"irricast/internal/advisor"
	"irricast/internal/core"
	"irricast/internal/types"
)

// DatasetServiceInterface is the service contract for the dataset handler.
type DatasetServiceInterface interface {
	ReloadFromCSV(ctx context.Context, r io.Reader, gzipped bool) (*advisor.ReloadReport, error)
	ReloadFromStore(ctx context.Context, fieldID string, since time.Time) (*advisor.ReloadReport, error)
}

// DatasetHandler owns the dataset reload endpoint. Reloads accept either a
// CSV upload (text/csv, optionally gzip Content-Encoding) or a JSON request
// naming a field in the sensor store.
type DatasetHandler struct {
	service   DatasetServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewDatasetHandler creates a DatasetHandler.
func NewDatasetHandler(svc DatasetServiceInterface, val *core.Validator, logger *slog.Logger) *DatasetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the dataset endpoints onto the /v1 group.
func (h *DatasetHandler) RegisterRoutes(r chi.Router) {
	r.Post("/datasets/reload", h.HandleReload)
}

// storeReloadRequest is the JSON body of a store-backed reload.
type storeReloadRequest struct {
	FieldID string `json:"field_id" validate:"required"`
	Since   string `json:"since,omitempty"` // RFC3339; zero means full history
}

// HandleReload handles POST /v1/datasets/reload.
func (h *DatasetHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	var report *advisor.ReloadReport
	var err error

	switch {
	case strings.HasPrefix(contentType, "text/csv"), strings.HasPrefix(contentType, "application/gzip"):
		gzipped := strings.HasPrefix(contentType, "application/gzip") ||
			strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip")
		body := http.MaxBytesReader(w, r.Body, maxDatasetBytes)
		report, err = h.service.ReloadFromCSV(r.Context(), body, gzipped)

	case strings.HasPrefix(contentType, "application/json"):
		var req storeReloadRequest
		if decodeErr := core.DecodeJSON(w, r, &req); decodeErr != nil {
			core.Error(w, r, decodeErr)
			return
		}
		if valErr := h.validator.ValidateStruct(req); valErr != nil {
			core.Error(w, r, valErr)
			return
		}
		var since time.Time
		if req.Since != "" {
			since, err = time.Parse(time.RFC3339, req.Since)
			if err != nil {
				core.Error(w, r, types.NewAppError(types.ErrCodeValidationBadPayload,
					"since must be a valid RFC3339 timestamp", nil))
				return
			}
		}
		report, err = h.service.ReloadFromStore(r.Context(), req.FieldID, since)

	default:
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationBadPayload,
			"Content-Type must be text/csv, application/gzip, or application/json", nil))
		return
	}

	if err != nil {
		core.Error(w, r, err)
		return
	}

	if reqLogger := types.LoggerFromContext(r.Context()); reqLogger != nil {
		reqLogger.Info("dataset reloaded",
			slog.Int("rows", report.Rows),
			slog.String("best_algorithm", string(report.BestAlgorithm)),
		)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// maxDatasetBytes bounds uploaded dataset size (32 MB uncompressed stream).
const maxDatasetBytes = 32 << 20
