package forecast

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fxforecast/internal/calendar"
	"fxforecast/internal/pipeline"
	"fxforecast/internal/timeseries"
)

// Handler exposes forecast operations over HTTP
type Handler struct {
	svc  *Service
	repo *Repository
	log  zerolog.Logger

	defaultConfidence float64
}

// NewHandler creates a forecast HTTP handler
func NewHandler(svc *Service, repo *Repository, defaultConfidence float64, log zerolog.Logger) *Handler {
	return &Handler{
		svc:               svc,
		repo:              repo,
		defaultConfidence: defaultConfidence,
		log:               log.With().Str("handler", "forecast").Logger(),
	}
}

// Routes registers the forecast routes
func (h *Handler) Routes(r chi.Router) {
	r.Post("/run", h.handleRun)
	r.Get("/latest", h.handleLatest)
	r.Get("/history", h.handleHistory)
}

type runRequest struct {
	CutoffDate      string   `json:"cutoff_date"`
	ConfidenceLevel *float64 `json:"confidence_level"`
}

// handleRun executes a forecast for the requested cutoff date and
// stores the resulting report
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CutoffDate == "" {
		h.writeError(w, http.StatusBadRequest, "cutoff_date is required")
		return
	}

	confidence := h.defaultConfidence
	if req.ConfidenceLevel != nil {
		confidence = *req.ConfidenceLevel
	}

	report, err := h.svc.Run(r.Context(), req.CutoffDate, confidence)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.repo.Save(report); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist report")
	}

	h.writeJSON(w, http.StatusOK, report)
}

// handleLatest returns the most recently stored forecast run
func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest forecast")
		h.writeError(w, http.StatusInternalServerError, "failed to load latest forecast")
		return
	}
	if rows == nil {
		h.writeError(w, http.StatusNotFound, "no forecasts stored yet")
		return
	}

	h.writeJSON(w, http.StatusOK, rows)
}

// handleHistory returns stored forecast rows, newest first
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	rows, err := h.repo.History(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load forecast history")
		h.writeError(w, http.StatusInternalServerError, "failed to load forecast history")
		return
	}

	h.writeJSON(w, http.StatusOK, rows)
}

// writeServiceError maps the error taxonomy onto HTTP status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeseries.ErrInvalidInput),
		errors.Is(err, calendar.ErrUnknownMarket),
		errors.Is(err, calendar.ErrInvalidInterval):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoPriorDate),
		errors.Is(err, pipeline.ErrInsufficientFutureDates),
		errors.Is(err, ErrNoInferenceRow):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Forecast run failed")
		h.writeError(w, http.StatusInternalServerError, "forecast run failed")
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
