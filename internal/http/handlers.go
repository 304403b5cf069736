package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/agroclima-service/internal/lifecycle"
	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/observability"
	"github.com/kjstillabower/agroclima-service/internal/service"
	"github.com/kjstillabower/agroclima-service/internal/store"
	"github.com/kjstillabower/agroclima-service/internal/traffic"
	"github.com/kjstillabower/agroclima-service/internal/validation"
)

// User-facing messages. Clients only ever see these; causes stay in the logs.
const (
	msgMissingFields    = "Latitude, longitude e ID da semente são obrigatórios."
	msgOutOfRange       = "Latitude deve estar entre -90 e 90 e longitude entre -180 e 180."
	msgInvalidRequest   = "Requisição inválida."
	msgInvalidID        = "ID inválido."
	msgCropNotFound     = "Semente não encontrada."
	msgCultureNotFound  = "Cultura não encontrada."
	msgInternal         = "Erro interno do servidor"
	msgPredictionFailed = "Erro interno do servidor ao processar a análise."
	msgCropInfoFailed   = "Erro interno do servidor ao gerar análise da cultura."
	msgTooManyRequests  = "Muitas requisições. Tente novamente em instantes."
)

const (
	healthPingTimeout     = 2 * time.Second
	defaultDegradedWindow = time.Minute
)

// HealthConfig holds the thresholds and probes used by the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// StorePing, when set, is called on every health check.
	StorePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	catalog          *service.CatalogService
	predictions      *service.PredictionService
	tracker          *traffic.Tracker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	phase            func() lifecycle.Phase
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker gets a real-clock tracker.
func NewHandler(
	catalog *service.CatalogService,
	predictions *service.PredictionService,
	tracker *traffic.Tracker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog:      catalog,
		predictions:  predictions,
		tracker:      tracker,
		healthConfig: healthConfig,
		logger:       logger,
		phase:        lifecycle.Current,
	}
}

// ListStates handles GET /api/estados.
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.catalog.ListStates(r.Context())
	if err != nil {
		h.writeInternalError(w, r, msgInternal, "list states", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, states)
}

// ListMunicipalities handles GET /api/municipios/{estadoId}.
func (h *Handler) ListMunicipalities(w http.ResponseWriter, r *http.Request) {
	stateID, err := validation.ParseID(mux.Vars(r)["estadoId"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", msgInvalidID)
		return
	}
	municipalities, err := h.catalog.ListMunicipalities(r.Context(), stateID)
	if err != nil {
		h.writeInternalError(w, r, msgInternal, "list municipalities", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, municipalities)
}

// ListCrops handles GET /api/sementes.
func (h *Handler) ListCrops(w http.ResponseWriter, r *http.Request) {
	crops, err := h.catalog.ListCrops(r.Context())
	if err != nil {
		h.writeInternalError(w, r, msgInternal, "list crops", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, crops)
}

// GetCrop handles GET /api/semente/{id}.
func (h *Handler) GetCrop(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", msgInvalidID)
		return
	}
	crop, err := h.catalog.GetCrop(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.tracker.RecordSuccess()
			writeError(w, r, http.StatusNotFound, "CROP_NOT_FOUND", msgCropNotFound)
			return
		}
		h.writeInternalError(w, r, msgInternal, "get crop", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, crop)
}

// GetPrices handles GET /api/cotacoes/{id}.
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", msgInvalidID)
		return
	}
	series, err := h.catalog.PriceHistory(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.tracker.RecordSuccess()
			writeError(w, r, http.StatusNotFound, "CROP_NOT_FOUND", msgCropNotFound)
			return
		}
		h.writeInternalError(w, r, msgInternal, "price history", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, series)
}

// GetCropInfo handles GET /api/cultura-info/{id}.
func (h *Handler) GetCropInfo(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", msgInvalidID)
		return
	}
	info, err := h.predictions.CropInfo(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.tracker.RecordSuccess()
			writeError(w, r, http.StatusNotFound, "CROP_NOT_FOUND", msgCultureNotFound)
			return
		}
		h.writeInternalError(w, r, msgCropInfoFailed, "crop info", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, info)
}

// PostPrediction handles POST /api/predicao. The body is validated before any
// store or upstream call.
func (h *Handler) PostPrediction(w http.ResponseWriter, r *http.Request) {
	req, err := validation.ParsePredictionRequest(r.Body)
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("bad_request").Inc()
		logFromRequest(r, h.logger).Debug("prediction rejected", zap.Error(err))
		switch {
		case errors.Is(err, validation.ErrMissingFields):
			writeError(w, r, http.StatusBadRequest, "MISSING_FIELDS", msgMissingFields)
		case errors.Is(err, validation.ErrCoordinatesOutOfRange):
			writeError(w, r, http.StatusBadRequest, "COORDINATES_OUT_OF_RANGE", msgOutOfRange)
		default:
			writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", msgInvalidRequest)
		}
		return
	}

	result, err := h.predictions.Predict(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.tracker.RecordSuccess()
			writeError(w, r, http.StatusNotFound, "CROP_NOT_FOUND", msgCropNotFound)
			return
		}
		h.writeInternalError(w, r, msgPredictionFailed, "prediction", err)
		return
	}
	h.tracker.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	storeOK    bool
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstreams": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["upstreams"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if result.storeOK {
			checks["store"] = "healthy"
		} else {
			checks["store"] = "unhealthy"
		}
	}
	window := h.degradedWindow()
	errs, total := h.tracker.ErrorRate(window)
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":  result.status,
		"service": observability.ServiceName,
		"version": "dev",
		"phase":   h.phase().String(),
		"checks":  checks,
		"traffic": map[string]interface{}{
			"window":   window.String(),
			"requests": h.tracker.RequestCount(window),
			"errors":   errs,
			"served":   total,
			"denied":   h.tracker.DenialCount(window),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > store unreachable > error rate breach > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	switch h.phase() {
	case lifecycle.PhaseDraining:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", true}
	case lifecycle.PhaseStarting:
		return healthResult{"starting", http.StatusServiceUnavailable, "startup", true}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", true}
	}
	if h.healthConfig.StorePing != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err := h.healthConfig.StorePing(pingCtx)
		cancel()
		if err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable", false}
		}
	}
	if h.healthConfig.DegradedErrorPct > 0 && h.tracker.Degraded(h.degradedWindow(), h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", true}
	}
	return healthResult{"healthy", http.StatusOK, "", true}
}

func (h *Handler) degradedWindow() time.Duration {
	if h.healthConfig == nil || h.healthConfig.DegradedWindow <= 0 {
		return defaultDegradedWindow
	}
	return h.healthConfig.DegradedWindow
}

// writeInternalError records the failure, logs the cause and answers 500 with msg.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	h.tracker.RecordError()
	route := r.URL.Path
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, tplErr := cur.GetPathTemplate(); tplErr == nil {
			route = tpl
		}
	}
	logFromRequest(r, h.logger).Error(op+" failed",
		zap.String("route", route),
		zap.Int("status", http.StatusInternalServerError),
		zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error", "code", "requestId"}. requestId is the
// correlation ID from the request context, or empty.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: correlationID(r),
	})
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func logFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}
