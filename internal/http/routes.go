package http

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/agroclima-service/internal/observability"
)

// RouterConfig holds the per-route options applied by NewRouter.
type RouterConfig struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
	StaticDir      string // served at / when set
}

// NewRouter registers the API, health and metrics routes. Rate limiting and the
// request timeout apply to /api only.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter, h.tracker))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/estados", h.ListStates).Methods(http.MethodGet)
	api.HandleFunc("/municipios/{estadoId}", h.ListMunicipalities).Methods(http.MethodGet)
	api.HandleFunc("/sementes", h.ListCrops).Methods(http.MethodGet)
	api.HandleFunc("/semente/{id}", h.GetCrop).Methods(http.MethodGet)
	api.HandleFunc("/cultura-info/{id}", h.GetCropInfo).Methods(http.MethodGet)
	api.HandleFunc("/cotacoes/{id}", h.GetPrices).Methods(http.MethodGet)
	api.HandleFunc("/predicao", h.PostPrediction).Methods(http.MethodPost)

	if cfg.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet)
	}
	return router
}

// WithCORS wraps next with an open CORS policy for the browser client and a
// panic recovery handler that logs through logger.
func WithCORS(next http.Handler, origins []string, logger *zap.Logger) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(next))
}
