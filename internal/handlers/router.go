package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"energy-monitor/internal/metrics"
)

// RouterOptions параметры HTTP слоя
type RouterOptions struct {
	AllowedOrigins []string
	// IngestRateLimit запросов в секунду на POST /readings*, 0 - без ограничения
	IngestRateLimit float64
	IngestBurst     int
}

// NewRouter регистрирует маршруты API
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)

	var limiter *rate.Limiter
	if opts.IngestRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.IngestRateLimit), opts.IngestBurst)
	}

	r.Handle("/readings", limitRate(limiter, http.HandlerFunc(h.SubmitReading))).Methods(http.MethodPost)
	r.Handle("/readings/batch", limitRate(limiter, http.HandlerFunc(h.SubmitBatch))).Methods(http.MethodPost)
	r.HandleFunc("/readings/recent", h.GetRecentReadings).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{id}/last", h.GetLastReading).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{id}/stats", h.GetSensorStats).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{id}/readings", h.GetSensorReadings).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{id}/baseline", h.RecomputeBaseline).Methods(http.MethodPost)
	r.HandleFunc("/baselines", h.GetBaselines).Methods(http.MethodGet)
	r.HandleFunc("/anomalies", h.GetAnomalies).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	// Prometheus metrics endpoint
	r.Handle("/prometheus", promhttp.Handler()).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// limitRate отвечает 429, если токенов в limiter нет. nil limiter пропускает все.
func limitRate(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "ingestion rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument учитывает запросы по шаблону маршрута
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
