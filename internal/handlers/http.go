package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"energy-monitor/internal/analytics"
	"energy-monitor/internal/cache"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
	"energy-monitor/internal/storage"
)

const (
	defaultAnomalyLimit = 10
	maxLimit            = 1000
	defaultRecentHours  = 24.0
)

// ReadingStore хранилище показаний, используемое API
type ReadingStore interface {
	InsertReading(ctx context.Context, r models.Reading) (string, error)
	InsertReadings(ctx context.Context, readings []models.Reading) (int, error)
	Readings(ctx context.Context, sensorID string, limit int) ([]models.Reading, error)
	RecentReadings(ctx context.Context, since time.Time) ([]models.Reading, error)
	Statistics(ctx context.Context, sensorID string) (models.Stats, error)
	SensorIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// AnomalyCache кэш аномалий, например cache.RedisCache
type AnomalyCache interface {
	StoreReading(ctx context.Context, r models.Reading) error
	LastReading(ctx context.Context, sensorID string) (models.Reading, bool, error)
	ReadingsTotal(ctx context.Context, sensorID string) (int64, error)
	StoreAnomaly(ctx context.Context, a models.Anomaly) error
	StoreBaseline(ctx context.Context, b models.Baseline) error
	GetRecentAnomalies(ctx context.Context, sensorID string, limit int) ([]models.Anomaly, error)
	AnomalyCounts(ctx context.Context) (map[models.Severity]int64, error)
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
}

// Handler обработчик HTTP запросов
type Handler struct {
	analyzer     *analytics.Analyzer
	store        ReadingStore
	cache        AnomalyCache
	historyLimit int
	logger       *zap.Logger
}

// NewHandler создает новый обработчик. cache может быть nil.
func NewHandler(analyzer *analytics.Analyzer, store ReadingStore, cache AnomalyCache, historyLimit int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &Handler{
		analyzer:     analyzer,
		store:        store,
		cache:        cache,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// validateReading проверяет показание и проставляет время
func validateReading(r *models.Reading) string {
	if r.SensorID == "" {
		return "sensor_id is required"
	}
	if r.Consumption < 0 {
		return "consumption_kwh must be non-negative"
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return ""
}

// parseLimit читает ?limit=, def при отсутствии
func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

// SubmitReading обрабатывает POST /readings
func (h *Handler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateReading(&reading); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	id, err := h.store.InsertReading(r.Context(), reading)
	if err != nil {
		h.logger.Error("failed to store reading", zap.String("sensor_id", reading.SensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store reading")
		return
	}
	reading.ID = id

	// Кэш обновляется асинхронно, не блокируем ответ
	if h.cache != nil {
		go func(ctx context.Context, rd models.Reading) {
			if err := h.cache.StoreReading(ctx, rd); err != nil {
				h.logger.Warn("failed to cache reading", zap.String("sensor_id", rd.SensorID), zap.Error(err))
			}
		}(context.WithoutCancel(r.Context()), reading)
	}

	// Отправляем на анализ
	queued := h.analyzer.Submit(reading)
	if !queued {
		h.logger.Warn("analyzer queue full, reading not analyzed", zap.String("sensor_id", reading.SensorID))
	}

	metrics.ReadingsReceived.WithLabelValues("api").Inc()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "accepted",
		"id":        id,
		"sensor_id": reading.SensorID,
		"queued":    queued,
	})
}

// SubmitBatch обрабатывает POST /readings/batch: сохраняет пачку и синхронно классифицирует ее
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var batch []models.Reading
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	accepted := make([]models.Reading, 0, len(batch))
	for _, reading := range batch {
		if msg := validateReading(&reading); msg != "" {
			continue
		}
		accepted = append(accepted, reading)
	}

	if _, err := h.store.InsertReadings(r.Context(), accepted); err != nil {
		h.logger.Error("failed to store batch", zap.Int("count", len(accepted)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store readings")
		return
	}
	metrics.ReadingsReceived.WithLabelValues("api").Add(float64(len(accepted)))

	if h.cache != nil {
		for _, rd := range accepted {
			if err := h.cache.StoreReading(r.Context(), rd); err != nil {
				h.logger.Warn("failed to cache reading", zap.String("sensor_id", rd.SensorID), zap.Error(err))
				break
			}
		}
	}

	start := time.Now()
	anomalies := h.analyzer.Detector().ClassifyBatch(accepted)
	metrics.ClassificationLatency.Observe(time.Since(start).Seconds())

	for _, a := range anomalies {
		metrics.RecordAnomaly(string(a.Kind), string(a.Severity), a.SensorID)
		if h.cache == nil {
			continue
		}
		if err := h.cache.StoreAnomaly(r.Context(), a); err != nil {
			h.logger.Warn("failed to cache anomaly", zap.String("sensor_id", a.SensorID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "accepted",
		"total":     len(batch),
		"accepted":  len(accepted),
		"anomalies": anomalies,
	})
}

// GetSensorStats обрабатывает GET /sensors/{id}/stats
func (h *Handler) GetSensorStats(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	stats, err := h.store.Statistics(r.Context(), sensorID)
	if errors.Is(err, storage.ErrNoReadings) {
		writeError(w, http.StatusNotFound, "no readings for sensor "+sensorID)
		return
	}
	if err != nil {
		h.logger.Error("failed to load statistics", zap.String("sensor_id", sensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetSensorReadings обрабатывает GET /sensors/{id}/readings?limit=
func (h *Handler) GetSensorReadings(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	limit, ok := parseLimit(r, h.historyLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	readings, err := h.store.Readings(r.Context(), sensorID, limit)
	if err != nil {
		h.logger.Error("failed to load readings", zap.String("sensor_id", sensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor_id": sensorID,
		"count":     len(readings),
		"readings":  readings,
	})
}

// GetRecentReadings обрабатывает GET /readings/recent?hours=
func (h *Handler) GetRecentReadings(w http.ResponseWriter, r *http.Request) {
	hours := defaultRecentHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || math.IsInf(v, 0) {
			writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hours = v
	}

	since := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	readings, err := h.store.RecentReadings(r.Context(), since)
	if err != nil {
		h.logger.Error("failed to load recent readings", zap.Float64("hours", hours), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hours":    hours,
		"since":    since,
		"count":    len(readings),
		"readings": readings,
	})
}

// GetLastReading обрабатывает GET /sensors/{id}/last.
// Сначала читает кэш, при промахе берет последнее показание из хранилища.
func (h *Handler) GetLastReading(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	if h.cache != nil {
		reading, ok, err := h.cache.LastReading(r.Context(), sensorID)
		if err != nil {
			h.logger.Warn("failed to read cached reading", zap.String("sensor_id", sensorID), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"source": "cache", "reading": reading})
			return
		}
	}

	readings, err := h.store.Readings(r.Context(), sensorID, 1)
	if err != nil {
		h.logger.Error("failed to load last reading", zap.String("sensor_id", sensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}
	if len(readings) == 0 {
		writeError(w, http.StatusNotFound, "no readings for sensor "+sensorID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"source": "store", "reading": readings[0]})
}

// RecomputeBaseline обрабатывает POST /sensors/{id}/baseline
func (h *Handler) RecomputeBaseline(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	readings, err := h.store.Readings(r.Context(), sensorID, h.historyLimit)
	if err != nil {
		h.logger.Error("failed to load history", zap.String("sensor_id", sensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}

	detector := h.analyzer.Detector()
	if !detector.ComputeBaseline(readings, sensorID) {
		writeError(w, http.StatusUnprocessableEntity, "not enough readings to compute a baseline")
		return
	}

	baseline, _ := detector.Baseline(sensorID)
	metrics.SetBaseline(baseline.SensorID, baseline.Mean, baseline.ThresholdLow, baseline.ThresholdHigh)
	h.logger.Info("baseline recomputed",
		zap.String("sensor_id", sensorID),
		zap.Int("samples", baseline.Samples),
		zap.Float64("mean", baseline.Mean))

	if h.cache != nil {
		if err := h.cache.StoreBaseline(r.Context(), baseline); err != nil {
			h.logger.Warn("failed to cache baseline", zap.String("sensor_id", sensorID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, baseline)
}

// GetBaselines обрабатывает GET /baselines
func (h *Handler) GetBaselines(w http.ResponseWriter, r *http.Request) {
	baselines := h.analyzer.Detector().Baselines()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(baselines),
		"baselines": baselines,
	})
}

// GetAnomalies обрабатывает GET /anomalies?sensor_id=&limit=
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, cache.ErrDisabled.Error())
		return
	}

	limit, ok := parseLimit(r, defaultAnomalyLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	sensorID := r.URL.Query().Get("sensor_id")

	// Получаем последние аномалии из кэша
	anomalies, err := h.cache.GetRecentAnomalies(r.Context(), sensorID, limit)
	if errors.Is(err, cache.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load anomalies", zap.String("sensor_id", sensorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve anomalies")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor_id":     sensorID,
		"anomaly_count": len(anomalies),
		"anomalies":     anomalies,
	})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbOK := h.store.Ping(r.Context()) == nil

	body := map[string]interface{}{
		"database":  dbOK,
		"timestamp": time.Now(),
	}

	healthy := dbOK
	if h.cache != nil {
		redisOK := h.cache.Ping(r.Context()) == nil
		body["redis"] = redisOK
		healthy = healthy && redisOK
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	body["status"] = status

	writeJSON(w, httpStatus, body)
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	redisStats := map[string]interface{}{"enabled": false}
	if h.cache != nil {
		redisStats = h.cache.GetStats()
		if totals, err := h.cachedReadingTotals(r.Context()); err != nil {
			h.logger.Warn("failed to read cached counters", zap.Error(err))
		} else {
			redisStats["readings_total"] = totals
		}
		if counts, err := h.cache.AnomalyCounts(r.Context()); err != nil {
			h.logger.Warn("failed to read anomaly counters", zap.Error(err))
		} else {
			redisStats["anomalies_total"] = counts
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyzer":  h.analyzer.GetStats(),
		"redis":     redisStats,
		"timestamp": time.Now(),
	})
}

// readingTotals счетчики закэшированных показаний
type readingTotals struct {
	All      int64            `json:"all"`
	BySensor map[string]int64 `json:"by_sensor"`
}

func (h *Handler) cachedReadingTotals(ctx context.Context) (readingTotals, error) {
	all, err := h.cache.ReadingsTotal(ctx, "")
	if err != nil {
		return readingTotals{}, err
	}
	ids, err := h.store.SensorIDs(ctx)
	if err != nil {
		return readingTotals{}, err
	}

	totals := readingTotals{All: all, BySensor: make(map[string]int64, len(ids))}
	for _, id := range ids {
		n, err := h.cache.ReadingsTotal(ctx, id)
		if err != nil {
			return readingTotals{}, err
		}
		totals.BySensor[id] = n
	}
	return totals, nil
}
