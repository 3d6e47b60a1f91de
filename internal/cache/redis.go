package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

// ErrDisabled кэш не настроен. Возвращается методами nil *RedisCache.
var ErrDisabled = errors.New("redis cache is disabled")

const (
	allAnomaliesKey = "anomaly_list"
	readingsCounter = "readings_total"
)

// RedisCache обертка для Redis клиента
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache создает новый Redis кэш. ttl - время жизни показаний, аномалии живут в 24 раза дольше.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func anomalyListKey(sensorID string) string {
	return fmt.Sprintf("anomaly_list:%s", sensorID)
}

func anomalyCounterKey(severity models.Severity) string {
	return fmt.Sprintf("anomalies_total:%s", severity)
}

func baselineKey(sensorID string) string {
	return fmt.Sprintf("baseline:%s", sensorID)
}

// StoreReading сохраняет последнее показание и увеличивает счетчики
func (r *RedisCache) StoreReading(ctx context.Context, reading models.Reading) (err error) {
	if r == nil {
		return ErrDisabled
	}
	defer func() { metrics.ObserveRedis("store_reading", err) }()

	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := fmt.Sprintf("reading:%s:%d", reading.SensorID, reading.Timestamp.UnixNano())

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, r.ttl)
	pipe.Set(ctx, fmt.Sprintf("reading_last:%s", reading.SensorID), data, r.ttl)
	pipe.Incr(ctx, readingsCounter)
	pipe.Incr(ctx, fmt.Sprintf("%s:%s", readingsCounter, reading.SensorID))

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}
	return nil
}

// LastReading последнее закэшированное показание датчика
func (r *RedisCache) LastReading(ctx context.Context, sensorID string) (reading models.Reading, ok bool, err error) {
	if r == nil {
		return models.Reading{}, false, ErrDisabled
	}
	defer func() { metrics.ObserveRedis("last_reading", err) }()

	data, err := r.client.Get(ctx, fmt.Sprintf("reading_last:%s", sensorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Reading{}, false, nil
	}
	if err != nil {
		return models.Reading{}, false, fmt.Errorf("failed to get reading: %w", err)
	}
	if err = json.Unmarshal(data, &reading); err != nil {
		return models.Reading{}, false, fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	return reading, true, nil
}

// StoreAnomaly сохраняет аномалию (с более длительным TTL)
func (r *RedisCache) StoreAnomaly(ctx context.Context, anomaly models.Anomaly) (err error) {
	if r == nil {
		return ErrDisabled
	}
	defer func() { metrics.ObserveRedis("store_anomaly", err) }()

	data, err := json.Marshal(anomaly)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}

	// суффикс различает аномалии датчика с одинаковым временем
	key := fmt.Sprintf("anomaly:%s:%d:%s", anomaly.SensorID, anomaly.Timestamp.UnixNano(), uuid.NewString())

	// Аномалии хранятся дольше
	anomalyTTL := r.ttl * 24

	// sorted set по времени для выборки последних
	z := redis.Z{Score: float64(anomaly.Timestamp.UnixMilli()), Member: key}
	listKey := anomalyListKey(anomaly.SensorID)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, anomalyTTL)
	pipe.ZAdd(ctx, listKey, z)
	pipe.Expire(ctx, listKey, anomalyTTL)
	pipe.ZAdd(ctx, allAnomaliesKey, z)
	pipe.Expire(ctx, allAnomaliesKey, anomalyTTL)
	pipe.Incr(ctx, anomalyCounterKey(anomaly.Severity))

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store anomaly: %w", err)
	}
	return nil
}

// GetRecentAnomalies получает последние аномалии, новые первыми. Пустой sensorID - по всем датчикам.
func (r *RedisCache) GetRecentAnomalies(ctx context.Context, sensorID string, limit int) (anomalies []models.Anomaly, err error) {
	if r == nil {
		return nil, ErrDisabled
	}
	defer func() { metrics.ObserveRedis("recent_anomalies", err) }()

	if limit <= 0 {
		return []models.Anomaly{}, nil
	}

	listKey := allAnomaliesKey
	if sensorID != "" {
		listKey = anomalyListKey(sensorID)
	}

	keys, err := r.client.ZRevRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	anomalies = make([]models.Anomaly, 0, len(keys))
	if len(keys) == 0 {
		return anomalies, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load anomalies: %w", err)
	}

	for _, v := range values {
		// ключ мог истечь раньше списка
		s, ok := v.(string)
		if !ok {
			continue
		}
		var a models.Anomaly
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anomaly: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, nil
}

// StoreBaseline зеркалирует базовую линию для внешних потребителей
func (r *RedisCache) StoreBaseline(ctx context.Context, baseline models.Baseline) (err error) {
	if r == nil {
		return ErrDisabled
	}
	defer func() { metrics.ObserveRedis("store_baseline", err) }()

	data, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err = r.client.Set(ctx, baselineKey(baseline.SensorID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store baseline: %w", err)
	}
	return nil
}

// GetBaseline читает зеркало базовой линии
func (r *RedisCache) GetBaseline(ctx context.Context, sensorID string) (baseline models.Baseline, ok bool, err error) {
	if r == nil {
		return models.Baseline{}, false, ErrDisabled
	}
	defer func() { metrics.ObserveRedis("get_baseline", err) }()

	data, err := r.client.Get(ctx, baselineKey(sensorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Baseline{}, false, nil
	}
	if err != nil {
		return models.Baseline{}, false, fmt.Errorf("failed to get baseline: %w", err)
	}
	if err = json.Unmarshal(data, &baseline); err != nil {
		return models.Baseline{}, false, fmt.Errorf("failed to unmarshal baseline: %w", err)
	}
	return baseline, true, nil
}

// counter читает счетчик, отсутствующий ключ - ноль
func (r *RedisCache) counter(ctx context.Context, key string) (n int64, err error) {
	if r == nil {
		return 0, ErrDisabled
	}
	defer func() { metrics.ObserveRedis("get_counter", err) }()

	n, err = r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter %s: %w", key, err)
	}
	return n, nil
}

// ReadingsTotal число закэшированных показаний. Пустой sensorID - по всем датчикам.
func (r *RedisCache) ReadingsTotal(ctx context.Context, sensorID string) (int64, error) {
	if sensorID == "" {
		return r.counter(ctx, readingsCounter)
	}
	return r.counter(ctx, fmt.Sprintf("%s:%s", readingsCounter, sensorID))
}

// AnomalyCounts число сохраненных аномалий по уровням серьезности
func (r *RedisCache) AnomalyCounts(ctx context.Context) (map[models.Severity]int64, error) {
	severities := []models.Severity{
		models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical,
	}
	counts := make(map[models.Severity]int64, len(severities))
	for _, s := range severities {
		n, err := r.counter(ctx, anomalyCounterKey(s))
		if err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	if r == nil {
		return ErrDisabled
	}
	return r.client.Ping(ctx).Err()
}

// GetStats возвращает статистику пула соединений
func (r *RedisCache) GetStats() map[string]interface{} {
	if r == nil {
		return map[string]interface{}{"enabled": false}
	}
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"enabled":     true,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
