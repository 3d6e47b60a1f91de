package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc регистрирует драйвер как "sqlite", sqlx знает только "sqlite3"
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore хранилище показаний поверх sqlx
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// readingRow строка таблицы energy_readings
type readingRow struct {
	models.Reading
	RecordedAt int64 `db:"recorded_at"`
}

func (r readingRow) toReading() models.Reading {
	reading := r.Reading
	reading.Timestamp = time.Unix(0, r.RecordedAt).UTC()
	return reading
}

// Open подключается к базе и применяет миграции.
// Для SQLite dsn - путь к файлу или ":memory:", для PostgreSQL - строка подключения.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// одно соединение: ":memory:" живет в пределах соединения, запись в SQLite однопоточная
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Driver имя используемого драйвера
func (s *SQLStore) Driver() string {
	return s.driver
}

// migrate применяет недостающие миграции по порядку
func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at BIGINT NOT NULL
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`), m.version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)`),
			m.version, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

const insertReadingSQL = `
	INSERT INTO energy_readings (id, sensor_id, location, consumption_kwh, recorded_at, status)
	VALUES (?, ?, ?, ?, ?, ?)
`

const selectReadingSQL = `SELECT id, sensor_id, location, consumption_kwh, recorded_at, status FROM energy_readings`

func prepareRow(r models.Reading) readingRow {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return readingRow{Reading: r, RecordedAt: r.Timestamp.UnixNano()}
}

// InsertReading сохраняет показание и возвращает его идентификатор
func (s *SQLStore) InsertReading(ctx context.Context, r models.Reading) (id string, err error) {
	defer func(start time.Time) { metrics.ObserveStore("insert_reading", start, err) }(time.Now())

	row := prepareRow(r)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(insertReadingSQL),
		row.ID, row.SensorID, row.Location, row.Consumption, row.RecordedAt, row.Status)
	if err != nil {
		return "", fmt.Errorf("insert reading for %s: %w", r.SensorID, err)
	}
	return row.ID, nil
}

// InsertReadings сохраняет пачку показаний в одной транзакции
func (s *SQLStore) InsertReadings(ctx context.Context, readings []models.Reading) (n int, err error) {
	if len(readings) == 0 {
		return 0, nil
	}
	defer func(start time.Time) { metrics.ObserveStore("insert_readings", start, err) }(time.Now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertReadingSQL))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		row := prepareRow(r)
		if _, err = stmt.ExecContext(ctx, row.ID, row.SensorID, row.Location, row.Consumption, row.RecordedAt, row.Status); err != nil {
			return 0, fmt.Errorf("insert reading for %s: %w", r.SensorID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(readings), nil
}

// Readings возвращает последние показания датчика, новые первыми.
// Пустой sensorID - все датчики, limit <= 0 - без ограничения.
func (s *SQLStore) Readings(ctx context.Context, sensorID string, limit int) (readings []models.Reading, err error) {
	defer func(start time.Time) { metrics.ObserveStore("readings", start, err) }(time.Now())

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectReadingSQL)
	if sensorID != "" {
		query.WriteString(` WHERE sensor_id = ?`)
		args = append(args, sensorID)
	}
	query.WriteString(` ORDER BY recorded_at DESC, id DESC`)
	if limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	return s.selectReadings(ctx, query.String(), args...)
}

// RecentReadings возвращает показания всех датчиков не старше since, новые первыми
func (s *SQLStore) RecentReadings(ctx context.Context, since time.Time) (readings []models.Reading, err error) {
	defer func(start time.Time) { metrics.ObserveStore("recent_readings", start, err) }(time.Now())

	return s.selectReadings(ctx, selectReadingSQL+` WHERE recorded_at >= ? ORDER BY recorded_at DESC, id DESC`, since.UnixNano())
}

func (s *SQLStore) selectReadings(ctx context.Context, query string, args ...any) ([]models.Reading, error) {
	var rows []readingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}

	readings := make([]models.Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, row.toReading())
	}
	return readings, nil
}

// Statistics агрегирует count/avg/min/max по датчику
func (s *SQLStore) Statistics(ctx context.Context, sensorID string) (stats models.Stats, err error) {
	defer func(start time.Time) {
		if errors.Is(err, ErrNoReadings) {
			metrics.ObserveStore("statistics", start, nil)
			return
		}
		metrics.ObserveStore("statistics", start, err)
	}(time.Now())

	var agg struct {
		N   int64           `db:"n"`
		Avg sql.NullFloat64 `db:"avg_consumption"`
		Min sql.NullFloat64 `db:"min_consumption"`
		Max sql.NullFloat64 `db:"max_consumption"`
	}
	query := s.db.Rebind(`
		SELECT COUNT(*) AS n,
		       AVG(consumption_kwh) AS avg_consumption,
		       MIN(consumption_kwh) AS min_consumption,
		       MAX(consumption_kwh) AS max_consumption
		FROM energy_readings
		WHERE sensor_id = ?
	`)
	if err := s.db.GetContext(ctx, &agg, query, sensorID); err != nil {
		return models.Stats{}, fmt.Errorf("statistics for %s: %w", sensorID, err)
	}
	if agg.N == 0 {
		return models.Stats{}, fmt.Errorf("%w: %s", ErrNoReadings, sensorID)
	}

	return models.Stats{
		SensorID: sensorID,
		Count:    agg.N,
		Avg:      agg.Avg.Float64,
		Min:      agg.Min.Float64,
		Max:      agg.Max.Float64,
	}, nil
}

// SensorIDs идентификаторы датчиков с сохраненными показаниями
func (s *SQLStore) SensorIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { metrics.ObserveStore("sensor_ids", start, err) }(time.Now())

	if err := s.db.SelectContext(ctx, &ids, `SELECT DISTINCT sensor_id FROM energy_readings ORDER BY sensor_id`); err != nil {
		return nil, fmt.Errorf("select sensor ids: %w", err)
	}
	return ids, nil
}

// Clear удаляет все показания
func (s *SQLStore) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("clear", start, err) }(time.Now())

	if _, err := s.db.ExecContext(ctx, `DELETE FROM energy_readings`); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }
