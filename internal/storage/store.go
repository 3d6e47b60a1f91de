// Package storage хранит показания датчиков в SQL базе (SQLite или PostgreSQL).
package storage

import (
	"context"
	"errors"
	"time"

	"energy-monitor/internal/models"
)

// ErrNoReadings у датчика нет сохраненных показаний
var ErrNoReadings = errors.New("no readings for sensor")

// Store хранилище показаний
type Store interface {
	InsertReading(ctx context.Context, r models.Reading) (string, error)
	InsertReadings(ctx context.Context, readings []models.Reading) (int, error)
	Readings(ctx context.Context, sensorID string, limit int) ([]models.Reading, error)
	RecentReadings(ctx context.Context, since time.Time) ([]models.Reading, error)
	Statistics(ctx context.Context, sensorID string) (models.Stats, error)
	SensorIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
