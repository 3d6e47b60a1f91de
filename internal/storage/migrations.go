package storage

// Схема совместима с SQLite и PostgreSQL. Время хранится в наносекундах Unix.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS energy_readings (
    id              TEXT PRIMARY KEY,
    sensor_id       TEXT NOT NULL,
    location        TEXT NOT NULL DEFAULT '',
    consumption_kwh DOUBLE PRECISION NOT NULL,
    recorded_at     BIGINT NOT NULL,
    status          TEXT NOT NULL DEFAULT ''
)`,
	},
	{
		version: 2,
		sql:     `CREATE INDEX IF NOT EXISTS idx_energy_readings_sensor_time ON energy_readings (sensor_id, recorded_at)`,
	},
	{
		version: 3,
		sql:     `CREATE INDEX IF NOT EXISTS idx_energy_readings_time ON energy_readings (recorded_at)`,
	},
}
