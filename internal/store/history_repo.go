// Package store provides the PostgreSQL-backed sensor-history reader. The
// import pipeline that populates the sensor_readings table is an external
// collaborator; this engine only reads from it on reload.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"irricast/internal/config"
	"irricast/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// repository works both inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates and pings a connection pool from the database config.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "parsing database url", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "creating database pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "pinging database", err)
	}
	return pool, nil
}

// SensorHistoryRepo reads sensor readings for a field.
type SensorHistoryRepo struct {
	db DBTX
}

// NewSensorHistoryRepo creates a SensorHistoryRepo backed by the given
// connection (pool or transaction).
func NewSensorHistoryRepo(db DBTX) *SensorHistoryRepo {
	return &SensorHistoryRepo{db: db}
}

// ListByField returns all readings for a field recorded at or after since,
// ordered by timestamp ascending.
func (r *SensorHistoryRepo) ListByField(ctx context.Context, fieldID string, since time.Time) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, recorded_at, crop, stage, soil_moisture, ph, temperature_c,
		        nitrogen, phosphorus, potassium, rain_probability, rainfall_mm,
		        irrigated, relay_on
		 FROM sensor_readings
		 WHERE field_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at ASC`,
		fieldID,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying sensor history", err)
	}
	defer rows.Close()

	var readings []types.SensorReading
	for rows.Next() {
		var sr types.SensorReading
		if err := rows.Scan(
			&sr.ID, &sr.Timestamp, &sr.Crop, &sr.Stage,
			&sr.SoilMoisture, &sr.PH, &sr.TemperatureC,
			&sr.Nitrogen, &sr.Phosphorus, &sr.Potassium,
			&sr.RainProbability, &sr.RainfallMM,
			&sr.Irrigated, &sr.RelayOn,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning sensor reading", err)
		}
		readings = append(readings, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating sensor history", err)
	}
	return readings, nil
}
