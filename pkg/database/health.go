package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus reports database connectivity and connection pool pressure
// for the operational health endpoint.
type HealthStatus struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	OpenConns      int     `json:"open_connections"`
	InUse          int     `json:"in_use"`
	Idle           int     `json:"idle"`
	WaitCount      int64   `json:"wait_count"`
	MaxOpenConns   int     `json:"max_open_conns"`
	CheckedAt      string  `json:"checked_at"`
}

// Health pings the database and returns pool statistics. The error is
// returned alongside a partial status so callers can serve both.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	checkedAt := start.UTC().Format(time.RFC3339)

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:         "unhealthy",
			ResponseTimeMS: float64(time.Since(start).Microseconds()) / 1000,
			CheckedAt:      checkedAt,
		}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:         "healthy",
		ResponseTimeMS: float64(time.Since(start).Microseconds()) / 1000,
		OpenConns:      stats.OpenConnections,
		InUse:          stats.InUse,
		Idle:           stats.Idle,
		WaitCount:      stats.WaitCount,
		MaxOpenConns:   stats.MaxOpenConnections,
		CheckedAt:      checkedAt,
	}, nil
}
