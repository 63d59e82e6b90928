package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vesselwatch/vesselwatch/app/ais"
)

var _ PositionRepository = (*PositionRepo)(nil)

// PositionRepo persists normalized position records. UpsertPosition is
// safe for concurrent callers; transient failures are retried internally
// with bounded exponential backoff before surfacing as permanent.
type PositionRepo struct {
	db *DB

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	// OnTransient, when set, is invoked once per transient failure that
	// will be retried. Used by the coordinator for its failure counters.
	OnTransient func(err error)
}

func NewPositionRepository(db *DB) *PositionRepo {
	return &PositionRepo{
		db:          db,
		maxAttempts: 5,
		baseDelay:   200 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// UpsertPosition inserts a position record, replacing an existing row for
// the same (mmsi, reported_at) pair. Retried on transient errors up to the
// attempt budget; permanent errors surface immediately.
func (r *PositionRepo) UpsertPosition(ctx context.Context, pos *ais.Position) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.insertPosition(ctx, pos)
		if err == nil {
			return nil
		}

		if !isTransient(err) {
			return &PermanentError{Err: err}
		}

		lastErr = err
		if r.OnTransient != nil {
			r.OnTransient(err)
		}

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}

	return &PermanentError{Err: fmt.Errorf("retry budget exhausted after %d attempts: %w", r.maxAttempts, lastErr)}
}

func (r *PositionRepo) insertPosition(ctx context.Context, pos *ais.Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions (
			mmsi, ship_name, lat, lon, sog, cog, heading, nav_status,
			reported_at, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (mmsi, reported_at) DO UPDATE SET
			ship_name = EXCLUDED.ship_name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			sog = EXCLUDED.sog,
			cog = EXCLUDED.cog,
			heading = EXCLUDED.heading,
			nav_status = EXCLUDED.nav_status,
			raw = EXCLUDED.raw
	`, pos.MMSI, nullString(pos.ShipName), pos.Lat, pos.Lon,
		pos.Sog, pos.Cog, pos.Heading, pos.NavStatus,
		pos.Time, []byte(pos.Raw))

	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	return nil
}

// GetLatestPositions returns the most recent position per vessel, newest
// report first.
func (r *PositionRepo) GetLatestPositions(ctx context.Context, limit int) ([]ais.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (mmsi)
		       id, mmsi, COALESCE(ship_name, ''), lat, lon,
		       sog, cog, heading, nav_status, reported_at, raw, created_at
		FROM positions
		ORDER BY mmsi, reported_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetVesselTrack returns a vessel's reports since the given time, newest
// first.
func (r *PositionRepo) GetVesselTrack(ctx context.Context, mmsi int64, since time.Time, limit int) ([]ais.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mmsi, COALESCE(ship_name, ''), lat, lon,
		       sog, cog, heading, nav_status, reported_at, raw, created_at
		FROM positions
		WHERE mmsi = $1
		  AND reported_at >= $2
		ORDER BY reported_at DESC
		LIMIT $3
	`, mmsi, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get vessel track: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetPositionCount returns the total number of stored position records.
func (r *PositionRepo) GetPositionCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM positions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get position count: %w", err)
	}
	return count, nil
}

// GetVesselCount returns the number of distinct vessels seen.
func (r *PositionRepo) GetVesselCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT mmsi) FROM positions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get vessel count: %w", err)
	}
	return count, nil
}

func scanPositions(rows *sql.Rows) ([]ais.Position, error) {
	var positions []ais.Position
	for rows.Next() {
		var pos ais.Position
		var sog, cog, heading sql.NullFloat64
		var navStatus sql.NullInt64
		var raw []byte

		err := rows.Scan(
			&pos.ID, &pos.MMSI, &pos.ShipName, &pos.Lat, &pos.Lon,
			&sog, &cog, &heading, &navStatus, &pos.Time, &raw, &pos.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}

		if sog.Valid {
			pos.Sog = &sog.Float64
		}
		if cog.Valid {
			pos.Cog = &cog.Float64
		}
		if heading.Valid {
			pos.Heading = &heading.Float64
		}
		if navStatus.Valid {
			pos.NavStatus = &navStatus.Int64
		}
		pos.Raw = raw

		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}

	return positions, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
