package database

import (
	"context"
	"time"

	"github.com/vesselwatch/vesselwatch/app/ais"
)

type PositionRepository interface {
	UpsertPosition(ctx context.Context, pos *ais.Position) error

	GetLatestPositions(ctx context.Context, limit int) ([]ais.Position, error)
	GetVesselTrack(ctx context.Context, mmsi int64, since time.Time, limit int) ([]ais.Position, error)
	GetPositionCount(ctx context.Context) (int, error)
	GetVesselCount(ctx context.Context) (int, error)
}
