package api

import (
	"net/http"
	"time"

	"github.com/vesselwatch/vesselwatch/app/database"
	"github.com/vesselwatch/vesselwatch/app/ingest"
	"github.com/vesselwatch/vesselwatch/app/stream"
)

// Pipeline is the ingestion pipeline as seen by the HTTP surface: health
// counters and the subscriber's lifecycle state, read-only.
type Pipeline interface {
	Stats() *ingest.Stats
	SubscriberState() stream.State
}

type Handler struct {
	positionRepo   database.PositionRepository
	pipeline       Pipeline
	metricsHandler http.Handler
}

// VesselResponse is the JSON shape served to the dashboard.
type VesselResponse struct {
	MMSI      int64     `json:"mmsi"`
	ShipName  string    `json:"ship_name,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Sog       *float64  `json:"sog,omitempty"`
	Cog       *float64  `json:"cog,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	NavStatus *int64    `json:"nav_status,omitempty"`
	Time      time.Time `json:"time"`
}
