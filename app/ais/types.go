package ais

import (
	"time"

	"github.com/goccy/go-json"
)

// MessageKind identifies the report kind carried by a raw feed frame.
type MessageKind string

const (
	KindPositionReport MessageKind = "PositionReport"
	KindUnsupported    MessageKind = "Unsupported"
)

// Metadata is the station/vessel identity block attached to every frame.
// Field names follow the aisstream.io wire format, which mixes casing.
type Metadata struct {
	MMSI      int64   `json:"MMSI"`
	ShipName  string  `json:"ShipName"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeUTC   string  `json:"time_utc"`
}

// PositionReport is the only message kind handled by the ingestion core.
// Optional fields are pointers so absence survives the round trip to storage.
type PositionReport struct {
	Sog                *float64 `json:"Sog"`
	Cog                *float64 `json:"Cog"`
	TrueHeading        *float64 `json:"TrueHeading"`
	NavigationalStatus *int64   `json:"NavigationalStatus"`
}

// MessageBody is the tagged union of report kinds pushed by the feed.
// Kinds other than PositionReport are decoded lazily and ignored.
type MessageBody struct {
	PositionReport               *PositionReport `json:"PositionReport"`
	ShipStaticData               json.RawMessage `json:"ShipStaticData"`
	StandardClassBPositionReport json.RawMessage `json:"StandardClassBPositionReport"`
}

// RawMessage is a single frame as received from the upstream feed.
type RawMessage struct {
	MessageType string      `json:"MessageType"`
	Metadata    *Metadata   `json:"MetaData"`
	Message     MessageBody `json:"Message"`
}

// Kind reports which variant of the union the frame carries.
func (m *RawMessage) Kind() MessageKind {
	if m.Message.PositionReport != nil {
		return KindPositionReport
	}
	return KindUnsupported
}

// Position is the normalized, persisted unit. One row per report,
// keyed by (MMSI, Time).
type Position struct {
	ID        string
	MMSI      int64
	ShipName  string // empty means absent
	Lat       float64
	Lon       float64
	Sog       *float64
	Cog       *float64
	Heading   *float64
	NavStatus *int64
	Time      time.Time
	Raw       json.RawMessage // original frame, retained for audit
	CreatedAt time.Time
}
