package ais

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Rejection sentinels. A frame that fails normalization is dropped by the
// coordinator and counted under its rejection reason; it never produces a
// partial record.
var (
	ErrInvalidFrame     = errors.New("frame is not valid JSON")
	ErrMissingMetadata  = errors.New("frame has no MetaData block")
	ErrNoPositionReport = errors.New("frame carries no PositionReport")
	ErrBadTimestamp     = errors.New("metadata time_utc is unparsable")
)

// Timestamp layouts accepted for metadata time_utc. aisstream.io emits the
// verbose Go time.String() form; RFC 3339 is accepted as well.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000000000 -0700 MST",
	"2006-01-02 15:04:05 -0700 MST",
}

// Normalize decodes a raw feed frame into a Position record. It is pure:
// no I/O, no state, deterministic for a given input. Frames without a
// MetaData block or without a PositionReport payload are rejected, as are
// frames whose timestamp cannot be parsed.
func Normalize(frame []byte) (*Position, error) {
	var raw RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrame, err)
	}

	if raw.Metadata == nil {
		return nil, ErrMissingMetadata
	}

	if raw.Kind() != KindPositionReport {
		return nil, ErrNoPositionReport
	}
	report := raw.Message.PositionReport

	reportTime, err := parseTimeUTC(raw.Metadata.TimeUTC)
	if err != nil {
		return nil, err
	}

	pos := &Position{
		MMSI:      raw.Metadata.MMSI,
		ShipName:  strings.TrimSpace(raw.Metadata.ShipName),
		Lat:       raw.Metadata.Latitude,
		Lon:       raw.Metadata.Longitude,
		Sog:       report.Sog,
		Cog:       report.Cog,
		Heading:   report.TrueHeading,
		NavStatus: report.NavigationalStatus,
		Time:      reportTime,
		Raw:       append(json.RawMessage(nil), frame...),
	}

	return pos, nil
}

func parseTimeUTC(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrBadTimestamp)
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
}

// RejectionReason maps a normalization error to a stable counter label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingMetadata):
		return "missing_metadata"
	case errors.Is(err, ErrNoPositionReport):
		return "no_position_report"
	case errors.Is(err, ErrBadTimestamp):
		return "bad_timestamp"
	case errors.Is(err, ErrInvalidFrame):
		return "invalid_frame"
	default:
		return "unknown"
	}
}
