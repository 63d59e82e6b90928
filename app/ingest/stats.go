package ingest

import (
	"sync/atomic"
)

// Stats holds the pipeline health counters. All counters are monotonic
// and safe for concurrent increment; readers get a consistent-enough
// snapshot for reporting.
type Stats struct {
	Received   atomic.Uint64
	Normalized atomic.Uint64
	Written    atomic.Uint64
	Dropped    atomic.Uint64

	TransientWriteFailures atomic.Uint64
	PermanentWriteFailures atomic.Uint64

	rejected map[string]*atomic.Uint64
}

// rejectionReasons are the stable labels produced by ais.RejectionReason.
var rejectionReasons = []string{
	"missing_metadata",
	"no_position_report",
	"bad_timestamp",
	"invalid_frame",
	"unknown",
}

func NewStats() *Stats {
	s := &Stats{
		rejected: make(map[string]*atomic.Uint64, len(rejectionReasons)),
	}
	for _, reason := range rejectionReasons {
		s.rejected[reason] = &atomic.Uint64{}
	}
	return s
}

// IncRejected counts a dropped message under its rejection reason.
func (s *Stats) IncRejected(reason string) {
	counter, ok := s.rejected[reason]
	if !ok {
		counter = s.rejected["unknown"]
	}
	counter.Add(1)
}

// RejectedTotal returns the total number of rejected messages.
func (s *Stats) RejectedTotal() uint64 {
	var total uint64
	for _, counter := range s.rejected {
		total += counter.Load()
	}
	return total
}

// RejectedByReason returns a copy of the per-reason rejection counts.
func (s *Stats) RejectedByReason() map[string]uint64 {
	out := make(map[string]uint64, len(s.rejected))
	for reason, counter := range s.rejected {
		out[reason] = counter.Load()
	}
	return out
}

// Snapshot is a point-in-time copy of all counters for reporting.
type Snapshot struct {
	Received               uint64            `json:"received"`
	Normalized             uint64            `json:"normalized"`
	Rejected               uint64            `json:"rejected"`
	RejectedByReason       map[string]uint64 `json:"rejected_by_reason"`
	Written                uint64            `json:"written"`
	Dropped                uint64            `json:"dropped"`
	TransientWriteFailures uint64            `json:"transient_write_failures"`
	PermanentWriteFailures uint64            `json:"permanent_write_failures"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:               s.Received.Load(),
		Normalized:             s.Normalized.Load(),
		Rejected:               s.RejectedTotal(),
		RejectedByReason:       s.RejectedByReason(),
		Written:                s.Written.Load(),
		Dropped:                s.Dropped.Load(),
		TransientWriteFailures: s.TransientWriteFailures.Load(),
		PermanentWriteFailures: s.PermanentWriteFailures.Load(),
	}
}
