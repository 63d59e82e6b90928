package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vesselwatch/vesselwatch/app/ais"
	"github.com/vesselwatch/vesselwatch/app/database"
	"github.com/vesselwatch/vesselwatch/app/stream"
)

const validFrame = `{
  "MessageType": "PositionReport",
  "MetaData": {"MMSI": 123456789, "ShipName": "  Test Ship  ", "latitude": 10.5, "longitude": 20.5, "time_utc": "2024-06-01T12:00:00Z"},
  "Message": {"PositionReport": {"Sog": 12.3, "Cog": 45.0, "TrueHeading": 50, "NavigationalStatus": 0}}
}`

type fakeSource struct {
	frames chan []byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan []byte)}
}

func (f *fakeSource) Run(ctx context.Context) {
	<-ctx.Done()
	close(f.frames)
}

func (f *fakeSource) Messages() <-chan []byte { return f.frames }

func (f *fakeSource) State() stream.State { return stream.StateStreaming }

type fakeRepo struct {
	mu      sync.Mutex
	written []*ais.Position
	errs    []error // consumed one per call, nil entries mean success

	// release, when non-nil, blocks every write until closed
	release chan struct{}
}

func (r *fakeRepo) UpsertPosition(ctx context.Context, pos *ais.Position) error {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}

	r.written = append(r.written, pos)
	return nil
}

func (r *fakeRepo) writtenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.written)
}

func (r *fakeRepo) GetLatestPositions(ctx context.Context, limit int) ([]ais.Position, error) {
	return nil, nil
}

func (r *fakeRepo) GetVesselTrack(ctx context.Context, mmsi int64, since time.Time, limit int) ([]ais.Position, error) {
	return nil, nil
}

func (r *fakeRepo) GetPositionCount(ctx context.Context) (int, error) { return 0, nil }

func (r *fakeRepo) GetVesselCount(ctx context.Context) (int, error) { return 0, nil }

var _ database.PositionRepository = (*fakeRepo)(nil)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCoordinatorEndToEnd(t *testing.T) {
	source := newFakeSource()
	repo := &fakeRepo{}
	stats := NewStats()

	coord := NewCoordinator(source, repo, stats, Options{QueueCapacity: 10, WriterCount: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	source.frames <- []byte(validFrame)
	source.frames <- []byte(`{"MessageType":"PositionReport","Message":{"PositionReport":{}}}`) // no metadata
	source.frames <- []byte(`not json`)

	waitFor(t, 5*time.Second, func() bool { return repo.writtenCount() == 1 }, "write did not happen")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	snap := stats.Snapshot()
	if snap.Received != 3 {
		t.Errorf("expected 3 received, got %d", snap.Received)
	}
	if snap.Normalized != 1 {
		t.Errorf("expected 1 normalized, got %d", snap.Normalized)
	}
	if snap.Rejected != 2 {
		t.Errorf("expected 2 rejected, got %d", snap.Rejected)
	}
	if snap.RejectedByReason["missing_metadata"] != 1 {
		t.Errorf("expected 1 missing_metadata rejection, got %d", snap.RejectedByReason["missing_metadata"])
	}
	if snap.RejectedByReason["invalid_frame"] != 1 {
		t.Errorf("expected 1 invalid_frame rejection, got %d", snap.RejectedByReason["invalid_frame"])
	}
	if snap.Written != 1 {
		t.Errorf("expected 1 written, got %d", snap.Written)
	}

	pos := repo.written[0]
	if pos.MMSI != 123456789 || pos.ShipName != "Test Ship" || pos.Lat != 10.5 || pos.Lon != 20.5 {
		t.Errorf("unexpected written record: %+v", pos)
	}
}

func TestCoordinatorDropOldestPolicy(t *testing.T) {
	source := newFakeSource()
	repo := &fakeRepo{release: make(chan struct{})}
	stats := NewStats()

	coord := NewCoordinator(source, repo, stats, Options{
		QueueCapacity: 2,
		WriterCount:   1,
		DropOldest:    true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	// First record occupies the (blocked) writer, the next two fill the queue
	for i := 0; i < 3; i++ {
		source.frames <- []byte(validFrame)
	}
	waitFor(t, 5*time.Second, func() bool { return len(coord.queue) == 2 }, "queue did not fill")

	// Two more must evict the two oldest queued records
	source.frames <- []byte(validFrame)
	source.frames <- []byte(validFrame)

	waitFor(t, 5*time.Second, func() bool { return stats.Dropped.Load() == 2 }, "drops were not counted")

	if len(coord.queue) > 2 {
		t.Errorf("queue grew past capacity: %d", len(coord.queue))
	}

	close(repo.release)
	waitFor(t, 5*time.Second, func() bool { return repo.writtenCount() == 3 }, "queue did not drain")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := stats.Dropped.Load(); got != 2 {
		t.Errorf("expected exactly 2 drops, got %d", got)
	}
}

func TestCoordinatorBlockingPolicy(t *testing.T) {
	source := newFakeSource()
	repo := &fakeRepo{release: make(chan struct{})}
	stats := NewStats()

	coord := NewCoordinator(source, repo, stats, Options{
		QueueCapacity: 1,
		WriterCount:   1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	// Writer takes one record and blocks; the next fills the queue
	source.frames <- []byte(validFrame)
	source.frames <- []byte(validFrame)
	waitFor(t, 5*time.Second, func() bool { return len(coord.queue) == 1 }, "queue did not fill")

	// This record is accepted by the pull loop, which then blocks pushing
	// it onto the full queue
	source.frames <- []byte(validFrame)

	// With the pull loop blocked, no further frame is accepted
	select {
	case source.frames <- []byte(validFrame):
		t.Fatal("expected pull loop to block while queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)

	// The held-back frame goes through once the writer drains the queue
	select {
	case source.frames <- []byte(validFrame):
	case <-time.After(5 * time.Second):
		t.Fatal("pull loop did not resume after drain")
	}

	waitFor(t, 5*time.Second, func() bool { return repo.writtenCount() == 4 }, "records were not written")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := stats.Dropped.Load(); got != 0 {
		t.Errorf("expected no drops under blocking policy, got %d", got)
	}
}

func TestCoordinatorPermanentFailureDoesNotStopStream(t *testing.T) {
	source := newFakeSource()
	repo := &fakeRepo{errs: []error{
		&database.PermanentError{Err: errors.New("constraint violation")},
		nil,
	}}
	stats := NewStats()

	coord := NewCoordinator(source, repo, stats, Options{QueueCapacity: 10, WriterCount: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	source.frames <- []byte(validFrame)
	source.frames <- []byte(validFrame)

	waitFor(t, 5*time.Second, func() bool { return repo.writtenCount() == 1 }, "pipeline did not continue after permanent failure")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := stats.PermanentWriteFailures.Load(); got != 1 {
		t.Errorf("expected 1 permanent write failure, got %d", got)
	}
	if got := stats.Written.Load(); got != 1 {
		t.Errorf("expected 1 written, got %d", got)
	}
}

func TestCoordinatorDrainsQueueOnShutdown(t *testing.T) {
	source := newFakeSource()
	repo := &fakeRepo{}
	stats := NewStats()

	coord := NewCoordinator(source, repo, stats, Options{QueueCapacity: 100, WriterCount: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	for i := 0; i < 20; i++ {
		source.frames <- []byte(validFrame)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Every record accepted before shutdown must reach storage
	if got := repo.writtenCount(); got != 20 {
		t.Errorf("expected 20 written after drain, got %d", got)
	}
}

func TestStatsUnknownReason(t *testing.T) {
	stats := NewStats()
	stats.IncRejected("something_new")
	if stats.RejectedByReason()["unknown"] != 1 {
		t.Error("unrecognized reasons should be counted under 'unknown'")
	}
	if stats.RejectedTotal() != 1 {
		t.Errorf("expected total 1, got %d", stats.RejectedTotal())
	}
}
