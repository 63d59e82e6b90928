package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vesselwatch/vesselwatch/app/ais"
	"github.com/vesselwatch/vesselwatch/app/database"
	"github.com/vesselwatch/vesselwatch/app/stream"
)

// Options configures the coordinator's queue and writer pool.
type Options struct {
	QueueCapacity int
	WriterCount   int

	// DropOldest switches the backpressure policy from blocking the pull
	// loop (default, absorbed by transport flow control) to dropping the
	// oldest queued record, counted under Stats.Dropped.
	DropOldest bool

	DrainTimeout time.Duration
	WriteTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 1000
	}
	if o.WriterCount <= 0 {
		o.WriterCount = 4
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
}

// Coordinator wires subscriber → normalizer → writer. The normalizer is
// invoked inline on the pull loop (pure and cheap); accepted records pass
// through a bounded queue to the writer pool.
type Coordinator struct {
	source MessageSource
	repo   database.PositionRepository
	stats  *Stats
	opts   Options

	queue chan *ais.Position
	wg    sync.WaitGroup

	// Writes are never cancelled by pipeline shutdown directly; they get
	// their own context, cancelled only when the drain timeout expires.
	writeCtx    context.Context
	cancelWrite context.CancelFunc
}

func NewCoordinator(source MessageSource, repo database.PositionRepository, stats *Stats, opts Options) *Coordinator {
	opts.applyDefaults()

	writeCtx, cancelWrite := context.WithCancel(context.Background())

	return &Coordinator{
		source:      source,
		repo:        repo,
		stats:       stats,
		opts:        opts,
		queue:       make(chan *ais.Position, opts.QueueCapacity),
		writeCtx:    writeCtx,
		cancelWrite: cancelWrite,
	}
}

// Stats returns the pipeline health counters.
func (c *Coordinator) Stats() *Stats {
	return c.stats
}

// SubscriberState reports the feed subscriber's lifecycle state.
func (c *Coordinator) SubscriberState() stream.State {
	return c.source.State()
}

// Run drives the pipeline until ctx is cancelled, then drains the queue
// to the writer pool within the configured drain timeout. One bad message
// never stops the stream; per-message failures are counted and dropped.
func (c *Coordinator) Run(ctx context.Context) {
	for i := 0; i < c.opts.WriterCount; i++ {
		c.wg.Add(1)
		go c.writer(i)
	}

	go c.source.Run(ctx)

	for frame := range c.source.Messages() {
		c.stats.Received.Add(1)

		pos, err := ais.Normalize(frame)
		if err != nil {
			reason := ais.RejectionReason(err)
			c.stats.IncRejected(reason)
			slog.Debug("Message rejected", "reason", reason, "error", err)
			continue
		}

		c.stats.Normalized.Add(1)
		c.enqueue(pos)
	}

	// Subscriber stopped; drain what is queued, then release the pool
	close(c.queue)

	drainTimer := time.AfterFunc(c.opts.DrainTimeout, func() {
		slog.Warn("Drain timeout expired, abandoning in-flight writes", "timeout", c.opts.DrainTimeout.String())
		c.cancelWrite()
	})
	c.wg.Wait()
	drainTimer.Stop()
	c.cancelWrite()

	slog.Info("Ingestion pipeline stopped",
		"received", c.stats.Received.Load(),
		"normalized", c.stats.Normalized.Load(),
		"rejected", c.stats.RejectedTotal(),
		"written", c.stats.Written.Load(),
		"dropped", c.stats.Dropped.Load())
}

// enqueue applies the configured backpressure policy. Memory never grows
// past the queue capacity either way.
func (c *Coordinator) enqueue(pos *ais.Position) {
	if !c.opts.DropOldest {
		c.queue <- pos
		return
	}

	for {
		select {
		case c.queue <- pos:
			return
		default:
		}

		// Queue full: evict the oldest queued record to make room
		select {
		case <-c.queue:
			c.stats.Dropped.Add(1)
			slog.Debug("Queue full, dropped oldest record")
		default:
		}
	}
}

func (c *Coordinator) writer(id int) {
	defer c.wg.Done()

	for pos := range c.queue {
		if c.writeCtx.Err() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(c.writeCtx, c.opts.WriteTimeout)
		err := c.repo.UpsertPosition(ctx, pos)
		cancel()

		if err != nil {
			c.stats.PermanentWriteFailures.Add(1)
			slog.Error("Failed to write position",
				"writer_id", id, "mmsi", pos.MMSI, "time", pos.Time, "error", err)
			continue
		}

		c.stats.Written.Add(1)
	}
}
