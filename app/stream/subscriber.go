package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Subscriber maintains a single logical, always-reconnecting subscription
// to the upstream AIS feed and presents it as a channel of raw frames.
// Delivery is at-most-once: frames in flight during a disconnect are lost,
// the feed is a live broadcast with no backfill contract.
type Subscriber struct {
	opts     Options
	state    atomic.Int32
	messages chan []byte
}

func NewSubscriber(opts Options) *Subscriber {
	opts.applyDefaults()

	return &Subscriber{
		opts: opts,
		// Unbuffered: when the coordinator stops pulling, the read loop
		// blocks and transport-level flow control absorbs the rate.
		messages: make(chan []byte),
	}
}

// Messages returns the frame channel. It is closed when Run returns.
func (s *Subscriber) Messages() <-chan []byte {
	return s.messages
}

// State returns the current connection lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(state State) {
	s.state.Store(int32(state))
}

// Run drives the connect/stream/backoff loop until ctx is cancelled.
// Connection failures are never terminal: the subscriber retries forever
// with capped exponential backoff and jitter.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.messages)
	defer s.setState(StateStopped)

	delay := s.opts.BackoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Feed connection failed", "endpoint", s.opts.Endpoint, "backoff", delay.String(), "error", err)
			s.setState(StateBackoff)
			if !s.wait(ctx, withJitter(delay)) {
				return
			}
			delay = nextDelay(delay, s.opts.BackoffMax)
			continue
		}

		slog.Info("Feed connected", "endpoint", s.opts.Endpoint)
		s.setState(StateStreaming)

		delivered, err := s.pump(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		// A connection that streamed successfully resets the backoff;
		// immediate failures keep growing it.
		if delivered > 0 {
			delay = s.opts.BackoffBase
		}

		slog.Warn("Feed disconnected", "delivered", delivered, "backoff", delay.String(), "error", err)
		s.setState(StateBackoff)
		if !s.wait(ctx, withJitter(delay)) {
			return
		}
		delay = nextDelay(delay, s.opts.BackoffMax)
	}
}

// connect dials the endpoint and sends the subscription frame.
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  s.opts.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, s.opts.Endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial feed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial feed: %w", err)
	}

	frame := subscriptionFrame{
		APIKey: s.opts.APIKey,
		BoundingBoxes: [][][2]float64{{
			{s.opts.BoundingBox[0], s.opts.BoundingBox[1]},
			{s.opts.BoundingBox[2], s.opts.BoundingBox[3]},
		}},
		FiltersShipMMSI:    s.opts.FilterMMSI,
		FilterMessageTypes: []string{"PositionReport"},
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to encode subscription frame: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send subscription frame: %w", err)
	}

	return conn, nil
}

// pump reads frames from the connection and delivers them until the
// transport errors or ctx is cancelled. Returns the delivered count.
func (s *Subscriber) pump(ctx context.Context, conn *websocket.Conn) (int, error) {
	delivered := 0

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			return delivered, fmt.Errorf("failed to set read deadline: %w", err)
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return delivered, fmt.Errorf("feed closed connection: %w", err)
			}
			return delivered, fmt.Errorf("failed to read frame: %w", err)
		}

		// The feed answers a rejected subscription with an error frame
		// instead of closing the connection outright.
		var errFrame errorFrame
		if err := json.Unmarshal(frame, &errFrame); err == nil && errFrame.Error != "" {
			return delivered, fmt.Errorf("feed rejected subscription: %s", errFrame.Error)
		}

		select {
		case s.messages <- frame:
			delivered++
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}

// wait sleeps for the given delay; returns false when ctx is cancelled.
func (s *Subscriber) wait(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// nextDelay doubles the backoff delay up to the ceiling.
func nextDelay(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		return max
	}
	return delay
}

// withJitter adds up to 25% random jitter so reconnecting clients do not
// stampede the feed in lockstep.
func withJitter(delay time.Duration) time.Duration {
	return delay + time.Duration(rand.Int63n(int64(delay)/4+1))
}
