package ingest

import (
	"context"

	"github.com/vesselwatch/vesselwatch/app/stream"
)

// MessageSource is the subscriber as seen by the coordinator: a
// restartable, unbounded sequence of raw feed frames.
type MessageSource interface {
	Run(ctx context.Context)
	Messages() <-chan []byte
	State() stream.State
}

var _ MessageSource = (*stream.Subscriber)(nil)
