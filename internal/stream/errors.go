package stream

import "github.com/aukilabs/go-tooling/pkg/errors"

// ErrTypeInvalidBounds tags an invalid grid configuration at construction:
// a degenerate cell size, capacity < 1 or depth < 0.
const ErrTypeInvalidBounds = "stream_invalid_bounds"

// ErrTypeShutdownEnqueue tags a job enqueued after the worker pool has
// been shut down, per spec section 7.
const ErrTypeShutdownEnqueue = "stream_shutdown_enqueue"

func newInvalidCellSizeError(reason string) error {
	return errors.New("invalid world grid configuration").
		WithType(ErrTypeInvalidBounds).
		WithTag("reason", reason)
}

func newShutdownEnqueueError() error {
	return errors.New("job enqueued after worker pool shutdown").
		WithType(ErrTypeShutdownEnqueue)
}
