package transport

import (
	"context"

	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/wire"
)

// Dialer creates connections to a compositor.
type Dialer interface {
	// Connect opens a connection. A synchronous connection blocks every
	// Submit until the compositor has applied the batch.
	Connect(ctx context.Context, synchronous bool) (Connection, error)
}

// Connection is one physical link to a compositor partition. Disconnect
// must be called exactly once per successful Connect.
type Connection interface {
	// OpenChannel creates a channel endpoint on the partition.
	OpenChannel(ctx context.Context, opts EndpointOptions) (Endpoint, error)

	// Synchronous reports the mode the connection was created with.
	Synchronous() bool

	// Disconnect tears the connection down. Endpoints still open are
	// closed and their queued batches discarded.
	Disconnect(ctx context.Context) error
}

// EndpointOptions configures a channel endpoint.
type EndpointOptions struct {
	// Service is the endpoint this one multiplexes over, nil when the new
	// endpoint is itself a service endpoint.
	Service Endpoint

	// OutOfBand endpoints bypass the ordinary batch queue.
	OutOfBand bool
}

// Endpoint is the transport side of one channel.
type Endpoint interface {
	// ID is the partition-assigned channel id.
	ID() uint32

	// Submit transmits a batch; it takes ownership of b and releases it.
	Submit(ctx context.Context, b *wire.Batch) error

	// Present asks the compositor to present the current frame.
	Present(ctx context.Context) error

	// Flush blocks until every batch submitted before it was applied.
	Flush(ctx context.Context) error

	// SetNotifier routes partition notifications for this channel to sink,
	// tagged with code. A nil sink disables notifications.
	SetNotifier(sink notify.Sink, code uint32) error

	// Close releases the endpoint. Batches still queued are discarded.
	Close() error
}
