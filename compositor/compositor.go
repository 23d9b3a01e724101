package compositor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/transport"
)

// DefaultQueueDepth is the number of batches an asynchronous partition
// buffers per band before Submit blocks.
const DefaultQueueDepth = 64

// Recorder observes every record a partition applies, in apply order.
// It runs on the partition goroutine.
type Recorder func(channel uint32, rec []byte)

// Option configures a Compositor.
type Option func(*Compositor)

// WithRecorder installs a record observer.
func WithRecorder(r Recorder) Option {
	return func(c *Compositor) { c.recorder = r }
}

// WithQueueDepth sets the per-band queue depth of asynchronous partitions.
func WithQueueDepth(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.queueDepth = n
		}
	}
}

// Compositor is an in-process compositor. Every connection gets its own
// partition; asynchronous partitions apply batches on a worker goroutine,
// synchronous partitions apply them inside Submit.
//
// Compositor implements transport.Dialer.
type Compositor struct {
	mu         sync.Mutex
	partitions map[uuid.UUID]*partition
	closed     bool

	nextChannel atomic.Uint32
	queueDepth  int
	recorder    Recorder
	log         *zap.Logger
}

var _ transport.Dialer = (*Compositor)(nil)

// New creates a compositor.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		partitions: make(map[uuid.UUID]*partition),
		queueDepth: DefaultQueueDepth,
		log:        Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect creates a new partition and returns the connection to it.
func (c *Compositor) Connect(ctx context.Context, synchronous bool) (transport.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Connection(errors.PhaseConnect, "Connect", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New(errors.PhaseConnect, errors.KindConnection).
			Op("Connect").
			Code(errors.CodeNotConnected).
			Detail("compositor closed").
			Build()
	}

	p := newPartition(c, synchronous)
	c.partitions[p.id] = p
	c.log.Debug("partition connected",
		zap.String("partition", p.id.String()),
		zap.Bool("synchronous", synchronous))
	return p, nil
}

// Close disconnects every partition still connected.
func (c *Compositor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	parts := make([]*partition, 0, len(c.partitions))
	for _, p := range c.partitions {
		parts = append(parts, p)
	}
	c.mu.Unlock()

	for _, p := range parts {
		if err := p.Disconnect(context.Background()); err != nil {
			c.log.Warn("disconnect partition on close",
				zap.String("partition", p.id.String()),
				zap.Error(err))
		}
	}
	return nil
}

// Partitions returns the number of connected partitions.
func (c *Compositor) Partitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.partitions)
}

// Stats aggregates counters over every connected partition.
func (c *Compositor) Stats() Stats {
	var total Stats
	for _, p := range c.snapshot() {
		total.add(p.stats())
	}
	return total
}

// Channel returns a snapshot of the channel with the given id.
func (c *Compositor) Channel(id uint32) (ChannelInfo, bool) {
	for _, p := range c.snapshot() {
		if info, ok := p.channelInfo(id); ok {
			return info, true
		}
	}
	return ChannelInfo{}, false
}

// BroadcastEnvironmentChange notifies every asynchronous channel with a
// registered sink that the composition environment changed.
func (c *Compositor) BroadcastEnvironmentChange() {
	for _, p := range c.snapshot() {
		p.broadcast(notify.EnvironmentChanged)
	}
}

func (c *Compositor) snapshot() []*partition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*partition, 0, len(c.partitions))
	for _, p := range c.partitions {
		out = append(out, p)
	}
	return out
}

func (c *Compositor) remove(p *partition) {
	c.mu.Lock()
	delete(c.partitions, p.id)
	c.mu.Unlock()
}

// Stats holds compositor counters.
type Stats struct {
	Partitions int
	Channels   int
	Resources  int
	Batches    uint64
	Commands   uint64
	Bytes      uint64
	Presents   uint64
	Errors     uint64
	Discarded  uint64
}

func (s *Stats) add(o Stats) {
	s.Partitions += o.Partitions
	s.Channels += o.Channels
	s.Resources += o.Resources
	s.Batches += o.Batches
	s.Commands += o.Commands
	s.Bytes += o.Bytes
	s.Presents += o.Presents
	s.Errors += o.Errors
	s.Discarded += o.Discarded
}

// ChannelInfo is a snapshot of one compositor-side channel.
type ChannelInfo struct {
	ID          uint32
	Partition   uuid.UUID
	Synchronous bool
	OutOfBand   bool
	Resources   map[resource.Handle]resource.Type
	Batches     uint64
	Presents    uint64
}
