package channel

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

// State is the lifecycle state of a Channel.
type State uint8

const (
	StateOpen      State = iota // no commands since creation
	StateBatching               // commands pending
	StateCommitted              // everything pending was transmitted
	StateFailed                 // a transmission failed, only Close is valid
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateBatching:
		return "batching"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a new Channel.
type Options struct {
	// Service is the channel this one multiplexes over. Nil makes the new
	// channel a service channel.
	Service *Channel

	OutOfBand   bool
	Synchronous bool

	// Logger overrides the package logger.
	Logger *zap.Logger
}

// Stats holds per-channel counters.
type Stats struct {
	Commands  uint64
	Batches   uint64
	Bytes     uint64
	Commits   uint64
	Presents  uint64
	Resources int
	Pending   int
}

// Channel is one logical connection to a compositor partition. Commands are
// collected into batches and transmitted on Commit, in the order they were
// sent.
//
// A Channel is not safe for concurrent use. It belongs to the goroutine that
// owns the composition context.
type Channel struct {
	conn    transport.Connection
	ep      transport.Endpoint
	service *Channel
	log     *zap.Logger

	handles *resource.Table
	pending *wire.Batch
	sealed  []*wire.Batch

	state      State
	failure    error
	notifyCode uint32

	outOfBand   bool
	synchronous bool

	stats Stats
}

// New opens a channel on conn.
func New(ctx context.Context, conn transport.Connection, opts Options) (*Channel, error) {
	if conn == nil {
		return nil, errors.InvalidInput(errors.PhaseChannel, "nil connection")
	}
	if opts.Synchronous != conn.Synchronous() {
		return nil, errors.InvalidInput(errors.PhaseChannel, "channel and connection transport kinds differ")
	}

	var svc transport.Endpoint
	if opts.Service != nil {
		if opts.Service.IsClosed() {
			return nil, errors.Closed(errors.PhaseChannel, opts.Service.ID(), "New")
		}
		if opts.Service.conn != conn {
			return nil, errors.InvalidInput(errors.PhaseChannel, "service channel belongs to another connection")
		}
		svc = opts.Service.ep
	}

	ep, err := conn.OpenChannel(ctx, transport.EndpointOptions{Service: svc, OutOfBand: opts.OutOfBand})
	if err != nil {
		return nil, errors.Connection(errors.PhaseChannel, "OpenChannel", err)
	}

	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	c := &Channel{
		conn:        conn,
		ep:          ep,
		service:     opts.Service,
		log:         log.With(zap.Uint32("channel", ep.ID())),
		handles:     resource.NewTable(),
		pending:     wire.NewBatch(),
		outOfBand:   opts.OutOfBand,
		synchronous: opts.Synchronous,
	}
	c.log.Debug("channel opened",
		zap.Bool("synchronous", c.synchronous),
		zap.Bool("out_of_band", c.outOfBand),
		zap.Bool("service", c.service == nil))
	return c, nil
}

// ID returns the transport channel id.
func (c *Channel) ID() uint32 { return c.ep.ID() }

// Service returns the channel this one multiplexes over, or nil.
func (c *Channel) Service() *Channel { return c.service }

// Connection returns the connection the channel was opened on.
func (c *Channel) Connection() transport.Connection { return c.conn }

func (c *Channel) IsSynchronous() bool { return c.synchronous }
func (c *Channel) IsOutOfBand() bool   { return c.outOfBand }
func (c *Channel) IsClosed() bool      { return c.state == StateClosed }
func (c *Channel) State() State        { return c.state }

// Err returns the transmission failure that moved the channel into
// StateFailed, or nil.
func (c *Channel) Err() error { return c.failure }

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	s := c.stats
	s.Resources = c.handles.Len()
	s.Pending = len(c.sealed)
	if !c.pending.Empty() {
		s.Pending++
	}
	return s
}

func (c *Channel) usable(phase errors.Phase, op string) error {
	switch c.state {
	case StateClosed:
		return errors.Closed(phase, c.ID(), op)
	case StateFailed:
		return errors.New(phase, errors.KindTransmission).
			Op(op).
			Channel(c.ID()).
			Cause(c.failure).
			Detail("channel failed").
			Build()
	}
	return nil
}

// SendCommand appends a complete record to the current batch. With
// sendInSeparateBatch the pending batch is sealed first and the record is
// sealed into a batch of its own, so it forms an ordering boundary with
// everything before and after it.
func (c *Channel) SendCommand(rec []byte, sendInSeparateBatch bool) error {
	if err := c.usable(errors.PhaseBatch, "SendCommand"); err != nil {
		return err
	}
	if sendInSeparateBatch {
		if err := c.CloseBatch(); err != nil {
			return err
		}
	}
	if err := c.pending.Append(rec); err != nil {
		return err
	}
	c.state = StateBatching
	c.stats.Commands++
	if sendInSeparateBatch {
		c.seal()
	}
	return nil
}

// BeginCommand starts a record of header followed by extraSize payload
// bytes. The payload is written with AppendCommandData and the record is
// finished by EndCommand.
func (c *Channel) BeginCommand(header []byte, fixedSize, extraSize int) error {
	if err := c.usable(errors.PhaseBatch, "BeginCommand"); err != nil {
		return err
	}
	if err := c.pending.Begin(header, fixedSize, extraSize); err != nil {
		return err
	}
	c.state = StateBatching
	return nil
}

// AppendCommandData writes part of the payload of the open record.
func (c *Channel) AppendCommandData(p []byte) error {
	if err := c.usable(errors.PhaseBatch, "AppendCommandData"); err != nil {
		return err
	}
	return c.pending.AppendData(p)
}

// EndCommand finishes the open record. If fewer payload bytes were written
// than declared the record is dropped and a framing error is returned.
func (c *Channel) EndCommand() error {
	if err := c.usable(errors.PhaseBatch, "EndCommand"); err != nil {
		return err
	}
	if err := c.pending.End(); err != nil {
		c.log.Debug("command dropped", zap.Error(err))
		return err
	}
	c.stats.Commands++
	return nil
}

// CloseBatch seals the current batch without transmitting it.
func (c *Channel) CloseBatch() error {
	if err := c.usable(errors.PhaseBatch, "CloseBatch"); err != nil {
		return err
	}
	if c.pending.InCommand() {
		return errors.Protocol(errors.PhaseBatch, "CloseBatch", "command in progress")
	}
	c.seal()
	return nil
}

func (c *Channel) seal() {
	if c.pending.Empty() {
		return
	}
	c.sealed = append(c.sealed, c.pending)
	c.pending = wire.NewBatch()
}

// Commit transmits every sealed batch and the current one, in order. A
// transport failure leaves the channel in StateFailed.
func (c *Channel) Commit(ctx context.Context) error {
	if err := c.usable(errors.PhaseCommit, "Commit"); err != nil {
		return err
	}
	if c.pending.InCommand() {
		return errors.Protocol(errors.PhaseCommit, "Commit", "command in progress")
	}
	c.seal()
	if len(c.sealed) == 0 {
		return nil
	}

	batches := c.sealed
	c.sealed = nil
	for i, b := range batches {
		count, size := b.Count(), b.Len()
		if err := c.ep.Submit(ctx, b); err != nil {
			for _, rest := range batches[i+1:] {
				rest.Release()
			}
			return c.fail(errors.PhaseCommit, "Commit", err)
		}
		c.stats.Batches++
		c.stats.Bytes += uint64(size)
		c.log.Debug("batch submitted", zap.Int("commands", count), zap.Int("bytes", size))
	}
	c.stats.Commits++
	c.state = StateCommitted
	return nil
}

// Present asks the compositor to present the current frame.
func (c *Channel) Present(ctx context.Context) error {
	if err := c.usable(errors.PhasePresent, "Present"); err != nil {
		return err
	}
	if err := c.ep.Present(ctx); err != nil {
		return c.fail(errors.PhasePresent, "Present", err)
	}
	c.stats.Presents++
	return nil
}

// SyncFlush commits and waits until the compositor has applied everything
// transmitted on this channel.
func (c *Channel) SyncFlush(ctx context.Context) error {
	if err := c.Commit(ctx); err != nil {
		return err
	}
	if err := c.ep.Flush(ctx); err != nil {
		return c.fail(errors.PhaseCommit, "SyncFlush", err)
	}
	return nil
}

func (c *Channel) fail(phase errors.Phase, op string, cause error) error {
	err := errors.Transmission(phase, c.ID(), op, cause)
	c.state = StateFailed
	c.failure = err
	c.log.Warn("channel failed", zap.String("op", op), zap.Error(cause))
	return err
}

// SetNotificationSink binds the channel to sink. The code is echoed in every
// notification so one sink can serve several channels. Only asynchronous
// channels deliver notifications.
func (c *Channel) SetNotificationSink(sink notify.Sink, code uint32) error {
	if err := c.usable(errors.PhaseNotify, "SetNotificationSink"); err != nil {
		return err
	}
	if c.synchronous {
		return errors.Protocol(errors.PhaseNotify, "SetNotificationSink", "synchronous channel")
	}
	if err := c.ep.SetNotifier(sink, code); err != nil {
		return errors.Wrap(errors.PhaseNotify, errors.KindConnection, err, "set notifier")
	}
	c.notifyCode = code
	return nil
}

// EnableNotifications queues a command that turns compositor notifications
// for this channel on or off.
func (c *Channel) EnableNotifications(enable bool) error {
	if c.synchronous {
		return errors.Protocol(errors.PhaseNotify, "EnableNotifications", "synchronous channel")
	}
	return c.SendCommand(wire.Encode(wire.RegisterNotifications{Code: c.notifyCode, Enable: enable}), false)
}

// Close discards pending batches, forgets every handle and releases the
// endpoint. Closing a closed channel is a no-op.
func (c *Channel) Close() error {
	if c.state == StateClosed {
		return nil
	}
	if c.pending.InCommand() {
		c.pending.Abort()
	}
	discarded := len(c.sealed)
	for _, b := range c.sealed {
		b.Release()
	}
	if !c.pending.Empty() {
		discarded++
	}
	c.pending.Release()
	c.sealed = nil
	c.handles.Clear()
	c.state = StateClosed

	err := c.ep.Close()
	c.log.Debug("channel closed", zap.Int("discarded_batches", discarded))
	if err != nil {
		return errors.Wrap(errors.PhaseChannel, errors.KindConnection, err, "close endpoint")
	}
	return nil
}
