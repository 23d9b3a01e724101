package composition

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/duce/channel"
	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/transport"
)

// Manager owns the channels of one rendering context: an asynchronous
// in-band channel and an asynchronous out-of-band channel multiplexed over
// the system service channel, plus a bounded pool of synchronous channels
// sharing a lazily created synchronous connection.
//
// A Manager is not safe for concurrent use. It belongs to the goroutine
// that owns the rendering context.
type Manager struct {
	sys *System
	cfg Config
	log *zap.Logger

	async    *channel.Channel
	asyncOOB *channel.Channel

	syncConn    transport.Connection
	syncService *channel.Channel
	freeSync    []*channel.Channel
	activeSync  map[*channel.Channel]struct{}

	stats Stats
}

// Stats holds manager counters.
type Stats struct {
	FreeSyncChannels   int
	ActiveSyncChannels int
	AsyncChannels      bool
	SyncConnected      bool

	SyncCreated uint64 // sync channels opened
	SyncReused  uint64 // allocations served from the free queue
	SyncPooled  uint64 // releases that queued the channel
	SyncClosed  uint64 // sync channels closed
}

// NewManager creates a manager bound to sys.
func NewManager(sys *System, cfg Config) (*Manager, error) {
	if sys == nil {
		return nil, errors.InvalidInput(errors.PhaseManager, "nil system")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Manager{
		sys:        sys,
		cfg:        cfg,
		log:        log,
		activeSync: make(map[*channel.Channel]struct{}),
	}, nil
}

// CreateChannels creates the asynchronous in-band and out-of-band channels
// on the system connection. The system must be acquired. Calling it while
// the channels exist is a precondition error. A failure is not rolled back;
// RemoveChannels cleans up whatever was created.
func (m *Manager) CreateChannels(ctx context.Context) error {
	if m.async != nil || m.asyncOOB != nil {
		return errors.Precondition(errors.PhaseManager, "CreateChannels", "channels already created")
	}
	svc := m.sys.ServiceChannel()
	if svc == nil {
		return errors.Precondition(errors.PhaseManager, "CreateChannels", "system not acquired")
	}
	conn := svc.Connection()

	ch, err := channel.New(ctx, conn, channel.Options{Service: svc, Logger: m.log})
	if err != nil {
		return err
	}
	m.async = ch

	oob, err := channel.New(ctx, conn, channel.Options{Service: svc, OutOfBand: true, Logger: m.log})
	if err != nil {
		return err
	}
	m.asyncOOB = oob

	m.log.Debug("async channels created",
		zap.Uint32("channel", ch.ID()),
		zap.Uint32("out_of_band", oob.ID()))
	return nil
}

// Channel returns the asynchronous in-band channel.
func (m *Manager) Channel() *channel.Channel { return m.async }

// OutOfBandChannel returns the asynchronous out-of-band channel.
func (m *Manager) OutOfBandChannel() *channel.Channel { return m.asyncOOB }

// SyncServiceChannel returns the synchronous service channel, or nil before
// the first AllocateSyncChannel.
func (m *Manager) SyncServiceChannel() *channel.Channel { return m.syncService }

// AllocateSyncChannel returns a synchronous channel, reusing a free one if
// any. The first call connects the synchronous transport and opens the
// synchronous service channel.
func (m *Manager) AllocateSyncChannel(ctx context.Context) (*channel.Channel, error) {
	if m.syncConn == nil {
		conn, err := m.sys.dialer.Connect(ctx, true)
		if err != nil {
			return nil, errors.Connection(errors.PhaseConnect, "AllocateSyncChannel", err)
		}
		m.syncConn = conn
		m.log.Debug("sync connection created")
	}
	if m.syncService == nil {
		svc, err := channel.New(ctx, m.syncConn, channel.Options{Synchronous: true, Logger: m.log})
		if err != nil {
			return nil, err
		}
		m.syncService = svc
	}

	var ch *channel.Channel
	if len(m.freeSync) > 0 {
		ch = m.freeSync[0]
		m.freeSync[0] = nil
		m.freeSync = m.freeSync[1:]
		m.stats.SyncReused++
	} else {
		var err error
		ch, err = channel.New(ctx, m.syncConn, channel.Options{
			Service:     m.syncService,
			Synchronous: true,
			Logger:      m.log,
		})
		if err != nil {
			return nil, err
		}
		m.stats.SyncCreated++
	}
	m.activeSync[ch] = struct{}{}
	return ch, nil
}

// ReleaseSyncChannel hands ch back. It is queued for reuse while the free
// queue is below the configured cap and closed otherwise. A failed channel
// is always closed. Releasing a channel that is not currently allocated
// from this manager is a protocol error.
func (m *Manager) ReleaseSyncChannel(ch *channel.Channel) error {
	if ch == nil {
		return errors.InvalidInput(errors.PhasePool, "nil channel")
	}
	if _, ok := m.activeSync[ch]; !ok {
		return errors.New(errors.PhasePool, errors.KindProtocol).
			Op("ReleaseSyncChannel").
			Channel(ch.ID()).
			Code(errors.CodeInvalidState).
			Detail("channel is not an allocated sync channel").
			Build()
	}
	delete(m.activeSync, ch)

	if ch.State() == channel.StateFailed || ch.IsClosed() || len(m.freeSync) >= m.cfg.MaxFreeSyncChannels {
		return m.closeSync(ch)
	}
	m.freeSync = append(m.freeSync, ch)
	m.stats.SyncPooled++
	return nil
}

func (m *Manager) closeSync(ch *channel.Channel) error {
	m.stats.SyncClosed++
	return ch.Close()
}

// RemoveSyncChannels closes every free synchronous channel and the
// synchronous service channel. It is a no-op when no synchronous channel
// was ever allocated. Allocated synchronous channels multiplex over the
// service channel, so it fails with a precondition error while any is
// still allocated.
func (m *Manager) RemoveSyncChannels() error {
	if n := len(m.activeSync); n > 0 {
		return errors.Precondition(errors.PhasePool, "RemoveSyncChannels",
			fmt.Sprintf("%d sync channels still allocated", n))
	}
	var err error
	for _, ch := range m.freeSync {
		err = multierr.Append(err, m.closeSync(ch))
	}
	m.freeSync = nil

	if m.syncService != nil {
		err = multierr.Append(err, m.syncService.Close())
		m.syncService = nil
	}
	return err
}

// RemoveChannels closes the asynchronous channels and every synchronous
// channel, then disconnects the synchronous transport. Afterwards the
// manager is back in its initial state and CreateChannels may be called
// again. Calling it repeatedly is safe.
func (m *Manager) RemoveChannels() error {
	var err error
	if m.async != nil {
		err = multierr.Append(err, m.async.Close())
		m.async = nil
	}
	if m.asyncOOB != nil {
		err = multierr.Append(err, m.asyncOOB.Close())
		m.asyncOOB = nil
	}

	if n := len(m.activeSync); n > 0 {
		m.log.Warn("closing sync channels still in use", zap.Int("count", n))
		for ch := range m.activeSync {
			err = multierr.Append(err, m.closeSync(ch))
		}
		clear(m.activeSync)
	}
	err = multierr.Append(err, m.RemoveSyncChannels())

	if m.syncConn != nil {
		if derr := m.syncConn.Disconnect(context.Background()); derr != nil {
			err = multierr.Append(err, errors.Connection(errors.PhaseDisconnect, "RemoveChannels", derr))
		}
		m.syncConn = nil
		m.log.Debug("sync connection removed")
	}
	return err
}

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	s := m.stats
	s.FreeSyncChannels = len(m.freeSync)
	s.ActiveSyncChannels = len(m.activeSync)
	s.AsyncChannels = m.async != nil && m.asyncOOB != nil
	s.SyncConnected = m.syncConn != nil
	return s
}
