package composition

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/duce/channel"
	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/transport"
)

// System is the process-wide composition context. It holds the shared
// asynchronous connection and the composition service channel every
// manager's asynchronous channels multiplex over.
//
// The first Acquire connects and the last Release disconnects. System is
// safe for concurrent use; the channels it hands out are not.
type System struct {
	id     uuid.UUID
	dialer transport.Dialer
	log    *zap.Logger

	mu      sync.Mutex
	refs    atomic.Int32
	conn    transport.Connection
	service *channel.Channel
}

// NewSystem creates a system that connects through dialer.
func NewSystem(dialer transport.Dialer) *System {
	id := uuid.New()
	return &System{
		id:     id,
		dialer: dialer,
		log:    Logger().With(zap.String("system", id.String())),
	}
}

// ID returns the system id.
func (s *System) ID() uuid.UUID { return s.id }

// Acquire takes a reference on the system, connecting on the first one.
func (s *System) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs.Load() > 0 {
		s.refs.Add(1)
		return nil
	}

	conn, err := s.dialer.Connect(ctx, false)
	if err != nil {
		return errors.Connection(errors.PhaseConnect, "Acquire", err)
	}
	svc, err := channel.New(ctx, conn, channel.Options{Logger: s.log})
	if err != nil {
		if derr := conn.Disconnect(ctx); derr != nil {
			s.log.Warn("disconnect after failed service channel", zap.Error(derr))
		}
		return err
	}

	s.conn = conn
	s.service = svc
	s.refs.Store(1)
	s.log.Info("composition system connected", zap.Uint32("service_channel", svc.ID()))
	return nil
}

// Release drops a reference. The last release closes the service channel
// and disconnects.
func (s *System) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch n := s.refs.Load(); {
	case n == 0:
		return errors.Precondition(errors.PhaseDisconnect, "Release", "system not acquired")
	case n > 1:
		s.refs.Add(-1)
		return nil
	}

	s.refs.Store(0)
	cerr := s.service.Close()
	derr := s.conn.Disconnect(context.Background())
	s.service = nil
	s.conn = nil
	s.log.Info("composition system disconnected")

	if cerr != nil {
		return cerr
	}
	if derr != nil {
		return errors.Connection(errors.PhaseDisconnect, "Release", derr)
	}
	return nil
}

// RefCount returns the number of outstanding references.
func (s *System) RefCount() int {
	return int(s.refs.Load())
}

// Connection returns the shared asynchronous connection, or nil when the
// system is not acquired.
func (s *System) Connection() transport.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// ServiceChannel returns the composition service channel, or nil when the
// system is not acquired.
func (s *System) ServiceChannel() *channel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service
}

// Dialer returns the dialer the system connects through.
func (s *System) Dialer() transport.Dialer { return s.dialer }
