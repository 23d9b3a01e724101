package redistransport

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

const (
	readBlock = time.Second
	readCount = 64
	retryWait = 250 * time.Millisecond
)

// Server exposes a local compositor to Dialers over Redis. Every announced
// connection is dialed on the local compositor; its in-band and out-of-band
// streams are consumed by separate goroutines so out-of-band work is never
// queued behind in-band batches.
type Server struct {
	rdb    redis.UniversalClient
	dialer transport.Dialer
	keys   keys
	opts   Options
	log    *zap.Logger
}

// NewServer creates a server forwarding to dialer.
func NewServer(rdb redis.UniversalClient, dialer transport.Dialer, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		rdb:    rdb,
		dialer: dialer,
		keys:   keys{prefix: opts.Prefix},
		opts:   opts,
		log:    opts.Logger.Named("redistransport.server"),
	}
}

// Serve accepts connections until ctx is canceled. Only connections
// announced after Serve started are accepted.
func (s *Server) Serve(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	last := fmt.Sprintf("%d-0", time.Now().UnixMilli())

	group.Go(func() error {
		return s.read(ctx, s.keys.connectStream(), last, func(values map[string]any) bool {
			s.accept(ctx, group, values)
			return false
		})
	})

	err := group.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// read consumes stream after id last until handle returns true or ctx ends.
func (s *Server) read(ctx context.Context, stream, last string, handle func(map[string]any) bool) error {
	for {
		res, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, last},
			Count:   readCount,
			Block:   readBlock,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			s.log.Warn("stream read failed", zap.String("stream", stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryWait):
			}
			continue
		}

		for _, st := range res {
			for _, msg := range st.Messages {
				last = msg.ID
				if handle(msg.Values) {
					return nil
				}
			}
		}
	}
}

func (s *Server) reply(ctx context.Context, values map[string]any, err error, value uint32) {
	req, perr := strconv.ParseInt(field(values, fieldReq), 10, 64)
	if perr != nil || req == 0 {
		return
	}
	key := s.keys.reply(req)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, encodeReply(errors.CodeOf(err), value))
	pipe.Expire(ctx, key, s.opts.ReplyTimeout)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("reply failed", zap.Int64("req", req), zap.Error(err))
	}
}

func (s *Server) accept(ctx context.Context, group *errgroup.Group, values map[string]any) {
	id, err := uuid.Parse(field(values, fieldConn))
	if err != nil {
		s.reply(ctx, values, errors.InvalidInput(errors.PhaseConnect, "bad connection id"), 0)
		return
	}
	conn, err := s.dialer.Connect(ctx, field(values, fieldSync) == "1")
	if err != nil {
		s.reply(ctx, values, err, 0)
		return
	}

	ss := &session{
		s:         s,
		id:        id,
		conn:      conn,
		endpoints: make(map[uint32]transport.Endpoint),
	}
	sctx, cancel := context.WithCancel(ctx)
	ss.cancel = cancel

	group.Go(func() error { return s.read(sctx, s.keys.inband(id), "0", ss.handler(sctx)) })
	group.Go(func() error { return s.read(sctx, s.keys.oob(id), "0", ss.handler(sctx)) })
	group.Go(func() error {
		<-sctx.Done()
		if ss.disconnected.CompareAndSwap(false, true) {
			if err := conn.Disconnect(context.Background()); err != nil {
				s.log.Warn("disconnect on shutdown", zap.String("conn", id.String()), zap.Error(err))
			}
		}
		return nil
	})

	s.log.Debug("connection accepted", zap.String("conn", id.String()), zap.Bool("synchronous", conn.Synchronous()))
	s.reply(ctx, values, nil, 0)
}

// session is the server side of one client connection.
type session struct {
	s      *Server
	id     uuid.UUID
	conn   transport.Connection
	cancel context.CancelFunc

	mu        sync.Mutex
	endpoints map[uint32]transport.Endpoint

	disconnected atomic.Bool
}

func (ss *session) endpoint(id uint32) (transport.Endpoint, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ep, ok := ss.endpoints[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseChannel, "channel", id)
	}
	return ep, nil
}

func (ss *session) handler(ctx context.Context) func(map[string]any) bool {
	return func(values map[string]any) bool {
		return ss.handle(ctx, values)
	}
}

func (ss *session) handle(ctx context.Context, values map[string]any) (done bool) {
	op := field(values, fieldOp)
	if op == opDisconnect {
		var err error
		if ss.disconnected.CompareAndSwap(false, true) {
			err = ss.conn.Disconnect(ctx)
		}
		ss.s.reply(ctx, values, err, 0)
		ss.s.rdb.Del(ctx, ss.s.keys.inband(ss.id), ss.s.keys.oob(ss.id))
		ss.cancel()
		ss.s.log.Debug("connection closed", zap.String("conn", ss.id.String()))
		return true
	}
	if op == opOpen {
		id, err := ss.open(ctx, values)
		ss.s.reply(ctx, values, err, id)
		return false
	}

	ep, err := ss.endpoint(fieldUint32(values, fieldChannel))
	if err == nil {
		err = ss.apply(ctx, op, ep, values)
	}
	if err != nil {
		ss.s.log.Debug("request failed", zap.String("op", op), zap.Error(err))
	}
	ss.s.reply(ctx, values, err, 0)
	return false
}

func (ss *session) open(ctx context.Context, values map[string]any) (uint32, error) {
	var svc transport.Endpoint
	if id := fieldUint32(values, fieldService); id != 0 {
		ep, err := ss.endpoint(id)
		if err != nil {
			return 0, err
		}
		svc = ep
	}
	ep, err := ss.conn.OpenChannel(ctx, transport.EndpointOptions{
		Service:   svc,
		OutOfBand: field(values, fieldOutOfBand) == "1",
	})
	if err != nil {
		return 0, err
	}
	ss.mu.Lock()
	ss.endpoints[ep.ID()] = ep
	ss.mu.Unlock()
	return ep.ID(), nil
}

func (ss *session) apply(ctx context.Context, op string, ep transport.Endpoint, values map[string]any) error {
	switch op {
	case opBatch:
		b, err := wire.UnmarshalBatch([]byte(field(values, fieldData)))
		if err != nil {
			return err
		}
		return ep.Submit(ctx, b)
	case opPresent:
		return ep.Present(ctx)
	case opFlush:
		return ep.Flush(ctx)
	case opNotifier:
		var sink notify.Sink
		if field(values, fieldData) == "1" {
			sink = ss.publisher()
		}
		return ep.SetNotifier(sink, fieldUint32(values, fieldCode))
	case opClose:
		ss.mu.Lock()
		delete(ss.endpoints, ep.ID())
		ss.mu.Unlock()
		return ep.Close()
	default:
		return errors.Protocol(errors.PhaseApply, "handle", "unknown op "+strconv.Quote(op))
	}
}

// publisher forwards notifications to the client's pub/sub channel.
func (ss *session) publisher() notify.Sink {
	topic := ss.s.keys.notify(ss.id)
	return notify.SinkFunc(func(n notify.Notification) {
		data, _ := n.MarshalBinary()
		if err := ss.s.rdb.Publish(context.Background(), topic, data).Err(); err != nil {
			ss.s.log.Warn("publish notification failed", zap.Error(err))
		}
	})
}
