package redistransport

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

// Dialer connects to a compositor served over Redis by a Server.
type Dialer struct {
	rdb  redis.UniversalClient
	keys keys
	opts Options
	log  *zap.Logger
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer using rdb.
func NewDialer(rdb redis.UniversalClient, opts Options) *Dialer {
	opts = opts.withDefaults()
	return &Dialer{
		rdb:  rdb,
		keys: keys{prefix: opts.Prefix},
		opts: opts,
		log:  opts.Logger.Named("redistransport"),
	}
}

// Connect announces a new connection and waits for the server to accept it.
// Asynchronous connections subscribe to their notification channel first.
func (d *Dialer) Connect(ctx context.Context, synchronous bool) (transport.Connection, error) {
	c := &conn{
		d:           d,
		id:          uuid.New(),
		synchronous: synchronous,
		registry:    notify.NewRegistry(),
		sinks:       make(map[uint32]notify.ID),
	}

	if !synchronous {
		c.sub = d.rdb.Subscribe(ctx, d.keys.notify(c.id))
		if _, err := c.sub.Receive(ctx); err != nil {
			c.sub.Close()
			return nil, errors.Connection(errors.PhaseConnect, "Subscribe", err)
		}
		c.wg.Add(1)
		go c.listen()
	}

	_, err := d.request(ctx, errors.PhaseConnect, "Connect", d.keys.connectStream(), map[string]any{
		fieldOp:   opConnect,
		fieldConn: c.id.String(),
		fieldSync: formatBool(synchronous),
	})
	if err != nil {
		c.stop()
		return nil, errors.Connection(errors.PhaseConnect, "Connect", err)
	}

	d.log.Debug("connected", zap.String("conn", c.id.String()), zap.Bool("synchronous", synchronous))
	return c, nil
}

func (d *Dialer) post(ctx context.Context, stream string, values map[string]any) error {
	return d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: d.opts.MaxStreamLen,
		Approx: true,
		Values: values,
	}).Err()
}

// request posts values with a fresh request id and blocks for the reply.
func (d *Dialer) request(ctx context.Context, phase errors.Phase, op, stream string, values map[string]any) (uint32, error) {
	req, err := d.rdb.Incr(ctx, d.keys.requestSeq()).Result()
	if err != nil {
		return 0, errors.Transmission(phase, 0, op, err)
	}
	values[fieldReq] = strconv.FormatInt(req, 10)
	if err := d.post(ctx, stream, values); err != nil {
		return 0, errors.Transmission(phase, 0, op, err)
	}

	res, err := d.rdb.BLPop(ctx, d.opts.ReplyTimeout, d.keys.reply(req)).Result()
	if stderrors.Is(err, redis.Nil) {
		return 0, errors.New(phase, errors.KindTransmission).
			Op(op).
			Code(errors.CodeTimeout).
			Detail("no reply within %s", d.opts.ReplyTimeout).
			Build()
	}
	if err != nil {
		return 0, errors.Transmission(phase, 0, op, err)
	}

	code, value, err := decodeReply(res[1])
	if err != nil {
		return 0, err
	}
	if code.Failed() {
		return 0, errors.New(phase, errors.KindTransmission).
			Op(op).
			Code(code).
			Detail("rejected by compositor").
			Build()
	}
	return value, nil
}

type conn struct {
	d           *Dialer
	id          uuid.UUID
	synchronous bool

	sub      *redis.PubSub
	wg       sync.WaitGroup
	registry *notify.Registry

	mu    sync.Mutex
	sinks map[uint32]notify.ID

	disconnected atomic.Bool
}

var _ transport.Connection = (*conn)(nil)

func (c *conn) Synchronous() bool { return c.synchronous }

func (c *conn) stream(outOfBand bool) string {
	if outOfBand {
		return c.d.keys.oob(c.id)
	}
	return c.d.keys.inband(c.id)
}

func (c *conn) OpenChannel(ctx context.Context, opts transport.EndpointOptions) (transport.Endpoint, error) {
	if c.disconnected.Load() {
		return nil, errors.Closed(errors.PhaseChannel, 0, "OpenChannel")
	}
	var svc uint32
	if opts.Service != nil {
		e, ok := opts.Service.(*endpoint)
		if !ok || e.c != c {
			return nil, errors.InvalidInput(errors.PhaseChannel, "service endpoint belongs to another connection")
		}
		svc = e.id
	}

	stream := c.stream(opts.OutOfBand)
	id, err := c.d.request(ctx, errors.PhaseChannel, "OpenChannel", stream, map[string]any{
		fieldOp:        opOpen,
		fieldService:   strconv.FormatUint(uint64(svc), 10),
		fieldOutOfBand: formatBool(opts.OutOfBand),
	})
	if err != nil {
		return nil, err
	}
	return &endpoint{c: c, id: id, stream: stream}, nil
}

func (c *conn) Disconnect(ctx context.Context) error {
	if !c.disconnected.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseDisconnect, errors.KindConnection).
			Op("Disconnect").
			Code(errors.CodeNotConnected).
			Detail("already disconnected").
			Build()
	}
	_, err := c.d.request(ctx, errors.PhaseDisconnect, "Disconnect", c.d.keys.inband(c.id), map[string]any{
		fieldOp: opDisconnect,
	})
	c.stop()
	if err != nil {
		return errors.Connection(errors.PhaseDisconnect, "Disconnect", err)
	}
	c.d.log.Debug("disconnected", zap.String("conn", c.id.String()))
	return nil
}

func (c *conn) stop() {
	c.registry.Close()
	if c.sub != nil {
		c.sub.Close()
		c.wg.Wait()
	}
}

// listen decodes published notifications and routes them by channel id.
func (c *conn) listen() {
	defer c.wg.Done()
	for msg := range c.sub.Channel() {
		n, err := notify.Unmarshal([]byte(msg.Payload))
		if err != nil {
			c.d.log.Warn("dropping malformed notification", zap.Error(err))
			continue
		}
		c.mu.Lock()
		id, ok := c.sinks[n.Channel]
		c.mu.Unlock()
		if ok {
			c.registry.Deliver(id, n)
		}
	}
}

func (c *conn) setSink(channel uint32, sink notify.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.sinks[channel]; ok {
		c.registry.Unregister(old)
		delete(c.sinks, channel)
	}
	if sink != nil {
		c.sinks[channel] = c.registry.Register(sink)
	}
}

type endpoint struct {
	c      *conn
	id     uint32
	stream string
	closed atomic.Bool
}

var _ transport.Endpoint = (*endpoint)(nil)

func (e *endpoint) ID() uint32 { return e.id }

func (e *endpoint) usable(phase errors.Phase, op string) error {
	if e.closed.Load() || e.c.disconnected.Load() {
		return errors.Closed(phase, e.id, op)
	}
	return nil
}

func (e *endpoint) values(op string) map[string]any {
	return map[string]any{
		fieldOp:      op,
		fieldChannel: strconv.FormatUint(uint64(e.id), 10),
	}
}

// send posts op, waiting for the reply when wait is set.
func (e *endpoint) send(ctx context.Context, phase errors.Phase, name string, values map[string]any, wait bool) error {
	if !wait {
		if err := e.c.d.post(ctx, e.stream, values); err != nil {
			return errors.Transmission(phase, e.id, name, err)
		}
		return nil
	}
	_, err := e.c.d.request(ctx, phase, name, e.stream, values)
	return err
}

func (e *endpoint) Submit(ctx context.Context, b *wire.Batch) error {
	data, err := b.MarshalBinary()
	b.Release()
	if err != nil {
		return err
	}
	if err := e.usable(errors.PhaseCommit, "Submit"); err != nil {
		return err
	}
	values := e.values(opBatch)
	values[fieldData] = data
	return e.send(ctx, errors.PhaseCommit, "Submit", values, e.c.synchronous)
}

func (e *endpoint) Present(ctx context.Context) error {
	if err := e.usable(errors.PhasePresent, "Present"); err != nil {
		return err
	}
	return e.send(ctx, errors.PhasePresent, "Present", e.values(opPresent), e.c.synchronous)
}

func (e *endpoint) Flush(ctx context.Context) error {
	if err := e.usable(errors.PhaseCommit, "Flush"); err != nil {
		return err
	}
	if e.c.synchronous {
		return nil
	}
	return e.send(ctx, errors.PhaseCommit, "Flush", e.values(opFlush), true)
}

func (e *endpoint) SetNotifier(sink notify.Sink, code uint32) error {
	if err := e.usable(errors.PhaseNotify, "SetNotifier"); err != nil {
		return err
	}
	if e.c.synchronous {
		return errors.Protocol(errors.PhaseNotify, "SetNotifier", "synchronous channels do not deliver notifications")
	}

	e.c.setSink(e.id, sink)
	values := e.values(opNotifier)
	values[fieldCode] = strconv.FormatUint(uint64(code), 10)
	values[fieldData] = formatBool(sink != nil)
	return e.send(context.Background(), errors.PhaseNotify, "SetNotifier", values, true)
}

func (e *endpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.c.setSink(e.id, nil)
	if e.c.disconnected.Load() {
		return nil
	}
	return e.send(context.Background(), errors.PhaseChannel, "Close", e.values(opClose), false)
}
