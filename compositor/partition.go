package compositor

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

type jobKind uint8

const (
	jobBatch jobKind = iota
	jobPresent
	jobFlush
)

type job struct {
	ch    *channelState
	batch *wire.Batch
	done  chan error
	kind  jobKind
}

type channelState struct {
	resources map[resource.Handle]resource.Type
	sink      notify.Sink
	failure   error
	id        uint32
	code      uint32
	seq       uint64
	batches   uint64
	presents  uint64
	outOfBand bool
	notifyOn  bool
	closed    bool
}

// partition is the compositor side of one connection.
type partition struct {
	id          uuid.UUID
	owner       *Compositor
	synchronous bool

	mu       sync.Mutex
	channels map[uint32]*channelState
	counters Stats
	failure  error

	inband chan job
	oob    chan job
	done   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group

	disconnected atomic.Bool
}

var _ transport.Connection = (*partition)(nil)

func newPartition(owner *Compositor, synchronous bool) *partition {
	p := &partition{
		id:          uuid.New(),
		owner:       owner,
		synchronous: synchronous,
		channels:    make(map[uint32]*channelState),
		done:        make(chan struct{}),
	}
	if synchronous {
		return p
	}

	p.inband = make(chan job, owner.queueDepth)
	p.oob = make(chan job, owner.queueDepth)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)
	p.group.Go(func() error { return p.run(ctx) })
	return p
}

func (p *partition) Synchronous() bool { return p.synchronous }

func (p *partition) OpenChannel(ctx context.Context, opts transport.EndpointOptions) (transport.Endpoint, error) {
	if p.disconnected.Load() {
		return nil, errors.Closed(errors.PhaseChannel, 0, "OpenChannel")
	}
	if opts.Service != nil {
		svc, ok := opts.Service.(*endpoint)
		if !ok || svc.p != p {
			return nil, errors.InvalidInput(errors.PhaseChannel, "service endpoint belongs to another partition")
		}
	}

	ch := &channelState{
		id:        p.owner.nextChannel.Add(1),
		outOfBand: opts.OutOfBand,
		resources: make(map[resource.Handle]resource.Type),
		notifyOn:  true,
	}

	p.mu.Lock()
	p.channels[ch.id] = ch
	p.mu.Unlock()

	return &endpoint{p: p, ch: ch}, nil
}

func (p *partition) Disconnect(ctx context.Context) error {
	if !p.disconnected.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseDisconnect, errors.KindConnection).
			Op("Disconnect").
			Code(errors.CodeNotConnected).
			Detail("already disconnected").
			Build()
	}
	close(p.done)

	var err error
	if p.cancel != nil {
		p.cancel()
		err = p.group.Wait()
	}

	p.mu.Lock()
	for id, ch := range p.channels {
		ch.closed = true
		delete(p.channels, id)
	}
	p.mu.Unlock()

	p.owner.remove(p)
	p.owner.log.Debug("partition disconnected", zap.String("partition", p.id.String()))
	return err
}

// run is the worker loop of an asynchronous partition. Out-of-band work is
// always taken before in-band work.
func (p *partition) run(ctx context.Context) error {
	for {
		select {
		case j := <-p.oob:
			p.process(j)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case j := <-p.oob:
			p.process(j)
		case j := <-p.inband:
			p.process(j)
		}
	}
}

// drain discards queued work after disconnect.
func (p *partition) drain() {
	for {
		select {
		case j := <-p.oob:
			p.discard(j)
		case j := <-p.inband:
			p.discard(j)
		default:
			return
		}
	}
}

func (p *partition) discard(j job) {
	if j.batch != nil {
		j.batch.Release()
	}
	if j.done != nil {
		j.done <- errors.Closed(errors.PhaseCommit, j.ch.id, "Flush")
	}
	p.mu.Lock()
	p.counters.Discarded++
	p.mu.Unlock()
}

func (p *partition) enqueue(ctx context.Context, j job) error {
	q := p.inband
	if j.ch.outOfBand {
		q = p.oob
	}
	select {
	case q <- j:
		return nil
	case <-p.done:
	case <-ctx.Done():
		if j.batch != nil {
			j.batch.Release()
		}
		return errors.Transmission(errors.PhaseCommit, j.ch.id, "enqueue", ctx.Err())
	}
	if j.batch != nil {
		j.batch.Release()
	}
	return errors.Closed(errors.PhaseCommit, j.ch.id, "enqueue")
}

func (p *partition) process(j job) {
	switch j.kind {
	case jobFlush:
		j.done <- nil
	case jobPresent:
		p.present(j.ch)
	case jobBatch:
		err := p.applyBatch(j.ch, j.batch)
		if err != nil {
			p.owner.log.Warn("batch rejected",
				zap.String("partition", p.id.String()),
				zap.Uint32("channel", j.ch.id),
				zap.Error(err))
		}
	}
}

// applyBatch applies every record of b on behalf of ch and releases b.
// The first invalid record aborts the batch. An asynchronous partition
// fails as a whole; on a synchronous partition only ch fails.
func (p *partition) applyBatch(ch *channelState, b *wire.Batch) error {
	defer b.Release()

	p.mu.Lock()
	if ch.closed {
		p.counters.Discarded++
		p.mu.Unlock()
		return nil
	}

	var err error
	for i := 0; i < b.Count(); i++ {
		rec := b.Record(i)
		if p.owner.recorder != nil {
			p.owner.recorder(ch.id, rec)
		}
		if err = p.apply(ch, rec); err != nil {
			break
		}
		p.counters.Commands++
		p.counters.Bytes += uint64(len(rec))
	}

	ch.seq++
	ch.batches++
	p.counters.Batches++
	if err != nil {
		p.counters.Errors++
		switch {
		case p.synchronous:
			if ch.failure == nil {
				ch.failure = err
			}
		case p.failure == nil:
			p.failure = err
		}
	}
	n, sink := p.notification(ch, notify.BatchProcessed, err)
	p.mu.Unlock()

	if sink != nil {
		sink.Notify(n)
	}
	return err
}

func (p *partition) present(ch *channelState) {
	p.mu.Lock()
	if ch.closed {
		p.mu.Unlock()
		return
	}
	ch.presents++
	p.counters.Presents++
	n, sink := p.notification(ch, notify.Presented, nil)
	p.mu.Unlock()

	if sink != nil {
		sink.Notify(n)
	}
}

// notification builds the notification for ch. Callers hold p.mu and
// deliver after unlocking.
func (p *partition) notification(ch *channelState, typ notify.Type, err error) (notify.Notification, notify.Sink) {
	if ch.sink == nil || !ch.notifyOn {
		return notify.Notification{}, nil
	}
	n := notify.Notification{
		Type:     typ,
		Code:     ch.code,
		Channel:  ch.id,
		Sequence: ch.seq,
	}
	if err != nil {
		n.Type = notify.PartitionError
		n.Result = errors.CodeOf(err)
	}
	return n, ch.sink
}

func (p *partition) broadcast(typ notify.Type) {
	type delivery struct {
		sink notify.Sink
		n    notify.Notification
	}
	var out []delivery

	p.mu.Lock()
	for _, ch := range p.channels {
		if n, sink := p.notification(ch, typ, nil); sink != nil {
			out = append(out, delivery{sink: sink, n: n})
		}
	}
	p.mu.Unlock()

	for _, d := range out {
		d.sink.Notify(d.n)
	}
}

func (p *partition) stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.counters
	s.Partitions = 1
	s.Channels = len(p.channels)
	for _, ch := range p.channels {
		s.Resources += len(ch.resources)
	}
	return s
}

func (p *partition) channelInfo(id uint32) (ChannelInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return ChannelInfo{}, false
	}
	return ChannelInfo{
		ID:          ch.id,
		Partition:   p.id,
		Synchronous: p.synchronous,
		OutOfBand:   ch.outOfBand,
		Resources:   maps.Clone(ch.resources),
		Batches:     ch.batches,
		Presents:    ch.presents,
	}, true
}

// failed returns the failure that blocks submits on ch, if any.
func (p *partition) failed(ch *channelState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return p.failure
	}
	return ch.failure
}
