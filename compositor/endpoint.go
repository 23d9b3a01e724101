package compositor

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

type endpoint struct {
	p      *partition
	ch     *channelState
	closed atomic.Bool
}

var _ transport.Endpoint = (*endpoint)(nil)

func (e *endpoint) ID() uint32 { return e.ch.id }

func (e *endpoint) usable(phase errors.Phase, op string) error {
	if e.closed.Load() || e.p.disconnected.Load() {
		return errors.Closed(phase, e.ch.id, op)
	}
	return nil
}

func (e *endpoint) Submit(ctx context.Context, b *wire.Batch) error {
	if err := e.usable(errors.PhaseCommit, "Submit"); err != nil {
		b.Release()
		return err
	}
	if err := e.p.failed(e.ch); err != nil {
		b.Release()
		return errors.Transmission(errors.PhaseCommit, e.ch.id, "Submit", err)
	}

	if e.p.synchronous {
		if err := e.p.applyBatch(e.ch, b); err != nil {
			return errors.Transmission(errors.PhaseCommit, e.ch.id, "Submit", err)
		}
		return nil
	}
	return e.p.enqueue(ctx, job{kind: jobBatch, ch: e.ch, batch: b})
}

func (e *endpoint) Present(ctx context.Context) error {
	if err := e.usable(errors.PhasePresent, "Present"); err != nil {
		return err
	}
	if e.p.synchronous {
		e.p.present(e.ch)
		return nil
	}
	return e.p.enqueue(ctx, job{kind: jobPresent, ch: e.ch})
}

func (e *endpoint) Flush(ctx context.Context) error {
	if err := e.usable(errors.PhaseCommit, "Flush"); err != nil {
		return err
	}
	if e.p.synchronous {
		return nil
	}

	done := make(chan error, 1)
	if err := e.p.enqueue(ctx, job{kind: jobFlush, ch: e.ch, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-e.p.done:
		return errors.Closed(errors.PhaseCommit, e.ch.id, "Flush")
	case <-ctx.Done():
		return errors.Transmission(errors.PhaseCommit, e.ch.id, "Flush", ctx.Err())
	}
}

func (e *endpoint) SetNotifier(sink notify.Sink, code uint32) error {
	if err := e.usable(errors.PhaseNotify, "SetNotifier"); err != nil {
		return err
	}
	if e.p.synchronous {
		return errors.Protocol(errors.PhaseNotify, "SetNotifier", "synchronous channels do not deliver notifications")
	}
	e.p.mu.Lock()
	e.ch.sink = sink
	e.ch.code = code
	e.p.mu.Unlock()
	return nil
}

func (e *endpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.p.mu.Lock()
	e.ch.closed = true
	e.ch.sink = nil
	clear(e.ch.resources)
	delete(e.p.channels, e.ch.id)
	e.p.mu.Unlock()
	return nil
}
