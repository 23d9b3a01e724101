package compositor

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

func batchOf(t *testing.T, cmds ...wire.Command) *wire.Batch {
	t.Helper()
	b := wire.NewBatch()
	for _, c := range cmds {
		if err := b.Append(wire.Encode(c)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return b
}

func open(t *testing.T, c *Compositor, synchronous bool) (transport.Connection, transport.Endpoint) {
	t.Helper()
	ctx := context.Background()
	conn, err := c.Connect(ctx, synchronous)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ep, err := conn.OpenChannel(ctx, transport.EndpointOptions{})
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	return conn, ep
}

func TestSynchronousSubmitAppliesInline(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, true)

	err := ep.Submit(context.Background(), batchOf(t,
		wire.CreateResource{Handle: 1, Resource: resource.TypeSolidColorBrush},
		wire.SolidColorBrush{Handle: 1, Opacity: 1},
	))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	info, ok := c.Channel(ep.ID())
	if !ok {
		t.Fatal("channel not found")
	}
	if info.Resources[1] != resource.TypeSolidColorBrush {
		t.Fatalf("resources = %v", info.Resources)
	}
	if !info.Synchronous || info.Batches != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestSynchronousSubmitReturnsApplyError(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, true)
	ctx := context.Background()

	err := ep.Submit(ctx, batchOf(t, wire.ReleaseResource{Handle: 5}))
	if !errors.IsKind(err, errors.KindTransmission) || !errors.IsKind(err, errors.KindProtocol) {
		t.Fatalf("Submit error = %v, want transmission caused by protocol", err)
	}

	// The channel stays failed.
	err = ep.Submit(ctx, batchOf(t, wire.CreateResource{Handle: 1, Resource: resource.TypeVisual}))
	if !errors.IsKind(err, errors.KindTransmission) {
		t.Fatalf("Submit after failure = %v, want transmission", err)
	}
	if s := c.Stats(); s.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", s.Errors)
	}
}

func TestSynchronousFailureIsPerChannel(t *testing.T) {
	c := New()
	defer c.Close()
	ctx := context.Background()
	conn, bad := open(t, c, true)

	good, err := conn.OpenChannel(ctx, transport.EndpointOptions{})
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	if err := bad.Submit(ctx, batchOf(t, wire.ReleaseResource{Handle: 42})); err == nil {
		t.Fatal("Submit of unknown release succeeded")
	}

	err = good.Submit(ctx, batchOf(t, wire.CreateResource{Handle: 1, Resource: resource.TypeVisual}))
	if err != nil {
		t.Fatalf("sibling Submit = %v, want nil", err)
	}

	fresh, err := conn.OpenChannel(ctx, transport.EndpointOptions{})
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	err = fresh.Submit(ctx, batchOf(t, wire.CreateResource{Handle: 1, Resource: resource.TypeVisual}))
	if err != nil {
		t.Fatalf("fresh Submit = %v, want nil", err)
	}
}

func TestAsyncOrderingAndFlush(t *testing.T) {
	var mu sync.Mutex
	var applied [][]byte
	c := New(WithRecorder(func(_ uint32, rec []byte) {
		mu.Lock()
		applied = append(applied, append([]byte(nil), rec...))
		mu.Unlock()
	}))
	defer c.Close()
	_, ep := open(t, c, false)
	ctx := context.Background()

	var want [][]byte
	for i := 1; i <= 20; i++ {
		cmd := wire.CreateResource{Handle: resource.Handle(i), Resource: resource.TypeVisual}
		want = append(want, wire.Encode(cmd))
		if err := ep.Submit(ctx, batchOf(t, cmd)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := ep.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(applied) != len(want) {
		t.Fatalf("applied %d records, want %d", len(applied), len(want))
	}
	for i := range want {
		if !bytes.Equal(applied[i], want[i]) {
			t.Fatalf("record %d applied out of order", i)
		}
	}
}

func TestAsyncNotifications(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, false)
	ctx := context.Background()

	sink := make(notify.ChanSink, 8)
	if err := ep.SetNotifier(sink, 0x401); err != nil {
		t.Fatalf("SetNotifier: %v", err)
	}

	ep.Submit(ctx, batchOf(t, wire.CreateResource{Handle: 1, Resource: resource.TypeCompositionTarget}))
	ep.Present(ctx)
	ep.Flush(ctx)

	got := []notify.Notification{recv(t, sink), recv(t, sink)}
	if got[0].Type != notify.BatchProcessed || got[0].Code != 0x401 || got[0].Sequence != 1 {
		t.Fatalf("first notification = %+v", got[0])
	}
	if got[1].Type != notify.Presented || got[1].Channel != ep.ID() {
		t.Fatalf("second notification = %+v", got[1])
	}

	c.BroadcastEnvironmentChange()
	if n := recv(t, sink); n.Type != notify.EnvironmentChanged {
		t.Fatalf("broadcast notification = %+v", n)
	}
}

func TestAsyncRejectedBatchNotifiesError(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, false)
	ctx := context.Background()

	sink := make(notify.ChanSink, 4)
	ep.SetNotifier(sink, 1)
	ep.Submit(ctx, batchOf(t, wire.SolidColorBrush{Handle: 9}))
	ep.Flush(ctx)

	n := recv(t, sink)
	if n.Type != notify.PartitionError || n.Result != errors.CodeInvalidArg {
		t.Fatalf("notification = %+v", n)
	}
	if err := ep.Submit(ctx, batchOf(t, wire.ReleaseResource{Handle: 1})); !errors.IsKind(err, errors.KindTransmission) {
		t.Fatalf("Submit after failure = %v", err)
	}
}

func TestRegisterNotificationsCommand(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, false)
	ctx := context.Background()

	sink := make(notify.ChanSink, 4)
	ep.SetNotifier(sink, 1)
	ep.Submit(ctx, batchOf(t, wire.RegisterNotifications{Code: 7, Enable: false}))
	ep.Submit(ctx, batchOf(t, wire.CreateResource{Handle: 1, Resource: resource.TypeVisual}))
	ep.Flush(ctx)

	select {
	case n := <-sink:
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}

func TestSynchronousRejectsNotifier(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, true)
	if err := ep.SetNotifier(make(notify.ChanSink, 1), 1); !errors.IsKind(err, errors.KindProtocol) {
		t.Fatalf("SetNotifier error = %v, want protocol", err)
	}
}

func TestDuplicateHandle(t *testing.T) {
	c := New()
	defer c.Close()
	ctx := context.Background()
	conn, src := open(t, c, true)
	dst, err := conn.OpenChannel(ctx, transport.EndpointOptions{Service: src})
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}

	err = src.Submit(ctx, batchOf(t,
		wire.CreateResource{Handle: 1, Resource: resource.TypePen},
		wire.DuplicateHandle{Original: 1, TargetChannel: dst.ID(), Duplicate: 4},
	))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	info, _ := c.Channel(dst.ID())
	if info.Resources[4] != resource.TypePen {
		t.Fatalf("duplicate not present: %v", info.Resources)
	}
}

func TestServiceFromOtherPartitionRejected(t *testing.T) {
	c := New()
	defer c.Close()
	_, ep := open(t, c, true)

	conn2, err := c.Connect(context.Background(), true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, err = conn2.OpenChannel(context.Background(), transport.EndpointOptions{Service: ep})
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("OpenChannel error = %v, want invalid input", err)
	}
}

func TestEndpointCloseAndDisconnect(t *testing.T) {
	c := New()
	defer c.Close()
	conn, ep := open(t, c, false)
	ctx := context.Background()

	if err := ep.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ep.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := ep.Submit(ctx, wire.NewBatch()); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("Submit after Close = %v, want closed", err)
	}
	if _, ok := c.Channel(ep.ID()); ok {
		t.Fatal("closed channel still visible")
	}

	if err := conn.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := conn.Disconnect(ctx); !errors.IsKind(err, errors.KindConnection) {
		t.Fatalf("second Disconnect = %v, want connection error", err)
	}
	if c.Partitions() != 0 {
		t.Fatalf("Partitions = %d, want 0", c.Partitions())
	}
	if _, err := conn.OpenChannel(ctx, transport.EndpointOptions{}); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("OpenChannel after Disconnect = %v", err)
	}
}

func TestCloseDisconnectsAll(t *testing.T) {
	c := New()
	open(t, c, false)
	open(t, c, true)
	if c.Partitions() != 2 {
		t.Fatalf("Partitions = %d, want 2", c.Partitions())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Partitions() != 0 {
		t.Fatalf("Partitions after Close = %d", c.Partitions())
	}
	if _, err := c.Connect(context.Background(), false); !errors.IsKind(err, errors.KindConnection) {
		t.Fatalf("Connect after Close = %v", err)
	}
}

func TestOutOfBandChannel(t *testing.T) {
	c := New()
	defer c.Close()
	ctx := context.Background()
	conn, svc := open(t, c, false)
	oob, err := conn.OpenChannel(ctx, transport.EndpointOptions{Service: svc, OutOfBand: true})
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}

	sink := make(notify.ChanSink, 1)
	oob.SetNotifier(sink, 2)
	oob.Present(ctx)
	if err := oob.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := recv(t, sink); n.Type != notify.Presented {
		t.Fatalf("notification = %+v", n)
	}
	info, _ := c.Channel(oob.ID())
	if !info.OutOfBand || info.Presents != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func recv(t *testing.T, sink notify.ChanSink) notify.Notification {
	t.Helper()
	select {
	case n := <-sink:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return notify.Notification{}
	}
}
