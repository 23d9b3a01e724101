// Package duce implements the channel and resource protocol between a
// composition object model and its compositor.
//
// A scene layer creates resources (brushes, geometries, transforms, visuals)
// on channels and updates them with binary command records. Channels batch
// those records and transmit them to a compositor partition, which applies
// them in order and reports back through notifications.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	duce/
//	├── composition/     System (process context) and Manager (channels of one context)
//	├── channel/         Channel batching and per-channel resource lifecycle
//	├── resource/        Handle type, resource type tags, ref-counted handle table
//	├── wire/            Command records, batch builder, batch codec
//	├── notify/          Notification records, sinks, id-keyed registry
//	├── transport/       Dialer, Connection and Endpoint interfaces
//	│   └── redistransport/  Transport over Redis streams and pub/sub
//	├── compositor/      In-process compositor partitions
//	├── errors/          Structured error types
//	└── cmd/ducectl/     Scenario runner
//
// # Quick Start
//
//	comp := compositor.New()
//	defer comp.Close()
//
//	sys := composition.NewSystem(comp)
//	if err := sys.Acquire(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sys.Release()
//
//	m, _ := composition.NewManager(sys, composition.DefaultConfig())
//	if err := m.CreateChannels(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.RemoveChannels()
//
//	var brush channel.Resource
//	ch := m.Channel()
//	brush.CreateOrAddRefOnChannel(nil, ch, resource.TypeSolidColorBrush)
//	ch.SendCommand(wire.Encode(wire.SolidColorBrush{
//	    Handle:  brush.Handle(ch),
//	    Opacity: 1,
//	    Color:   wire.Color{R: 1, A: 1},
//	}), false)
//	ch.Commit(ctx)
//
// # Reference Counting
//
// A resource is owned jointly by every caller that added it to a channel.
// Each CreateOrAddRefOnChannel needs a matching ReleaseOnChannel; the
// release command is queued only when the count on that channel reaches
// zero. Handles are per channel: the same resource may have different
// handles on different channels.
//
// # Thread Safety
//
// System and the compositor are safe for concurrent use. Manager, Channel
// and Resource belong to the goroutine that owns the rendering context and
// must not be shared without external synchronization.
//
// # Ordering
//
// Records on one channel are applied in the order they were sent. There is
// no ordering between channels unless the caller waits, for example with
// SyncFlush. Out-of-band channels are served before in-band work so urgent
// requests do not wait behind bulk updates.
package duce
