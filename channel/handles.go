package channel

import (
	"go.uber.org/zap"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/wire"
)

// CreateOrAddRefOnChannel registers interest in the resource whose handle on
// this channel is stored in *h. A Null handle allocates a new one, queues
// its creation and returns true. A live handle gets its reference count
// incremented and false is returned.
func (c *Channel) CreateOrAddRefOnChannel(owner any, h *resource.Handle, typ resource.Type) (bool, error) {
	if err := c.usable(errors.PhaseResource, "CreateOrAddRefOnChannel"); err != nil {
		return false, err
	}
	if h == nil {
		return false, errors.InvalidInput(errors.PhaseResource, "nil handle pointer")
	}

	if !h.IsNull() {
		if _, ok := c.handles.AddRef(*h); !ok {
			return false, errors.NotFound(errors.PhaseResource, "handle", uint32(*h))
		}
		return false, nil
	}

	if !typ.Valid() {
		return false, errors.InvalidInput(errors.PhaseResource, "invalid resource type "+typ.String())
	}
	nh := c.handles.Allocate(typ, owner)
	if err := c.SendCommand(wire.Encode(wire.CreateResource{Handle: nh, Resource: typ}), false); err != nil {
		c.handles.Release(nh)
		return false, err
	}
	*h = nh
	return true, nil
}

// AddRefOnChannel increments the reference count of a live handle.
func (c *Channel) AddRefOnChannel(h resource.Handle) error {
	if err := c.usable(errors.PhaseResource, "AddRefOnChannel"); err != nil {
		return err
	}
	if _, ok := c.handles.AddRef(h); !ok {
		return errors.NotFound(errors.PhaseResource, "handle", uint32(h))
	}
	return nil
}

// ReleaseOnChannel decrements the reference count of h. When it reaches zero
// the release command is queued, the handle becomes invalid and true is
// returned. Releasing a handle that is not live on this channel is a
// protocol error and changes nothing.
func (c *Channel) ReleaseOnChannel(h resource.Handle) (bool, error) {
	if err := c.usable(errors.PhaseResource, "ReleaseOnChannel"); err != nil {
		return false, err
	}
	if !c.handles.Contains(h) {
		return false, errors.New(errors.PhaseResource, errors.KindProtocol).
			Op("ReleaseOnChannel").
			Channel(c.ID()).
			Handle(uint32(h)).
			Code(errors.CodeInvalidArg).
			Detail("resource is not on this channel").
			Build()
	}
	if c.pending.InCommand() {
		return false, errors.Protocol(errors.PhaseResource, "ReleaseOnChannel", "command in progress")
	}

	remaining, _ := c.handles.Release(h)
	if remaining > 0 {
		return false, nil
	}
	if err := c.SendCommand(wire.Encode(wire.ReleaseResource{Handle: h}), false); err != nil {
		return true, err
	}
	return true, nil
}

// RefCount returns the reference count of h, zero when h is not live.
func (c *Channel) RefCount(h resource.Handle) uint32 {
	return c.handles.RefCount(h)
}

// ResourceType returns the type h was created with.
func (c *Channel) ResourceType(h resource.Handle) (resource.Type, bool) {
	return c.handles.TypeOf(h)
}

// Subscribe registers an observer of the channel's handle table.
func (c *Channel) Subscribe(o resource.Observer) (unsubscribe func()) {
	return c.handles.Subscribe(o)
}

// DuplicateHandle makes the resource behind h addressable on target, which
// must share this channel's connection. The returned handle is live on
// target with a reference count of one and is released with
// target.ReleaseOnChannel. The duplicate exists on the compositor once this
// channel commits.
func (c *Channel) DuplicateHandle(h resource.Handle, target *Channel) (resource.Handle, error) {
	if err := c.usable(errors.PhaseResource, "DuplicateHandle"); err != nil {
		return resource.Null, err
	}
	if target == nil {
		return resource.Null, errors.InvalidInput(errors.PhaseResource, "nil target channel")
	}
	if err := target.usable(errors.PhaseResource, "DuplicateHandle"); err != nil {
		return resource.Null, err
	}
	if target.conn != c.conn {
		return resource.Null, errors.InvalidInput(errors.PhaseResource, "target channel belongs to another connection")
	}

	typ, ok := c.handles.TypeOf(h)
	if !ok {
		return resource.Null, errors.NotFound(errors.PhaseResource, "handle", uint32(h))
	}
	owner, _ := c.handles.Owner(h)

	dup := target.handles.Allocate(typ, owner)
	rec := wire.Encode(wire.DuplicateHandle{Original: h, TargetChannel: target.ID(), Duplicate: dup})
	if err := c.SendCommand(rec, false); err != nil {
		target.handles.Release(dup)
		return resource.Null, err
	}
	c.log.Debug("handle duplicated",
		zap.Uint32("handle", uint32(h)),
		zap.Uint32("target", target.ID()),
		zap.Uint32("duplicate", uint32(dup)))
	return dup, nil
}
