package channel

import (
	"slices"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
)

// Resource tracks one logical resource across channels. Each channel is an
// independent connection, so the resource has its own handle and reference
// count on every channel it was added to.
//
// Entries for channels that have since been closed are dropped the next time
// the resource is consulted. The zero value is ready to use. Resource is not
// safe for concurrent use.
type Resource struct {
	entries []entry
}

type entry struct {
	ch *Channel
	h  resource.Handle
}

func (r *Resource) find(ch *Channel) int {
	r.entries = slices.DeleteFunc(r.entries, func(e entry) bool { return e.ch.IsClosed() })
	return slices.IndexFunc(r.entries, func(e entry) bool { return e.ch == ch })
}

// CreateOrAddRefOnChannel adds the resource to ch, creating it there on the
// first call. It reports whether this call created it. N calls need N
// matching ReleaseOnChannel calls before the resource is destroyed on ch.
func (r *Resource) CreateOrAddRefOnChannel(owner any, ch *Channel, typ resource.Type) (bool, error) {
	if ch == nil {
		return false, errors.InvalidInput(errors.PhaseResource, "nil channel")
	}
	i := r.find(ch)
	h := resource.Null
	if i >= 0 {
		h = r.entries[i].h
	}

	created, err := ch.CreateOrAddRefOnChannel(owner, &h, typ)
	if err != nil {
		return false, err
	}
	if created {
		r.entries = append(r.entries, entry{ch: ch, h: h})
	}
	return created, nil
}

// ReleaseOnChannel drops one reference on ch and reports whether the
// resource was destroyed there. Releasing on a channel the resource was
// never added to is a protocol error.
func (r *Resource) ReleaseOnChannel(ch *Channel) (bool, error) {
	i := r.find(ch)
	if i < 0 {
		return false, errors.Protocol(errors.PhaseResource, "ReleaseOnChannel", "resource is not on channel")
	}

	destroyed, err := ch.ReleaseOnChannel(r.entries[i].h)
	if destroyed {
		r.entries = slices.Delete(r.entries, i, i+1)
	}
	return destroyed, err
}

// Handle returns the handle of the resource on ch, or resource.Null if the
// resource is not on ch.
func (r *Resource) Handle(ch *Channel) resource.Handle {
	if i := r.find(ch); i >= 0 {
		return r.entries[i].h
	}
	return resource.Null
}

// IsOnChannel reports whether the resource was added to ch and not yet
// destroyed there.
func (r *Resource) IsOnChannel(ch *Channel) bool {
	return r.find(ch) >= 0
}

// RefCount returns the reference count on ch.
func (r *Resource) RefCount(ch *Channel) uint32 {
	if i := r.find(ch); i >= 0 {
		return ch.RefCount(r.entries[i].h)
	}
	return 0
}

// ChannelCount returns the number of channels the resource is on.
func (r *Resource) ChannelCount() int {
	r.find(nil)
	return len(r.entries)
}

// Channels returns the channels the resource is on, in the order it was
// added to them.
func (r *Resource) Channels() []*Channel {
	r.find(nil)
	out := make([]*Channel, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.ch
	}
	return out
}
