// Package resource provides composition resource handles and the per-channel
// handle table.
//
// A handle identifies a compositor-side object on exactly one channel. The same
// logical resource added to two channels has two independent handles, so every
// channel owns its own Table:
//
//	table := resource.NewTable()
//
//	// First creation allocates a handle with a reference count of one.
//	h := table.Allocate(resource.TypeSolidColorBrush, brush)
//
//	// Further owners add references.
//	table.AddRef(h)
//
//	// The slot is freed when the last reference is released.
//	if remaining, _ := table.Release(h); remaining == 0 {
//	    // send the release command to the compositor
//	}
//
// # Type Tags
//
// Every handle carries the Type supplied at creation. The compositor uses it
// to interpret update commands referencing the handle.
//
// # Observers
//
// Observers see every lifecycle transition:
//
//	stop := table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %d (%s) refs=%d", e.Type, e.Handle, e.Resource, e.RefCount)
//	}))
//	defer stop()
//
// # Thread Safety
//
// A Table belongs to a single channel, and a channel belongs to a single
// rendering context. Tables perform no locking.
package resource
