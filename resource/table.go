package resource

// Table is the handle table of one channel. It maps handles to resource
// type, owner and reference count, and reuses freed slots.
//
// Table is not safe for concurrent use. It is mutated only by the goroutine
// that owns the channel.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []observerSlot
	nextObs   int
	live      int
}

type entry struct {
	owner any
	typ   Type
	refs  uint32
	valid bool
}

type observerSlot struct {
	o  Observer
	id int
}

// NewTable creates an empty handle table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Allocate stores a new resource with a reference count of one and returns
// its handle.
func (t *Table) Allocate(typ Type, owner any) Handle {
	e := entry{
		owner: owner,
		typ:   typ,
		refs:  1,
		valid: true,
	}

	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.live++

	t.notify(Event{Type: EventCreated, Handle: h, Resource: typ, Owner: owner, RefCount: 1})
	return h
}

// AddRef increments the reference count of h and returns the new count.
func (t *Table) AddRef(h Handle) (uint32, bool) {
	e := t.lookup(h)
	if e == nil {
		return 0, false
	}
	e.refs++
	t.notify(Event{Type: EventAddRef, Handle: h, Resource: e.typ, Owner: e.owner, RefCount: e.refs})
	return e.refs, true
}

// Release decrements the reference count of h. When the count reaches zero
// the slot is freed and remaining is 0. ok is false if h is not live.
func (t *Table) Release(h Handle) (remaining uint32, ok bool) {
	e := t.lookup(h)
	if e == nil {
		return 0, false
	}

	e.refs--
	if e.refs > 0 {
		t.notify(Event{Type: EventReleased, Handle: h, Resource: e.typ, Owner: e.owner, RefCount: e.refs})
		return e.refs, true
	}

	ev := Event{Type: EventDestroyed, Handle: h, Resource: e.typ, Owner: e.owner}
	*e = entry{}
	t.freeList = append(t.freeList, h)
	t.live--
	t.notify(ev)
	return 0, true
}

// RefCount returns the reference count of h, or 0 if h is not live.
func (t *Table) RefCount(h Handle) uint32 {
	if e := t.lookup(h); e != nil {
		return e.refs
	}
	return 0
}

// TypeOf returns the resource type of h.
func (t *Table) TypeOf(h Handle) (Type, bool) {
	if e := t.lookup(h); e != nil {
		return e.typ, true
	}
	return TypeNull, false
}

// Owner returns the owner recorded when h was allocated.
func (t *Table) Owner(h Handle) (any, bool) {
	if e := t.lookup(h); e != nil {
		return e.owner, true
	}
	return nil, false
}

// Contains reports whether h is live.
func (t *Table) Contains(h Handle) bool {
	return t.lookup(h) != nil
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.live
}

// Each iterates over live handles in slot order until fn returns false.
func (t *Table) Each(fn func(h Handle, typ Type, refs uint32) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.valid && !fn(Handle(i+1), e.typ, e.refs) {
			return
		}
	}
}

// Clear forgets every handle without emitting destroy events.
// Used when the owning channel closes and the transport discards its state.
func (t *Table) Clear() {
	t.entries = t.entries[:0]
	t.freeList = t.freeList[:0]
	t.live = 0
}

// Subscribe adds an observer for lifecycle events and returns a function
// that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observerSlot{o: o, id: id})
	return func() {
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Table) lookup(h Handle) *entry {
	if h == Null || int(h) > len(t.entries) {
		return nil
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil
	}
	return e
}

func (t *Table) notify(e Event) {
	for _, s := range t.observers {
		s.o.OnResourceEvent(e)
	}
}
