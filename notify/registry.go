package notify

import "sync"

// ID identifies a registered sink. IDs are never reused within a Registry.
type ID uint64

// Registry is an id-keyed registration table for notification targets. The
// transport holds only an ID-bound Sink; once the target unregisters,
// deliveries to its ID are dropped.
type Registry struct {
	mu     sync.RWMutex
	sinks  map[ID]Sink
	nextID ID
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[ID]Sink)}
}

// Register stores sink and returns its id. Returns 0 after Close.
func (r *Registry) Register(sink Sink) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	r.nextID++
	r.sinks[r.nextID] = sink
	return r.nextID
}

// Unregister removes id. Later deliveries to id are dropped.
func (r *Registry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

// Deliver forwards n to the sink registered under id and reports whether
// one was found.
func (r *Registry) Deliver(id ID, n Notification) bool {
	r.mu.RLock()
	s, ok := r.sinks[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.Notify(n)
	return true
}

// Sink returns a Sink that forwards to whatever is registered under id at
// delivery time.
func (r *Registry) Sink(id ID) Sink {
	return SinkFunc(func(n Notification) {
		r.Deliver(id, n)
	})
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Close unregisters every sink and rejects further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.sinks)
}
