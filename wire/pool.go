package wire

import "sync"

// Buffer pool tiers for batch storage. Most batches carry a handful of
// fixed-size records and fit the smallest tier; scene rebuilds with large
// path or gradient payloads land in the upper tiers.
const (
	size512 = 1 << 9
	size4K  = 1 << 12
	size64K = 1 << 16
	size1M  = 1 << 20
)

var (
	pool512 = sync.Pool{New: func() any { return make([]byte, size512) }}
	pool4K  = sync.Pool{New: func() any { return make([]byte, size4K) }}
	pool64K = sync.Pool{New: func() any { return make([]byte, size64K) }}
	pool1M  = sync.Pool{New: func() any { return make([]byte, size1M) }}
)

// alloc returns an empty buffer with capacity of at least size.
// Sizes beyond the largest tier are allocated directly.
func alloc(size int) []byte {
	switch {
	case size <= size512:
		return pool512.Get().([]byte)[:0]
	case size <= size4K:
		return pool4K.Get().([]byte)[:0]
	case size <= size64K:
		return pool64K.Get().([]byte)[:0]
	case size <= size1M:
		return pool1M.Get().([]byte)[:0]
	default:
		return make([]byte, 0, size)
	}
}

// free returns a buffer to the pool matching its capacity.
func free(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case size512:
		pool512.Put(buf[:cap(buf)])
	case size4K:
		pool4K.Put(buf[:cap(buf)])
	case size64K:
		pool64K.Put(buf[:cap(buf)])
	case size1M:
		pool1M.Put(buf[:cap(buf)])
	default:
		// not pooled, let GC handle it
	}
}
