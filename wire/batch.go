package wire

import (
	"github.com/wippyai/duce/errors"
)

const defaultBatchSize = size4K

// MaxRecordSize bounds a single record written with Begin, header and
// payload together.
const MaxRecordSize = 16 << 20

// Batch is an ordered group of command records stored back to back in one
// pooled buffer. Commands with a variable-length payload are written with
// Begin, AppendData and End; the payload length declared in Begin must be
// matched exactly before End.
//
// A Batch is owned by one goroutine at a time. Handing it to a transport
// transfers ownership; the receiver calls Release when done.
type Batch struct {
	buf     []byte
	offsets []int

	open     int // start of the open record, -1 when none
	extra    int
	appended int
}

// NewBatch returns an empty batch backed by a pooled buffer.
func NewBatch() *Batch {
	return &Batch{
		buf:  alloc(defaultBatchSize),
		open: -1,
	}
}

// Append adds a complete record.
func (b *Batch) Append(rec []byte) error {
	if b.open >= 0 {
		return errors.Protocol(errors.PhaseBatch, "Append", "command in progress")
	}
	if len(rec) < TypeSize {
		return errors.InvalidInput(errors.PhaseBatch, "record shorter than command type")
	}
	b.offsets = append(b.offsets, len(b.buf))
	b.write(rec)
	return nil
}

// Begin starts a record made of header followed by extraSize payload bytes.
// len(header) must equal fixedSize.
func (b *Batch) Begin(header []byte, fixedSize, extraSize int) error {
	if b.open >= 0 {
		return errors.Protocol(errors.PhaseBatch, "BeginCommand", "command in progress")
	}
	if fixedSize < TypeSize || len(header) != fixedSize {
		return errors.InvalidInput(errors.PhaseBatch, "header length does not match fixed size")
	}
	if extraSize < 0 {
		return errors.InvalidInput(errors.PhaseBatch, "negative extra size")
	}
	if extraSize > MaxRecordSize-fixedSize {
		return errors.InvalidInput(errors.PhaseBatch, "record exceeds MaxRecordSize")
	}

	b.reserve(fixedSize + extraSize)
	b.open = len(b.buf)
	b.extra = extraSize
	b.appended = 0
	b.write(header)
	return nil
}

// AppendData fills the payload of the open record.
func (b *Batch) AppendData(p []byte) error {
	if b.open < 0 {
		return errors.Protocol(errors.PhaseBatch, "AppendCommandData", "no command in progress")
	}
	if b.appended+len(p) > b.extra {
		return errors.Framing("AppendCommandData", b.extra, b.appended+len(p))
	}
	b.write(p)
	b.appended += len(p)
	return nil
}

// End finalizes the open record. On a size mismatch the partial record is
// discarded and a framing error returned.
func (b *Batch) End() error {
	if b.open < 0 {
		return errors.Protocol(errors.PhaseBatch, "EndCommand", "no command in progress")
	}
	start := b.open
	b.open = -1

	if b.appended != b.extra {
		b.buf = b.buf[:start]
		return errors.Framing("EndCommand", b.extra, b.appended)
	}
	b.offsets = append(b.offsets, start)
	return nil
}

// Abort discards an open record, if any.
func (b *Batch) Abort() {
	if b.open >= 0 {
		b.buf = b.buf[:b.open]
		b.open = -1
	}
}

// InCommand reports whether a record is open.
func (b *Batch) InCommand() bool {
	return b.open >= 0
}

// Count returns the number of complete records.
func (b *Batch) Count() int {
	return len(b.offsets)
}

// Len returns the number of bytes in complete records.
func (b *Batch) Len() int {
	if b.open >= 0 {
		return b.open
	}
	return len(b.buf)
}

// Empty reports whether the batch holds no complete records.
func (b *Batch) Empty() bool {
	return len(b.offsets) == 0
}

// Record returns the i-th record. The slice aliases the batch buffer and is
// valid until the batch is modified or released.
func (b *Batch) Record(i int) []byte {
	start := b.offsets[i]
	end := b.Len()
	if i+1 < len(b.offsets) {
		end = b.offsets[i+1]
	}
	return b.buf[start:end]
}

// Records returns all complete records in order.
func (b *Batch) Records() [][]byte {
	out := make([][]byte, len(b.offsets))
	for i := range b.offsets {
		out[i] = b.Record(i)
	}
	return out
}

// Bytes returns the concatenated complete records.
func (b *Batch) Bytes() []byte {
	return b.buf[:b.Len()]
}

// Reset empties the batch and keeps its buffer.
func (b *Batch) Reset() {
	b.buf = b.buf[:0]
	b.offsets = b.offsets[:0]
	b.open = -1
	b.extra = 0
	b.appended = 0
}

// Release returns the buffer to the pool. The batch must not be used after.
func (b *Batch) Release() {
	free(b.buf)
	b.buf = nil
	b.offsets = nil
	b.open = -1
}

func (b *Batch) reserve(n int) {
	if b.buf == nil {
		b.buf = alloc(max(n, defaultBatchSize))
	}
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	grown := alloc(2*cap(b.buf) + n)
	grown = append(grown, b.buf...)
	free(b.buf)
	b.buf = grown
}

func (b *Batch) write(p []byte) {
	b.reserve(len(p))
	b.buf = append(b.buf, p...)
}
