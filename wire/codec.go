package wire

import (
	"encoding/binary"

	"github.com/wippyai/duce/errors"
)

// BatchMagic starts every marshaled batch ("DUCB" little-endian).
const BatchMagic uint32 = 0x42435544

const batchHeaderSize = 8

// MarshalBinary encodes the batch for transports that cross a process
// boundary: magic, record count, then each record prefixed by its size.
func (b *Batch) MarshalBinary() ([]byte, error) {
	if b.open >= 0 {
		return nil, errors.Protocol(errors.PhaseBatch, "MarshalBinary", "command in progress")
	}
	out := make([]byte, 0, batchHeaderSize+4*len(b.offsets)+b.Len())
	out = binary.LittleEndian.AppendUint32(out, BatchMagic)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.offsets)))
	for i := range b.offsets {
		rec := b.Record(i)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(rec)))
		out = append(out, rec...)
	}
	return out, nil
}

// UnmarshalBatch decodes a batch produced by MarshalBinary.
func UnmarshalBatch(data []byte) (*Batch, error) {
	if len(data) < batchHeaderSize || binary.LittleEndian.Uint32(data) != BatchMagic {
		return nil, errors.New(errors.PhaseApply, errors.KindFraming).
			Op("UnmarshalBatch").
			Code(errors.CodeInvalidArg).
			Detail("missing batch header").
			Build()
	}
	count := binary.LittleEndian.Uint32(data[4:])
	data = data[batchHeaderSize:]

	b := NewBatch()
	for i := uint32(0); i < count; i++ {
		if len(data) < 4 {
			b.Release()
			return nil, truncated(i)
		}
		n := binary.LittleEndian.Uint32(data)
		data = data[4:]
		if uint64(n) > uint64(len(data)) {
			b.Release()
			return nil, truncated(i)
		}
		if err := b.Append(data[:n]); err != nil {
			b.Release()
			return nil, err
		}
		data = data[n:]
	}
	if len(data) != 0 {
		b.Release()
		return nil, errors.New(errors.PhaseApply, errors.KindFraming).
			Op("UnmarshalBatch").
			Code(errors.CodeInvalidArg).
			Detail("%d trailing bytes", len(data)).
			Build()
	}
	return b, nil
}

func truncated(record uint32) error {
	return errors.New(errors.PhaseApply, errors.KindFraming).
		Op("UnmarshalBatch").
		Code(errors.CodeInvalidArg).
		Detail("record %d truncated", record).
		Build()
}
