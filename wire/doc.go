// Package wire defines the binary command batch format exchanged with the
// compositor.
//
// A command record is an opaque byte blob whose first field is a
// little-endian uint32 CommandType. The channel layer only batches, sizes and
// transmits records; the fixed-layout structs in this package exist for the
// channel-level commands and for the object-model updates that travel through
// the examples and tests.
//
// # Records With Trailing Payload
//
// Some updates carry a variable-length array after a fixed header, for
// example the stops of a gradient brush:
//
//	hdr := wire.LinearGradientBrush{Handle: h, StopCount: uint32(len(stops))}
//	b.Begin(hdr.Header(), wire.LinearGradientBrushSize, hdr.ExtraSize())
//	b.AppendData(wire.EncodeGradientStops(stops))
//	b.End()
//
// End fails with a framing error unless exactly ExtraSize bytes were appended.
//
// # Marshaled Form
//
// Transports crossing a process boundary use MarshalBinary / UnmarshalBatch:
//
//	magic  u32  "DUCB"
//	count  u32
//	count × { size u32, record [size]byte }
package wire
