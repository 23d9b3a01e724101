// Package channel implements the client side of a composition channel.
//
// A Channel collects command records into batches and transmits them to a
// compositor partition through a transport.Endpoint. Records are applied in
// the order they were sent; sealing a batch with CloseBatch, or sending a
// command with sendInSeparateBatch, creates an ordering boundary.
//
// Each channel owns a handle table. CreateOrAddRefOnChannel and
// ReleaseOnChannel keep the reference counts and queue the create and
// release commands; a handle is valid on its channel exactly while its
// count is above zero. Resource layers this over several channels for one
// logical resource.
//
// Commands with a variable-length payload use three calls:
//
//	hdr := brush.Header()
//	ch.BeginCommand(hdr, len(hdr), brush.ExtraSize())
//	ch.AppendCommandData(wire.EncodeGradientStops(stops))
//	ch.EndCommand()
//
// The payload length must match the declared extra size exactly. A
// transmission failure leaves the channel failed; only Close is valid then.
package channel
