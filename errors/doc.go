// Package errors provides structured error types for the composition channel layer.
//
// Errors are categorized by Phase (which operation failed) and Kind (error category).
// Every transport failure is converted at its call site into an *Error carrying the
// failing operation and a ResultCode; the channel layer performs no retry.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCommit, errors.KindTransmission).
//		Op("submit").
//		Channel(7).
//		Code(errors.CodeFail).
//		Cause(ioErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Closed(errors.PhaseBatch, ch.ID(), "SendCommand")
//	err := errors.Framing("EndCommand", declared, actual)
//
// Kinds map onto the three failure classes of the protocol:
//
//	KindConnection    cannot create or disconnect the underlying transport
//	KindProtocol      releasing an absent resource, double pool release
//	KindClosed        any operation other than Close on a closed channel
//	KindFraming       declared extra size differs from the appended bytes
//	KindTransmission  a batch or present could not be delivered
//
// All errors implement the standard error interface and support errors.Is/As.
// errors.Is matches on Phase and Kind; IsKind matches on Kind alone.
package errors
