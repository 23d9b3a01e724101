package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which channel-layer operation produced the error
type Phase string

const (
	PhaseConnect    Phase = "connect"    // transport connect
	PhaseDisconnect Phase = "disconnect" // transport disconnect
	PhaseChannel    Phase = "channel"    // channel create/close
	PhaseBatch      Phase = "batch"      // command batching
	PhaseCommit     Phase = "commit"     // batch transmission
	PhasePresent    Phase = "present"    // frame presentation
	PhaseNotify     Phase = "notify"     // notification delivery
	PhaseResource   Phase = "resource"   // resource lifecycle
	PhasePool       Phase = "pool"       // sync channel pool
	PhaseManager    Phase = "manager"    // channel manager lifecycle
	PhaseApply      Phase = "apply"      // compositor-side batch processing
)

// Kind categorizes the error
type Kind string

const (
	KindConnection   Kind = "connection"
	KindProtocol     Kind = "protocol"
	KindTransmission Kind = "transmission"
	KindClosed       Kind = "closed"
	KindPrecondition Kind = "precondition"
	KindFraming      Kind = "framing"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
)

// ResultCode is the checked result of a transport call.
type ResultCode uint32

const (
	CodeOK           ResultCode = 0x00000000
	CodeAborted      ResultCode = 0x80004004
	CodeFail         ResultCode = 0x80004005
	CodeUnexpected   ResultCode = 0x8000FFFF
	CodeInvalidArg   ResultCode = 0x80070057
	CodeInvalidState ResultCode = 0x8007139F
	CodeNotConnected ResultCode = 0x800708CA
	CodeTimeout      ResultCode = 0x800705B4
)

func (c ResultCode) String() string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// Failed reports whether the code denotes a failure.
func (c ResultCode) Failed() bool {
	return c&0x80000000 != 0
}

// Error is the structured error type used throughout the channel layer
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Op      string
	Detail  string
	Code    ResultCode
	Channel uint32
	Handle  uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Channel != 0 {
		fmt.Fprintf(&b, " channel=%d", e.Channel)
	}
	if e.Handle != 0 {
		fmt.Fprintf(&b, " handle=%d", e.Handle)
	}

	if e.Code != CodeOK {
		b.WriteString(" (")
		b.WriteString(e.Code.String())
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if stderrors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the result code carried by err, CodeFail for foreign errors
// and CodeOK for nil.
func CodeOf(err error) ResultCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if stderrors.As(err, &e) && e.Code != CodeOK {
		return e.Code
	}
	return CodeFail
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the failing operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Code sets the result code
func (b *Builder) Code(c ResultCode) *Builder {
	b.err.Code = c
	return b
}

// Channel sets the channel id
func (b *Builder) Channel(id uint32) *Builder {
	b.err.Channel = id
	return b
}

// Handle sets the resource handle
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Connection creates a transport connect/disconnect failure
func Connection(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindConnection,
		Op:    op,
		Code:  codeFromCause(cause, CodeNotConnected),
		Cause: cause,
	}
}

// Transmission creates a failure to hand a batch or present to the transport
func Transmission(phase Phase, channel uint32, op string, cause error) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTransmission,
		Op:      op,
		Channel: channel,
		Code:    codeFromCause(cause, CodeFail),
		Cause:   cause,
	}
}

// Protocol creates a protocol misuse error
func Protocol(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Op:     op,
		Code:   CodeInvalidState,
		Detail: detail,
	}
}

// Closed creates an error for use of a closed channel or connection
func Closed(phase Phase, channel uint32, op string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindClosed,
		Op:      op,
		Channel: channel,
		Code:    CodeInvalidState,
		Detail:  "used after close",
	}
}

// Precondition creates a violated precondition error
func Precondition(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPrecondition,
		Op:     op,
		Code:   CodeUnexpected,
		Detail: detail,
	}
}

// Framing creates a command framing error
func Framing(op string, declared, actual int) *Error {
	return &Error{
		Phase:  PhaseBatch,
		Kind:   KindFraming,
		Op:     op,
		Code:   CodeInvalidArg,
		Detail: fmt.Sprintf("declared %d extra bytes, got %d", declared, actual),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Handle: handle,
		Code:   CodeInvalidArg,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Code:   CodeInvalidArg,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Code:   codeFromCause(cause, CodeFail),
		Detail: detail,
		Cause:  cause,
	}
}

func codeFromCause(cause error, fallback ResultCode) ResultCode {
	var e *Error
	if stderrors.As(cause, &e) && e.Code != CodeOK {
		return e.Code
	}
	return fallback
}
