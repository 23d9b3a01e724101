package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseCommit,
				Kind:    KindTransmission,
				Op:      "submit",
				Channel: 7,
				Handle:  3,
				Code:    CodeFail,
				Detail:  "partition gone",
			},
			contains: []string{"[commit]", "transmission", "in submit", "channel=7", "handle=3", "0x80004005", "partition gone"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseBatch,
				Kind:  KindFraming,
			},
			contains: []string{"[batch]", "framing"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseConnect,
				Kind:   KindConnection,
				Detail: "dial",
				Cause:  errors.New("connection refused"),
			},
			contains: []string{"[connect]", "connection", "dial", "caused by", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Transmission(PhaseCommit, 1, "submit", cause)

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Closed(PhaseBatch, 4, "SendCommand")

	if !errors.Is(err, &Error{Phase: PhaseBatch, Kind: KindClosed}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseCommit, Kind: KindClosed}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseBatch, Kind: KindProtocol}) {
		t.Error("Is should not match different kind")
	}
}

func TestIsKind(t *testing.T) {
	inner := Protocol(PhaseResource, "ReleaseOnChannel", "not on channel")
	outer := Wrap(PhaseManager, KindTransmission, inner, "teardown")
	wrapped := fmt.Errorf("context: %w", outer)

	if !IsKind(wrapped, KindTransmission) {
		t.Error("IsKind should match outer kind")
	}
	if !IsKind(wrapped, KindProtocol) {
		t.Error("IsKind should match kind deeper in the chain")
	}
	if IsKind(wrapped, KindFraming) {
		t.Error("IsKind should not match absent kind")
	}
	if IsKind(errors.New("plain"), KindProtocol) {
		t.Error("IsKind should not match foreign errors")
	}
	if IsKind(nil, KindProtocol) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != CodeOK {
		t.Errorf("CodeOf(nil) = %v, want %v", got, CodeOK)
	}
	if got := CodeOf(errors.New("x")); got != CodeFail {
		t.Errorf("CodeOf(foreign) = %v, want %v", got, CodeFail)
	}
	if got := CodeOf(Framing("EndCommand", 8, 4)); got != CodeInvalidArg {
		t.Errorf("CodeOf(framing) = %v, want %v", got, CodeInvalidArg)
	}
	// A connection error built on a coded cause keeps the cause's code.
	cause := New(PhaseConnect, KindConnection).Code(CodeTimeout).Build()
	if got := CodeOf(Connection(PhaseConnect, "connect", cause)); got != CodeTimeout {
		t.Errorf("CodeOf(connection) = %v, want %v", got, CodeTimeout)
	}
}

func TestResultCode(t *testing.T) {
	if CodeOK.Failed() {
		t.Error("CodeOK should not be a failure")
	}
	if !CodeFail.Failed() {
		t.Error("CodeFail should be a failure")
	}
	if CodeInvalidArg.String() != "0x80070057" {
		t.Errorf("String = %q", CodeInvalidArg.String())
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCommit, KindTransmission).
		Op("submit").
		Code(CodeAborted).
		Channel(9).
		Handle(2).
		Cause(cause).
		Detail("batch %d of %d", 1, 3).
		Build()

	if err.Phase != PhaseCommit {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCommit)
	}
	if err.Kind != KindTransmission {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTransmission)
	}
	if err.Op != "submit" {
		t.Errorf("Op = %v, want submit", err.Op)
	}
	if err.Code != CodeAborted {
		t.Errorf("Code = %v, want %v", err.Code, CodeAborted)
	}
	if err.Channel != 9 || err.Handle != 2 {
		t.Errorf("Channel=%d Handle=%d", err.Channel, err.Handle)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "batch 1 of 3" {
		t.Errorf("Detail = %v, want 'batch 1 of 3'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		code ResultCode
	}{
		{"Connection", Connection(PhaseConnect, "connect", errors.New("x")), KindConnection, CodeNotConnected},
		{"Transmission", Transmission(PhasePresent, 1, "present", errors.New("x")), KindTransmission, CodeFail},
		{"Protocol", Protocol(PhasePool, "ReleaseSyncChannel", "double release"), KindProtocol, CodeInvalidState},
		{"Closed", Closed(PhaseCommit, 1, "Commit"), KindClosed, CodeInvalidState},
		{"Precondition", Precondition(PhaseManager, "CreateChannels", "already created"), KindPrecondition, CodeUnexpected},
		{"Framing", Framing("AppendCommandData", 4, 8), KindFraming, CodeInvalidArg},
		{"NotFound", NotFound(PhaseResource, "handle", 5), KindNotFound, CodeInvalidArg},
		{"InvalidInput", InvalidInput(PhaseManager, "negative cap"), KindInvalidInput, CodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
		})
	}
}
