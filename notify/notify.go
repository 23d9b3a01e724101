package notify

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/duce/errors"
)

// Type identifies what the compositor is signaling.
type Type uint32

const (
	BatchProcessed Type = iota + 1
	Presented
	PartitionError
	EnvironmentChanged
)

func (t Type) String() string {
	switch t {
	case BatchProcessed:
		return "batch-processed"
	case Presented:
		return "presented"
	case PartitionError:
		return "partition-error"
	case EnvironmentChanged:
		return "environment-changed"
	default:
		return fmt.Sprintf("notification(%d)", uint32(t))
	}
}

// Notification is an asynchronous signal from a compositor partition to
// the channel that registered for it.
type Notification struct {
	Type     Type
	Code     uint32 // message code supplied at registration
	Channel  uint32
	Sequence uint64 // batch sequence the notification refers to
	Result   errors.ResultCode
}

// Size is the length of an encoded notification.
const Size = 24

// MarshalBinary encodes n for transports that cross a process boundary.
func (n Notification) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, Size)
	b = binary.LittleEndian.AppendUint32(b, uint32(n.Type))
	b = binary.LittleEndian.AppendUint32(b, n.Code)
	b = binary.LittleEndian.AppendUint32(b, n.Channel)
	b = binary.LittleEndian.AppendUint64(b, n.Sequence)
	b = binary.LittleEndian.AppendUint32(b, uint32(n.Result))
	return b, nil
}

// Unmarshal decodes a notification produced by MarshalBinary.
func Unmarshal(b []byte) (Notification, error) {
	if len(b) != Size {
		return Notification{}, errors.New(errors.PhaseNotify, errors.KindFraming).
			Op("Unmarshal").
			Code(errors.CodeInvalidArg).
			Detail("notification is %d bytes, want %d", len(b), Size).
			Build()
	}
	return Notification{
		Type:     Type(binary.LittleEndian.Uint32(b)),
		Code:     binary.LittleEndian.Uint32(b[4:]),
		Channel:  binary.LittleEndian.Uint32(b[8:]),
		Sequence: binary.LittleEndian.Uint64(b[12:]),
		Result:   errors.ResultCode(binary.LittleEndian.Uint32(b[20:])),
	}, nil
}

// Sink receives notifications. Notify may be called from a transport
// goroutine and must not block for long.
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notification) { f(n) }

// ChanSink delivers notifications to a channel, dropping them when the
// channel is full.
type ChanSink chan Notification

// Notify implements Sink.
func (c ChanSink) Notify(n Notification) {
	select {
	case c <- n:
	default:
	}
}
