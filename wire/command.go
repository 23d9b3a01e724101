package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
)

// CommandType is the discriminant stored in the first four bytes of every
// command record.
type CommandType uint32

const (
	CmdInvalid CommandType = iota

	// Channel-level commands emitted by the channel layer itself.
	CmdCreateResource
	CmdReleaseResource
	CmdDuplicateHandle
	CmdRegisterNotifications

	// Resource updates emitted by the object model.
	CmdMatrixTransform
	CmdSolidColorBrush
	CmdLinearGradientBrush
	CmdPathGeometry
	CmdTargetSetRoot

	cmdCount
)

var commandNames = [...]string{
	CmdInvalid:               "invalid",
	CmdCreateResource:        "create-resource",
	CmdReleaseResource:       "release-resource",
	CmdDuplicateHandle:       "duplicate-handle",
	CmdRegisterNotifications: "register-notifications",
	CmdMatrixTransform:       "matrix-transform",
	CmdSolidColorBrush:       "solid-color-brush",
	CmdLinearGradientBrush:   "linear-gradient-brush",
	CmdPathGeometry:          "path-geometry",
	CmdTargetSetRoot:         "target-set-root",
}

// Valid reports whether c is a known command.
func (c CommandType) Valid() bool {
	return c > CmdInvalid && c < cmdCount
}

func (c CommandType) String() string {
	if c < cmdCount {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", uint32(c))
}

// TypeSize is the size of the discriminant that starts every record.
const TypeSize = 4

// Sizes of the fixed-layout records.
const (
	CreateResourceSize        = 12
	ReleaseResourceSize       = 8
	DuplicateHandleSize       = 16
	RegisterNotificationsSize = 12
	MatrixTransformSize       = 56
	SolidColorBrushSize       = 32
	LinearGradientBrushSize   = 56
	GradientStopSize          = 24
	PathGeometrySize          = 20
	TargetSetRootSize         = 12
)

// Command is a fixed-size command record.
type Command interface {
	Type() CommandType
	Size() int
	AppendTo(b []byte) []byte
}

// PeekType returns the discriminant of a record.
func PeekType(rec []byte) (CommandType, error) {
	if len(rec) < TypeSize {
		return CmdInvalid, errors.New(errors.PhaseApply, errors.KindFraming).
			Op("PeekType").
			Code(errors.CodeInvalidArg).
			Detail("record of %d bytes has no command type", len(rec)).
			Build()
	}
	return CommandType(binary.LittleEndian.Uint32(rec)), nil
}

// PeekHandle returns the resource handle that follows the discriminant in
// resource update records.
func PeekHandle(rec []byte) (resource.Handle, error) {
	if len(rec) < TypeSize+4 {
		return resource.Null, shortRecord("PeekHandle", CmdInvalid, len(rec), TypeSize+4)
	}
	return resource.Handle(binary.LittleEndian.Uint32(rec[TypeSize:])), nil
}

// Encode appends cmd to a fresh slice.
func Encode(cmd Command) []byte {
	return cmd.AppendTo(make([]byte, 0, cmd.Size()))
}

func expect(op string, rec []byte, want CommandType, size int) error {
	got, err := PeekType(rec)
	if err != nil {
		return err
	}
	if got != want {
		return errors.New(errors.PhaseApply, errors.KindFraming).
			Op(op).
			Code(errors.CodeInvalidArg).
			Detail("expected %s record, got %s", want, got).
			Build()
	}
	if len(rec) < size {
		return shortRecord(op, want, len(rec), size)
	}
	return nil
}

func shortRecord(op string, cmd CommandType, have, want int) error {
	return errors.New(errors.PhaseApply, errors.KindFraming).
		Op(op).
		Code(errors.CodeInvalidArg).
		Detail("%s record is %d bytes, need %d", cmd, have, want).
		Build()
}

func putU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func putF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func putF64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func getF32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func getF64(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}
