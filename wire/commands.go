package wire

import (
	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
)

// CreateResource asks the compositor to create a resource of the given type
// under Handle on the sending channel.
type CreateResource struct {
	Handle   resource.Handle
	Resource resource.Type
}

func (CreateResource) Type() CommandType { return CmdCreateResource }
func (CreateResource) Size() int         { return CreateResourceSize }

func (c CreateResource) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdCreateResource))
	b = putU32(b, uint32(c.Handle))
	return putU32(b, uint32(c.Resource))
}

// DecodeCreateResource parses a CreateResource record.
func DecodeCreateResource(rec []byte) (CreateResource, error) {
	if err := expect("DecodeCreateResource", rec, CmdCreateResource, CreateResourceSize); err != nil {
		return CreateResource{}, err
	}
	return CreateResource{
		Handle:   resource.Handle(getU32(rec, 4)),
		Resource: resource.Type(getU32(rec, 8)),
	}, nil
}

// ReleaseResource destroys the resource under Handle on the sending channel.
type ReleaseResource struct {
	Handle resource.Handle
}

func (ReleaseResource) Type() CommandType { return CmdReleaseResource }
func (ReleaseResource) Size() int         { return ReleaseResourceSize }

func (c ReleaseResource) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdReleaseResource))
	return putU32(b, uint32(c.Handle))
}

// DecodeReleaseResource parses a ReleaseResource record.
func DecodeReleaseResource(rec []byte) (ReleaseResource, error) {
	if err := expect("DecodeReleaseResource", rec, CmdReleaseResource, ReleaseResourceSize); err != nil {
		return ReleaseResource{}, err
	}
	return ReleaseResource{Handle: resource.Handle(getU32(rec, 4))}, nil
}

// DuplicateHandle makes the resource under Original on the sending channel
// reachable as Duplicate on TargetChannel. Both channels must belong to the
// same partition.
type DuplicateHandle struct {
	Original      resource.Handle
	TargetChannel uint32
	Duplicate     resource.Handle
}

func (DuplicateHandle) Type() CommandType { return CmdDuplicateHandle }
func (DuplicateHandle) Size() int         { return DuplicateHandleSize }

func (c DuplicateHandle) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdDuplicateHandle))
	b = putU32(b, uint32(c.Original))
	b = putU32(b, c.TargetChannel)
	return putU32(b, uint32(c.Duplicate))
}

// DecodeDuplicateHandle parses a DuplicateHandle record.
func DecodeDuplicateHandle(rec []byte) (DuplicateHandle, error) {
	if err := expect("DecodeDuplicateHandle", rec, CmdDuplicateHandle, DuplicateHandleSize); err != nil {
		return DuplicateHandle{}, err
	}
	return DuplicateHandle{
		Original:      resource.Handle(getU32(rec, 4)),
		TargetChannel: getU32(rec, 8),
		Duplicate:     resource.Handle(getU32(rec, 12)),
	}, nil
}

// RegisterNotifications turns batch notifications on or off for the
// sending channel. Code is echoed back in every notification.
type RegisterNotifications struct {
	Code   uint32
	Enable bool
}

func (RegisterNotifications) Type() CommandType { return CmdRegisterNotifications }
func (RegisterNotifications) Size() int         { return RegisterNotificationsSize }

func (c RegisterNotifications) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdRegisterNotifications))
	b = putU32(b, c.Code)
	var enable uint32
	if c.Enable {
		enable = 1
	}
	return putU32(b, enable)
}

// DecodeRegisterNotifications parses a RegisterNotifications record.
func DecodeRegisterNotifications(rec []byte) (RegisterNotifications, error) {
	if err := expect("DecodeRegisterNotifications", rec, CmdRegisterNotifications, RegisterNotificationsSize); err != nil {
		return RegisterNotifications{}, err
	}
	return RegisterNotifications{
		Code:   getU32(rec, 4),
		Enable: getU32(rec, 8) != 0,
	}, nil
}

// MatrixTransform updates a matrix transform resource.
type MatrixTransform struct {
	Handle  resource.Handle
	M11     float64
	M12     float64
	M21     float64
	M22     float64
	OffsetX float64
	OffsetY float64
}

func (MatrixTransform) Type() CommandType { return CmdMatrixTransform }
func (MatrixTransform) Size() int         { return MatrixTransformSize }

func (c MatrixTransform) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdMatrixTransform))
	b = putU32(b, uint32(c.Handle))
	b = putF64(b, c.M11)
	b = putF64(b, c.M12)
	b = putF64(b, c.M21)
	b = putF64(b, c.M22)
	b = putF64(b, c.OffsetX)
	return putF64(b, c.OffsetY)
}

// DecodeMatrixTransform parses a MatrixTransform record.
func DecodeMatrixTransform(rec []byte) (MatrixTransform, error) {
	if err := expect("DecodeMatrixTransform", rec, CmdMatrixTransform, MatrixTransformSize); err != nil {
		return MatrixTransform{}, err
	}
	return MatrixTransform{
		Handle:  resource.Handle(getU32(rec, 4)),
		M11:     getF64(rec, 8),
		M12:     getF64(rec, 16),
		M21:     getF64(rec, 24),
		M22:     getF64(rec, 32),
		OffsetX: getF64(rec, 40),
		OffsetY: getF64(rec, 48),
	}, nil
}

// Color is a scRGB color with straight alpha.
type Color struct {
	R, G, B, A float32
}

func appendColor(b []byte, c Color) []byte {
	b = putF32(b, c.R)
	b = putF32(b, c.G)
	b = putF32(b, c.B)
	return putF32(b, c.A)
}

func readColor(b []byte, off int) Color {
	return Color{
		R: getF32(b, off),
		G: getF32(b, off+4),
		B: getF32(b, off+8),
		A: getF32(b, off+12),
	}
}

// SolidColorBrush updates a solid color brush resource.
type SolidColorBrush struct {
	Handle  resource.Handle
	Opacity float64
	Color   Color
}

func (SolidColorBrush) Type() CommandType { return CmdSolidColorBrush }
func (SolidColorBrush) Size() int         { return SolidColorBrushSize }

func (c SolidColorBrush) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdSolidColorBrush))
	b = putU32(b, uint32(c.Handle))
	b = putF64(b, c.Opacity)
	return appendColor(b, c.Color)
}

// DecodeSolidColorBrush parses a SolidColorBrush record.
func DecodeSolidColorBrush(rec []byte) (SolidColorBrush, error) {
	if err := expect("DecodeSolidColorBrush", rec, CmdSolidColorBrush, SolidColorBrushSize); err != nil {
		return SolidColorBrush{}, err
	}
	return SolidColorBrush{
		Handle:  resource.Handle(getU32(rec, 4)),
		Opacity: getF64(rec, 8),
		Color:   readColor(rec, 16),
	}, nil
}

// GradientStop is one entry of the stop array trailing a gradient brush
// record.
type GradientStop struct {
	Offset float64
	Color  Color
}

// ColorInterpolation selects the color space gradients interpolate in.
type ColorInterpolation uint32

const (
	InterpolateSRGB ColorInterpolation = iota
	InterpolateScRGB
)

// LinearGradientBrush is the fixed header of a linear gradient update. It is
// followed by StopCount GradientStop entries, so it is sent with
// BeginCommand/AppendCommandData/EndCommand rather than as a Command.
type LinearGradientBrush struct {
	Handle        resource.Handle
	Opacity       float64
	StartX        float64
	StartY        float64
	EndX          float64
	EndY          float64
	Interpolation ColorInterpolation
	StopCount     uint32
}

// Header encodes the fixed part of the record.
func (c LinearGradientBrush) Header() []byte {
	b := make([]byte, 0, LinearGradientBrushSize)
	b = putU32(b, uint32(CmdLinearGradientBrush))
	b = putU32(b, uint32(c.Handle))
	b = putF64(b, c.Opacity)
	b = putF64(b, c.StartX)
	b = putF64(b, c.StartY)
	b = putF64(b, c.EndX)
	b = putF64(b, c.EndY)
	b = putU32(b, uint32(c.Interpolation))
	return putU32(b, c.StopCount)
}

// ExtraSize is the length of the trailing stop array.
func (c LinearGradientBrush) ExtraSize() int {
	return int(c.StopCount) * GradientStopSize
}

// EncodeGradientStops encodes the trailing stop array.
func EncodeGradientStops(stops []GradientStop) []byte {
	b := make([]byte, 0, len(stops)*GradientStopSize)
	for _, s := range stops {
		b = putF64(b, s.Offset)
		b = appendColor(b, s.Color)
	}
	return b
}

// DecodeLinearGradientBrush parses a linear gradient record including its
// stop array.
func DecodeLinearGradientBrush(rec []byte) (LinearGradientBrush, []GradientStop, error) {
	const op = "DecodeLinearGradientBrush"
	if err := expect(op, rec, CmdLinearGradientBrush, LinearGradientBrushSize); err != nil {
		return LinearGradientBrush{}, nil, err
	}
	c := LinearGradientBrush{
		Handle:        resource.Handle(getU32(rec, 4)),
		Opacity:       getF64(rec, 8),
		StartX:        getF64(rec, 16),
		StartY:        getF64(rec, 24),
		EndX:          getF64(rec, 32),
		EndY:          getF64(rec, 40),
		Interpolation: ColorInterpolation(getU32(rec, 48)),
		StopCount:     getU32(rec, 52),
	}
	if want := LinearGradientBrushSize + c.ExtraSize(); len(rec) != want {
		return LinearGradientBrush{}, nil, errors.Framing(op, c.ExtraSize(), len(rec)-LinearGradientBrushSize)
	}

	stops := make([]GradientStop, c.StopCount)
	for i := range stops {
		off := LinearGradientBrushSize + i*GradientStopSize
		stops[i] = GradientStop{
			Offset: getF64(rec, off),
			Color:  readColor(rec, off+8),
		}
	}
	return c, stops, nil
}

// FillRule selects how path interiors are computed.
type FillRule uint32

const (
	FillEvenOdd FillRule = iota
	FillNonZero
)

// PathGeometry is the fixed header of a path geometry update. It is followed
// by FiguresSize bytes of figure data produced by the geometry layer.
type PathGeometry struct {
	Handle      resource.Handle
	Transform   resource.Handle
	FillRule    FillRule
	FiguresSize uint32
}

// Header encodes the fixed part of the record.
func (c PathGeometry) Header() []byte {
	b := make([]byte, 0, PathGeometrySize)
	b = putU32(b, uint32(CmdPathGeometry))
	b = putU32(b, uint32(c.Handle))
	b = putU32(b, uint32(c.Transform))
	b = putU32(b, uint32(c.FillRule))
	return putU32(b, c.FiguresSize)
}

// ExtraSize is the length of the trailing figure data.
func (c PathGeometry) ExtraSize() int {
	return int(c.FiguresSize)
}

// DecodePathGeometry parses a path geometry record and returns its figure
// data as a sub-slice of rec.
func DecodePathGeometry(rec []byte) (PathGeometry, []byte, error) {
	const op = "DecodePathGeometry"
	if err := expect(op, rec, CmdPathGeometry, PathGeometrySize); err != nil {
		return PathGeometry{}, nil, err
	}
	c := PathGeometry{
		Handle:      resource.Handle(getU32(rec, 4)),
		Transform:   resource.Handle(getU32(rec, 8)),
		FillRule:    FillRule(getU32(rec, 12)),
		FiguresSize: getU32(rec, 16),
	}
	if want := PathGeometrySize + c.ExtraSize(); len(rec) != want {
		return PathGeometry{}, nil, errors.Framing(op, c.ExtraSize(), len(rec)-PathGeometrySize)
	}
	return c, rec[PathGeometrySize:], nil
}

// TargetSetRoot attaches the visual Root to a composition target.
type TargetSetRoot struct {
	Target resource.Handle
	Root   resource.Handle
}

func (TargetSetRoot) Type() CommandType { return CmdTargetSetRoot }
func (TargetSetRoot) Size() int         { return TargetSetRootSize }

func (c TargetSetRoot) AppendTo(b []byte) []byte {
	b = putU32(b, uint32(CmdTargetSetRoot))
	b = putU32(b, uint32(c.Target))
	return putU32(b, uint32(c.Root))
}

// DecodeTargetSetRoot parses a TargetSetRoot record.
func DecodeTargetSetRoot(rec []byte) (TargetSetRoot, error) {
	if err := expect("DecodeTargetSetRoot", rec, CmdTargetSetRoot, TargetSetRootSize); err != nil {
		return TargetSetRoot{}, err
	}
	return TargetSetRoot{
		Target: resource.Handle(getU32(rec, 4)),
		Root:   resource.Handle(getU32(rec, 8)),
	}, nil
}
