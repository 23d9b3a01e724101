package wire

import (
	"testing"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
)

func TestCommand_SizesMatchEncoding(t *testing.T) {
	cmds := []Command{
		CreateResource{Handle: 1, Resource: resource.TypePen},
		ReleaseResource{Handle: 1},
		DuplicateHandle{Original: 1, TargetChannel: 2, Duplicate: 3},
		RegisterNotifications{Code: 0x401, Enable: true},
		MatrixTransform{Handle: 1, M11: 1, M22: 1},
		SolidColorBrush{Handle: 1, Opacity: 1},
		TargetSetRoot{Target: 1, Root: 2},
	}
	for _, c := range cmds {
		t.Run(c.Type().String(), func(t *testing.T) {
			rec := Encode(c)
			if len(rec) != c.Size() {
				t.Fatalf("encoded %d bytes, Size() = %d", len(rec), c.Size())
			}
			typ, err := PeekType(rec)
			if err != nil {
				t.Fatalf("PeekType: %v", err)
			}
			if typ != c.Type() {
				t.Fatalf("PeekType = %v, want %v", typ, c.Type())
			}
		})
	}

	if n := len(LinearGradientBrush{}.Header()); n != LinearGradientBrushSize {
		t.Errorf("LinearGradientBrush header = %d bytes, want %d", n, LinearGradientBrushSize)
	}
	if n := len(PathGeometry{}.Header()); n != PathGeometrySize {
		t.Errorf("PathGeometry header = %d bytes, want %d", n, PathGeometrySize)
	}
	if n := len(EncodeGradientStops(make([]GradientStop, 3))); n != 3*GradientStopSize {
		t.Errorf("3 stops = %d bytes, want %d", n, 3*GradientStopSize)
	}
}

func TestDecode(t *testing.T) {
	create, err := DecodeCreateResource(Encode(CreateResource{Handle: 7, Resource: resource.TypeCompositionTarget}))
	if err != nil || create.Handle != 7 || create.Resource != resource.TypeCompositionTarget {
		t.Fatalf("DecodeCreateResource = %+v, %v", create, err)
	}

	dup, err := DecodeDuplicateHandle(Encode(DuplicateHandle{Original: 4, TargetChannel: 9, Duplicate: 2}))
	if err != nil || dup.Original != 4 || dup.TargetChannel != 9 || dup.Duplicate != 2 {
		t.Fatalf("DecodeDuplicateHandle = %+v, %v", dup, err)
	}

	reg, err := DecodeRegisterNotifications(Encode(RegisterNotifications{Code: 12, Enable: true}))
	if err != nil || reg.Code != 12 || !reg.Enable {
		t.Fatalf("DecodeRegisterNotifications = %+v, %v", reg, err)
	}

	mt, err := DecodeMatrixTransform(Encode(MatrixTransform{Handle: 1, M11: 2, OffsetY: -3.5}))
	if err != nil || mt.M11 != 2 || mt.OffsetY != -3.5 {
		t.Fatalf("DecodeMatrixTransform = %+v, %v", mt, err)
	}

	scb, err := DecodeSolidColorBrush(Encode(SolidColorBrush{Handle: 5, Opacity: 0.25, Color: Color{G: 0.5, A: 1}}))
	if err != nil || scb.Opacity != 0.25 || scb.Color.G != 0.5 || scb.Color.A != 1 {
		t.Fatalf("DecodeSolidColorBrush = %+v, %v", scb, err)
	}

	root, err := DecodeTargetSetRoot(Encode(TargetSetRoot{Target: 1, Root: 8}))
	if err != nil || root.Root != 8 {
		t.Fatalf("DecodeTargetSetRoot = %+v, %v", root, err)
	}

	stops := []GradientStop{{Offset: 0.25, Color: Color{R: 1}}, {Offset: 0.75, Color: Color{B: 1}}}
	hdr := LinearGradientBrush{Handle: 3, EndX: 1, StopCount: 2}
	rec := append(hdr.Header(), EncodeGradientStops(stops)...)
	lgb, gotStops, err := DecodeLinearGradientBrush(rec)
	if err != nil {
		t.Fatalf("DecodeLinearGradientBrush: %v", err)
	}
	if lgb.EndX != 1 || len(gotStops) != 2 || gotStops[1].Offset != 0.75 || gotStops[1].Color.B != 1 {
		t.Fatalf("DecodeLinearGradientBrush = %+v %+v", lgb, gotStops)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := PeekType([]byte{1, 2}); !errors.IsKind(err, errors.KindFraming) {
		t.Errorf("PeekType short = %v", err)
	}
	if _, err := DecodeCreateResource(Encode(ReleaseResource{Handle: 1})); !errors.IsKind(err, errors.KindFraming) {
		t.Errorf("wrong type = %v", err)
	}
	if _, err := DecodeMatrixTransform(Encode(MatrixTransform{})[:20]); !errors.IsKind(err, errors.KindFraming) {
		t.Errorf("short record = %v", err)
	}

	hdr := LinearGradientBrush{StopCount: 2}
	rec := append(hdr.Header(), make([]byte, GradientStopSize)...)
	if _, _, err := DecodeLinearGradientBrush(rec); !errors.IsKind(err, errors.KindFraming) {
		t.Errorf("missing stop = %v", err)
	}
}

func TestCommandType(t *testing.T) {
	if CmdInvalid.Valid() || !CmdTargetSetRoot.Valid() || CommandType(99).Valid() {
		t.Error("Valid mismatch")
	}
	if CmdCreateResource.String() != "create-resource" {
		t.Errorf("String = %q", CmdCreateResource.String())
	}
}

func TestPeekHandle(t *testing.T) {
	h, err := PeekHandle(Encode(SolidColorBrush{Handle: 42}))
	if err != nil || h != 42 {
		t.Fatalf("PeekHandle = %d, %v", h, err)
	}
	if _, err := PeekHandle([]byte{1, 0, 0, 0, 2}); !errors.IsKind(err, errors.KindFraming) {
		t.Errorf("PeekHandle short = %v", err)
	}
}
