package wire

import (
	"bytes"
	"testing"

	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
)

func TestBatch_AppendAndRecords(t *testing.T) {
	b := NewBatch()
	defer b.Release()

	create := Encode(CreateResource{Handle: 1, Resource: resource.TypeVisual})
	release := Encode(ReleaseResource{Handle: 1})

	if err := b.Append(create); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := b.Append(release); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if b.Count() != 2 {
		t.Fatalf("Count = %d, want 2", b.Count())
	}
	if b.Len() != CreateResourceSize+ReleaseResourceSize {
		t.Fatalf("Len = %d, want %d", b.Len(), CreateResourceSize+ReleaseResourceSize)
	}
	recs := b.Records()
	if !bytes.Equal(recs[0], create) || !bytes.Equal(recs[1], release) {
		t.Fatal("records do not match appended bytes")
	}
}

func TestBatch_FramingRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		chunks []int
	}{
		{"no payload", nil},
		{"single chunk", []int{48}},
		{"several chunks", []int{24, 24, 24}},
		{"uneven chunks", []int{1, 7, 16, 0, 100}},
		{"large payload", []int{8000, 12000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch()
			defer b.Release()

			extra := 0
			for _, n := range tt.chunks {
				extra += n
			}
			hdr := PathGeometry{Handle: 3, FiguresSize: uint32(extra)}.Header()

			if err := b.Begin(hdr, PathGeometrySize, extra); err != nil {
				t.Fatalf("Begin: %v", err)
			}
			var payload []byte
			for i, n := range tt.chunks {
				chunk := bytes.Repeat([]byte{byte(i + 1)}, n)
				payload = append(payload, chunk...)
				if err := b.AppendData(chunk); err != nil {
					t.Fatalf("AppendData: %v", err)
				}
			}
			if err := b.End(); err != nil {
				t.Fatalf("End: %v", err)
			}

			rec := b.Record(0)
			if len(rec) != PathGeometrySize+extra {
				t.Fatalf("record length = %d, want %d", len(rec), PathGeometrySize+extra)
			}
			if !bytes.Equal(rec[:PathGeometrySize], hdr) {
				t.Fatal("header not at start of record")
			}
			if !bytes.Equal(rec[PathGeometrySize:], payload) {
				t.Fatal("payload not after header")
			}

			decoded, figures, err := DecodePathGeometry(rec)
			if err != nil {
				t.Fatalf("DecodePathGeometry: %v", err)
			}
			if decoded.Handle != 3 || len(figures) != extra {
				t.Fatalf("decoded = %+v figures=%d", decoded, len(figures))
			}
		})
	}
}

func TestBatch_FramingErrors(t *testing.T) {
	hdr := PathGeometry{Handle: 1, FiguresSize: 8}.Header()

	t.Run("short payload", func(t *testing.T) {
		b := NewBatch()
		defer b.Release()
		b.Append(Encode(ReleaseResource{Handle: 9}))

		b.Begin(hdr, PathGeometrySize, 8)
		b.AppendData(make([]byte, 4))
		err := b.End()
		if !errors.IsKind(err, errors.KindFraming) {
			t.Fatalf("End error = %v, want framing", err)
		}
		if b.Count() != 1 || b.Len() != ReleaseResourceSize {
			t.Fatalf("partial record not discarded: count=%d len=%d", b.Count(), b.Len())
		}
		if b.InCommand() {
			t.Fatal("command should be closed after failed End")
		}
	})

	t.Run("overflow", func(t *testing.T) {
		b := NewBatch()
		defer b.Release()

		b.Begin(hdr, PathGeometrySize, 8)
		if err := b.AppendData(make([]byte, 9)); !errors.IsKind(err, errors.KindFraming) {
			t.Fatalf("AppendData error = %v, want framing", err)
		}
	})

	t.Run("header size mismatch", func(t *testing.T) {
		b := NewBatch()
		defer b.Release()
		if err := b.Begin(hdr, PathGeometrySize+1, 0); !errors.IsKind(err, errors.KindInvalidInput) {
			t.Fatalf("Begin error = %v, want invalid input", err)
		}
	})

	t.Run("nested begin", func(t *testing.T) {
		b := NewBatch()
		defer b.Release()
		b.Begin(hdr, PathGeometrySize, 8)
		if err := b.Begin(hdr, PathGeometrySize, 8); !errors.IsKind(err, errors.KindProtocol) {
			t.Fatalf("Begin error = %v, want protocol", err)
		}
		if err := b.Append(Encode(ReleaseResource{Handle: 1})); !errors.IsKind(err, errors.KindProtocol) {
			t.Fatalf("Append error = %v, want protocol", err)
		}
	})

	t.Run("append without begin", func(t *testing.T) {
		b := NewBatch()
		defer b.Release()
		if err := b.AppendData([]byte{1}); !errors.IsKind(err, errors.KindProtocol) {
			t.Fatalf("AppendData error = %v, want protocol", err)
		}
		if err := b.End(); !errors.IsKind(err, errors.KindProtocol) {
			t.Fatalf("End error = %v, want protocol", err)
		}
	})
}

func TestBatch_GrowPreservesRecords(t *testing.T) {
	b := NewBatch()
	defer b.Release()

	var want [][]byte
	for i := 0; i < 500; i++ {
		rec := Encode(MatrixTransform{Handle: resource.Handle(i + 1), M11: float64(i)})
		want = append(want, rec)
		if err := b.Append(rec); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	if b.Count() != len(want) {
		t.Fatalf("Count = %d, want %d", b.Count(), len(want))
	}
	for i, rec := range b.Records() {
		if !bytes.Equal(rec, want[i]) {
			t.Fatalf("record %d corrupted after growth", i)
		}
	}
}

func TestBatch_ResetAndAbort(t *testing.T) {
	b := NewBatch()
	defer b.Release()

	b.Append(Encode(ReleaseResource{Handle: 1}))
	b.Begin(PathGeometry{FiguresSize: 4}.Header(), PathGeometrySize, 4)
	if b.Len() != ReleaseResourceSize {
		t.Fatalf("Len with open command = %d, want %d", b.Len(), ReleaseResourceSize)
	}
	b.Abort()
	if b.InCommand() || b.Count() != 1 {
		t.Fatal("Abort should drop only the open record")
	}

	b.Reset()
	if !b.Empty() || b.Len() != 0 {
		t.Fatal("Reset should empty the batch")
	}
}

func TestBatch_MarshalRoundTrip(t *testing.T) {
	b := NewBatch()
	defer b.Release()

	b.Append(Encode(CreateResource{Handle: 1, Resource: resource.TypeSolidColorBrush}))
	b.Append(Encode(SolidColorBrush{Handle: 1, Opacity: 0.5, Color: Color{R: 1, A: 1}}))
	stops := []GradientStop{{Offset: 0}, {Offset: 1, Color: Color{B: 1, A: 1}}}
	hdr := LinearGradientBrush{Handle: 2, StopCount: uint32(len(stops))}
	b.Begin(hdr.Header(), LinearGradientBrushSize, hdr.ExtraSize())
	b.AppendData(EncodeGradientStops(stops))
	b.End()

	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	got, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatalf("UnmarshalBatch: %v", err)
	}
	defer got.Release()

	if got.Count() != b.Count() {
		t.Fatalf("Count = %d, want %d", got.Count(), b.Count())
	}
	if !bytes.Equal(got.Bytes(), b.Bytes()) {
		t.Fatal("record bytes differ after round trip")
	}
}

func TestUnmarshalBatch_Malformed(t *testing.T) {
	b := NewBatch()
	b.Append(Encode(ReleaseResource{Handle: 1}))
	data, _ := b.MarshalBinary()
	b.Release()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0, 0, 0, 0}, data[4:]...)},
		{"truncated", data[:len(data)-2]},
		{"trailing", append(append([]byte{}, data...), 0xff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalBatch(tt.data); !errors.IsKind(err, errors.KindFraming) {
				t.Fatalf("error = %v, want framing", err)
			}
		})
	}
}

func TestBatch_BeginRejectsOversizedRecord(t *testing.T) {
	b := NewBatch()
	defer b.Release()

	hdr := PathGeometry{Handle: 1}.Header()
	if err := b.Begin(hdr, len(hdr), 4*MaxRecordSize); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("Begin huge = %v, want invalid input", err)
	}
	if b.InCommand() || b.Len() != 0 {
		t.Fatal("rejected Begin changed the batch")
	}
	if err := b.Begin(hdr, len(hdr), MaxRecordSize-len(hdr)+1); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("Begin one past limit = %v, want invalid input", err)
	}
	if err := b.Begin(hdr, len(hdr), 16); err != nil {
		t.Fatalf("Begin within limit: %v", err)
	}
	b.Abort()
}
