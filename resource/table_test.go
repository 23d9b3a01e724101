package resource

import "testing"

func TestTable_AllocateAddRefRelease(t *testing.T) {
	table := NewTable()

	h := table.Allocate(TypeSolidColorBrush, "brush")
	if h == Null {
		t.Fatal("expected non-null handle")
	}
	if got := table.RefCount(h); got != 1 {
		t.Fatalf("RefCount = %d, want 1", got)
	}

	refs, ok := table.AddRef(h)
	if !ok || refs != 2 {
		t.Fatalf("AddRef = (%d, %v), want (2, true)", refs, ok)
	}

	remaining, ok := table.Release(h)
	if !ok || remaining != 1 {
		t.Fatalf("Release = (%d, %v), want (1, true)", remaining, ok)
	}
	if !table.Contains(h) {
		t.Fatal("handle should still be live")
	}

	remaining, ok = table.Release(h)
	if !ok || remaining != 0 {
		t.Fatalf("Release = (%d, %v), want (0, true)", remaining, ok)
	}
	if table.Contains(h) {
		t.Fatal("handle should be freed at zero")
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
}

func TestTable_RefCountMatchesCalls(t *testing.T) {
	table := NewTable()
	h := table.Allocate(TypeVisual, nil)

	adds := 1
	for i := 0; i < 9; i++ {
		table.AddRef(h)
		adds++
	}
	releases := 0
	for i := 0; i < 4; i++ {
		table.Release(h)
		releases++
	}

	if got := table.RefCount(h); int(got) != adds-releases {
		t.Fatalf("RefCount = %d, want %d", got, adds-releases)
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()

	h1 := table.Allocate(TypeVisual, 1)
	h2 := table.Allocate(TypeVisual, 2)
	h3 := table.Allocate(TypeVisual, 3)

	table.Release(h2)

	h4 := table.Allocate(TypePen, 4)
	if h4 != h2 {
		t.Fatalf("expected freed slot %d to be reused, got %d", h2, h4)
	}
	if typ, _ := table.TypeOf(h4); typ != TypePen {
		t.Fatalf("TypeOf(h4) = %v, want %v", typ, TypePen)
	}
	if owner, _ := table.Owner(h4); owner != 4 {
		t.Fatalf("Owner(h4) = %v, want 4", owner)
	}
	if !table.Contains(h1) || !table.Contains(h3) {
		t.Fatal("h1 and h3 should be live")
	}
}

func TestTable_InvalidHandle(t *testing.T) {
	table := NewTable()

	if _, ok := table.AddRef(Null); ok {
		t.Fatal("AddRef(Null) should fail")
	}
	if _, ok := table.Release(Null); ok {
		t.Fatal("Release(Null) should fail")
	}
	if _, ok := table.Release(42); ok {
		t.Fatal("Release of unknown handle should fail")
	}

	h := table.Allocate(TypeVisual, nil)
	table.Release(h)
	if _, ok := table.Release(h); ok {
		t.Fatal("double release should fail")
	}
	if table.RefCount(h) != 0 {
		t.Fatal("RefCount of freed handle should be 0")
	}
}

func TestTable_Observers(t *testing.T) {
	table := NewTable()

	var events []EventType
	stop := table.Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e.Type)
	}))

	h := table.Allocate(TypeMatrixTransform, nil)
	table.AddRef(h)
	table.Release(h)
	table.Release(h)

	want := []EventType{EventCreated, EventAddRef, EventReleased, EventDestroyed}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %v, want %v", i, events[i], want[i])
		}
	}

	stop()
	table.Allocate(TypeVisual, nil)
	if len(events) != len(want) {
		t.Fatal("observer called after unsubscribe")
	}
}

func TestTable_EachAndClear(t *testing.T) {
	table := NewTable()
	table.Allocate(TypeVisual, nil)
	h := table.Allocate(TypePen, nil)
	table.Allocate(TypeVisual, nil)
	table.Release(h)

	count := 0
	table.Each(func(Handle, Type, uint32) bool {
		count++
		return true
	})
	if count != 2 {
		t.Fatalf("Each visited %d, want 2", count)
	}

	count = 0
	table.Each(func(Handle, Type, uint32) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Each with early stop visited %d, want 1", count)
	}

	table.Clear()
	if table.Len() != 0 {
		t.Fatalf("Len after Clear = %d", table.Len())
	}
	if h := table.Allocate(TypeVisual, nil); h != 1 {
		t.Fatalf("first handle after Clear = %d, want 1", h)
	}
}

func TestType(t *testing.T) {
	if TypeNull.Valid() {
		t.Error("TypeNull should not be valid")
	}
	if !TypeCompositionTarget.Valid() {
		t.Error("TypeCompositionTarget should be valid")
	}
	if Type(1000).Valid() {
		t.Error("out of range type should not be valid")
	}
	if TypeLinearGradientBrush.String() != "linear-gradient-brush" {
		t.Errorf("String = %q", TypeLinearGradientBrush.String())
	}
	if Type(1000).String() != "type(1000)" {
		t.Errorf("String = %q", Type(1000).String())
	}
}
