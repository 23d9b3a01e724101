package resource

import "fmt"

// Handle is the per-channel identifier of a compositor-side resource.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Null is the sentinel meaning "no resource".
const Null Handle = 0

// IsNull reports whether h is the Null sentinel.
func (h Handle) IsNull() bool { return h == Null }

// Type tags a resource at creation so the compositor can interpret
// later commands that reference its handle.
type Type uint32

const (
	TypeNull Type = iota
	TypeMatrixTransform
	TypeTranslateTransform
	TypeScaleTransform
	TypeRotateTransform
	TypeTransformGroup
	TypeSolidColorBrush
	TypeLinearGradientBrush
	TypeRadialGradientBrush
	TypeImageBrush
	TypePen
	TypeRectangleGeometry
	TypeEllipseGeometry
	TypePathGeometry
	TypeGeometryGroup
	TypeDrawingGroup
	TypeGeometryDrawing
	TypeVisual
	TypeCompositionTarget
	TypeRenderData
	TypeGlyphRun

	typeCount
)

var typeNames = [...]string{
	TypeNull:                "null",
	TypeMatrixTransform:     "matrix-transform",
	TypeTranslateTransform:  "translate-transform",
	TypeScaleTransform:      "scale-transform",
	TypeRotateTransform:     "rotate-transform",
	TypeTransformGroup:      "transform-group",
	TypeSolidColorBrush:     "solid-color-brush",
	TypeLinearGradientBrush: "linear-gradient-brush",
	TypeRadialGradientBrush: "radial-gradient-brush",
	TypeImageBrush:          "image-brush",
	TypePen:                 "pen",
	TypeRectangleGeometry:   "rectangle-geometry",
	TypeEllipseGeometry:     "ellipse-geometry",
	TypePathGeometry:        "path-geometry",
	TypeGeometryGroup:       "geometry-group",
	TypeDrawingGroup:        "drawing-group",
	TypeGeometryDrawing:     "geometry-drawing",
	TypeVisual:              "visual",
	TypeCompositionTarget:   "composition-target",
	TypeRenderData:          "render-data",
	TypeGlyphRun:            "glyph-run",
}

// Valid reports whether t names a creatable resource type.
func (t Type) Valid() bool {
	return t > TypeNull && t < typeCount
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// EventType identifies a lifecycle transition reported to observers.
type EventType uint8

const (
	EventCreated EventType = iota
	EventAddRef
	EventReleased
	EventDestroyed
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventAddRef:
		return "addref"
	case EventReleased:
		return "released"
	case EventDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Owner    any
	Handle   Handle
	RefCount uint32
	Type     EventType
	Resource Type
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
