package models

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ViewKey identifies one of the orthogonal views (e.g. "top", "left", "front")
type ViewKey string

// DefaultViewKeys are the anatomical view keys used when none are configured
var DefaultViewKeys = []ViewKey{"top", "left", "front"}

// Axis is a local in-plane axis of a view
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

var axisNames = map[Axis]string{AxisX: "x", AxisY: "y"}

func (a Axis) String() string {
	if s, ok := axisNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis converts "x" or "y" into an Axis
func ParseAxis(s string) (Axis, error) {
	for a, name := range axisNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x or y)", s)
}

// BlendMode is the ray compositing rule used for a thick slab
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendMIP
	BlendMinIP
	BlendAverage
)

var blendNames = map[BlendMode]string{
	BlendNone:    "none",
	BlendMIP:     "mip",
	BlendMinIP:   "minip",
	BlendAverage: "average",
}

func (m BlendMode) String() string {
	if s, ok := blendNames[m]; ok {
		return s
	}
	return fmt.Sprintf("BlendMode(%d)", int(m))
}

// Valid reports whether m is one of the known blend modes
func (m BlendMode) Valid() bool {
	_, ok := blendNames[m]
	return ok
}

// ParseBlendMode converts a blend mode name into a BlendMode
func ParseBlendMode(s string) (BlendMode, error) {
	for m, name := range blendNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	if strings.EqualFold(s, "avg") {
		return BlendAverage, nil
	}
	return 0, fmt.Errorf("invalid blend mode: %s", s)
}

// MarshalText implements encoding.TextMarshaler
func (m BlendMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *BlendMode) UnmarshalText(text []byte) error {
	parsed, err := ParseBlendMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Tool is an interaction mode shared by all views
type Tool int

const (
	ToolLevel Tool = iota
	ToolCrosshair
	ToolPan
	ToolZoom
)

var toolNames = map[Tool]string{
	ToolLevel:     "level",
	ToolCrosshair: "crosshair",
	ToolPan:       "pan",
	ToolZoom:      "zoom",
}

func (t Tool) String() string {
	if s, ok := toolNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// Valid reports whether t is one of the known tools
func (t Tool) Valid() bool {
	_, ok := toolNames[t]
	return ok
}

// ParseTool converts a tool name into a Tool
func ParseTool(s string) (Tool, error) {
	for t, name := range toolNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("invalid tool: %s", s)
}

// MarshalText implements encoding.TextMarshaler
func (t Tool) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Tool) UnmarshalText(text []byte) error {
	parsed, err := ParseTool(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is the grayscale mapping (wwwl) applied to voxel intensities
type Window struct {
	Center float64
	Width  float64
}

// Range converts the window into its lower and upper intensity bounds
func (w Window) Range() (lower, upper float64) {
	return w.Center - w.Width/2, w.Center + w.Width/2
}

// Finite reports whether center and width are both finite
func (w Window) Finite() bool {
	return !math.IsNaN(w.Center) && !math.IsInf(w.Center, 0) &&
		!math.IsNaN(w.Width) && !math.IsInf(w.Width, 0)
}

// Relative rescales w to the fraction of the data range [lo, hi] it covers:
// a relative center of 0 sits at lo and a relative width of 1 spans the range.
func (w Window) Relative(lo, hi float64) (Window, error) {
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return Window{}, fmt.Errorf("empty data range [%v, %v]", lo, hi)
	}
	return Window{Center: (w.Center - lo) / span, Width: w.Width / span}, nil
}

// Absolute is the inverse of Relative
func (w Window) Absolute(lo, hi float64) (Window, error) {
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return Window{}, fmt.Errorf("empty data range [%v, %v]", lo, hi)
	}
	return Window{Center: lo + w.Center*span, Width: w.Width * span}, nil
}

// WindowFromRange builds the window covering [low, high]
func WindowFromRange(low, high float64) Window {
	width := high - low
	if width < 0 {
		width = -width
	}
	return Window{Center: low + width/2, Width: width}
}

// Plane is a point on a plane plus its normal
type Plane struct {
	Position r3.Vec
	Normal   r3.Vec
}

// ViewState is the orientation and display state of a single view
type ViewState struct {
	// SliceNormal is the base viewing direction of the slice
	SliceNormal r3.Vec

	// ViewUp is the base in-plane up vector
	ViewUp r3.Vec

	// XRotation is the rotation around the view's local X axis, in degrees
	XRotation float64

	// YRotation is the rotation around the view-up vector, in degrees
	YRotation float64

	// ViewRotation is the in-plane rotation of the up vector, in degrees
	ViewRotation float64

	// SliceThickness is the slab thickness in pixels
	SliceThickness float64

	// BlendMode is the compositing rule requested for thick slabs
	BlendMode BlendMode

	// Window is the current window/level
	Window Window
}

// ManagerState is the aggregate state shared with the hosting application
type ManagerState struct {
	// SliceIntersection is the common point of the three slice planes
	SliceIntersection r3.Vec

	// Views holds one state per configured view key
	Views map[ViewKey]ViewState

	// InteractorCenters holds the crosshair center of each view in display coordinates
	InteractorCenters map[ViewKey]r2.Vec

	// IntersectionStale is set when the last intersection update was
	// dropped because the slice planes were degenerate
	IntersectionStale bool
}

// Clone returns a deep copy of the state
func (s ManagerState) Clone() ManagerState {
	out := ManagerState{
		SliceIntersection: s.SliceIntersection,
		Views:             make(map[ViewKey]ViewState, len(s.Views)),
		InteractorCenters: make(map[ViewKey]r2.Vec, len(s.InteractorCenters)),
		IntersectionStale: s.IntersectionStale,
	}
	for k, v := range s.Views {
		out.Views[k] = v
	}
	for k, c := range s.InteractorCenters {
		out.InteractorCenters[k] = c
	}
	return out
}

// MouseButton identifies the button that generated a mouse event
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonMiddle
	ButtonRight
)

// EventKind is the kind of input event delivered by the host
type EventKind int

const (
	EventPress EventKind = iota
	EventMove
	EventRelease
	EventScroll
)

// MouseEvent is a single pointer event in a view's display coordinates
type MouseEvent struct {
	Kind     EventKind
	Button   MouseButton
	Position r2.Vec
	// WheelDelta is the number of scroll steps, positive away from the user
	WheelDelta float64
	Shift      bool
	Control    bool
}
