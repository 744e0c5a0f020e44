package models

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// MeasureMode selects what a measurement computes from its picked points
type MeasureMode int

const (
	// MeasureLength is the distance between two points
	MeasureLength MeasureMode = iota
	// MeasureAngle is the angle at the second of three points
	MeasureAngle
)

var measureModeNames = map[MeasureMode]string{
	MeasureLength: "length",
	MeasureAngle:  "angle",
}

func (m MeasureMode) String() string {
	if s, ok := measureModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MeasureMode(%d)", int(m))
}

// Valid reports whether m is a known mode
func (m MeasureMode) Valid() bool {
	_, ok := measureModeNames[m]
	return ok
}

// Points is the number of picks a complete measurement needs
func (m MeasureMode) Points() int {
	if m == MeasureAngle {
		return 3
	}
	return 2
}

// ParseMeasureMode converts a mode name into a MeasureMode
func ParseMeasureMode(s string) (MeasureMode, error) {
	for m, name := range measureModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid measure mode: %s", s)
}

// MeasurePoint is one pick: where it was clicked and where that lands in the volume
type MeasurePoint struct {
	View    ViewKey
	Display r2.Vec
	World   r3.Vec
}

// Measurement is a length or angle being picked in the views.
// Value and Label are only set once every point has been picked.
type Measurement struct {
	Mode   MeasureMode
	Points []MeasurePoint
	// Value is in world units for lengths and degrees for angles
	Value float64
	Label string
}

// Complete reports whether every point of the measurement has been picked
func (m Measurement) Complete() bool {
	return len(m.Points) == m.Mode.Points()
}

// Clone returns a copy that shares no memory with m
func (m Measurement) Clone() Measurement {
	out := m
	out.Points = append([]MeasurePoint(nil), m.Points...)
	return out
}
