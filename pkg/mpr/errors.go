package mpr

import (
	"errors"

	"mprviewer/pkg/geometry"
)

var (
	// ErrDegenerateGeometry is returned when planes or vectors do not define a
	// unique result. The coordinator recovers from it locally.
	ErrDegenerateGeometry = geometry.ErrDegenerate
	// ErrInvalidState operation called out of lifecycle order.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnknownViewKey view key is not one of the configured keys.
	ErrUnknownViewKey = errors.New("unknown view key")
	// ErrUnknownTool tool is not one of level, crosshair, pan or zoom.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUnknownAxis axis is neither x nor y.
	ErrUnknownAxis = errors.New("unknown axis")
)
