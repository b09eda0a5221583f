package coords

import "errors"

var (
	// ErrDegenerateViewport is returned when the viewport has no area.
	ErrDegenerateViewport = errors.New("viewport has zero width or height")
	// ErrScaleUndefined is returned when mapping before any successful
	// RecalculateScale.
	ErrScaleUndefined = errors.New("screen to world scale is undefined")
)
