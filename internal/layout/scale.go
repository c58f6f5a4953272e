package layout

// Scale mapping between design units (canvas-native pixels, as persisted)
// and view units (on-screen pixels at the current zoom). These functions are
// stateless; the design session keeps the resulting scale as transient UI
// state and never writes it into the configuration.

const (
	// MinScale and MaxScale bound manual zoom.
	MinScale = 0.1
	MaxScale = 3.0

	// DefaultMaxAutoScale keeps fit-to-view from magnifying past native
	// resolution; manual zoom may still exceed it.
	DefaultMaxAutoScale = 1.0
)

// ScaleFor computes the fit-to-view scale for a canvas inside a viewport,
// leaving padding view pixels spare on each axis and never exceeding
// maxAutoScale.
func ScaleFor(viewportWidth, viewportHeight, canvasWidth, canvasHeight, padding, maxAutoScale float64) float64 {
	if canvasWidth <= 0 || canvasHeight <= 0 {
		return maxAutoScale
	}

	availableW := viewportWidth - padding
	availableH := viewportHeight - padding

	s := maxAutoScale
	if byWidth := availableW / canvasWidth; byWidth < s {
		s = byWidth
	}
	if byHeight := availableH / canvasHeight; byHeight < s {
		s = byHeight
	}
	return s
}

// ToDesignDelta converts a pointer movement in view pixels into design
// units. Dividing by the scale is what makes dragging feel 1:1 at any zoom:
// the element tracks the cursor exactly.
func ToDesignDelta(viewPixelDelta, scale float64) float64 {
	if scale == 0 {
		return 0
	}
	return viewPixelDelta / scale
}

// ClampScale restricts a manual zoom factor to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
