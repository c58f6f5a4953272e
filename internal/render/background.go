package render

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"certforge/internal/layout"
)

// drawBackground composites the background image into the full canvas per
// the configured placement mode.
//
//	stretch: source fills the canvas exactly, aspect ratio ignored
//	contain: uniform scale, whole source visible, centered margins
//	cover:   uniform scale, canvas fully covered, overflow cropped
func drawBackground(dst *image.RGBA, src image.Image, mode layout.BackgroundMode) {
	canvas := dst.Bounds()
	srcBounds := src.Bounds()
	srcW := float64(srcBounds.Dx())
	srcH := float64(srcBounds.Dy())
	if srcW <= 0 || srcH <= 0 {
		return
	}
	canvasW := float64(canvas.Dx())
	canvasH := float64(canvas.Dy())

	target := canvas
	switch mode {
	case layout.BackgroundContain:
		s := canvasW / srcW
		if byHeight := canvasH / srcH; byHeight < s {
			s = byHeight
		}
		target = centeredRect(canvas, srcW*s, srcH*s)
	case layout.BackgroundCover:
		s := canvasW / srcW
		if byHeight := canvasH / srcH; byHeight > s {
			s = byHeight
		}
		// The oversized rect is clipped to the canvas by the scaler.
		target = centeredRect(canvas, srcW*s, srcH*s)
	case layout.BackgroundStretch, "":
		// full-canvas target
	}

	xdraw.ApproxBiLinear.Scale(dst, target, src, srcBounds, xdraw.Over, nil)
}

// centeredRect returns a w×h rectangle centered on the canvas.
func centeredRect(canvas image.Rectangle, w, h float64) image.Rectangle {
	x0 := canvas.Min.X + (canvas.Dx()-int(w+0.5))/2
	y0 := canvas.Min.Y + (canvas.Dy()-int(h+0.5))/2
	return image.Rect(x0, y0, x0+int(w+0.5), y0+int(h+0.5))
}
