// Package designer holds the in-memory editing session behind the template
// designer: a live layout configuration, the single selection, the current
// zoom, and the drag gesture controller. All mutation happens through
// session operations; persistence is an explicit save handled by the API
// layer, so an abandoned session leaves the stored template untouched.
package designer

import (
	"encoding/json"
	"fmt"

	"certforge/internal/layout"
)

// NoSelection is the Selected() value when nothing is selected.
const NoSelection = -1

// fitPadding is the spare room fit-to-view leaves around the canvas.
const fitPadding = 40.0

// Session is single-goroutine, mirroring the event-driven editor
// it backs. Callers serialize access.
type Session struct {
	cfg layout.Configuration

	viewportW float64
	viewportH float64
	scale     float64
	manual    bool // manual zoom set, suppress auto refit

	selected int
	drag     *dragGesture
}

// NewSession starts editing cfg at a fit-to-view scale for the viewport.
func NewSession(cfg layout.Configuration, viewportW, viewportH float64) *Session {
	s := &Session{
		cfg:       cfg,
		viewportW: viewportW,
		viewportH: viewportH,
		selected:  NoSelection,
	}
	s.FitToView()
	return s
}

// Configuration returns the current configuration. The element slice is
// copied so callers cannot mutate session state behind its back.
func (s *Session) Configuration() layout.Configuration {
	cfg := s.cfg
	cfg.Elements = append([]layout.Element(nil), s.cfg.Elements...)
	return cfg
}

// Scale returns the current view scale.
func (s *Session) Scale() float64 { return s.scale }

// Selected returns the selected element index, or NoSelection.
func (s *Session) Selected() int { return s.selected }

// SelectElement makes index the single active selection.
func (s *Session) SelectElement(index int) error {
	if index < 0 || index >= len(s.cfg.Elements) {
		return fmt.Errorf("select element %d: index out of range", index)
	}
	s.selected = index
	return nil
}

// ClearSelection drops the active selection.
func (s *Session) ClearSelection() { s.selected = NoSelection }

var defaultLabels = map[layout.ElementType]string{
	layout.ElementStudentName:     "Student Name",
	layout.ElementCertificateNo:   "Certificate No",
	layout.ElementIssueDate:       "Issue Date",
	layout.ElementTrainingName:    "Training Name",
	layout.ElementCertificateType: "Certificate Type",
	layout.ElementCustomText:      "Custom text",
	layout.ElementQRCode:          "QR Code",
	layout.ElementDealerLogo:      "Dealer Logo",
}

// AddElement appends a new element with type-appropriate defaults and
// selects it. Returns the new element's index.
func (s *Session) AddElement(elementType layout.ElementType) (int, error) {
	if !elementType.Known() {
		return NoSelection, fmt.Errorf("add element: unknown type %q", elementType)
	}

	el := layout.Element{
		Type:  elementType,
		Label: defaultLabels[elementType],
		X:     float64(s.cfg.CanvasWidth) / 2,
		Y:     float64(s.cfg.CanvasHeight) / 2,
	}
	if elementType.IsImage() {
		el.Width = 100
		el.Height = 100
	} else {
		el.FontFamily = ""
		el.FontSize = 14
		el.Color = "#000000"
		el.FontWeight = "normal"
		el.FontStyle = "normal"
	}

	s.cfg.Elements = append(s.cfg.Elements, el)
	s.selected = len(s.cfg.Elements) - 1
	return s.selected, nil
}

// RemoveElement removes by position. Removing the selected element clears
// the selection; a selection after the removed slot shifts down with it.
func (s *Session) RemoveElement(index int) error {
	if index < 0 || index >= len(s.cfg.Elements) {
		return fmt.Errorf("remove element %d: index out of range", index)
	}
	if s.drag != nil {
		switch {
		case s.drag.index == index:
			s.releaseDrag()
		case s.drag.index > index:
			s.drag.index--
		}
	}

	s.cfg.Elements = append(s.cfg.Elements[:index], s.cfg.Elements[index+1:]...)

	switch {
	case s.selected == index:
		s.selected = NoSelection
	case s.selected > index:
		s.selected--
	}
	return nil
}

// UpdateElement sets one field on an element. Numeric fields coerce their
// value; anything the editor sends beyond that is accepted as-is: invalid
// values are the editor's to prevent, not the model's to reject.
func (s *Session) UpdateElement(index int, field string, value any) error {
	if index < 0 || index >= len(s.cfg.Elements) {
		return fmt.Errorf("update element %d: index out of range", index)
	}
	el := &s.cfg.Elements[index]

	switch field {
	case "label":
		el.Label = fmt.Sprint(value)
	case "x":
		el.X = toFloat(value)
	case "y":
		el.Y = toFloat(value)
	case "fontFamily":
		el.FontFamily = fmt.Sprint(value)
	case "fontSize":
		el.FontSize = toFloat(value)
	case "color":
		el.Color = fmt.Sprint(value)
	case "fontWeight":
		el.FontWeight = fmt.Sprint(value)
	case "fontStyle":
		el.FontStyle = fmt.Sprint(value)
	case "maxWidth":
		if value == nil {
			el.MaxWidth = nil
		} else {
			w := toFloat(value)
			el.MaxWidth = &w
		}
	case "textAlign":
		el.TextAlign = layout.TextAlign(fmt.Sprint(value))
	case "width":
		el.Width = toFloat(value)
	case "height":
		el.Height = toFloat(value)
	default:
		return fmt.Errorf("update element %d: unknown field %q", index, field)
	}
	return nil
}

// ResizeCanvas changes the design-unit canvas dimensions and refits the
// view (canvas size changes invalidate the previous fit).
func (s *Session) ResizeCanvas(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("resize canvas: dimensions must be positive, got %dx%d", width, height)
	}
	s.cfg.CanvasWidth = width
	s.cfg.CanvasHeight = height
	if !s.manual {
		s.FitToView()
	}
	return nil
}

// SetBackgroundMode switches the background placement rule.
func (s *Session) SetBackgroundMode(mode layout.BackgroundMode) error {
	switch mode {
	case layout.BackgroundStretch, layout.BackgroundContain, layout.BackgroundCover:
		s.cfg.BackgroundMode = mode
		return nil
	}
	return fmt.Errorf("set background mode: unknown mode %q", mode)
}

// SetViewport records a new viewport size and, unless the operator has
// zoomed manually, refits. Must also be called once the background image's
// natural size becomes known, since the canvas may have adopted it.
func (s *Session) SetViewport(width, height float64) {
	s.viewportW = width
	s.viewportH = height
	if !s.manual {
		s.FitToView()
	}
}

// FitToView recomputes the automatic fit scale and drops any manual zoom.
func (s *Session) FitToView() {
	s.manual = false
	s.scale = layout.ScaleFor(
		s.viewportW, s.viewportH,
		float64(s.cfg.CanvasWidth), float64(s.cfg.CanvasHeight),
		fitPadding, layout.DefaultMaxAutoScale,
	)
}

// SetZoom applies a clamped manual zoom override.
func (s *Session) SetZoom(scale float64) {
	s.manual = true
	s.scale = layout.ClampScale(scale)
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
