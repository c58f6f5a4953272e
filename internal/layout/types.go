// Package layout defines the certificate layout configuration stored in the
// template's JSONB blob: canvas dimensions, background placement mode, and
// the ordered element list. Slice order is z-order (later draws on top).
//
// The schema is forward compatible: unknown JSON fields and unknown element
// types survive an unmarshal/marshal round trip unchanged, so configurations
// written by newer editors are never corrupted by older ones.
package layout

import (
	"encoding/json"
	"fmt"
)

// BackgroundMode governs how a background image whose native size differs
// from the canvas is fitted into it.
type BackgroundMode string

const (
	BackgroundStretch BackgroundMode = "stretch"
	BackgroundContain BackgroundMode = "contain"
	BackgroundCover   BackgroundMode = "cover"
)

// ElementType discriminates the element tagged union.
type ElementType string

const (
	ElementStudentName     ElementType = "student_name"
	ElementCertificateNo   ElementType = "certificate_no"
	ElementIssueDate       ElementType = "issue_date"
	ElementTrainingName    ElementType = "training_name"
	ElementCertificateType ElementType = "certificate_type"
	ElementCustomText      ElementType = "custom_text"
	ElementQRCode          ElementType = "qr_code"
	ElementDealerLogo      ElementType = "dealer_logo"
)

// Known reports whether t is an element type this build understands.
// Unknown types are still carried through load/save, but are inert.
func (t ElementType) Known() bool {
	switch t {
	case ElementStudentName, ElementCertificateNo, ElementIssueDate,
		ElementTrainingName, ElementCertificateType, ElementCustomText,
		ElementQRCode, ElementDealerLogo:
		return true
	}
	return false
}

// IsImage reports whether t draws into a fixed width×height box.
func (t ElementType) IsImage() bool {
	return t == ElementQRCode || t == ElementDealerLogo
}

// TextAlign applies only to text elements with MaxWidth set.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// Element is one positioned overlay. X/Y are top-left in design units and
// may be negative or exceed the canvas: partially off-canvas staging during
// editing is allowed, so nothing here clamps.
//
// For custom_text the Label doubles as the template string with
// {placeholder} tokens.
type Element struct {
	Type       ElementType `json:"type"`
	Label      string      `json:"label,omitempty"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	FontFamily string      `json:"fontFamily,omitempty"`
	FontSize   float64     `json:"fontSize,omitempty"`
	Color      string      `json:"color,omitempty"`
	FontWeight string      `json:"fontWeight,omitempty"` // "normal" | "bold"
	FontStyle  string      `json:"fontStyle,omitempty"`  // "normal" | "italic"

	// Text-only. Nil MaxWidth means single-line, no wrapping.
	MaxWidth  *float64  `json:"maxWidth,omitempty"`
	TextAlign TextAlign `json:"textAlign,omitempty"`

	// Image-only (qr_code, dealer_logo): the fixed target box.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// extra holds JSON keys this build does not understand.
	extra map[string]json.RawMessage
}

// elementAlias avoids recursing into Element's own (Un)MarshalJSON.
type elementAlias Element

// elementKnownKeys are the JSON keys owned by the typed fields above. They
// are stripped from the raw map before merging so cleared optional fields
// (e.g. a removed maxWidth) do not resurface from stale raw data.
var elementKnownKeys = []string{
	"type", "label", "x", "y",
	"fontFamily", "fontSize", "color", "fontWeight", "fontStyle",
	"maxWidth", "textAlign", "width", "height",
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var alias elementAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("unmarshal element: %w", err)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal element fields: %w", err)
	}
	for _, key := range elementKnownKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*e = Element(alias)
	e.extra = raw
	return nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(elementAlias(e))
	if err != nil {
		return nil, fmt.Errorf("marshal element: %w", err)
	}
	if len(e.extra) == 0 {
		return known, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, fmt.Errorf("remarshal element: %w", err)
	}
	for key, value := range e.extra {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Configuration is the persisted layout of one certificate template.
type Configuration struct {
	CanvasWidth    int            `json:"canvasWidth"`
	CanvasHeight   int            `json:"canvasHeight"`
	BackgroundMode BackgroundMode `json:"backgroundMode"`
	Elements       []Element      `json:"elements"`

	extra map[string]json.RawMessage
}

type configurationAlias Configuration

var configurationKnownKeys = []string{
	"canvasWidth", "canvasHeight", "backgroundMode", "elements",
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var alias configurationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("unmarshal layout configuration: %w", err)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal layout fields: %w", err)
	}
	for _, key := range configurationKnownKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*c = Configuration(alias)
	c.extra = raw
	return nil
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(configurationAlias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal layout configuration: %w", err)
	}
	if len(c.extra) == 0 {
		return known, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, fmt.Errorf("remarshal layout configuration: %w", err)
	}
	for key, value := range c.extra {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// NewConfiguration returns an empty design sized to the given canvas.
func NewConfiguration(canvasWidth, canvasHeight int) Configuration {
	return Configuration{
		CanvasWidth:    canvasWidth,
		CanvasHeight:   canvasHeight,
		BackgroundMode: BackgroundStretch,
		Elements:       []Element{},
	}
}

// Validate checks the invariants the editor cannot express: positive canvas
// dimensions, and positive boxes on image elements. Element coordinates are
// deliberately not range checked.
func (c Configuration) Validate() error {
	if c.CanvasWidth < 1 || c.CanvasHeight < 1 {
		return fmt.Errorf("canvas dimensions must be positive, got %dx%d", c.CanvasWidth, c.CanvasHeight)
	}
	switch c.BackgroundMode {
	case BackgroundStretch, BackgroundContain, BackgroundCover, "":
	default:
		return fmt.Errorf("unknown background mode %q", c.BackgroundMode)
	}
	for i, el := range c.Elements {
		if !el.Type.Known() {
			continue
		}
		if el.Type.IsImage() && (el.Width <= 0 || el.Height <= 0) {
			return fmt.Errorf("element %d (%s): image box must have positive width and height", i, el.Type)
		}
		if el.MaxWidth != nil && *el.MaxWidth <= 0 {
			return fmt.Errorf("element %d (%s): maxWidth must be positive when set", i, el.Type)
		}
	}
	return nil
}
