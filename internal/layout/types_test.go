package layout

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConfigurationRoundTripPreservesUnknownFields(t *testing.T) {
	input := `{
		"canvasWidth": 2000,
		"canvasHeight": 1400,
		"backgroundMode": "cover",
		"gridSnap": 8,
		"elements": [
			{"type": "student_name", "label": "Student", "x": 100, "y": 200, "fontSize": 32, "glow": true},
			{"type": "hologram", "x": 10, "y": 20, "intensity": 0.8}
		]
	}`

	var cfg Configuration
	if err := json.Unmarshal([]byte(input), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if cfg.CanvasWidth != 2000 || cfg.CanvasHeight != 1400 {
		t.Fatalf("canvas parsed as %dx%d", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if cfg.BackgroundMode != BackgroundCover {
		t.Fatalf("background mode parsed as %q", cfg.BackgroundMode)
	}
	if len(cfg.Elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(cfg.Elements))
	}
	if cfg.Elements[1].Type.Known() {
		t.Fatalf("element type %q should be unknown", cfg.Elements[1].Type)
	}

	out, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, fragment := range []string{`"gridSnap":8`, `"glow":true`, `"hologram"`, `"intensity":0.8`} {
		if !strings.Contains(string(out), fragment) {
			t.Fatalf("round trip lost %s: %s", fragment, out)
		}
	}
}

func TestElementRoundTripDropsClearedMaxWidth(t *testing.T) {
	input := `{"type": "training_name", "x": 1, "y": 2, "maxWidth": 300, "textAlign": "center"}`

	var el Element
	if err := json.Unmarshal([]byte(input), &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if el.MaxWidth == nil || *el.MaxWidth != 300 {
		t.Fatalf("maxWidth parsed as %v", el.MaxWidth)
	}

	// Operator switches the element back to single-line layout.
	el.MaxWidth = nil
	el.TextAlign = ""

	out, err := json.Marshal(el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "maxWidth") {
		t.Fatalf("cleared maxWidth resurfaced: %s", out)
	}
}

func TestNewConfigurationIsValidAndEmpty(t *testing.T) {
	cfg := NewConfiguration(2480, 3508)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fresh configuration invalid: %v", err)
	}
	if len(cfg.Elements) != 0 {
		t.Fatalf("fresh configuration has %d elements", len(cfg.Elements))
	}
}

func TestValidate(t *testing.T) {
	maxW := -5.0
	cases := []struct {
		name    string
		mutate  func(*Configuration)
		wantErr bool
	}{
		{"zero width canvas", func(c *Configuration) { c.CanvasWidth = 0 }, true},
		{"bogus background mode", func(c *Configuration) { c.BackgroundMode = "tile" }, true},
		{"image box without size", func(c *Configuration) {
			c.Elements = append(c.Elements, Element{Type: ElementQRCode, X: 10, Y: 10})
		}, true},
		{"negative maxWidth", func(c *Configuration) {
			c.Elements = append(c.Elements, Element{Type: ElementCustomText, MaxWidth: &maxW})
		}, true},
		{"off-canvas coordinates are fine", func(c *Configuration) {
			c.Elements = append(c.Elements, Element{Type: ElementStudentName, X: -500, Y: 99999})
		}, false},
		{"unknown element type is fine", func(c *Configuration) {
			c.Elements = append(c.Elements, Element{Type: "hologram"})
		}, false},
	}

	for _, tc := range cases {
		cfg := NewConfiguration(100, 100)
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}
