// Package render produces the final certificate document from a layout
// configuration and a certificate record. Rendering always happens at 1:1
// design units (exactly canvasWidth×canvasHeight pixels) with no view
// scale involved, and is a pure function of its inputs: the same
// configuration, record and language must produce byte-identical output so
// the verification re-download path can be trusted.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"certforge/internal/binding"
	"certforge/internal/layout"
)

// lineHeightFactor derives wrapped line height from the font size.
const lineHeightFactor = 1.2

// AssetFetcher loads stored images (backgrounds, logos) by object key.
type AssetFetcher interface {
	FetchImage(ctx context.Context, objectKey string) (image.Image, error)
}

// Params is one render request: one certificate in one language.
type Params struct {
	Config        layout.Configuration
	Record        binding.Record
	Language      string
	BackgroundKey string
}

// Pipeline composites certificates. It is safe for concurrent use: renders
// share no mutable state, so documents for different certificates (or the
// same certificate in different languages) may run in parallel.
type Pipeline struct {
	fonts  *FontLibrary
	assets AssetFetcher
	opts   binding.Options
}

// NewPipeline wires the compositor to its font library and asset store.
func NewPipeline(fonts *FontLibrary, assets AssetFetcher, opts binding.Options) *Pipeline {
	return &Pipeline{fonts: fonts, assets: assets, opts: opts}
}

// Render produces the PNG document for params. A missing background image
// is fatal: there is nothing to certify without it. A missing font falls
// back to a default face and a missing logo renders as an empty box;
// neither aborts the document.
func (p *Pipeline) Render(ctx context.Context, params Params) ([]byte, error) {
	cfg := params.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("layout configuration: %w", err)
	}

	if params.BackgroundKey == "" {
		return nil, fmt.Errorf("render: template has no background image")
	}
	background, err := p.assets.FetchImage(ctx, params.BackgroundKey)
	if err != nil {
		return nil, fmt.Errorf("fetch background %q: %w", params.BackgroundKey, err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cfg.CanvasWidth, cfg.CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawBackground(canvas, background, cfg.BackgroundMode)

	// Array order is z-order: later elements draw on top.
	for _, el := range cfg.Elements {
		if !el.Type.Known() {
			continue
		}
		value := binding.Resolve(el, params.Record, params.Language, p.opts)
		switch value.Kind {
		case binding.KindText:
			if err := p.drawText(canvas, el, value.Text); err != nil {
				return nil, err
			}
		case binding.KindQR:
			p.drawQR(canvas, el, value.Text)
		case binding.KindImage:
			p.drawStoredImage(ctx, canvas, el, value.ObjectKey)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// drawText renders a text element: a single unwrapped line when MaxWidth is
// unset, otherwise greedily word-wrapped lines aligned within
// [x, x+maxWidth], top-anchored at y with 1.2× line height.
func (p *Pipeline) drawText(canvas *image.RGBA, el layout.Element, text string) error {
	if text == "" {
		return nil
	}

	face, err := p.fonts.Face(el.FontFamily, el.FontWeight, el.FontStyle, el.FontSize)
	if err != nil {
		return fmt.Errorf("font face for %q: %w", el.FontFamily, err)
	}
	defer face.Close()

	textColor := parseHexColor(el.Color)
	ascent := fixedToFloat(face.Metrics().Ascent)

	if el.MaxWidth == nil {
		drawString(canvas, face, textColor, text, el.X, el.Y+ascent)
		return nil
	}

	fontSize := el.FontSize
	if fontSize <= 0 {
		fontSize = 14
	}
	lineHeight := fontSize * lineHeightFactor

	for i, line := range wrapLines(face, text, *el.MaxWidth) {
		x := alignOffset(el.X, *el.MaxWidth, measureString(face, line), el.TextAlign)
		drawString(canvas, face, textColor, line, x, el.Y+ascent+float64(i)*lineHeight)
	}
	return nil
}

// drawQR generates the QR symbol for the payload and stretches it into the
// element's box. Symbol generation failure skips the element; it never
// aborts the document.
func (p *Pipeline) drawQR(canvas *image.RGBA, el layout.Element, payload string) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return
	}
	size := int(el.Width)
	if h := int(el.Height); h < size {
		size = h
	}
	if size < 21 {
		size = 21
	}
	drawIntoBox(canvas, qr.Image(size), el)
}

// drawStoredImage fetches a stored image (the dealer logo) into the box. An
// empty key or a failed fetch leaves the box empty.
func (p *Pipeline) drawStoredImage(ctx context.Context, canvas *image.RGBA, el layout.Element, objectKey string) {
	if objectKey == "" {
		return
	}
	img, err := p.assets.FetchImage(ctx, objectKey)
	if err != nil {
		return
	}
	drawIntoBox(canvas, img, el)
}

// drawIntoBox scales src to exactly the element's width×height box at
// (x, y). Aspect ratio is forced to the box: QR codes and logos are
// fixed-purpose assets expected to be roughly square.
func drawIntoBox(canvas *image.RGBA, src image.Image, el layout.Element) {
	box := image.Rect(
		int(el.X+0.5), int(el.Y+0.5),
		int(el.X+el.Width+0.5), int(el.Y+el.Height+0.5),
	)
	xdraw.ApproxBiLinear.Scale(canvas, box, src, src.Bounds(), xdraw.Over, nil)
}

// wrapLines greedily breaks text on word boundaries into lines no wider
// than maxWidth at the face's metrics. A single word wider than maxWidth
// stays on its own line rather than being split.
func wrapLines(face font.Face, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measureString(face, candidate) > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}

// alignOffset returns the left edge for a line of the given width within
// [x, x+maxWidth].
func alignOffset(x, maxWidth, lineWidth float64, align layout.TextAlign) float64 {
	switch align {
	case layout.AlignCenter:
		return x + (maxWidth-lineWidth)/2
	case layout.AlignRight:
		return x + maxWidth - lineWidth
	}
	return x
}

func measureString(face font.Face, s string) float64 {
	return fixedToFloat(font.MeasureString(face, s))
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func drawString(canvas *image.RGBA, face font.Face, col color.Color, s string, x, baseline float64) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(baseline * 64),
		},
	}
	drawer.DrawString(s)
}

// parseHexColor reads "#rrggbb"; anything else falls back to black, the
// sensible default for certificate text.
func parseHexColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.RGBA{A: 255}
	}
	r, errR := strconv.ParseUint(hex[0:2], 16, 8)
	g, errG := strconv.ParseUint(hex[2:4], 16, 8)
	b, errB := strconv.ParseUint(hex[4:6], 16, 8)
	if errR != nil || errG != nil || errB != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
