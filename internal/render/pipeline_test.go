package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"
	"time"

	"certforge/internal/binding"
	"certforge/internal/layout"
)

type fakeAssets struct {
	images map[string]image.Image
}

func (f *fakeAssets) FetchImage(_ context.Context, objectKey string) (image.Image, error) {
	img, ok := f.images[objectKey]
	if !ok {
		return nil, fmt.Errorf("object %q not found", objectKey)
	}
	return img, nil
}

func uniformImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var (
	red = color.RGBA{R: 220, G: 30, B: 30, A: 255}
)

func testRecord() binding.Record {
	return binding.Record{
		CertificateNo: "CF-2026-000142",
		IssueDate:     time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		VerifyToken:   "u8FqPz3kN1wXv5tYhRmAbDcE",
		Student:       binding.Student{FirstName: "Ayşe", LastName: "Kaya"},
		Dealer:        binding.Dealer{Name: "Akademi Ltd.", LogoObjectKey: "logos/7.png"},
		Training: binding.Training{
			Names:           map[string]string{"tr": "Temel İlk Yardım", "en": "Basic First Aid"},
			DefaultLanguage: "tr",
			DurationHours:   16,
		},
		CertificateType: binding.CertificateType{
			Names: map[string]string{"tr": "Katılım Sertifikası"},
		},
	}
}

func testPipeline(t *testing.T, assets *fakeAssets) *Pipeline {
	t.Helper()
	fonts, err := NewFontLibrary("")
	if err != nil {
		t.Fatalf("font library: %v", err)
	}
	return NewPipeline(fonts, assets, binding.Options{VerificationBaseURL: "https://certs.example.com"})
}

func fullConfig() layout.Configuration {
	maxW := 200.0
	cfg := layout.NewConfiguration(600, 400)
	cfg.Elements = []layout.Element{
		{Type: layout.ElementStudentName, X: 120, Y: 80, FontSize: 24, Color: "#102030"},
		{Type: layout.ElementCustomText, Label: "{training_name} — {duration_hours} saat",
			X: 120, Y: 140, FontSize: 14, MaxWidth: &maxW, TextAlign: layout.AlignCenter},
		{Type: layout.ElementQRCode, X: 460, Y: 260, Width: 100, Height: 100},
		{Type: layout.ElementDealerLogo, X: 20, Y: 20, Width: 80, Height: 80},
	}
	return cfg
}

func TestRenderIsDeterministic(t *testing.T) {
	assets := &fakeAssets{images: map[string]image.Image{
		"backgrounds/1.png": uniformImage(300, 200, color.RGBA{R: 240, G: 240, B: 230, A: 255}),
		"logos/7.png":       uniformImage(64, 64, red),
	}}
	p := testPipeline(t, assets)
	params := Params{
		Config:        fullConfig(),
		Record:        testRecord(),
		Language:      "tr",
		BackgroundKey: "backgrounds/1.png",
	}

	first, err := p.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := p.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same inputs must produce byte-identical documents")
	}
	if len(first) == 0 {
		t.Fatal("empty document")
	}
}

func TestRenderMissingBackgroundIsFatal(t *testing.T) {
	p := testPipeline(t, &fakeAssets{images: map[string]image.Image{}})
	params := Params{
		Config:        fullConfig(),
		Record:        testRecord(),
		Language:      "tr",
		BackgroundKey: "backgrounds/ghost.png",
	}
	if _, err := p.Render(context.Background(), params); err == nil {
		t.Fatal("expected error for missing background")
	}

	params.BackgroundKey = ""
	if _, err := p.Render(context.Background(), params); err == nil {
		t.Fatal("expected error for template without background")
	}
}

func TestRenderMissingLogoIsNotFatal(t *testing.T) {
	assets := &fakeAssets{images: map[string]image.Image{
		"backgrounds/1.png": uniformImage(300, 200, color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		// no logo object
	}}
	p := testPipeline(t, assets)
	params := Params{
		Config:        fullConfig(),
		Record:        testRecord(),
		Language:      "tr",
		BackgroundKey: "backgrounds/1.png",
	}
	if _, err := p.Render(context.Background(), params); err != nil {
		t.Fatalf("missing logo must degrade to an empty box, got: %v", err)
	}
}

func TestRenderSkipsUnknownElementTypes(t *testing.T) {
	assets := &fakeAssets{images: map[string]image.Image{
		"bg.png": uniformImage(50, 50, red),
	}}
	p := testPipeline(t, assets)

	cfg := layout.NewConfiguration(100, 100)
	cfg.Elements = []layout.Element{{Type: "hologram", X: 10, Y: 10}}
	params := Params{Config: cfg, Record: testRecord(), Language: "tr", BackgroundKey: "bg.png"}
	if _, err := p.Render(context.Background(), params); err != nil {
		t.Fatalf("unknown element type must be inert, got: %v", err)
	}
}

func TestBackgroundModes(t *testing.T) {
	src := uniformImage(100, 50, red) // 2:1, canvas is square

	newCanvas := func() *image.RGBA {
		canvas := image.NewRGBA(image.Rect(0, 0, 100, 100))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		return canvas
	}
	isRed := func(c color.Color) bool {
		r, _, _, _ := c.RGBA()
		return r > 0x8000
	}

	stretch := newCanvas()
	drawBackground(stretch, src, layout.BackgroundStretch)
	if !isRed(stretch.At(2, 2)) || !isRed(stretch.At(50, 97)) {
		t.Fatal("stretch must fill the whole canvas")
	}

	contain := newCanvas()
	drawBackground(contain, src, layout.BackgroundContain)
	if !isRed(contain.At(50, 50)) {
		t.Fatal("contain must cover the canvas center")
	}
	if isRed(contain.At(50, 5)) || isRed(contain.At(50, 95)) {
		t.Fatal("contain must leave margins on the shorter axis")
	}

	cover := newCanvas()
	drawBackground(cover, src, layout.BackgroundCover)
	for _, pt := range []image.Point{{2, 2}, {97, 2}, {50, 50}, {2, 97}, {97, 97}} {
		if !isRed(cover.At(pt.X, pt.Y)) {
			t.Fatalf("cover must leave no uncovered pixel, found one at %v", pt)
		}
	}
}

func TestWrapLinesAndAlignment(t *testing.T) {
	fonts, err := NewFontLibrary("")
	if err != nil {
		t.Fatalf("font library: %v", err)
	}
	face, err := fonts.Face("", "normal", "normal", 14)
	if err != nil {
		t.Fatalf("face: %v", err)
	}
	defer face.Close()

	const maxWidth = 200.0
	text := "Bu sertifika uzun bir eğitim programının başarıyla tamamlandığını belgeler"
	if measureString(face, text) <= maxWidth {
		t.Fatal("test string must be wider than maxWidth")
	}

	lines := wrapLines(face, text, maxWidth)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping into >= 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		w := measureString(face, line)
		if w > maxWidth && strings.Contains(line, " ") {
			t.Fatalf("line %d wider than maxWidth with a breakable space: %q", i, line)
		}

		const x = 120.0
		left := alignOffset(x, maxWidth, w, layout.AlignCenter)
		if left < x-1e-9 || left+w > x+maxWidth+1e-9 {
			t.Fatalf("line %d not centered within [x, x+maxWidth]: left=%v width=%v", i, left, w)
		}
	}
}

func TestWrapLinesSingleWordOverflow(t *testing.T) {
	fonts, _ := NewFontLibrary("")
	face, _ := fonts.Face("", "normal", "normal", 14)
	defer face.Close()

	lines := wrapLines(face, "Pneumonoultramicroscopicsilicovolcanoconiosis", 20)
	if len(lines) != 1 {
		t.Fatalf("an unbreakable word stays on one line, got %d", len(lines))
	}
	if wrapLines(face, "   ", 100) != nil {
		t.Fatal("whitespace-only text wraps to no lines")
	}
}

func TestAlignOffset(t *testing.T) {
	if got := alignOffset(10, 100, 40, layout.AlignLeft); got != 10 {
		t.Fatalf("left align = %v", got)
	}
	if got := alignOffset(10, 100, 40, layout.AlignCenter); got != 40 {
		t.Fatalf("center align = %v", got)
	}
	if got := alignOffset(10, 100, 40, layout.AlignRight); got != 70 {
		t.Fatalf("right align = %v", got)
	}
}

func TestParseHexColor(t *testing.T) {
	if c := parseHexColor("#102030"); c.R != 0x10 || c.G != 0x20 || c.B != 0x30 || c.A != 255 {
		t.Fatalf("parsed %+v", c)
	}
	black := color.RGBA{A: 255}
	for _, bad := range []string{"", "#fff", "zzzzzz", "#0102zz"} {
		if c := parseHexColor(bad); c != black {
			t.Fatalf("%q should fall back to black, got %+v", bad, c)
		}
	}
}
