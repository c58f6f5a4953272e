package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const fontDPI = 72

// FontLibrary loads operator fonts from a directory and hands out faces by
// family/weight/style. A family that cannot be found or parsed falls back to
// the embedded Go fonts: a missing font degrades the document, it never
// fails the render.
//
// Directory layout: <family>.ttf with optional <family>-bold.ttf,
// <family>-italic.ttf and <family>-bolditalic.ttf variants (case
// insensitive, .otf also accepted).
type FontLibrary struct {
	mu     sync.RWMutex
	parsed map[string]*opentype.Font // variant key → parsed font

	fallback map[string]*opentype.Font // variant suffix → embedded Go font
}

// NewFontLibrary scans dir for font files. An empty dir is fine; everything
// then resolves to the embedded fallbacks. Only an unreadable directory
// (other than absence) is an error.
func NewFontLibrary(dir string) (*FontLibrary, error) {
	lib := &FontLibrary{parsed: map[string]*opentype.Font{}}
	if err := lib.parseFallbacks(); err != nil {
		return nil, err
	}
	if dir == "" {
		return lib, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("read font dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			continue
		}
		key := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		lib.parsed[key] = parsed
	}
	return lib, nil
}

func (l *FontLibrary) parseFallbacks() error {
	l.fallback = map[string]*opentype.Font{}
	for suffix, data := range map[string][]byte{
		"":            goregular.TTF,
		"-bold":       gobold.TTF,
		"-italic":     goitalic.TTF,
		"-bolditalic": gobolditalic.TTF,
	} {
		parsed, err := opentype.Parse(data)
		if err != nil {
			return fmt.Errorf("parse embedded font: %w", err)
		}
		l.fallback[suffix] = parsed
	}
	return nil
}

// variantSuffix maps weight/style to the file-name convention.
func variantSuffix(weight, style string) string {
	bold := strings.EqualFold(weight, "bold")
	italic := strings.EqualFold(style, "italic")
	switch {
	case bold && italic:
		return "-bolditalic"
	case bold:
		return "-bold"
	case italic:
		return "-italic"
	}
	return ""
}

// Face returns a font.Face for the family at the given size. Lookup order:
// exact variant, the family's regular cut, then the embedded Go font in the
// requested variant.
func (l *FontLibrary) Face(family, weight, style string, size float64) (font.Face, error) {
	if size <= 0 {
		size = 14
	}
	suffix := variantSuffix(weight, style)

	l.mu.RLock()
	parsed := l.parsed[strings.ToLower(family)+suffix]
	if parsed == nil {
		parsed = l.parsed[strings.ToLower(family)]
	}
	l.mu.RUnlock()

	if parsed == nil {
		parsed = l.fallback[suffix]
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}
