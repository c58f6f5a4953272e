package binding

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"certforge/internal/layout"
)

// ValueKind says how the renderer should treat a resolved value.
type ValueKind int

const (
	// KindNone marks an inert element (unknown type); nothing is drawn.
	KindNone ValueKind = iota
	// KindText draws Text with the element's font settings.
	KindText
	// KindQR generates a QR symbol encoding Text into the element's box.
	KindQR
	// KindImage draws the stored object at ObjectKey into the element's
	// box; an empty key renders an empty box.
	KindImage
)

// Value is one resolved binding.
type Value struct {
	Kind      ValueKind
	Text      string
	ObjectKey string
}

// Options carries resolution inputs that are configuration, not record data.
type Options struct {
	// VerificationBaseURL prefixes the QR payload, e.g. "https://example.com".
	VerificationBaseURL string
}

// missingName is the final fallback when a name map is empty.
const missingName = "N/A"

// Resolve maps one element to its renderable value for the given record and
// language. It never returns an error: every binding has a defined fallback.
func Resolve(el layout.Element, rec Record, lang string, opts Options) Value {
	switch el.Type {
	case layout.ElementStudentName:
		return textValue(strings.TrimSpace(rec.Student.FirstName + " " + rec.Student.LastName))
	case layout.ElementCertificateNo:
		return textValue(rec.CertificateNo)
	case layout.ElementIssueDate:
		return textValue(FormatDate(rec.IssueDate, lang))
	case layout.ElementTrainingName:
		return textValue(LocalizedName(rec.Training.Names, lang, rec.Training.DefaultLanguage))
	case layout.ElementCertificateType:
		return textValue(LocalizedName(rec.CertificateType.Names, lang, rec.Training.DefaultLanguage))
	case layout.ElementCustomText:
		return textValue(substitute(el.Label, rec, lang))
	case layout.ElementQRCode:
		return Value{Kind: KindQR, Text: VerificationURL(opts.VerificationBaseURL, rec.VerifyToken)}
	case layout.ElementDealerLogo:
		return Value{Kind: KindImage, ObjectKey: rec.Dealer.LogoObjectKey}
	}
	return Value{Kind: KindNone}
}

func textValue(s string) Value { return Value{Kind: KindText, Text: s} }

// VerificationURL builds the stable public lookup URL a QR element encodes.
func VerificationURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify/" + token
}

// LocalizedName picks a name for the selected language, falling back to the
// default language, then to the first available value, then to a
// placeholder. It never fails on a missing translation.
func LocalizedName(names map[string]string, selected, defaultLang string) string {
	if len(names) == 0 {
		return missingName
	}
	if name, ok := names[selected]; ok && name != "" {
		return name
	}
	if name := matchLanguage(names, selected); name != "" {
		return name
	}
	if name, ok := names[defaultLang]; ok && name != "" {
		return name
	}

	// Deterministic "any available" fallback.
	keys := make([]string, 0, len(names))
	for key, name := range names {
		if name != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return missingName
	}
	sort.Strings(keys)
	return names[keys[0]]
}

// matchLanguage resolves near-miss tags such as "en-US" against a map keyed
// by "en". Returns "" when nothing matches.
func matchLanguage(names map[string]string, selected string) string {
	want, err := language.Parse(selected)
	if err != nil {
		return ""
	}

	keys := make([]string, 0, len(names))
	for key := range names {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	tagKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagKeys = append(tagKeys, key)
	}
	if len(tags) == 0 {
		return ""
	}

	_, index, confidence := language.NewMatcher(tags).Match(want)
	if confidence == language.No {
		return ""
	}
	return names[tagKeys[index]]
}

// dateLayouts maps base language codes to issue-date layouts. Anything not
// listed formats as ISO 8601.
var dateLayouts = map[string]string{
	"tr": "02.01.2006",
	"de": "02.01.2006",
	"en": "Jan 2, 2006",
	"fr": "02/01/2006",
}

// FormatDate renders an issue date in the selected language's conventional
// numeric format.
func FormatDate(t time.Time, lang string) string {
	layoutStr := "2006-01-02"
	if tag, err := language.Parse(lang); err == nil {
		base, _ := tag.Base()
		if l, ok := dateLayouts[base.String()]; ok {
			layoutStr = l
		}
	}
	return t.Format(layoutStr)
}

// placeholderPattern matches {identifier} tokens in custom text templates.
var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z0-9_]+\}`)

// substitute replaces the closed set of supported placeholders in a custom
// text template. Unrecognized {...} tokens stay verbatim so operators can
// write literal braces or forward-compatible placeholders safely.
func substitute(template string, rec Record, lang string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		switch token[1 : len(token)-1] {
		case "dealer_name":
			return rec.Dealer.Name
		case "student_name":
			return strings.TrimSpace(rec.Student.FirstName + " " + rec.Student.LastName)
		case "training_name":
			return LocalizedName(rec.Training.Names, lang, rec.Training.DefaultLanguage)
		case "training_name_en":
			return LocalizedName(rec.Training.Names, "en", rec.Training.DefaultLanguage)
		case "duration_hours":
			return fmt.Sprintf("%d", rec.Training.DurationHours)
		}
		return token
	})
}
