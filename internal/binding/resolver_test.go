package binding

import (
	"testing"
	"time"

	"certforge/internal/layout"
)

func sampleRecord() Record {
	return Record{
		CertificateNo: "CF-2026-000142",
		IssueDate:     time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		VerifyToken:   "u8FqPz3kN1wXv5tYhRmAbDcE",
		Student:       Student{FirstName: "Ayşe", LastName: "Kaya"},
		Dealer:        Dealer{Name: "Akademi Ltd.", LogoObjectKey: "dealer-logos/7/logo.png"},
		Training: Training{
			Names:           map[string]string{"tr": "Temel İlk Yardım", "en": "Basic First Aid"},
			DefaultLanguage: "tr",
			DurationHours:   16,
		},
		CertificateType: CertificateType{
			Names: map[string]string{"tr": "Katılım Sertifikası", "en": "Certificate of Attendance"},
		},
	}
}

var noOpts = Options{VerificationBaseURL: "https://certs.example.com"}

func resolveText(t *testing.T, el layout.Element, rec Record, lang string) string {
	t.Helper()
	v := Resolve(el, rec, lang, noOpts)
	if v.Kind != KindText {
		t.Fatalf("expected text value for %s, got kind %d", el.Type, v.Kind)
	}
	return v.Text
}

func TestStudentNameJoinsFirstAndLast(t *testing.T) {
	got := resolveText(t, layout.Element{Type: layout.ElementStudentName}, sampleRecord(), "tr")
	if got != "Ayşe Kaya" {
		t.Fatalf("student name = %q", got)
	}
}

func TestCustomTextSubstitution(t *testing.T) {
	el := layout.Element{
		Type:  layout.ElementCustomText,
		Label: "Merhaba {student_name}, {training_name} eğitimini tamamladınız.",
	}
	got := resolveText(t, el, sampleRecord(), "tr")
	want := "Merhaba Ayşe Kaya, Temel İlk Yardım eğitimini tamamladınız."
	if got != want {
		t.Fatalf("custom text = %q, want %q", got, want)
	}
}

func TestCustomTextLeavesUnknownTokensVerbatim(t *testing.T) {
	el := layout.Element{
		Type:  layout.ElementCustomText,
		Label: "{student_name} — {unknown_field} — {duration_hours} saat — {training_name_en}",
	}
	got := resolveText(t, el, sampleRecord(), "tr")
	want := "Ayşe Kaya — {unknown_field} — 16 saat — Basic First Aid"
	if got != want {
		t.Fatalf("custom text = %q, want %q", got, want)
	}
}

func TestTrainingNameFallbackChain(t *testing.T) {
	el := layout.Element{Type: layout.ElementTrainingName}

	rec := sampleRecord()
	if got := resolveText(t, el, rec, "en"); got != "Basic First Aid" {
		t.Fatalf("selected language: %q", got)
	}
	if got := resolveText(t, el, rec, "en-US"); got != "Basic First Aid" {
		t.Fatalf("regional variant should match base language: %q", got)
	}

	// Missing selected language falls back to the default language.
	if got := resolveText(t, el, rec, "de"); got != "Temel İlk Yardım" {
		t.Fatalf("default language fallback: %q", got)
	}

	// Missing default falls back to any available value, deterministically.
	rec.Training.DefaultLanguage = "fr"
	rec.Training.Names = map[string]string{"en": "Basic First Aid"}
	if got := resolveText(t, el, rec, "de"); got != "Basic First Aid" {
		t.Fatalf("any-available fallback: %q", got)
	}

	// No names at all degrades to a placeholder, never an error.
	rec.Training.Names = nil
	if got := resolveText(t, el, rec, "de"); got != "N/A" {
		t.Fatalf("placeholder fallback: %q", got)
	}
}

func TestCertificateTypeUsesSameFallbacks(t *testing.T) {
	el := layout.Element{Type: layout.ElementCertificateType}
	rec := sampleRecord()
	if got := resolveText(t, el, rec, "de"); got != "Katılım Sertifikası" {
		t.Fatalf("certificate type fallback: %q", got)
	}
}

func TestIssueDateLocalization(t *testing.T) {
	el := layout.Element{Type: layout.ElementIssueDate}
	rec := sampleRecord()

	cases := []struct{ lang, want string }{
		{"tr", "14.03.2026"},
		{"en", "Mar 14, 2026"},
		{"fr", "14/03/2026"},
		{"xx-weird", "2026-03-14"},
		{"", "2026-03-14"},
	}
	for _, tc := range cases {
		if got := resolveText(t, el, rec, tc.lang); got != tc.want {
			t.Fatalf("date for %q = %q, want %q", tc.lang, got, tc.want)
		}
	}
}

func TestQRCodeEncodesVerificationURL(t *testing.T) {
	rec := sampleRecord()
	v := Resolve(layout.Element{Type: layout.ElementQRCode}, rec, "tr", noOpts)
	if v.Kind != KindQR {
		t.Fatalf("expected QR kind, got %d", v.Kind)
	}
	want := "https://certs.example.com/verify/" + rec.VerifyToken
	if v.Text != want {
		t.Fatalf("QR payload = %q, want %q", v.Text, want)
	}
}

func TestDealerLogoMayBeEmpty(t *testing.T) {
	rec := sampleRecord()
	v := Resolve(layout.Element{Type: layout.ElementDealerLogo}, rec, "tr", noOpts)
	if v.Kind != KindImage || v.ObjectKey != "dealer-logos/7/logo.png" {
		t.Fatalf("logo value = %+v", v)
	}

	rec.Dealer.LogoObjectKey = ""
	v = Resolve(layout.Element{Type: layout.ElementDealerLogo}, rec, "tr", noOpts)
	if v.Kind != KindImage || v.ObjectKey != "" {
		t.Fatalf("missing logo should resolve to an empty image box, got %+v", v)
	}
}

func TestUnknownElementTypeIsInert(t *testing.T) {
	v := Resolve(layout.Element{Type: "hologram"}, sampleRecord(), "tr", noOpts)
	if v.Kind != KindNone {
		t.Fatalf("unknown type should resolve to KindNone, got %d", v.Kind)
	}
}

func TestResolveDoesNotMutateRecord(t *testing.T) {
	rec := sampleRecord()
	Resolve(layout.Element{Type: layout.ElementTrainingName}, rec, "de", noOpts)
	if rec.Training.Names["tr"] != "Temel İlk Yardım" {
		t.Fatal("record mutated during resolution")
	}
}
