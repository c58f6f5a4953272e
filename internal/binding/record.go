// Package binding resolves layout elements against one certificate record
// and one language into concrete renderable values. Resolution is a pure
// function of its inputs and never fails: a certificate that is about to be
// printed and handed to a third party must degrade gracefully, not crash,
// when a translation or a logo is missing.
package binding

import "time"

// Record carries everything a certificate's bindings can draw from. It is
// assembled from the stored rows by the caller and treated as read-only.
type Record struct {
	CertificateNo string
	IssueDate     time.Time
	VerifyToken   string

	Student         Student
	Dealer          Dealer
	Training        Training
	CertificateType CertificateType
}

// Student is the certificate holder.
type Student struct {
	FirstName string
	LastName  string
}

// Dealer is the issuing organization.
type Dealer struct {
	Name          string
	LogoObjectKey string
}

// Training holds the localized program names keyed by language code, the
// default language those names fall back to, and the program duration.
type Training struct {
	Names           map[string]string
	DefaultLanguage string
	DurationHours   int
}

// CertificateType holds the localized type names keyed by language code.
type CertificateType struct {
	Names map[string]string
}
