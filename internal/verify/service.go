package verify

import (
	"context"
	"errors"
	"regexp"

	"certforge/internal/binding"
)

// ErrNotFound is the single failure mode of both lookup paths. A malformed
// token and an unknown token are deliberately indistinguishable so probing
// requests learn nothing about token validity.
var ErrNotFound = errors.New("certificate not found")

// Detail is everything the store knows about one certificate that the
// verification views may draw from. NationalID is raw here; only masked
// forms ever leave this package.
type Detail struct {
	Record     binding.Record
	NationalID string
	// Languages lists the language codes a document exists for.
	Languages []string
}

// Store is the read-only lookup surface the subsystem needs. Implementations
// return ErrNotFound (or wrap it) for unknown keys.
type Store interface {
	DetailByToken(ctx context.Context, token string) (*Detail, error)
	TokenByNumber(ctx context.Context, certificateNo string) (string, error)
}

// View is the masked, public representation of one certificate. The student
// name is shown in full (verification is about confirming identity) but the
// national ID never appears beyond its trailing fragment.
type View struct {
	CertificateNo       string   `json:"certificate_no"`
	StudentName         string   `json:"student_name"`
	MaskedNationalID    string   `json:"national_id"`
	TrainingName        string   `json:"training_name"`
	CertificateTypeName string   `json:"certificate_type"`
	IssueDate           string   `json:"issue_date"`
	Languages           []string `json:"languages"`
}

// Service answers public verification lookups.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// tokenShape is the only validation applied to incoming tokens; it exists
// to cut obvious garbage before it reaches the store, not to report a
// distinct error.
var tokenShape = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)

// LookupByToken resolves the possession path: whoever holds the token may
// see the masked view, optionally localized.
func (s *Service) LookupByToken(ctx context.Context, token, lang string) (*View, error) {
	if !tokenShape.MatchString(token) {
		return nil, ErrNotFound
	}

	detail, err := s.store.DetailByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec := detail.Record
	if lang == "" {
		lang = rec.Training.DefaultLanguage
	}

	return &View{
		CertificateNo:       rec.CertificateNo,
		StudentName:         rec.Student.FirstName + " " + rec.Student.LastName,
		MaskedNationalID:    MaskNationalID(detail.NationalID),
		TrainingName:        binding.LocalizedName(rec.Training.Names, lang, rec.Training.DefaultLanguage),
		CertificateTypeName: binding.LocalizedName(rec.CertificateType.Names, lang, rec.Training.DefaultLanguage),
		IssueDate:           binding.FormatDate(rec.IssueDate, lang),
		Languages:           detail.Languages,
	}, nil
}

// LookupByNumber resolves the discovery path: a human-facing certificate
// number maps to the token, and nothing more. The caller then performs a
// second lookup by token, keeping proof-of-possession distinct from
// discovery.
func (s *Service) LookupByNumber(ctx context.Context, certificateNo string) (string, error) {
	if certificateNo == "" {
		return "", ErrNotFound
	}
	token, err := s.store.TokenByNumber(ctx, certificateNo)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return token, nil
}
