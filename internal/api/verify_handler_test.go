package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// 限流计数器指向不可达 Redis：限流器故障时核验必须放行。
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	return client
}

func seedCertificate(t *testing.T, db *gorm.DB) database.Certificate {
	t.Helper()

	dealer := database.Dealer{Name: "Acme Training"}
	if err := db.Create(&dealer).Error; err != nil {
		t.Fatalf("seed dealer: %v", err)
	}
	student := database.Student{
		FirstName:  "Ayşe",
		LastName:   "Kaya",
		NationalID: "12345678901",
		DealerID:   dealer.ID,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	training := database.Training{
		Names:           datatypes.JSON(`{"tr":"Temel İlk Yardım","en":"Basic First Aid"}`),
		DefaultLanguage: "tr",
		DurationHours:   16,
		DealerID:        dealer.ID,
	}
	if err := db.Create(&training).Error; err != nil {
		t.Fatalf("seed training: %v", err)
	}
	certType := database.CertificateType{
		Names: datatypes.JSON(`{"tr":"Katılım Sertifikası","en":"Certificate of Attendance"}`),
	}
	if err := db.Create(&certType).Error; err != nil {
		t.Fatalf("seed certificate type: %v", err)
	}

	cert := database.Certificate{
		CertificateNo:     "CF-2026-000142",
		VerifyToken:       "u8FqPz3kN1wXv5tYhRmAbDcE",
		IssueDate:         datatypes.Date(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		StudentID:         student.ID,
		TrainingID:        training.ID,
		CertificateTypeID: certType.ID,
		RenderedObjects:   map[string]any{"tr": "certificates/1/tr.png"},
		Status:            "completed",
	}
	if err := db.Create(&cert).Error; err != nil {
		t.Fatalf("seed certificate: %v", err)
	}
	return cert
}

func verifyTokenContext(t *testing.T, token, lang string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	url := "/verify/" + token
	if lang != "" {
		url += "?lang=" + lang
	}
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	c.Params = gin.Params{{Key: "token", Value: token}}
	return c, w
}

func TestVerifyByTokenReturnsMaskedView(t *testing.T) {
	db := newTestDB(t)
	cert := seedCertificate(t, db)

	h := NewVerifyHandler(db, newTestRedis(t), discardLogger())
	c, w := verifyTokenContext(t, cert.VerifyToken, "")

	h.LookupByToken(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var view struct {
		CertificateNo string   `json:"certificate_no"`
		StudentName   string   `json:"student_name"`
		NationalID    string   `json:"national_id"`
		TrainingName  string   `json:"training_name"`
		IssueDate     string   `json:"issue_date"`
		Languages     []string `json:"languages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if view.CertificateNo != "CF-2026-000142" {
		t.Fatalf("certificate_no = %q", view.CertificateNo)
	}
	if view.StudentName != "Ayşe Kaya" {
		t.Fatalf("student_name = %q", view.StudentName)
	}
	if view.NationalID != "********901" {
		t.Fatalf("national_id = %q, must be masked", view.NationalID)
	}
	// 未指定语言时回落到培训项目的默认语言。
	if view.TrainingName != "Temel İlk Yardım" {
		t.Fatalf("training_name = %q", view.TrainingName)
	}
	if view.IssueDate != "14.03.2026" {
		t.Fatalf("issue_date = %q", view.IssueDate)
	}
	if len(view.Languages) != 1 || view.Languages[0] != "tr" {
		t.Fatalf("languages = %v", view.Languages)
	}
}

func TestVerifyByTokenUnknownAndMalformedAreIdentical(t *testing.T) {
	db := newTestDB(t)
	seedCertificate(t, db)

	h := NewVerifyHandler(db, newTestRedis(t), discardLogger())

	bodies := map[string]string{}
	for _, token := range []string{"AAAAAAAAAAAAAAAAAAAAAAAA", "not!!valid"} {
		c, w := verifyTokenContext(t, token, "")
		h.LookupByToken(c)
		if w.Code != http.StatusNotFound {
			t.Fatalf("token %q: status = %d, want 404", token, w.Code)
		}
		bodies[token] = w.Body.String()
	}
	if bodies["AAAAAAAAAAAAAAAAAAAAAAAA"] != bodies["not!!valid"] {
		t.Fatal("unknown and malformed tokens must be indistinguishable")
	}
}

func TestVerifyLookupByNumberReturnsOnlyToken(t *testing.T) {
	db := newTestDB(t)
	cert := seedCertificate(t, db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/verify/lookup?number=CF-2026-000142", nil)

	h := NewVerifyHandler(db, newTestRedis(t), discardLogger())
	h.LookupByNumber(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["verify_token"] != cert.VerifyToken {
		t.Fatalf("verify_token = %q", resp["verify_token"])
	}
	if len(resp) != 1 {
		t.Fatalf("lookup by number must return the token and nothing else, got %v", resp)
	}
}
