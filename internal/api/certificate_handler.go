package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/api/middleware"
	"certforge/internal/database"
	"certforge/internal/storage"
	"certforge/internal/tasks"
	"certforge/internal/verify"
)

// CertificateHandler 负责证书签发与下载 API。
type CertificateHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     *storage.Client
}

func NewCertificateHandler(db *gorm.DB, asynqClient *asynq.Client, storageClient *storage.Client) *CertificateHandler {
	return &CertificateHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     storageClient,
	}
}

var errInvalidCertificateID = errors.New("invalid certificate id")

type issueCertificateRequest struct {
	CertificateNo     string   `json:"certificate_no" binding:"required"`
	IssueDate         string   `json:"issue_date" binding:"required"`
	StudentID         uint     `json:"student_id" binding:"required"`
	TrainingID        uint     `json:"training_id" binding:"required"`
	CertificateTypeID uint     `json:"certificate_type_id" binding:"required"`
	TemplateID        uint     `json:"template_id" binding:"required"`
	Languages         []string `json:"languages" binding:"required,min=1"`
}

type certificateListItem struct {
	ID            uint           `json:"id"`
	CertificateNo string         `json:"certificate_no"`
	IssueDate     string         `json:"issue_date"`
	Status        string         `json:"status"`
	Languages     []string       `json:"languages"`
	VerifyToken   string         `json:"verify_token"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IssueCertificate 创建证书记录、生成核验令牌，并为每个请求的语言
// 入队一个渲染任务。渲染是异步的，接口立即返回 202。
func (h *CertificateHandler) IssueCertificate(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req issueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		BadRequest(c, "issue_date must be YYYY-MM-DD")
		return
	}

	ctx := c.Request.Context()

	// 学员与模板都必须属于当前经销商。
	var student database.Student
	if err := h.db.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", req.StudentID, dealerID).
		First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "student not found")
			return
		}
		Internal(c, "failed to query student")
		return
	}
	var template database.Template
	if err := h.db.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", req.TemplateID, dealerID).
		First(&template).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "template not found")
			return
		}
		Internal(c, "failed to query template")
		return
	}

	token, err := verify.NewToken(ctx, h.tokenExists)
	if err != nil {
		Internal(c, "failed to generate verification token")
		return
	}

	cert := database.Certificate{
		CertificateNo:     req.CertificateNo,
		VerifyToken:       token,
		IssueDate:         datatypes.Date(issueDate),
		StudentID:         req.StudentID,
		TrainingID:        req.TrainingID,
		CertificateTypeID: req.CertificateTypeID,
		TemplateID:        req.TemplateID,
		Status:            "pending",
	}
	if err := h.db.WithContext(ctx).Create(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "certificate number already exists")
			return
		}
		Internal(c, "failed to create certificate")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	for _, lang := range req.Languages {
		task, err := tasks.NewCertificateRenderTask(cert.ID, lang, correlationID)
		if err != nil {
			Internal(c, "failed to create render task")
			return
		}
		if _, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5)); err != nil {
			Internal(c, "failed to enqueue render task")
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":             cert.ID,
		"certificate_no": cert.CertificateNo,
		"verify_token":   cert.VerifyToken,
		"status":         cert.Status,
	})
}

// ListCertificates 列出当前经销商签发的证书。
func (h *CertificateHandler) ListCertificates(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var certs []database.Certificate
	if err := h.db.WithContext(c.Request.Context()).
		Joins("JOIN students ON students.id = certificates.student_id").
		Where("students.dealer_id = ?", dealerID).
		Order("certificates.created_at DESC").
		Find(&certs).Error; err != nil {
		Internal(c, "failed to list certificates")
		return
	}

	items := make([]certificateListItem, 0, len(certs))
	for _, cert := range certs {
		items = append(items, certificateListItem{
			ID:            cert.ID,
			CertificateNo: cert.CertificateNo,
			IssueDate:     time.Time(cert.IssueDate).Format("2006-01-02"),
			Status:        cert.Status,
			Languages:     renderedLanguages(cert.RenderedObjects),
			VerifyToken:   cert.VerifyToken,
			CreatedAt:     cert.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// DownloadCertificate 返回指定语言文档的预签名下载链接。
// 渲染尚未完成时返回 409。
func (h *CertificateHandler) DownloadCertificate(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	cert, err := h.getCertificateForDealer(c.Request.Context(), c.Param("id"), dealerID)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCertificateID):
			BadRequest(c, "invalid certificate id")
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "certificate not found")
		default:
			Internal(c, "failed to query certificate")
		}
		return
	}

	lang := c.Query("lang")
	if lang == "" {
		BadRequest(c, "lang query parameter is required")
		return
	}

	objectKey, ok := cert.RenderedObjects[lang].(string)
	if !ok || objectKey == "" {
		Conflict(c, "document not ready")
		return
	}

	filename := fmt.Sprintf("%s-%s.png", cert.CertificateNo, lang)
	signedURL, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), objectKey, 5*time.Minute, map[string]string{
		"response-content-disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *CertificateHandler) tokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&database.Certificate{}).
		Where("verify_token = ?", token).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (h *CertificateHandler) getCertificateForDealer(ctx context.Context, idParam string, dealerID uint) (*database.Certificate, error) {
	certID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, errInvalidCertificateID
	}

	var cert database.Certificate
	if err := h.db.WithContext(ctx).
		Joins("JOIN students ON students.id = certificates.student_id").
		Where("certificates.id = ? AND students.dealer_id = ?", uint(certID), dealerID).
		First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

func renderedLanguages(objects map[string]any) []string {
	if len(objects) == 0 {
		return nil
	}
	langs := make([]string, 0, len(objects))
	for lang := range objects {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
