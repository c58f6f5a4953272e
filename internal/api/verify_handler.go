package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"certforge/internal/database"
	"certforge/internal/verify"
)

// 公开核验接口的限流参数：按客户端 IP 每分钟计数。
const (
	verifyRateLimit  = 30
	verifyRateWindow = time.Minute
)

// VerifyHandler 暴露无需鉴权的证书核验接口。
type VerifyHandler struct {
	service     *verify.Service
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewVerifyHandler(db *gorm.DB, redisClient *redis.Client, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{
		service:     verify.NewService(&gormVerifyStore{db: db}),
		redisClient: redisClient,
		logger:      logger,
	}
}

// GET /verify/:token
// 持有令牌即可查看掩码后的证书信息。
func (h *VerifyHandler) LookupByToken(c *gin.Context) {
	if !h.allowRequest(c) {
		return
	}

	view, err := h.service.LookupByToken(c.Request.Context(), c.Param("token"), c.Query("lang"))
	if err != nil {
		if errors.Is(err, verify.ErrNotFound) {
			NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("verify lookup failed", slog.Any("error", err))
		Internal(c, "lookup failed")
		return
	}

	c.JSON(http.StatusOK, view)
}

// GET /verify/lookup?number=...
// 按证书编号反查核验令牌，不返回任何证书内容。
func (h *VerifyHandler) LookupByNumber(c *gin.Context) {
	if !h.allowRequest(c) {
		return
	}

	token, err := h.service.LookupByNumber(c.Request.Context(), c.Query("number"))
	if err != nil {
		if errors.Is(err, verify.ErrNotFound) {
			NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("verify number lookup failed", slog.Any("error", err))
		Internal(c, "lookup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"verify_token": token})
}

// allowRequest 执行按 IP 的限流；限流器故障时放行，核验可用性优先。
func (h *VerifyHandler) allowRequest(c *gin.Context) bool {
	key := "verify_rate:" + c.ClientIP()
	count, err := incrWithTTL(c.Request.Context(), h.redisClient, key, verifyRateWindow)
	if err != nil {
		h.logger.Warn("verify rate limiter unavailable", slog.Any("error", err))
		return true
	}
	if count > verifyRateLimit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return false
	}
	return true
}

// gormVerifyStore 用数据库实现核验查询。
type gormVerifyStore struct {
	db *gorm.DB
}

func (s *gormVerifyStore) DetailByToken(ctx context.Context, token string) (*verify.Detail, error) {
	var cert database.Certificate
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Student.Dealer").
		Preload("Training").
		Preload("CertificateType").
		Where("verify_token = ?", token).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, verify.ErrNotFound
		}
		return nil, err
	}

	return &verify.Detail{
		Record:     cert.BindingRecord(),
		NationalID: cert.Student.NationalID,
		Languages:  renderedLanguages(cert.RenderedObjects),
	}, nil
}

func (s *gormVerifyStore) TokenByNumber(ctx context.Context, certificateNo string) (string, error) {
	var cert database.Certificate
	err := s.db.WithContext(ctx).
		Select("verify_token").
		Where("certificate_no = ?", certificateNo).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", verify.ErrNotFound
		}
		return "", err
	}
	return cert.VerifyToken, nil
}
