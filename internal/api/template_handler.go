package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/api/middleware"
	"certforge/internal/database"
	"certforge/internal/layout"
	"certforge/internal/render"
	"certforge/internal/tasks"
	"certforge/internal/worker"
)

// TemplateHandler 负责证书模板与布局配置的 API。
type TemplateHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	pipeline    *render.Pipeline
}

func NewTemplateHandler(db *gorm.DB, asynqClient *asynq.Client, pipeline *render.Pipeline) *TemplateHandler {
	return &TemplateHandler{db: db, asynqClient: asynqClient, pipeline: pipeline}
}

var errInvalidTemplateID = errors.New("invalid template id")

type createTemplateRequest struct {
	Title               string `json:"title" binding:"required"`
	BackgroundObjectKey string `json:"background_object_key" binding:"required"`
	BackgroundWidth     int    `json:"background_width" binding:"required"`
	BackgroundHeight    int    `json:"background_height" binding:"required"`
}

type templateListItem struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	PreviewObjectKey string `json:"preview_object_key,omitempty"`
}

// POST /v1/templates
// 创建模板：布局配置初始化为背景原始尺寸的空画布。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.BackgroundWidth <= 0 || req.BackgroundHeight <= 0 {
		BadRequest(c, "background dimensions must be positive")
		return
	}

	cfg := layout.NewConfiguration(req.BackgroundWidth, req.BackgroundHeight)
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		Internal(c, "failed to encode layout")
		return
	}

	model := database.Template{
		Title:               req.Title,
		DealerID:            dealerID,
		BackgroundObjectKey: req.BackgroundObjectKey,
		BackgroundWidth:     req.BackgroundWidth,
		BackgroundHeight:    req.BackgroundHeight,
		LayoutConfig:        datatypes.JSON(rawCfg),
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		Internal(c, "failed to create template")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    model.ID,
		"title": model.Title,
	})
}

// GET /v1/templates
// 列表：仅返回当前经销商的模板。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var templates []database.Template
	if err := h.db.WithContext(c.Request.Context()).
		Where("dealer_id = ?", dealerID).
		Order("updated_at DESC").
		Find(&templates).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateListItem{
			ID:               t.ID,
			Title:            t.Title,
			PreviewObjectKey: t.PreviewObjectKey,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id/layout
// 返回设计器保存的布局 JSON 原文，未知字段原样保留。
func (h *TemplateHandler) GetLayout(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := h.getTemplateForDealer(c, dealerID)
	if err != nil {
		respondTemplateError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", model.LayoutConfig)
}

// PUT /v1/templates/:id/layout
// 保存布局。请求体按布局模型往返解析：已知字段校验，未知字段保留。
func (h *TemplateHandler) SaveLayout(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := h.getTemplateForDealer(c, dealerID)
	if err != nil {
		respondTemplateError(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "failed to read request body")
		return
	}

	var cfg layout.Configuration
	if err := json.Unmarshal(body, &cfg); err != nil {
		BadRequest(c, "invalid layout json: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}

	stored, err := json.Marshal(cfg)
	if err != nil {
		Internal(c, "failed to encode layout")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).
		Model(model).
		Update("layout_config", datatypes.JSON(stored)).Error; err != nil {
		Internal(c, "failed to save layout")
		return
	}

	// 布局变更后刷新模板缩略图，失败不影响保存。
	if task, err := tasks.NewTemplatePreviewTask(model.ID, middleware.GetCorrelationID(c)); err == nil {
		_, _ = h.asynqClient.Enqueue(task, asynq.MaxRetry(3))
	}

	c.Data(http.StatusOK, "application/json", stored)
}

// POST /v1/templates/:id/preview
// 用样例数据同步渲染一张预览图，直接返回 PNG。
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	dealerID, ok := dealerIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := h.getTemplateForDealer(c, dealerID)
	if err != nil {
		respondTemplateError(c, err)
		return
	}

	var cfg layout.Configuration
	if len(model.LayoutConfig) == 0 {
		BadRequest(c, "template has no layout configuration")
		return
	}
	if err := json.Unmarshal(model.LayoutConfig, &cfg); err != nil {
		Internal(c, "stored layout is corrupt")
		return
	}

	lang := c.DefaultQuery("lang", "en")
	pngBytes, err := h.pipeline.Render(c.Request.Context(), render.Params{
		Config:        cfg,
		Record:        worker.SampleRecord(),
		Language:      lang,
		BackgroundKey: model.BackgroundObjectKey,
	})
	if err != nil {
		Internal(c, "failed to render preview")
		return
	}

	c.Data(http.StatusOK, "image/png", pngBytes)
}

func (h *TemplateHandler) getTemplateForDealer(c *gin.Context, dealerID uint) (*database.Template, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidTemplateID
	}

	var model database.Template
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND dealer_id = ?", uint(id), dealerID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func respondTemplateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidTemplateID):
		BadRequest(c, "invalid template id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "template not found")
	default:
		Internal(c, "failed to query template")
	}
}

func dealerIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("dealerID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
