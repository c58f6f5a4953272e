package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"certforge/internal/binding"
	"certforge/internal/database"
	"certforge/internal/render"
	"certforge/internal/storage"
	"certforge/internal/tasks"
)

// TemplatePreviewHandler 负责模板缩略图生成任务。
// 缩略图用样例数据渲染，让经销商在列表页就能看到布局效果。
type TemplatePreviewHandler struct {
	db       *gorm.DB
	storage  *storage.Client
	pipeline *render.Pipeline
	logger   *slog.Logger
}

func NewTemplatePreviewHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	pipeline *render.Pipeline,
	logger *slog.Logger,
) *TemplatePreviewHandler {
	return &TemplatePreviewHandler{
		db:       db,
		storage:  storageClient,
		pipeline: pipeline,
		logger:   logger,
	}
}

// SampleRecord 返回预览渲染用的样例证书数据。
func SampleRecord() binding.Record {
	return binding.Record{
		CertificateNo: "SAMPLE-0001",
		IssueDate:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		VerifyToken:   "sample-preview-token0000",
		Student: binding.Student{
			FirstName: "Jane",
			LastName:  "Doe",
		},
		Dealer: binding.Dealer{
			Name: "Sample Dealer",
		},
		Training: binding.Training{
			Names:           map[string]string{"en": "Sample Training Course"},
			DefaultLanguage: "en",
			DurationHours:   16,
		},
		CertificateType: binding.CertificateType{
			Names: map[string]string{"en": "Certificate of Completion"},
		},
	}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.Int("template_id", int(payload.TemplateID)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	var template database.Template
	if err := h.db.WithContext(ctx).First(&template, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	cfg, err := parseLayoutConfig(template.LayoutConfig)
	if err != nil {
		log.Error("parse template layout failed", slog.Any("error", err))
		return err
	}

	previewBytes, err := h.pipeline.Render(ctx, render.Params{
		Config:        cfg,
		Record:        SampleRecord(),
		Language:      "en",
		BackgroundKey: template.BackgroundObjectKey,
	})
	if err != nil {
		if storage.IsNoSuchKey(err) {
			log.Warn("template background missing, skipping preview", slog.Any("error", err))
			return nil
		}
		log.Error("render template preview failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("thumbnails/template/%d/preview.png", template.ID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/png"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).
		Model(&template).
		Update("preview_object_key", objectName).Error; err != nil {
		log.Error("update template preview key failed", slog.Any("error", err))
		return err
	}

	log.Info("Template preview generation completed.")
	return nil
}
