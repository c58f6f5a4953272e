package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"certforge/internal/database"
	"certforge/internal/errcode"
	"certforge/internal/layout"
	"certforge/internal/render"
	"certforge/internal/storage"
	"certforge/internal/tasks"
)

// RenderTaskHandler 负责消费证书渲染任务。
// 同一张证书的不同语言版本是独立任务，可并行处理。
type RenderTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	pipeline    *render.Pipeline
	logger      *slog.Logger
}

// NewRenderTaskHandler 创建任务处理器。
func NewRenderTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	pipeline *render.Pipeline,
	logger *slog.Logger,
) *RenderTaskHandler {
	return &RenderTaskHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		pipeline:    pipeline,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *RenderTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.CertificateRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("certificate_id", int(payload.CertificateID)),
		slog.String("language", payload.Language),
	)
	log.Info("Starting certificate render task...")

	var cert database.Certificate
	err := h.db.WithContext(ctx).
		Preload("Student").
		Preload("Student.Dealer").
		Preload("Training").
		Preload("CertificateType").
		Preload("Template").
		First(&cert, payload.CertificateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("certificate not found, skipping task")
			return nil
		}
		log.Error("query certificate failed", slog.Any("error", err))
		return err
	}

	dealerID := cert.Student.DealerID
	log = log.With(slog.Uint64("dealer_id", uint64(dealerID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := RenderNotifyMessage{
			Status:        "error",
			CertificateID: cert.ID,
			Language:      payload.Language,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishRenderNotify(ctx, dealerID, notify); err != nil {
			log.Error("publish render error notification failed", slog.Any("error", err))
		}
	}()

	cfg, err := parseLayoutConfig(cert.Template.LayoutConfig)
	if err != nil {
		log.Error("parse template layout failed", slog.Any("error", err))
		return err
	}

	pngBytes, err := h.pipeline.Render(ctx, render.Params{
		Config:        cfg,
		Record:        cert.BindingRecord(),
		Language:      payload.Language,
		BackgroundKey: cert.Template.BackgroundObjectKey,
	})
	if err != nil {
		if storage.IsNoSuchKey(err) {
			// 背景图被删除属于数据问题，重试也不会恢复；直接告警并结束任务。
			log.Warn("template background missing, abandoning render", slog.Any("error", err))
			notify := RenderNotifyMessage{
				Status:        "error",
				CertificateID: cert.ID,
				Language:      payload.Language,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.ResourceMissing,
				ErrorMessage:  "template background image is missing",
			}
			if pubErr := h.publishRenderNotify(ctx, dealerID, notify); pubErr != nil {
				log.Error("publish render error notification failed", slog.Any("error", pubErr))
			}
			return nil
		}
		log.Error("render certificate failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("certificates/%d/%s.png", cert.ID, payload.Language)
	reader := bytes.NewReader(pngBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(pngBytes)), "image/png"); err != nil {
		log.Error("upload document to minio failed", slog.Any("error", err))
		return err
	}

	// 不同语言任务可能并发完成，读改写放在事务里避免互相覆盖。
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fresh database.Certificate
		if err := tx.First(&fresh, cert.ID).Error; err != nil {
			return err
		}
		if fresh.RenderedObjects == nil {
			fresh.RenderedObjects = map[string]any{}
		}
		fresh.RenderedObjects[payload.Language] = objectName
		return tx.Model(&fresh).Updates(map[string]any{
			"rendered_objects": fresh.RenderedObjects,
			"status":           "completed",
		}).Error
	})
	if err != nil {
		log.Error("update certificate failed", slog.Any("error", err))
		return err
	}

	notify := RenderNotifyMessage{
		Status:        "completed",
		CertificateID: cert.ID,
		Language:      payload.Language,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishRenderNotify(ctx, dealerID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("Certificate render task completed successfully.")
	return nil
}

func (h *RenderTaskHandler) publishRenderNotify(ctx context.Context, dealerID uint, notify RenderNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("dealer_notify:%d", dealerID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

// parseLayoutConfig 解析模板存储的布局 JSONB。
func parseLayoutConfig(raw []byte) (layout.Configuration, error) {
	var cfg layout.Configuration
	if len(raw) == 0 {
		return cfg, fmt.Errorf("template has no layout configuration")
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal layout configuration: %w", err)
	}
	return cfg, nil
}
