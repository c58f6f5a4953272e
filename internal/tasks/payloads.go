package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCertificateRender = "certificate:render"
	TypeTemplatePreview   = "template:preview"
)

// CertificateRenderPayload 描述渲染一份证书文档所需的最小信息。
// 一张证书可按多个语言各渲染一份，每个语言一个任务。
type CertificateRenderPayload struct {
	CertificateID uint   `json:"certificate_id"`
	Language      string `json:"language"`
	CorrelationID string `json:"correlation_id"`
}

// NewCertificateRenderTask 构造一个新的证书渲染任务。
func NewCertificateRenderTask(certificateID uint, language, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CertificateRenderPayload{
		CertificateID: certificateID,
		Language:      language,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCertificateRender, payload), nil
}

// TemplatePreviewPayload 描述模板缩略图生成任务。
type TemplatePreviewPayload struct {
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplatePreviewTask 构造一个新的模板缩略图任务。
func NewTemplatePreviewTask(templateID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{
		TemplateID:    templateID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload), nil
}
