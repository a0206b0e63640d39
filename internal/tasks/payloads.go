package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeDocumentGenerate  = "document:generate"
	TypeTemplateThumbnail = "template:thumbnail"
)

// DocumentGeneratePayload 描述异步生成文档所需的最小信息，字段值保存在 GeneratedDocument 行中。
type DocumentGeneratePayload struct {
	DocumentID    uint   `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
}

// TemplateThumbnailPayload 描述模板缩略图任务。
type TemplateThumbnailPayload struct {
	TemplateID    uint   `json:"template_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewDocumentGenerateTask 构造一个新的文档 PDF 生成任务。
func NewDocumentGenerateTask(documentID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentGeneratePayload{
		DocumentID:    documentID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentGenerate, payload, asynq.MaxRetry(3)), nil
}

// NewTemplateThumbnailTask 构造模板缩略图任务。
func NewTemplateThumbnailTask(templateID, userID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplateThumbnailPayload{
		TemplateID:    templateID,
		UserID:        userID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplateThumbnail, payload, asynq.MaxRetry(2)), nil
}
