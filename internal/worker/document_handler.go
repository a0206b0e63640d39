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
	"gorm.io/gorm"

	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/errcode"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/notify"
	"workflowhr/internal/render"
	"workflowhr/internal/storage"
	"workflowhr/internal/tasks"
)

const missingFieldsMessage = "some placeholders have no matching field and were left as is"

// DocumentTaskHandler 负责消费文档 PDF 生成任务。
type DocumentTaskHandler struct {
	db        *gorm.DB
	storage   ObjectStore
	renderer  render.Generator
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewDocumentTaskHandler 创建任务处理器。
func NewDocumentTaskHandler(
	db *gorm.DB,
	storage ObjectStore,
	renderer render.Generator,
	publisher notify.Publisher,
	logger *slog.Logger,
) *DocumentTaskHandler {
	return &DocumentTaskHandler{
		db:        db,
		storage:   storage,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *DocumentTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.DocumentGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("document_id", uint64(payload.DocumentID)),
	)
	log.Info("starting document generation")

	var doc database.GeneratedDocument
	if err := h.db.WithContext(ctx).First(&doc, payload.DocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("document not found, skipping task")
			return nil
		}
		log.Error("query document failed", slog.Any("error", err))
		return err
	}
	if doc.Status == database.StatusCompleted {
		log.Info("document already completed, skipping task")
		return nil
	}

	log = log.With(slog.Uint64("user_id", uint64(doc.UserID)), slog.Uint64("template_id", uint64(doc.TemplateID)))

	defer func() {
		if retErr == nil || !isFinalAttempt(ctx, retErr) {
			return
		}
		message := strings.TrimSpace(retErr.Error())
		if err := h.db.WithContext(ctx).Model(&doc).Updates(map[string]any{
			"status":        database.StatusFailed,
			"error_message": message,
		}).Error; err != nil {
			log.Error("mark document failed", slog.Any("error", err))
		}
		h.publish(ctx, log, doc.UserID, notify.Message{
			Kind:          notify.KindDocument,
			Status:        notify.StatusError,
			DocumentID:    doc.ID,
			TemplateID:    doc.TemplateID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  message,
		})
	}()

	var model database.Template
	if err := h.db.WithContext(ctx).First(&model, doc.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found")
			return fmt.Errorf("template %d not found: %w", doc.TemplateID, asynq.SkipRetry)
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}
	tpl, err := model.ToDocument()
	if err != nil {
		return fmt.Errorf("decode template: %w", asynq.SkipRetry)
	}
	values, err := doc.Values()
	if err != nil {
		return fmt.Errorf("decode field values: %w", asynq.SkipRetry)
	}

	page, err := document.Render(tpl, values)
	if err != nil {
		log.Error("build document page failed", slog.Any("error", err))
		return err
	}
	result, err := h.renderer.Generate(ctx, page, render.PageOptions{
		Title:       tpl.DocumentName,
		PageNumbers: tpl.Settings.ShowPageNumbers,
	})
	if err != nil {
		log.Error("render document failed", slog.Any("error", err))
		return err
	}

	objectName := storage.DocumentKey(doc.TemplateID, doc.ID, doc.Filename)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(result.PDF), int64(len(result.PDF)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&doc).Updates(map[string]any{
		"object_key":    objectName,
		"status":        database.StatusCompleted,
		"pages":         result.Pages,
		"error_message": "",
	}).Error; err != nil {
		log.Error("update document failed", slog.Any("error", err))
		return err
	}

	msg := notify.Message{
		Kind:          notify.KindDocument,
		Status:        notify.StatusCompleted,
		DocumentID:    doc.ID,
		TemplateID:    doc.TemplateID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if cov := fieldschema.CheckCoverage(tpl.Content, tpl.FieldTags); !cov.Complete() {
		msg.ErrorCode = errcode.ResourceMissing
		msg.ErrorMessage = missingFieldsMessage
		msg.MissingKeys = cov.Missing
		log.Warn("document generated with unbound placeholders", slog.Any("missing_keys", cov.Missing))
	}
	h.publish(ctx, log, doc.UserID, msg)

	log.Info("document generation completed", slog.Int("pages", result.Pages), slog.String("object_key", objectName))
	return nil
}

// publish 通知失败只记录日志：结果已落库，客户端可通过列表接口获取。
func (h *DocumentTaskHandler) publish(ctx context.Context, log *slog.Logger, userID uint, msg notify.Message) {
	if h.publisher == nil {
		return
	}
	if err := notify.Publish(ctx, h.publisher, userID, msg); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
	}
}
