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

	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/errcode"
	"workflowhr/internal/notify"
	"workflowhr/internal/render"
	"workflowhr/internal/storage"
	"workflowhr/internal/tasks"
)

const (
	thumbnailQuality = 80
	thumbnailURLTTL  = 7 * 24 * time.Hour
)

// ThumbnailTaskHandler 负责模板缩略图生成任务。
type ThumbnailTaskHandler struct {
	db        *gorm.DB
	storage   ObjectStore
	raster    render.Rasterizer
	publisher notify.Publisher
	logger    *slog.Logger
}

func NewThumbnailTaskHandler(
	db *gorm.DB,
	storage ObjectStore,
	raster render.Rasterizer,
	publisher notify.Publisher,
	logger *slog.Logger,
) *ThumbnailTaskHandler {
	return &ThumbnailTaskHandler{
		db:        db,
		storage:   storage,
		raster:    raster,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *ThumbnailTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.TemplateThumbnailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template thumbnail payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.Uint64("template_id", uint64(payload.TemplateID)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("starting template thumbnail generation")

	defer func() {
		if retErr == nil || !isFinalAttempt(ctx, retErr) {
			return
		}
		h.publish(ctx, log, payload.UserID, notify.Message{
			Kind:          notify.KindThumbnail,
			Status:        notify.StatusError,
			TemplateID:    payload.TemplateID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  retErr.Error(),
		})
	}()

	var model database.Template
	if err := h.db.WithContext(ctx).First(&model, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}
	tpl, err := model.ToDocument()
	if err != nil {
		return fmt.Errorf("decode template: %w", asynq.SkipRetry)
	}

	// 缩略图展示空白模板，字段以 [标签] 占位
	page, err := document.Page(tpl.DocumentName, tpl.Settings, document.Preview(tpl, nil))
	if err != nil {
		return err
	}
	img, err := h.raster.Rasterize(ctx, page)
	if err != nil {
		log.Error("rasterize template failed", slog.Any("error", err))
		return err
	}
	thumb, err := render.Thumbnail(img, render.DefaultThumbnailWidth, thumbnailQuality)
	if err != nil {
		return err
	}

	oldKey := model.PreviewObjectKey
	objectName := storage.ThumbnailKey(model.ID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		log.Error("upload template thumbnail failed", slog.Any("error", err))
		return err
	}
	url, err := h.storage.GeneratePresignedURL(ctx, objectName, thumbnailURLTTL)
	if err != nil {
		log.Error("generate template thumbnail url failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&model).Updates(map[string]any{
		"preview_image_url":  url,
		"preview_object_key": objectName,
	}).Error; err != nil {
		log.Error("update template thumbnail failed", slog.Any("error", err))
		return err
	}
	if oldKey != "" {
		if err := h.storage.DeleteObject(ctx, oldKey); err != nil {
			log.Warn("delete old thumbnail failed", slog.String("object_key", oldKey), slog.Any("error", err))
		}
	}

	h.publish(ctx, log, payload.UserID, notify.Message{
		Kind:          notify.KindThumbnail,
		Status:        notify.StatusCompleted,
		TemplateID:    model.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	})
	log.Info("template thumbnail generation completed", slog.String("object_key", objectName))
	return nil
}

func (h *ThumbnailTaskHandler) publish(ctx context.Context, log *slog.Logger, userID uint, msg notify.Message) {
	if h.publisher == nil || userID == 0 {
		return
	}
	if err := notify.Publish(ctx, h.publisher, userID, msg); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
	}
}
