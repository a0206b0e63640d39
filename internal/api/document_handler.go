package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/render"
	"workflowhr/internal/tasks"
)

const downloadLinkTTL = 5 * time.Minute

// DocumentHandler 根据模板与字段值生成 PDF。
type DocumentHandler struct {
	db       *gorm.DB
	storage  ObjectStore
	queue    TaskQueue
	renderer render.Generator
	now      func() time.Time
}

func NewDocumentHandler(deps Dependencies) *DocumentHandler {
	return &DocumentHandler{
		db:       deps.DB,
		storage:  deps.Storage,
		queue:    deps.Queue,
		renderer: deps.Renderer,
		now:      deps.clock(),
	}
}

type generateRequest struct {
	TemplateID  uint              `json:"template_id" binding:"required"`
	FieldValues map[string]string `json:"field_values"`
}

type documentListItem struct {
	ID           uint      `json:"id"`
	TemplateID   uint      `json:"template_id"`
	Filename     string    `json:"filename"`
	Status       string    `json:"status"`
	Pages        int       `json:"pages,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *DocumentHandler) bindGenerate(c *gin.Context) (database.User, database.Template, generateRequest, bool) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return user, database.Template{}, generateRequest{}, false
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return user, database.Template{}, req, false
	}
	model, ok := loadTemplate(c, h.db, user, fmt.Sprint(req.TemplateID))
	return user, model, req, ok
}

// POST /v1/documents/generate
// 同步渲染并直接返回 PDF 二进制。
func (h *DocumentHandler) Generate(c *gin.Context) {
	_, model, req, ok := h.bindGenerate(c)
	if !ok {
		return
	}
	logger := loggerFor(c).With(slog.Uint64("template_id", uint64(model.ID)))

	tpl, err := model.ToDocument()
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	page, err := document.Render(tpl, req.FieldValues)
	if err != nil {
		Internal(c, "failed to build document")
		return
	}

	result, err := h.renderer.Generate(c.Request.Context(), page, render.PageOptions{
		Title:       tpl.DocumentName,
		PageNumbers: tpl.Settings.ShowPageNumbers,
	})
	if err != nil {
		logger.Error("render document failed", slog.Any("error", err))
		Error(c, http.StatusBadGateway, "failed to render document")
		return
	}

	filename := document.PDFFilename(tpl.DocumentName, h.now())
	logger.Info("document generated", slog.Int("pages", result.Pages), slog.String("filename", filename))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// POST /v1/documents
// 创建待生成记录并投递异步任务，结果通过 WebSocket 通知。
func (h *DocumentHandler) Enqueue(c *gin.Context) {
	user, model, req, ok := h.bindGenerate(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := loggerFor(c).With(slog.Uint64("template_id", uint64(model.ID)))

	values := req.FieldValues
	if values == nil {
		values = map[string]string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		BadRequest(c, "invalid field values")
		return
	}

	doc := database.GeneratedDocument{
		TemplateID:  model.ID,
		UserID:      user.ID,
		FieldValues: encoded,
		Filename:    document.PDFFilename(model.DocumentName, h.now()),
		Status:      database.StatusPending,
	}
	if err := h.db.WithContext(ctx).Create(&doc).Error; err != nil {
		logger.Error("create document record failed", slog.Any("error", err))
		Internal(c, "failed to create document")
		return
	}

	task, err := tasks.NewDocumentGenerateTask(doc.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to build task")
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue document failed", slog.Any("error", err))
		_ = h.db.WithContext(ctx).Model(&doc).Updates(map[string]any{
			"status":        database.StatusFailed,
			"error_message": "failed to enqueue",
		}).Error
		Internal(c, "failed to enqueue document")
		return
	}

	logger.Info("document enqueued", slog.Uint64("document_id", uint64(doc.ID)), slog.String("task_id", info.ID))
	c.JSON(http.StatusAccepted, gin.H{"document_id": doc.ID, "task_id": info.ID})
}

// GET /v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var docs []database.GeneratedDocument
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&docs).Error; err != nil {
		Internal(c, "failed to list documents")
		return
	}
	items := make([]documentListItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentListItem{
			ID:           d.ID,
			TemplateID:   d.TemplateID,
			Filename:     d.Filename,
			Status:       d.Status,
			Pages:        d.Pages,
			ErrorMessage: d.ErrorMessage,
			CreatedAt:    d.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"documents": items})
}

// GET /v1/documents/:id/download-link
func (h *DocumentHandler) DownloadLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid document id")
		return
	}

	var doc database.GeneratedDocument
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "document not found")
		} else {
			Internal(c, "failed to query document")
		}
		return
	}
	if doc.Status != database.StatusCompleted || doc.ObjectKey == "" {
		Conflict(c, "document not ready")
		return
	}

	url, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), doc.ObjectKey, downloadLinkTTL, map[string]string{
		"response-content-disposition": fmt.Sprintf("attachment; filename=%q", doc.Filename),
	})
	if err != nil {
		loggerFor(c).Error("presign document failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "filename": doc.Filename})
}
