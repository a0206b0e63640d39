package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/auth"
	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/storage"
	"workflowhr/internal/tasks"
)

// maxImportSize 限制导入文件大小。
const maxImportSize = 1 << 20

// TemplateHandler 负责模板的增删改查、导入导出、预览与缩略图。
type TemplateHandler struct {
	db           *gorm.DB
	storage      ObjectStore
	queue        TaskQueue
	scanner      Scanner
	maxTemplates int
	now          func() time.Time
}

func NewTemplateHandler(deps Dependencies) *TemplateHandler {
	return &TemplateHandler{
		db:           deps.DB,
		storage:      deps.Storage,
		queue:        deps.Queue,
		scanner:      deps.Scanner,
		maxTemplates: deps.Config.MaxTemplates,
		now:          deps.clock(),
	}
}

type templateListItem struct {
	ID              uint      `json:"id"`
	DocumentName    string    `json:"document_name"`
	FieldCount      int       `json:"field_count"`
	Version         int       `json:"version"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type templateResponse struct {
	document.Template
	PreviewImageURL string                `json:"preview_image_url,omitempty"`
	Warnings        *fieldschema.Coverage `json:"warnings,omitempty"`
}

type templateRequest struct {
	DocumentName string                 `json:"document_name"`
	FieldTags    []fieldschema.FieldTag `json:"field_tags"`
	Content      string                 `json:"content"`
	Settings     *document.Settings     `json:"settings"`
	CompanyID    *uint                  `json:"company_id"`
	Version      *int                   `json:"version"`
}

func newTemplateResponse(model database.Template, withCoverage bool) (templateResponse, error) {
	tpl, err := model.ToDocument()
	if err != nil {
		return templateResponse{}, err
	}
	resp := templateResponse{Template: tpl, PreviewImageURL: model.PreviewImageURL}
	if withCoverage {
		cov := fieldschema.CheckCoverage(tpl.Content, tpl.FieldTags)
		if len(cov.Missing) > 0 || len(cov.Unused) > 0 {
			resp.Warnings = &cov
		}
	}
	return resp, nil
}

// visibleTemplates 限定当前用户可见的模板：全局模板与本公司模板。
func visibleTemplates(db *gorm.DB, user database.User) *gorm.DB {
	if user.CompanyID == nil {
		return db.Where("company_id IS NULL")
	}
	return db.Where("company_id IS NULL OR company_id = ?", *user.CompanyID)
}

// loadTemplate 读取用户可见的模板，失败时已写入响应。
func loadTemplate(c *gin.Context, db *gorm.DB, user database.User, rawID string) (database.Template, bool) {
	id, err := parseID(rawID)
	if err != nil {
		BadRequest(c, "invalid template id")
		return database.Template{}, false
	}
	var model database.Template
	if err := visibleTemplates(db.WithContext(c.Request.Context()), user).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "template not found")
		} else {
			Internal(c, "failed to query template")
		}
		return database.Template{}, false
	}
	return model, true
}

// loadEditableTemplate 读取当前用户可修改的模板：归属与用户公司一致，
// 公司账号可见的全局模板只读，仅管理员可改。
func loadEditableTemplate(c *gin.Context, db *gorm.DB, user database.User, rawID string) (database.Template, bool) {
	model, ok := loadTemplate(c, db, user, rawID)
	if !ok {
		return database.Template{}, false
	}
	if user.Role != auth.RoleAdmin && !sameCompany(model.CompanyID, user.CompanyID) {
		Forbidden(c, "shared templates can only be changed by an admin")
		return database.Template{}, false
	}
	return model, true
}

func sameCompany(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// companyTemplates 限定与 companyID 同一归属的模板，nil 表示全局模板。
func companyTemplates(db *gorm.DB, companyID *uint) *gorm.DB {
	if companyID == nil {
		return db.Where("company_id IS NULL")
	}
	return db.Where("company_id = ?", *companyID)
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	var models []database.Template
	if err := visibleTemplates(h.db.WithContext(c.Request.Context()), user).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(models))
	for _, m := range models {
		tpl, err := m.ToDocument()
		if err != nil {
			loggerFor(c).Warn("skip unreadable template", slog.Uint64("template_id", uint64(m.ID)), slog.Any("error", err))
			continue
		}
		items = append(items, templateListItem{
			ID:              m.ID,
			DocumentName:    m.DocumentName,
			FieldCount:      len(tpl.FieldTags),
			Version:         m.Version,
			PreviewImageURL: m.PreviewImageURL,
			UpdatedAt:       m.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": items})
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}
	resp, err := newTemplateResponse(model, false)
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	tpl := document.Template{
		DocumentName: req.DocumentName,
		FieldTags:    req.FieldTags,
		Content:      req.Content,
		Settings:     document.DefaultSettings(),
		CompanyID:    req.CompanyID,
	}
	if req.Settings != nil {
		tpl.Settings = *req.Settings
	}
	h.create(c, user, tpl)
}

func (h *TemplateHandler) create(c *gin.Context, user database.User, tpl document.Template) {
	ctx := c.Request.Context()
	logger := loggerFor(c)

	if err := fieldschema.Validate(tpl.DocumentName, tpl.Content, tpl.FieldTags); err != nil {
		if replyValidation(c, err) {
			return
		}
		BadRequest(c, err.Error())
		return
	}

	if tpl.CompanyID == nil {
		tpl.CompanyID = user.CompanyID
	} else if user.CompanyID != nil && *tpl.CompanyID != *user.CompanyID {
		Forbidden(c, "cannot create templates for another company")
		return
	}

	if h.maxTemplates > 0 {
		var count int64
		if err := companyTemplates(h.db.WithContext(ctx).Model(&database.Template{}), tpl.CompanyID).Count(&count).Error; err != nil {
			Internal(c, "failed to count templates")
			return
		}
		if count >= int64(h.maxTemplates) {
			Forbidden(c, "template limit reached")
			return
		}
	}

	tpl.Content = document.Sanitize(tpl.Content)
	model := database.Template{UserID: user.ID, Version: 1}
	if err := model.Assign(tpl); err != nil {
		Internal(c, "failed to encode template")
		return
	}
	if err := h.db.WithContext(ctx).Create(&model).Error; err != nil {
		logger.Error("create template failed", slog.Any("error", err))
		Internal(c, "failed to create template")
		return
	}

	logger.Info("template created", slog.Uint64("template_id", uint64(model.ID)))
	resp, err := newTemplateResponse(model, true)
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// PUT /v1/templates/:id
// 携带 version 时做乐观并发校验，不匹配返回 409；不携带则后写覆盖。
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadEditableTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Version != nil && *req.Version != model.Version {
		Conflict(c, "template was modified by someone else")
		return
	}

	current, err := model.ToDocument()
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	next := document.Template{
		DocumentName: req.DocumentName,
		FieldTags:    req.FieldTags,
		Content:      req.Content,
		Settings:     current.Settings,
	}
	if req.Settings != nil {
		next.Settings = *req.Settings
	}
	if err := fieldschema.Validate(next.DocumentName, next.Content, next.FieldTags); err != nil {
		if replyValidation(c, err) {
			return
		}
		BadRequest(c, err.Error())
		return
	}
	next.Content = document.Sanitize(next.Content)

	updated := model
	if err := updated.Assign(next); err != nil {
		Internal(c, "failed to encode template")
		return
	}
	result := h.db.WithContext(c.Request.Context()).
		Model(&database.Template{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"document_name": updated.DocumentName,
			"field_tags":    updated.FieldTags,
			"content":       updated.Content,
			"settings":      updated.Settings,
			"version":       model.Version + 1,
		})
	if result.Error != nil {
		loggerFor(c).Error("update template failed", slog.Any("error", result.Error))
		Internal(c, "failed to update template")
		return
	}
	if result.RowsAffected == 0 {
		Conflict(c, "template was modified by someone else")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).First(&updated, model.ID).Error; err != nil {
		Internal(c, "failed to reload template")
		return
	}
	resp, err := newTemplateResponse(updated, true)
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /v1/templates/:id
// 同时删除缩略图与由该模板生成的全部文档。
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadEditableTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(c).With(slog.Uint64("template_id", uint64(model.ID)))

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", model.ID).Delete(&database.GeneratedDocument{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
	if err != nil {
		logger.Error("delete template failed", slog.Any("error", err))
		Internal(c, "failed to delete template")
		return
	}

	if err := h.storage.DeleteObject(ctx, model.PreviewObjectKey); err != nil {
		logger.Warn("delete template thumbnail failed", slog.Any("error", err))
	}
	if err := h.storage.DeletePrefix(ctx, storage.TemplatePrefix(model.ID)); err != nil {
		logger.Warn("delete generated documents failed", slog.Any("error", err))
	}

	logger.Info("template deleted")
	c.Status(http.StatusNoContent)
}

// GET /v1/templates/:id/export
func (h *TemplateHandler) ExportTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}
	tpl, err := model.ToDocument()
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	data, filename, err := document.Export(tpl, h.now())
	if err != nil {
		Internal(c, "failed to export template")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// POST /v1/templates/import
// 上传导出的 JSON 文件并创建新模板；配置了 clamd 时先扫描。
func (h *TemplateHandler) ImportTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxImportSize {
		BadRequest(c, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxImportSize+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(data) > maxImportSize {
		BadRequest(c, "file too large")
		return
	}

	if h.scanner != nil {
		if err := h.scanner.Scan(bytes.NewReader(data)); err != nil {
			if errors.Is(err, ErrMalicious) {
				loggerFor(c).Warn("import rejected by scanner", slog.Any("error", err))
				BadRequest(c, "malicious file detected")
				return
			}
			loggerFor(c).Error("scan import failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	tpl, err := document.Import(data, document.Blank())
	if err != nil {
		BadRequest(c, document.ErrInvalidTemplateFormat.Error())
		return
	}
	tpl.CompanyID = nil
	h.create(c, user, tpl)
}

type previewRequest struct {
	FieldValues map[string]string `json:"field_values"`
}

type previewResponse struct {
	Content  string               `json:"content"`
	Page     string               `json:"page"`
	Warnings fieldschema.Coverage `json:"warnings"`
}

// POST /v1/templates/:id/preview
// 未填写的字段以 [标签] 显示；占位符覆盖问题只作为警告返回。
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}

	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}

	tpl, err := model.ToDocument()
	if err != nil {
		Internal(c, "failed to decode template")
		return
	}
	content := document.Preview(tpl, req.FieldValues)
	page, err := document.Page(tpl.DocumentName, tpl.Settings, content)
	if err != nil {
		Internal(c, "failed to build preview")
		return
	}
	c.JSON(http.StatusOK, previewResponse{
		Content:  content,
		Page:     page,
		Warnings: fieldschema.CheckCoverage(tpl.Content, tpl.FieldTags),
	})
}

// POST /v1/templates/:id/thumbnail
func (h *TemplateHandler) EnqueueThumbnail(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}
	model, ok := loadEditableTemplate(c, h.db, user, c.Param("id"))
	if !ok {
		return
	}

	task, err := tasks.NewTemplateThumbnailTask(model.ID, user.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to build task")
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		loggerFor(c).Error("enqueue thumbnail failed", slog.Any("error", err))
		Internal(c, "failed to enqueue thumbnail")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID})
}
