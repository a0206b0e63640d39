package worker

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/errcode"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/notify"
	"workflowhr/internal/render"
	"workflowhr/internal/tasks"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	err      error
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploaded == nil {
		s.uploaded = map[string][]byte{}
	}
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	return nil
}

type fakePublisher struct {
	channels []string
	messages []notify.Message
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channels = append(p.channels, channel)
	var msg notify.Message
	_ = json.Unmarshal(message.([]byte), &msg)
	p.messages = append(p.messages, msg)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

type fakeGenerator struct {
	html string
	err  error
}

func (g *fakeGenerator) Generate(_ context.Context, html string, _ render.PageOptions) (*render.Result, error) {
	g.html = html
	if g.err != nil {
		return nil, g.err
	}
	return &render.Result{PDF: []byte("%PDF-1.4 fake"), Pages: 2}, nil
}

type fakeRasterizer struct{ html string }

func (r *fakeRasterizer) Rasterize(_ context.Context, html string) (image.Image, error) {
	r.html = html
	img := image.NewRGBA(image.Rect(0, 0, 1600, 3000))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedTemplate(t *testing.T, db *gorm.DB, content string) database.Template {
	t.Helper()
	model := database.Template{UserID: 1, Version: 1}
	require.NoError(t, model.Assign(document.Template{
		DocumentName: "Offer Letter",
		FieldTags:    []fieldschema.FieldTag{{Tag: "candidate_name", Label: "Candidate Name"}},
		Content:      content,
		Settings:     document.DefaultSettings(),
	}))
	require.NoError(t, db.Create(&model).Error)
	return model
}

func seedDocument(t *testing.T, db *gorm.DB, templateID uint) database.GeneratedDocument {
	t.Helper()
	doc := database.GeneratedDocument{
		TemplateID:  templateID,
		UserID:      7,
		FieldValues: []byte(`{"candidate_name":"Jane Doe"}`),
		Filename:    "Offer_Letter_2026-10-18.pdf",
		Status:      database.StatusPending,
	}
	require.NoError(t, db.Create(&doc).Error)
	return doc
}

func documentTask(t *testing.T, id uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewDocumentGenerateTask(id, "corr-1")
	require.NoError(t, err)
	return task
}

func TestDocumentTaskCompletes(t *testing.T) {
	db := newTestDB(t)
	store := &fakeStorage{}
	pub := &fakePublisher{}
	gen := &fakeGenerator{}
	h := NewDocumentTaskHandler(db, store, gen, pub, discardLogger())

	tpl := seedTemplate(t, db, "<p>Dear {{candidate_name}}, welcome aboard.</p>")
	doc := seedDocument(t, db, tpl.ID)

	require.NoError(t, h.ProcessTask(context.Background(), documentTask(t, doc.ID)))
	assert.Contains(t, gen.html, "Dear Jane Doe, welcome aboard.")

	var got database.GeneratedDocument
	require.NoError(t, db.First(&got, doc.ID).Error)
	assert.Equal(t, database.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Pages)
	assert.Equal(t, "documents/1/1/Offer_Letter_2026-10-18.pdf", got.ObjectKey)
	assert.Equal(t, []byte("%PDF-1.4 fake"), store.uploaded[got.ObjectKey])

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "user_notify:7", pub.channels[0])
	assert.Equal(t, notify.Message{
		Kind:          notify.KindDocument,
		Status:        notify.StatusCompleted,
		DocumentID:    doc.ID,
		TemplateID:    tpl.ID,
		CorrelationID: "corr-1",
		ErrorCode:     errcode.OK,
	}, pub.messages[0])

	// 重复投递不再渲染
	gen.html = ""
	require.NoError(t, h.ProcessTask(context.Background(), documentTask(t, doc.ID)))
	assert.Empty(t, gen.html)
}

func TestDocumentTaskReportsUnboundPlaceholders(t *testing.T) {
	db := newTestDB(t)
	pub := &fakePublisher{}
	h := NewDocumentTaskHandler(db, &fakeStorage{}, &fakeGenerator{}, pub, discardLogger())

	tpl := seedTemplate(t, db, "<p>Dear {{candidate_name}}, start on {{start_date}}.</p>")
	doc := seedDocument(t, db, tpl.ID)

	require.NoError(t, h.ProcessTask(context.Background(), documentTask(t, doc.ID)))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, notify.StatusCompleted, pub.messages[0].Status)
	assert.Equal(t, errcode.ResourceMissing, pub.messages[0].ErrorCode)
	assert.Equal(t, []string{"start_date"}, pub.messages[0].MissingKeys)
}

func TestDocumentTaskRenderErrorIsRetried(t *testing.T) {
	db := newTestDB(t)
	pub := &fakePublisher{}
	h := NewDocumentTaskHandler(db, &fakeStorage{}, &fakeGenerator{err: errors.New("browser crashed")}, pub, discardLogger())

	tpl := seedTemplate(t, db, "<p>Dear {{candidate_name}}, welcome aboard.</p>")
	doc := seedDocument(t, db, tpl.ID)

	err := h.ProcessTask(context.Background(), documentTask(t, doc.ID))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	var got database.GeneratedDocument
	require.NoError(t, db.First(&got, doc.ID).Error)
	assert.Equal(t, database.StatusPending, got.Status)
	assert.Empty(t, pub.messages)
}

func TestDocumentTaskMissingTemplateFails(t *testing.T) {
	db := newTestDB(t)
	pub := &fakePublisher{}
	h := NewDocumentTaskHandler(db, &fakeStorage{}, &fakeGenerator{}, pub, discardLogger())

	doc := seedDocument(t, db, 42)

	err := h.ProcessTask(context.Background(), documentTask(t, doc.ID))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var got database.GeneratedDocument
	require.NoError(t, db.First(&got, doc.ID).Error)
	assert.Equal(t, database.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "template 42 not found")

	require.Len(t, pub.messages, 1)
	assert.Equal(t, notify.StatusError, pub.messages[0].Status)
	assert.Equal(t, errcode.SystemError, pub.messages[0].ErrorCode)
}

func TestDocumentTaskUnknownDocumentIsSkipped(t *testing.T) {
	db := newTestDB(t)
	h := NewDocumentTaskHandler(db, &fakeStorage{}, &fakeGenerator{}, nil, discardLogger())
	assert.NoError(t, h.ProcessTask(context.Background(), documentTask(t, 404)))
}

func TestThumbnailTask(t *testing.T) {
	db := newTestDB(t)
	store := &fakeStorage{}
	pub := &fakePublisher{}
	raster := &fakeRasterizer{}
	h := NewThumbnailTaskHandler(db, store, raster, pub, discardLogger())

	tpl := seedTemplate(t, db, "<p>Dear {{candidate_name}}, welcome aboard.</p>")
	require.NoError(t, db.Model(&tpl).Update("preview_object_key", "thumbnails/templates/1/old.jpg").Error)

	task, err := tasks.NewTemplateThumbnailTask(tpl.ID, 7, "corr-2")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	assert.Contains(t, raster.html, "Dear [Candidate Name], welcome aboard.")

	var got database.Template
	require.NoError(t, db.First(&got, tpl.ID).Error)
	assert.True(t, strings.HasPrefix(got.PreviewObjectKey, "thumbnails/templates/1/"))
	assert.NotEqual(t, "thumbnails/templates/1/old.jpg", got.PreviewObjectKey)
	assert.Equal(t, "https://example.invalid/"+got.PreviewObjectKey, got.PreviewImageURL)

	thumb := store.uploaded[got.PreviewObjectKey]
	require.NotEmpty(t, thumb)
	assert.Equal(t, []byte{0xff, 0xd8}, thumb[:2])
	assert.Equal(t, []string{"thumbnails/templates/1/old.jpg"}, store.deleted)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, notify.KindThumbnail, pub.messages[0].Kind)
	assert.Equal(t, notify.StatusCompleted, pub.messages[0].Status)
}

func TestIsFinalAttempt(t *testing.T) {
	assert.False(t, isFinalAttempt(context.Background(), errors.New("boom")))
	assert.True(t, isFinalAttempt(context.Background(), errors.Join(errors.New("boom"), asynq.SkipRetry)))
}
