package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"workflowhr/internal/auth"
	"workflowhr/internal/config"
	"workflowhr/internal/database"
	"workflowhr/internal/render"
)

const testPassword = "password123"

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	prefixes []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) GeneratePresignedURLWithParams(_ context.Context, objectKey string, _ time.Duration, _ map[string]string) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if objectKey != "" {
		s.deleted = append(s.deleted, objectKey)
	}
	return nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fakeRenderer struct {
	html string
	page render.PageOptions
	err  error
}

func (r *fakeRenderer) Generate(_ context.Context, html string, page render.PageOptions) (*render.Result, error) {
	r.html = html
	r.page = page
	if r.err != nil {
		return nil, r.err
	}
	return &render.Result{PDF: []byte("%PDF-1.4 fake"), Pages: 1}, nil
}

type fakeScanner struct{ infected bool }

func (s fakeScanner) Scan(r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	if s.infected {
		return errors.Join(ErrMalicious, errors.New("Eicar-Test-Signature"))
	}
	return nil
}

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	auth     *auth.AuthService
	storage  *fakeStorage
	queue    *fakeQueue
	renderer *fakeRenderer
	deps     Dependencies
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

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	svc, err := auth.NewAuthService(priv, pub, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func newTestEnv(t *testing.T, customize ...func(*Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := auth.NewMemoryStore(nil)
	env := &testEnv{
		db:       newTestDB(t),
		auth:     newTestAuthService(t),
		storage:  newFakeStorage(),
		queue:    &fakeQueue{},
		renderer: &fakeRenderer{},
	}
	env.deps = Dependencies{
		DB:          env.db,
		Auth:        env.auth,
		LoginPolicy: auth.NewLoginPolicy(store, 100, 3, 15*time.Minute),
		Revocations: auth.NewRevocations(store),
		Storage:     env.storage,
		Queue:       env.queue,
		Renderer:    env.renderer,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.APIConfig{
			InternalSecret: "s3cret",
			MaxTemplates:   50,
			PublicBaseURL:  "https://hr.example.com",
		},
		Now: func() time.Time { return fixedNow },
	}
	for _, fn := range customize {
		fn(&env.deps)
	}
	env.router = NewRouter(env.deps.Config, env.deps.Logger)
	RegisterRoutes(env.router, env.deps)
	return env
}

func (e *testEnv) seedUser(t *testing.T, username, role string, companyID *uint) database.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	user := database.User{Username: username, PasswordHash: hash, Role: role, CompanyID: companyID}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) token(t *testing.T, user database.User) string {
	t.Helper()
	pair, err := e.auth.GenerateTokenPair(user.ID, user.Role, user.MustChangePassword)
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, path, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func uintPtr(v uint) *uint { return &v }
