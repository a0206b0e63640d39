package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/auth"
	"workflowhr/internal/config"
	"workflowhr/internal/database"
	"workflowhr/internal/render"
)

// ObjectStore 是处理器用到的对象存储能力，由 storage.Client 实现。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TaskQueue 由 *asynq.Client 实现。
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ErrMalicious 扫描发现威胁时返回。
var ErrMalicious = errors.New("malicious file detected")

// Scanner 在保存上传内容前扫描病毒。
type Scanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 使用 clamd 守护进程扫描。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 地址为空时返回 nil，即跳过扫描。
func NewClamdScanner(address string) Scanner {
	if address == "" {
		return nil
	}
	return &ClamdScanner{client: clamd.NewClamd(address)}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)
	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("%w: %s", ErrMalicious, result.Description)
		}
	}
	return nil
}

// Dependencies 汇总路由所需的全部依赖。
type Dependencies struct {
	DB          *gorm.DB
	Auth        *auth.AuthService
	LoginPolicy *auth.LoginPolicy
	Revocations *auth.Revocations
	Redis       *redis.Client
	Storage     ObjectStore
	Queue       TaskQueue
	Renderer    render.Generator
	Scanner     Scanner
	Logger      *slog.Logger
	Config      config.APIConfig
	Now         func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

var errInvalidID = errors.New("invalid id")

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// currentUser 读取当前登录的账号。
func currentUser(c *gin.Context, db *gorm.DB) (database.User, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.User{}, false
	}
	var user database.User
	if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortUnauthorized(c)
		} else {
			Internal(c, "failed to load user")
		}
		return database.User{}, false
	}
	return user, true
}

func loggerFor(c *gin.Context) *slog.Logger {
	return middleware.LoggerFromContext(c)
}
