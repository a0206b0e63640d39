// Package session 在多次命令调用之间保存登录状态。
// 会话显式注入 API 客户端，不依赖全局状态。
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSession 未登录时由 Load 返回。
var ErrNoSession = errors.New("not logged in")

// Session 保存一次登录的凭据。
type Session struct {
	APIURL             string    `yaml:"api_url"`
	Username           string    `yaml:"username"`
	Role               string    `yaml:"role"`
	AccessToken        string    `yaml:"access_token"`
	ExpiresAt          time.Time `yaml:"expires_at"`
	MustChangePassword bool      `yaml:"must_change_password,omitempty"`
}

// Token 返回 bearer 令牌，会话为 nil 时为空。
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.AccessToken
}

// Expired 判断访问令牌在 now 时是否已过期。没有过期时间的会话由服务端判定。
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store 读写会话文件。
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath 为 <用户配置目录>/workflowhr/session.yaml。
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "workflowhr", "session.yaml"), nil
}

func (s *Store) Path() string { return s.path }

// Load 读取会话文件，不存在时返回 ErrNoSession。
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if strings.TrimSpace(sess.AccessToken) == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save 写入会话文件，仅当前用户可读。
func (s *Store) Save(sess *Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear 删除会话文件，文件不存在不算错误。
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
