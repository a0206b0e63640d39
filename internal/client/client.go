// Package client 是命令行使用的模板 API 客户端。
// 每个请求携带注入会话的 bearer 令牌，响应在此统一转换，调用方不接触传输细节。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/session"
)

const maxErrorBody = 8 * 1024

// Client 是模板持久化接口的 HTTP 客户端。
type Client struct {
	baseURL string
	session *session.Session
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient 替换默认的 30 秒超时客户端。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		session: sess,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TemplateSummary 模板列表中的一行。
type TemplateSummary struct {
	ID              uint      `json:"id"`
	DocumentName    string    `json:"document_name"`
	FieldCount      int       `json:"field_count"`
	Version         int       `json:"version"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TemplateInput 创建与更新的请求体。
type TemplateInput struct {
	DocumentName string                 `json:"document_name"`
	FieldTags    []fieldschema.FieldTag `json:"field_tags"`
	Content      string                 `json:"content"`
	Settings     *document.Settings     `json:"settings,omitempty"`
	CompanyID    *uint                  `json:"company_id,omitempty"`
	Version      *int                   `json:"version,omitempty"`
}

// TemplateDetail 模板详情及服务端返回的占位符覆盖警告。
type TemplateDetail struct {
	document.Template
	PreviewImageURL string                `json:"preview_image_url,omitempty"`
	Warnings        *fieldschema.Coverage `json:"warnings,omitempty"`
}

// Preview 模板填充后的预览。
type Preview struct {
	Content  string               `json:"content"`
	Page     string               `json:"page"`
	Warnings fieldschema.Coverage `json:"warnings"`
}

// Theme 主题目录中的一项。
type Theme struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Template        string                 `json:"template"`
	SuggestedFields []fieldschema.FieldTag `json:"suggested_fields"`
}

// LoginResult 登录成功后签发的令牌。
type LoginResult struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"must_change_password"`
}

// File 下载的附件。
type File struct {
	Filename string
	Data     []byte
}

// Login 不需要会话；401 表示口令错误而不是会话过期。
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", body, &out)
	if errors.Is(err, ErrSessionExpired) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List 兼容裸数组以及 "templates" 或 "data" 包装的响应。
func (c *Client) List(ctx context.Context) ([]TemplateSummary, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/templates", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[TemplateSummary](raw, "templates")
}

func (c *Client) Get(ctx context.Context, id uint) (*TemplateDetail, error) {
	var out TemplateDetail
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/templates/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, in TemplateInput) (*TemplateDetail, error) {
	var out TemplateDetail
	if err := c.doJSON(ctx, http.MethodPost, "/v1/templates", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, id uint, in TemplateInput) (*TemplateDetail, error) {
	var out TemplateDetail
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/v1/templates/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/v1/templates/%d", id), nil, nil)
}

// Generate 用字段值生成文档并返回 PDF。
func (c *Client) Generate(ctx context.Context, templateID uint, values map[string]string) (*File, error) {
	body := map[string]any{"template_id": templateID, "field_values": values}
	return c.download(ctx, http.MethodPost, "/v1/documents/generate", body)
}

func (c *Client) Preview(ctx context.Context, templateID uint, values map[string]string) (*Preview, error) {
	var out Preview
	body := map[string]any{"field_values": values}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/templates/%d/preview", templateID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Export(ctx context.Context, templateID uint) (*File, error) {
	return c.download(ctx, http.MethodGet, fmt.Sprintf("/v1/templates/%d/export", templateID), nil)
}

// Import 上传导出的模板文件并返回新建的模板。
func (c *Client) Import(ctx context.Context, filename string, data []byte) (*TemplateDetail, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/v1/templates/import", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out TemplateDetail
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) Themes(ctx context.Context) ([]Theme, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/themes", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Theme](raw, "themes")
}

func (c *Client) download(ctx context.Context, method, path string, body any) (*File, error) {
	reader, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, method, path, reader, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return &File{Filename: attachmentName(resp.Header.Get("Content-Disposition")), Data: data}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	reader, err := encodeBody(body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, method, path, reader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send 发送请求并把非 2xx 响应转换为错误；成功时调用方负责关闭 Body。
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, statusError(resp)
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrSessionExpired
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrNotFound
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error      string                  `json:"error"`
		Violations []fieldschema.Violation `json:"violations"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Violations = payload.Violations
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func encodeBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := wrapper[k]; ok {
			return decodeList[T](inner, key)
		}
	}
	return []T{}, nil
}

func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
