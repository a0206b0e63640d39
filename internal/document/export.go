package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workflowhr/internal/fieldschema"
)

var ErrInvalidTemplateFormat = errors.New("invalid template format")

// ExportFile 导出模板的 JSON 结构。
type ExportFile struct {
	DocumentName string                 `json:"document_name"`
	FieldTags    []fieldschema.FieldTag `json:"field_tags"`
	Content      string                 `json:"content"`
	Settings     Settings               `json:"settings"`
	ExportDate   string                 `json:"export_date"`
}

// Export 序列化 tpl 供下载，并返回建议的文件名。
func Export(tpl Template, now time.Time) ([]byte, string, error) {
	file := ExportFile{
		DocumentName: tpl.DocumentName,
		FieldTags:    tpl.FieldTags,
		Content:      tpl.Content,
		Settings:     tpl.Settings,
		ExportDate:   now.UTC().Format(time.RFC3339),
	}
	if file.FieldTags == nil {
		file.FieldTags = []fieldschema.FieldTag{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal export: %w", err)
	}
	return data, ExportFilename(tpl.DocumentName), nil
}

// Import 读取导出的模板，缺失的字段沿用 current 的值，current 本身不被修改。
// 格式错误时返回 ErrInvalidTemplateFormat。
func Import(data []byte, current Template) (Template, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return current, fmt.Errorf("%w: expected a JSON object", ErrInvalidTemplateFormat)
	}

	var raw struct {
		DocumentName *string                 `json:"document_name"`
		FieldTags    *[]fieldschema.FieldTag `json:"field_tags"`
		Content      *string                 `json:"content"`
		Settings     json.RawMessage         `json:"settings"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidTemplateFormat, err)
	}

	next := current
	next.FieldTags = append([]fieldschema.FieldTag(nil), current.FieldTags...)
	if raw.DocumentName != nil {
		next.DocumentName = *raw.DocumentName
	}
	if raw.FieldTags != nil && len(*raw.FieldTags) > 0 {
		next.FieldTags = *raw.FieldTags
	}
	if raw.Content != nil {
		next.Content = *raw.Content
	}
	if len(raw.Settings) > 0 && !bytes.Equal(raw.Settings, []byte("null")) {
		settings := current.Settings
		if err := json.Unmarshal(raw.Settings, &settings); err != nil {
			return current, fmt.Errorf("%w: settings: %v", ErrInvalidTemplateFormat, err)
		}
		next.Settings = settings
	}
	return next, nil
}
