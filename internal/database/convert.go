package database

import (
	"encoding/json"
	"fmt"

	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
)

// ToDocument 将数据库行转换为领域模板。
func (t Template) ToDocument() (document.Template, error) {
	out := document.Template{
		ID:           t.ID,
		DocumentName: t.DocumentName,
		Content:      t.Content,
		Settings:     document.DefaultSettings(),
		CompanyID:    t.CompanyID,
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if len(t.FieldTags) > 0 {
		if err := json.Unmarshal(t.FieldTags, &out.FieldTags); err != nil {
			return document.Template{}, fmt.Errorf("decode field tags of template %d: %w", t.ID, err)
		}
	}
	if out.FieldTags == nil {
		out.FieldTags = []fieldschema.FieldTag{}
	}
	if len(t.Settings) > 0 {
		if err := json.Unmarshal(t.Settings, &out.Settings); err != nil {
			return document.Template{}, fmt.Errorf("decode settings of template %d: %w", t.ID, err)
		}
	}
	return out, nil
}

// Assign 将 tpl 的可编辑部分写入数据库行。
func (t *Template) Assign(tpl document.Template) error {
	fields := tpl.FieldTags
	if fields == nil {
		fields = []fieldschema.FieldTag{}
	}
	tags, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode field tags: %w", err)
	}
	settings, err := json.Marshal(tpl.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	t.DocumentName = tpl.DocumentName
	t.Content = tpl.Content
	t.FieldTags = tags
	t.Settings = settings
	if tpl.CompanyID != nil {
		t.CompanyID = tpl.CompanyID
	}
	return nil
}

// Values 解码生成文档保存的字段值。
func (d GeneratedDocument) Values() (map[string]string, error) {
	values := map[string]string{}
	if len(d.FieldValues) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(d.FieldValues, &values); err != nil {
		return nil, fmt.Errorf("decode field values of document %d: %w", d.ID, err)
	}
	return values, nil
}
