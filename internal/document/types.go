// Package document 定义模板类型，以及把模板变成成品文档的各环节：
// 占位符填充、可打印页面、JSON 导入导出与下载文件名。
package document

import (
	"time"

	"workflowhr/internal/fieldschema"
)

// Template 表示一份可复用的 HR 文档模板。
type Template struct {
	ID           uint                   `json:"id,omitempty"`
	DocumentName string                 `json:"document_name"`
	FieldTags    []fieldschema.FieldTag `json:"field_tags"`
	Content      string                 `json:"content"`
	Settings     Settings               `json:"settings"`
	CompanyID    *uint                  `json:"company_id,omitempty"`
	Version      int                    `json:"version,omitempty"`
	CreatedAt    time.Time              `json:"created_at,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at,omitempty"`
}

// Settings 描述页面的全局样式，与占位符替换无关。
type Settings struct {
	FontFamily      string  `json:"font_family"`
	FontSizePt      int     `json:"font_size_pt"`
	LineHeight      float64 `json:"line_height"`
	MarginMM        int     `json:"margin_mm"`
	ShowHeader      bool    `json:"show_header"`
	HeaderText      string  `json:"header_text"`
	ShowFooter      bool    `json:"show_footer"`
	FooterText      string  `json:"footer_text"`
	ShowWatermark   bool    `json:"show_watermark"`
	WatermarkText   string  `json:"watermark_text"`
	ShowPageNumbers bool    `json:"show_page_numbers"`
}

const (
	DefaultFontFamily = "Arial"
	DefaultFontSizePt = 12
	DefaultLineHeight = 1.5
	DefaultMarginMM   = 20
	DefaultWatermark  = "CONFIDENTIAL"

	// BlankContent 新模板的默认正文
	BlankContent = "<p>Dear {{employee_name}},</p><p>Write the body of the document here.</p>"
)

// DefaultSettings 返回新模板使用的页面设置。
func DefaultSettings() Settings {
	return Settings{
		FontFamily: DefaultFontFamily,
		FontSizePt: DefaultFontSizePt,
		LineHeight: DefaultLineHeight,
		MarginMM:   DefaultMarginMM,
	}
}

// Normalized 用默认值填充零值，并把越界值限制在合法范围内。
func (s Settings) Normalized() Settings {
	d := DefaultSettings()
	if s.FontFamily == "" {
		s.FontFamily = d.FontFamily
	}
	if s.FontSizePt <= 0 || s.FontSizePt > 72 {
		s.FontSizePt = d.FontSizePt
	}
	if s.LineHeight <= 0 || s.LineHeight > 4 {
		s.LineHeight = d.LineHeight
	}
	if s.MarginMM < 0 || s.MarginMM > 60 {
		s.MarginMM = d.MarginMM
	}
	if s.ShowWatermark && s.WatermarkText == "" {
		s.WatermarkText = DefaultWatermark
	}
	return s
}

// Blank 返回新建文档的初始模板。
func Blank() Template {
	return Template{
		FieldTags: fieldschema.New().Fields(),
		Content:   BlankContent,
		Settings:  DefaultSettings(),
	}
}
