package document

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var stylePolicy = regexp.MustCompile(`^[#(),.%\w\s-]+$`)

// contentPolicy 只保留编辑器产生的标记。
var contentPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyles("text-align", "font-size", "color", "font-weight", "font-style", "text-decoration").
		Matching(stylePolicy).
		Globally()
	p.AllowElements("span", "font")
	p.AllowAttrs("color").OnElements("font")
	p.AllowDataURIImages()
	return p
}()

// Sanitize 在保存或渲染前清洗模板内容。
func Sanitize(content string) string {
	return contentPolicy.Sanitize(content)
}

type pageData struct {
	Title    string
	Settings Settings
	Body     template.HTML
}

// pageTemplate 把已替换占位符的正文包装成可打印页面。
// 页面宽度跟随渲染器视口（render.width_px），不在此处固定。
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  html, body { margin: 0; padding: 0; background: #ffffff; }
  body {
    font-family: '{{.Settings.FontFamily}}', sans-serif;
    font-size: {{.Settings.FontSizePt}}pt;
    line-height: {{.Settings.LineHeight}};
    color: #111111;
  }
  #document-root {
    width: 100%;
    padding: {{.Settings.MarginMM}}mm;
    box-sizing: border-box;
    position: relative;
    overflow-wrap: break-word;
  }
  .doc-header { border-bottom: 1px solid #cccccc; margin-bottom: 16px; font-size: 0.85em; color: #555555; }
  .doc-footer { border-top: 1px solid #cccccc; margin-top: 24px; font-size: 0.85em; color: #555555; }
  .doc-watermark {
    position: absolute; top: 40%; left: 0; right: 0;
    text-align: center; font-size: 72px; color: rgba(0, 0, 0, 0.08);
    transform: rotate(-30deg); pointer-events: none; z-index: 0;
  }
  .doc-body { position: relative; z-index: 1; }
  h1, h2, h3 { margin: 0.6em 0 0.4em; }
  p { margin: 0 0 0.6em; }
  table { width: 100%; border-collapse: collapse; margin: 0 0 1em; }
  th, td { border: 1px solid #d0d0d0; padding: 6px 8px; text-align: left; }
  @page { size: A4; margin: 0; }
  @media print { * { -webkit-print-color-adjust: exact; print-color-adjust: exact; } }
</style>
</head>
<body>
<div id="document-root">
{{- if .Settings.ShowWatermark}}
  <div class="doc-watermark">{{.Settings.WatermarkText}}</div>
{{- end}}
{{- if .Settings.ShowHeader}}
  <div class="doc-header">{{.Settings.HeaderText}}</div>
{{- end}}
  <div class="doc-body">{{.Body}}</div>
{{- if .Settings.ShowFooter}}
  <div class="doc-footer">{{.Settings.FooterText}}</div>
{{- end}}
</div>
</body>
</html>
`))

// Page 将已替换占位符的正文清洗后套入按 settings 排版的完整 HTML 页面。
func Page(title string, settings Settings, body string) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Title:    title,
		Settings: settings.Normalized(),
		Body:     template.HTML(Sanitize(body)),
	})
	if err != nil {
		return "", fmt.Errorf("execute page template: %w", err)
	}
	return buf.String(), nil
}

// Render 填充字段值并生成完整页面。
func Render(tpl Template, values map[string]string) (string, error) {
	return Page(tpl.DocumentName, tpl.Settings, Fill(tpl, values))
}
