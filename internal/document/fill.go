package document

import (
	"html"

	"workflowhr/internal/fieldschema"
	"workflowhr/internal/placeholder"
)

// Fill 将字段值替换进正文。模板的每个字段都会绑定，未提供的字段为空文本；
// 没有字段的占位符原样保留。值经过 HTML 转义。
func Fill(tpl Template, supplied map[string]string) string {
	return placeholder.Substitute(tpl.Content, escaped(fieldschema.Bind(tpl.FieldTags, supplied)))
}

// Preview 用于编辑预览，空字段显示为 [标签]。
func Preview(tpl Template, supplied map[string]string) string {
	values := escaped(fieldschema.Bind(tpl.FieldTags, supplied))
	return placeholder.PreviewWithLabels(tpl.Content, fieldschema.Labels(tpl.FieldTags), values)
}

func escaped(values map[string]string) map[string]string {
	for tag, v := range values {
		values[tag] = html.EscapeString(v)
	}
	return values
}
