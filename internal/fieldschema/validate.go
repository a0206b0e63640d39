package fieldschema

import (
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"workflowhr/internal/placeholder"
)

// MinContentLength 是正文可见文本的最小长度。
const MinContentLength = 10

// Rule 标识一条校验规则。
type Rule string

const (
	RuleDocumentName    Rule = "document_name_required"
	RuleContentLength   Rule = "content_too_short"
	RuleFieldIncomplete Rule = "field_incomplete"
	RuleDuplicateTag    Rule = "duplicate_tag"
	RuleNoCompleteField Rule = "no_complete_field"
)

// Violation 是一条未通过的规则及展示给用户的提示。
type Violation struct {
	Rule    Rule   `json:"rule"`
	Index   int    `json:"index,omitempty"`
	Message string `json:"message"`
}

// ValidationError 汇总模板的全部违规项。
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].Message
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// Has 判断是否包含 rule 的违规。
func (e *ValidationError) Has(rule Rule) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

var textOnly = bluemonday.StrictPolicy()

// PlainText 去除全部 HTML 标签并解码实体。
func PlainText(content string) string {
	return strings.TrimSpace(html.UnescapeString(textOnly.Sanitize(content)))
}

// Validate 提交前校验模板，返回 nil 或列出全部违规的 *ValidationError。
func Validate(documentName, content string, fields []FieldTag) error {
	var violations []Violation

	if strings.TrimSpace(documentName) == "" {
		violations = append(violations, Violation{
			Rule:    RuleDocumentName,
			Message: "Document name is required",
		})
	}

	if utf8.RuneCountInString(PlainText(content)) < MinContentLength {
		violations = append(violations, Violation{
			Rule:    RuleContentLength,
			Message: "Document content must be at least 10 characters long",
		})
	}

	complete := 0
	for i, f := range fields {
		tag, label := strings.TrimSpace(f.Tag), strings.TrimSpace(f.Label)
		if tag == "" || label == "" {
			violations = append(violations, Violation{
				Rule:    RuleFieldIncomplete,
				Index:   i,
				Message: "All fields must have both a tag and a label",
			})
			continue
		}
		complete++
	}

	if dups := duplicateTags(fields); len(dups) > 0 {
		violations = append(violations, Violation{
			Rule:    RuleDuplicateTag,
			Message: "Duplicate field tags found: " + strings.Join(dups, ", "),
		})
	}

	if complete == 0 {
		violations = append(violations, Violation{
			Rule:    RuleNoCompleteField,
			Message: "At least one field with both a tag and a label is required",
		})
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func duplicateTags(fields []FieldTag) []string {
	var dups []string
	seen := map[string]bool{}
	for i := 0; i < len(fields); i++ {
		a := strings.TrimSpace(fields[i].Tag)
		if a == "" || seen[a] {
			continue
		}
		for j := i + 1; j < len(fields); j++ {
			if strings.TrimSpace(fields[j].Tag) == a {
				seen[a] = true
				dups = append(dups, a)
				break
			}
		}
	}
	return dups
}

// Coverage 对比正文使用的占位符与字段列表。
type Coverage struct {
	// Missing 为正文引用但没有字段的 tag。
	Missing []string `json:"missing,omitempty"`
	// Unused 为正文未引用的字段 tag。
	Unused []string `json:"unused,omitempty"`
}

// Complete 判断每个占位符都有对应字段。
func (c Coverage) Complete() bool { return len(c.Missing) == 0 }

// CheckCoverage 报告缺字段的占位符与未使用的字段，只作提示，不阻止提交。
func CheckCoverage(content string, fields []FieldTag) Coverage {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[strings.TrimSpace(f.Tag)] = true
	}

	var cov Coverage
	used := map[string]bool{}
	for _, tag := range placeholder.Tokens(content) {
		used[tag] = true
		if !known[tag] {
			cov.Missing = append(cov.Missing, tag)
		}
	}
	for tag := range known {
		if tag != "" && !used[tag] {
			cov.Unused = append(cov.Unused, tag)
		}
	}
	sort.Strings(cov.Unused)
	return cov
}
