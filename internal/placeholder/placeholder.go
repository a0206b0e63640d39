// Package placeholder 负责模板内容中 {{tag}} 占位符的替换。
package placeholder

import (
	"regexp"
	"strings"
)

var (
	tokenPattern     = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
	nonTagCharacters = regexp.MustCompile(`[^a-z0-9\s\p{Zs}\x{2028}\x{2029}\x{FEFF}]`)
	whitespaceRuns   = regexp.MustCompile(`[\s\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
)

// Token 返回 tag 对应的占位符字面量。
func Token(tag string) string {
	return "{{" + tag + "}}"
}

// Substitute 将 values 中存在的 {{k}} 全部替换为 values[k]，其余占位符原样保留。
func Substitute(content string, values map[string]string) string {
	if content == "" || len(values) == 0 {
		return content
	}
	return tokenPattern.ReplaceAllStringFunc(content, func(token string) string {
		value, ok := values[tagOf(token)]
		if !ok {
			return token
		}
		return value
	})
}

// Preview 与 Substitute 相同，但空值显示为 [k]。
func Preview(content string, values map[string]string) string {
	return PreviewWithLabels(content, nil, values)
}

// PreviewWithLabels 空值优先显示为 [标签]，没有标签时显示为 [tag]。
func PreviewWithLabels(content string, labels map[string]string, values map[string]string) string {
	if content == "" || len(values) == 0 {
		return content
	}
	return tokenPattern.ReplaceAllStringFunc(content, func(token string) string {
		tag := tagOf(token)
		value, ok := values[tag]
		if !ok {
			return token
		}
		if value != "" {
			return value
		}
		if label := strings.TrimSpace(labels[tag]); label != "" {
			return "[" + label + "]"
		}
		return "[" + tag + "]"
	})
}

// Tokens 按首次出现顺序列出 content 引用的 tag，去重。
func Tokens(content string) []string {
	matches := tokenPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// DeriveTag 由标签生成 tag："Employee Full Name!" -> "employee_full_name"。
// 空白包括 Unicode 空格（如不换行空格）。
func DeriveTag(label string) string {
	tag := strings.ToLower(label)
	tag = nonTagCharacters.ReplaceAllString(tag, "")
	tag = whitespaceRuns.ReplaceAllString(tag, "_")
	return strings.Trim(tag, "_")
}

func tagOf(token string) string {
	return token[2 : len(token)-2]
}
