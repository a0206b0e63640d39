// Package themes 内置的模板主题目录。
package themes

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"workflowhr/internal/fieldschema"
	"workflowhr/internal/placeholder"
)

//go:embed catalog/*.html
var catalogFS embed.FS

var ErrUnknownTheme = errors.New("unknown theme")

// Theme 是带名称的起始模板，不会持久化。
type Theme struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    string `json:"template"`
}

type entry struct {
	name        string
	description string
	file        string
}

var entries = []entry{
	{"Offer Letter", "Formal job offer with position, salary and start date", "offer_letter.html"},
	{"Termination Letter", "Notice of employment termination with final arrangements", "termination_letter.html"},
	{"Warning Letter", "Written disciplinary warning with expected improvement", "warning_letter.html"},
	{"Appointment Letter", "Confirmation of appointment and its conditions", "appointment_letter.html"},
	{"Recommendation Letter", "Reference letter for a current or former employee", "recommendation_letter.html"},
	{"Employment Contract", "Standard employment contract between company and employee", "employment_contract.html"},
	{"Performance Review", "Periodic review with rating, strengths and goals", "performance_review.html"},
	{"Promotion Letter", "Announcement of a promotion and revised salary", "promotion_letter.html"},
	{"Salary Increment Letter", "Notice of a salary revision", "salary_increment_letter.html"},
	{"Transfer Letter", "Transfer to another department or location", "transfer_letter.html"},
}

var catalog = mustLoad()

func mustLoad() []Theme {
	out := make([]Theme, 0, len(entries))
	for _, e := range entries {
		body, err := catalogFS.ReadFile("catalog/" + e.file)
		if err != nil {
			panic(fmt.Sprintf("themes: %s: %v", e.file, err))
		}
		out = append(out, Theme{
			Name:        e.name,
			Description: e.description,
			Template:    strings.TrimSpace(string(body)),
		})
	}
	return out
}

// List 按目录顺序返回全部主题。
func List() []Theme {
	out := make([]Theme, len(catalog))
	copy(out, catalog)
	return out
}

// Get 按名称查找主题，忽略大小写。
func Get(name string) (Theme, error) {
	for _, t := range catalog {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
}

// SuggestedFields 为主题使用的每个占位符给出一个字段，仅作提示，选择主题时不会自动注册。
func SuggestedFields(t Theme) []fieldschema.FieldTag {
	tags := placeholder.Tokens(t.Template)
	out := make([]fieldschema.FieldTag, 0, len(tags))
	for _, tag := range tags {
		out = append(out, fieldschema.FieldTag{Tag: tag, Label: labelFor(tag)})
	}
	return out
}

// labelFor 将 salary_amount 转为 "Salary Amount"。
func labelFor(tag string) string {
	words := strings.Split(tag, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
