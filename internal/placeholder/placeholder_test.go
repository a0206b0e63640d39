package placeholder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name    string
		content string
		values  map[string]string
		want    string
	}{
		{
			name:    "unknown tags stay literal",
			content: "Hi {{name}}, you are {{age}}.",
			values:  map[string]string{"name": "Sam"},
			want:    "Hi Sam, you are {{age}}.",
		},
		{
			name:    "every occurrence replaced",
			content: "{{name}} and {{name}} again {{name}}",
			values:  map[string]string{"name": "Jo"},
			want:    "Jo and Jo again Jo",
		},
		{
			name:    "empty value substitutes empty string",
			content: "<p>{{manager}}</p>",
			values:  map[string]string{"manager": ""},
			want:    "<p></p>",
		},
		{
			name:    "values are not re-expanded",
			content: "{{a}} {{b}}",
			values:  map[string]string{"a": "{{b}}", "b": "x"},
			want:    "{{b}} x",
		},
		{
			name:    "nil values",
			content: "{{a}}",
			values:  nil,
			want:    "{{a}}",
		},
		{
			name:    "empty content",
			content: "",
			values:  map[string]string{"a": "b"},
			want:    "",
		},
		{
			name:    "spaced token is a different tag",
			content: "{{ name }}",
			values:  map[string]string{"name": "Sam"},
			want:    "{{ name }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.content, tt.values); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestPreviewFallsBackToBrackets(t *testing.T) {
	content := "Report to {{manager}} from {{start_date}} at {{office}}."
	values := map[string]string{"manager": "", "start_date": "Monday"}

	if got, want := Preview(content, values), "Report to [manager] from Monday at {{office}}."; got != want {
		t.Errorf("Preview = %q, want %q", got, want)
	}

	labels := map[string]string{"manager": "Manager"}
	if got, want := PreviewWithLabels(content, labels, values), "Report to [Manager] from Monday at {{office}}."; got != want {
		t.Errorf("PreviewWithLabels = %q, want %q", got, want)
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("{{b}} {{a}} {{b}} {{c}} {not} {{}}")
	want := []string{"b", "a", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokens mismatch (-want +got):\n%s", diff)
	}
	if Tokens("plain") != nil {
		t.Error("expected nil for content without tokens")
	}
}

func TestDeriveTag(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Employee Full Name!", "employee_full_name"},
		{"  multiple   spaces ", "multiple_spaces"},
		{"Start Date", "start_date"},
		{"start date", "start_date"},
		{"Salary ($)", "salary"},
		{"already_derived", "alreadyderived"},
		{"Tab\tseparated", "tab_separated"},
		{"Start\u00a0Date", "start_date"},
		{"Notice \u2003 Period", "notice_period"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := DeriveTag(tt.label); got != tt.want {
				t.Errorf("DeriveTag(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

// Underscores are outside the kept character set, so only single-word tags
// survive a second derivation unchanged.
func TestDeriveTagSingleWordIdempotent(t *testing.T) {
	for _, tag := range []string{"company", "q4", "manager"} {
		if got := DeriveTag(DeriveTag(tag)); got != tag {
			t.Errorf("DeriveTag(DeriveTag(%q)) = %q", tag, got)
		}
	}
}
