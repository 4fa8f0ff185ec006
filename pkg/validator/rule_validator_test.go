package validator

import (
	"strings"
	"testing"

	"github.com/rpattn/travelcms/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCheckRuleLengthBounds(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{MinLength: intPtr(3), MaxLength: intPtr(5)}

	if got := v.CheckRule("title", "ab", rule); len(got) != 1 || !strings.Contains(got[0].Message, "at least 3") {
		t.Fatalf("expected min length violation, got %+v", got)
	}
	if got := v.CheckRule("title", "abcdef", rule); len(got) != 1 || !strings.Contains(got[0].Message, "no more than 5") {
		t.Fatalf("expected max length violation, got %+v", got)
	}
	if got := v.CheckRule("title", "abcd", rule); len(got) != 0 {
		t.Fatalf("expected no violations, got %+v", got)
	}
}

func TestCheckRuleCountsRunesNotBytes(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{MaxLength: intPtr(6)}

	if got := v.CheckRule("title", "Zürich", rule); len(got) != 0 {
		t.Fatalf("expected multibyte title to fit, got %+v", got)
	}
}

func TestCheckRuleSkipsEmptyValues(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{MinLength: intPtr(3), Format: domain.FieldFormatURL}

	if got := v.CheckRule("canonical_url", "", rule); len(got) != 0 {
		t.Fatalf("expected empty string to be skipped, got %+v", got)
	}
	if got := v.CheckRule("canonical_url", nil, rule); len(got) != 0 {
		t.Fatalf("expected nil to be skipped, got %+v", got)
	}
}

func TestCheckRulePatternIsFullMatch(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{Pattern: "[a-z]+"}

	if got := v.CheckRule("slug", "rome", rule); len(got) != 0 {
		t.Fatalf("expected match, got %+v", got)
	}
	if got := v.CheckRule("slug", "rome 2024", rule); len(got) != 1 {
		t.Fatalf("expected partial match to fail, got %+v", got)
	}
}

func TestCheckRuleURLFormat(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{Format: domain.FieldFormatURL}

	for _, ok := range []string{"https://example.com/a.jpg", "http://localhost:8080"} {
		if got := v.CheckRule("image", ok, rule); len(got) != 0 {
			t.Fatalf("expected %q to be valid, got %+v", ok, got)
		}
	}
	for _, bad := range []string{"example.com/a.jpg", "/relative/path", "not a url"} {
		if got := v.CheckRule("image", bad, rule); len(got) != 1 {
			t.Fatalf("expected %q to be rejected, got %+v", bad, got)
		}
	}
}

func TestCheckRuleAccumulatesViolations(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{
		MinLength: intPtr(10),
		Pattern:   "[0-9]+",
		Enum:      []string{"1234567890"},
	}

	got := v.CheckRule("code", "abc", rule)
	if len(got) != 3 {
		t.Fatalf("expected three independent violations, got %+v", got)
	}
}

func TestCheckRuleTypeAndRange(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{Type: domain.FieldTypeNumber, Min: floatPtr(1), Max: floatPtr(10)}

	if got := v.CheckRule("reading_time", 5.0, rule); len(got) != 0 {
		t.Fatalf("expected in-range number to pass, got %+v", got)
	}
	if got := v.CheckRule("reading_time", 42.0, rule); len(got) != 1 || !strings.Contains(got[0].Message, "no more than 10") {
		t.Fatalf("expected max violation, got %+v", got)
	}
	got := v.CheckRule("reading_time", "five", rule)
	if len(got) != 2 {
		t.Fatalf("expected type and number violations, got %+v", got)
	}
}

func TestCheckRuleArrayType(t *testing.T) {
	v := NewRuleValidator()
	rule := domain.FieldRule{Type: domain.FieldTypeArray}

	if got := v.CheckRule("tags", []string{"a"}, rule); len(got) != 0 {
		t.Fatalf("expected []string to count as array, got %+v", got)
	}
	if got := v.CheckRule("tags", "a,b", rule); len(got) != 1 {
		t.Fatalf("expected string to fail array type, got %+v", got)
	}
}

func TestIsBlank(t *testing.T) {
	cases := map[string]struct {
		value any
		want  bool
	}{
		"nil":        {nil, true},
		"spaces":     {"   ", true},
		"empty list": {[]string{}, true},
		"text":       {"x", false},
		"false":      {false, false},
		"zero":       {0.0, false},
	}
	for name, tc := range cases {
		if got := IsBlank(tc.value); got != tc.want {
			t.Fatalf("%s: IsBlank(%#v) = %v, want %v", name, tc.value, got, tc.want)
		}
	}
}
