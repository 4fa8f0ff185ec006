package validator

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/travelcms/internal/domain"
)

// RuleValidator applies template field rules to parsed cell values.
type RuleValidator struct{}

// NewRuleValidator creates a new rule validator
func NewRuleValidator() *RuleValidator {
	return &RuleValidator{}
}

// Violation is a single broken rule on a field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// IsBlank reports whether a cell counts as absent: nil, an empty or
// whitespace-only string, or an empty sequence.
func IsBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// CheckRule applies every constraint in rule to value. All violations are
// reported, not just the first. Nil and empty string values are skipped.
func (rv *RuleValidator) CheckRule(field string, value any, rule domain.FieldRule) []Violation {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && s == "" {
		return nil
	}

	var violations []Violation
	add := func(format string, args ...any) {
		violations = append(violations, Violation{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Value:   value,
		})
	}

	if length, ok := valueLength(value); ok {
		if rule.MinLength != nil && length < *rule.MinLength {
			add("Field '%s' must be at least %d characters", field, *rule.MinLength)
		}
		if rule.MaxLength != nil && length > *rule.MaxLength {
			add("Field '%s' must be no more than %d characters", field, *rule.MaxLength)
		}
	}

	if rule.Pattern != "" {
		if text, ok := scalarString(value); ok {
			re, err := rule.CompiledPattern()
			if err != nil {
				add("Field '%s' has an invalid pattern rule: %v", field, err)
			} else if !re.MatchString(text) {
				add("Field '%s' does not match the required format", field)
			}
		}
	}

	if rule.Format == domain.FieldFormatURL {
		text, _ := value.(string)
		if !isAbsoluteURL(text) {
			add("Field '%s' must be a valid URL", field)
		}
	}

	if len(rule.Enum) > 0 {
		text, ok := scalarString(value)
		if !ok || !contains(rule.Enum, text) {
			add("Field '%s' must be one of: %s", field, strings.Join(rule.Enum, ", "))
		}
	}

	if rule.Type != "" && !matchesType(value, rule.Type) {
		add("Field '%s' must be of type %s", field, rule.Type)
	}

	if rule.Min != nil || rule.Max != nil {
		number, ok := numericValue(value)
		switch {
		case !ok:
			add("Field '%s' must be a number", field)
		default:
			if rule.Min != nil && number < *rule.Min {
				add("Field '%s' must be at least %s", field, formatNumber(*rule.Min))
			}
			if rule.Max != nil && number > *rule.Max {
				add("Field '%s' must be no more than %s", field, formatNumber(*rule.Max))
			}
		}
	}

	return violations
}

func valueLength(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case []string:
		return len(v), true
	case []any:
		return len(v), true
	default:
		return 0, false
	}
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return formatNumber(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func isAbsoluteURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme == "" {
		return false
	}
	return parsed.Host != "" || parsed.Opaque != ""
}

func matchesType(value any, expected string) bool {
	switch expected {
	case domain.FieldTypeString:
		_, ok := value.(string)
		return ok
	case domain.FieldTypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case domain.FieldTypeBoolean:
		_, ok := value.(bool)
		return ok
	case domain.FieldTypeArray:
		switch value.(type) {
		case []string, []any:
			return true
		}
		return false
	case domain.FieldTypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
