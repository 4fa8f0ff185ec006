package domain

import (
	"regexp"
	"strings"
)

// Field rule types understood by the row validator.
const (
	FieldTypeString  = "string"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeArray   = "array"
	FieldTypeObject  = "object"

	FieldFormatURL = "url"
)

// FieldRule is the constraint spec attached to a single template field.
type FieldRule struct {
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern"`
	Format    string   `json:"format,omitempty" yaml:"format"`
	Enum      []string `json:"enum,omitempty" yaml:"enum"`
	Type      string   `json:"type,omitempty" yaml:"type"`
	Min       *float64 `json:"min,omitempty" yaml:"min"`
	Max       *float64 `json:"max,omitempty" yaml:"max"`
	// Severity downgrades violations to warnings when set to "warning".
	Severity Severity `json:"severity,omitempty" yaml:"severity"`

	compiled *regexp.Regexp
}

// ViolationSeverity is the severity reported for a broken rule.
func (r FieldRule) ViolationSeverity() Severity {
	if r.Severity == SeverityWarning {
		return SeverityWarning
	}
	return SeverityError
}

// CompiledPattern returns the anchored pattern, compiling it on first use when
// the rule did not come through the registry.
func (r FieldRule) CompiledPattern() (*regexp.Regexp, error) {
	if r.compiled != nil {
		return r.compiled, nil
	}
	return CompileFullMatch(r.Pattern)
}

// WithCompiledPattern returns a copy of the rule carrying a precompiled pattern.
func (r FieldRule) WithCompiledPattern(re *regexp.Regexp) FieldRule {
	r.compiled = re
	return r
}

// CompileFullMatch anchors pattern so that it must match the whole value.
func CompileFullMatch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// OptionalField is a named optional column with a human label.
type OptionalField struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
}

// PostTemplate describes one content type accepted by bulk upload.
type PostTemplate struct {
	ID              string                    `json:"id" yaml:"id"`
	Name            string                    `json:"name" yaml:"name"`
	Description     string                    `json:"description" yaml:"description"`
	Version         string                    `json:"version" yaml:"version"`
	RequiredFields  []string                  `json:"required_fields" yaml:"required_fields"`
	OptionalFields  []OptionalField           `json:"optional_fields" yaml:"optional_fields"`
	DefaultValues   map[string]any            `json:"default_values" yaml:"default_values"`
	ValidationRules map[string]FieldRule      `json:"validation_rules" yaml:"validation_rules"`
	SectionDefaults map[string]map[string]any `json:"-" yaml:"section_defaults"`
}

// FieldNames lists required fields followed by optional fields.
func (t PostTemplate) FieldNames() []string {
	names := make([]string, 0, len(t.RequiredFields)+len(t.OptionalFields))
	names = append(names, t.RequiredFields...)
	for _, field := range t.OptionalFields {
		names = append(names, field.Name)
	}
	return names
}

// OptionalFieldLabels maps optional field names to their labels.
func (t PostTemplate) OptionalFieldLabels() map[string]string {
	labels := make(map[string]string, len(t.OptionalFields))
	for _, field := range t.OptionalFields {
		labels[field.Name] = field.Label
	}
	return labels
}

// IsRequired reports whether name is one of the required fields.
func (t PostTemplate) IsRequired(name string) bool {
	for _, field := range t.RequiredFields {
		if field == name {
			return true
		}
	}
	return false
}

// DefaultString returns the default value for name as a trimmed string.
func (t PostTemplate) DefaultString(name string) string {
	value, ok := t.DefaultValues[name]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// DefaultBool returns the boolean default for name, or fallback when the
// template sets none.
func (t PostTemplate) DefaultBool(name string, fallback bool) bool {
	if v, ok := t.DefaultValues[name].(bool); ok {
		return v
	}
	return fallback
}

// SectionDefault returns a deep copy of the fallback data for a section type.
func (t PostTemplate) SectionDefault(sectionType SectionType) map[string]any {
	data, ok := t.SectionDefaults[string(sectionType)]
	if !ok {
		return map[string]any{}
	}
	return CopyData(data)
}
