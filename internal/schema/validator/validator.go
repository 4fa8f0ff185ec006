package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/travelcms/internal/domain"
)

var knownRuleTypes = map[string]struct{}{
	domain.FieldTypeString:  {},
	domain.FieldTypeNumber:  {},
	domain.FieldTypeBoolean: {},
	domain.FieldTypeArray:   {},
	domain.FieldTypeObject:  {},
}

var knownFormats = map[string]struct{}{
	domain.FieldFormatURL: {},
}

// ValidateTemplate ensures a post template is well formed before it is served.
// It returns the template with every rule pattern precompiled.
func ValidateTemplate(tpl domain.PostTemplate) (domain.PostTemplate, error) {
	if strings.TrimSpace(tpl.ID) == "" {
		return domain.PostTemplate{}, fmt.Errorf("template %q has an empty id", tpl.Name)
	}
	if len(tpl.RequiredFields) == 0 {
		return domain.PostTemplate{}, fmt.Errorf("template %s declares no required fields", tpl.ID)
	}

	seen := make(map[string]struct{}, len(tpl.RequiredFields)+len(tpl.OptionalFields))
	for _, name := range tpl.FieldNames() {
		if strings.TrimSpace(name) == "" {
			return domain.PostTemplate{}, fmt.Errorf("template %s has an empty field name", tpl.ID)
		}
		if _, dup := seen[name]; dup {
			return domain.PostTemplate{}, fmt.Errorf("template %s declares field %s twice", tpl.ID, name)
		}
		seen[name] = struct{}{}
	}

	rules := make(map[string]domain.FieldRule, len(tpl.ValidationRules))
	for field, rule := range tpl.ValidationRules {
		checked, err := validateRule(tpl.ID, field, rule)
		if err != nil {
			return domain.PostTemplate{}, err
		}
		rules[field] = checked
	}
	tpl.ValidationRules = rules

	for _, sectionType := range domain.SectionOrder {
		if _, ok := tpl.SectionDefaults[string(sectionType)]; !ok {
			return domain.PostTemplate{}, fmt.Errorf("template %s is missing section defaults for %s", tpl.ID, sectionType)
		}
	}

	return tpl, nil
}

func validateRule(templateID, field string, rule domain.FieldRule) (domain.FieldRule, error) {
	if rule.Type != "" {
		if _, ok := knownRuleTypes[rule.Type]; !ok {
			return rule, fmt.Errorf("template %s field %s uses unknown type %s", templateID, field, rule.Type)
		}
	}
	if rule.Format != "" {
		if _, ok := knownFormats[rule.Format]; !ok {
			return rule, fmt.Errorf("template %s field %s uses unknown format %s", templateID, field, rule.Format)
		}
	}
	if rule.Severity != "" && rule.Severity != domain.SeverityError && rule.Severity != domain.SeverityWarning {
		return rule, fmt.Errorf("template %s field %s uses unknown severity %s", templateID, field, rule.Severity)
	}
	if rule.MinLength != nil && rule.MaxLength != nil && *rule.MinLength > *rule.MaxLength {
		return rule, fmt.Errorf("template %s field %s has min_length greater than max_length", templateID, field)
	}
	if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
		return rule, fmt.Errorf("template %s field %s has min greater than max", templateID, field)
	}
	if rule.Pattern != "" {
		re, err := domain.CompileFullMatch(rule.Pattern)
		if err != nil {
			return rule, fmt.Errorf("template %s field %s has invalid pattern: %w", templateID, field, err)
		}
		rule = rule.WithCompiledPattern(re)
	}
	return rule, nil
}
