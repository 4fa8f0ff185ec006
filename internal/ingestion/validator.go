package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/pkg/validator"
)

// ValidRow is a row accepted for processing, with any warning level findings.
type ValidRow struct {
	RowNumber int                      `json:"row_number"`
	Data      map[string]any           `json:"data"`
	Warnings  []domain.ValidationError `json:"warnings,omitempty"`
}

// RowErrors lists the findings that excluded one row.
type RowErrors struct {
	Row    int                      `json:"row"`
	Errors []domain.ValidationError `json:"errors"`
}

// ValidationResult splits a batch into accepted rows and rejected rows.
type ValidationResult struct {
	ValidRows []ValidRow  `json:"valid_rows"`
	Errors    []RowErrors `json:"errors"`
}

// RowValidator checks parsed rows against a post template.
type RowValidator struct {
	rules *validator.RuleValidator
}

// NewRowValidator creates a row validator.
func NewRowValidator() *RowValidator {
	return &RowValidator{rules: validator.NewRuleValidator()}
}

// Validate checks every row, in order, for required fields, template rules and
// duplicate slugs within the batch. A row with any error level finding is left
// out of ValidRows and reported under its 1-based position.
func (v *RowValidator) Validate(rows []map[string]any, tpl domain.PostTemplate) ValidationResult {
	result := ValidationResult{
		ValidRows: []ValidRow{},
		Errors:    []RowErrors{},
	}

	ruleFields := make([]string, 0, len(tpl.ValidationRules))
	for field := range tpl.ValidationRules {
		ruleFields = append(ruleFields, field)
	}
	sort.Strings(ruleFields)

	acceptedSlugs := make(map[string]int)

	for idx, row := range rows {
		rowNumber := idx + 1
		var findings []domain.ValidationError

		for _, field := range tpl.RequiredFields {
			value := row[field]
			if validator.IsBlank(value) {
				findings = append(findings, domain.ValidationError{
					Field:    field,
					Value:    value,
					Error:    fmt.Sprintf("Required field '%s' is missing or empty", field),
					Severity: domain.SeverityError,
				})
			}
		}

		for _, field := range ruleFields {
			rule := tpl.ValidationRules[field]
			for _, violation := range v.rules.CheckRule(field, row[field], rule) {
				findings = append(findings, domain.ValidationError{
					Field:    violation.Field,
					Value:    violation.Value,
					Error:    violation.Message,
					Severity: rule.ViolationSeverity(),
				})
			}
		}

		slug := rowSlug(row)
		if slug != "" {
			if firstRow, taken := acceptedSlugs[slug]; taken {
				findings = append(findings, domain.ValidationError{
					Field:    "slug",
					Value:    slug,
					Error:    fmt.Sprintf("Duplicate slug '%s' (already used in row %d)", slug, firstRow),
					Severity: domain.SeverityError,
				})
			}
		}

		errs, warnings := splitBySeverity(findings)
		if len(errs) > 0 {
			result.Errors = append(result.Errors, RowErrors{Row: rowNumber, Errors: errs})
			continue
		}

		if slug != "" {
			acceptedSlugs[slug] = rowNumber
		}
		result.ValidRows = append(result.ValidRows, ValidRow{
			RowNumber: rowNumber,
			Data:      row,
			Warnings:  warnings,
		})
	}

	return result
}

func rowSlug(row map[string]any) string {
	slug, _ := row["slug"].(string)
	return strings.TrimSpace(slug)
}

func splitBySeverity(findings []domain.ValidationError) (errs, warnings []domain.ValidationError) {
	for _, finding := range findings {
		if finding.Severity == domain.SeverityWarning {
			warnings = append(warnings, finding)
			continue
		}
		errs = append(errs, finding)
	}
	return errs, warnings
}
