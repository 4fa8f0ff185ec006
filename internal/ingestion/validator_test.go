package ingestion

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/templates"
)

func travelGuide(t *testing.T) domain.PostTemplate {
	t.Helper()
	registry, err := templates.Builtin()
	if err != nil {
		t.Fatalf("load builtin templates: %v", err)
	}
	tpl, err := registry.Get("travel-guide")
	if err != nil {
		t.Fatalf("get travel-guide: %v", err)
	}
	return tpl
}

func TestValidateRequiredFieldGate(t *testing.T) {
	rows := []map[string]any{
		{"title": "Paris in Spring", "excerpt": "Cherry blossoms by the Seine"},
		{"title": "Rome on Foot", "excerpt": nil},
	}

	result := NewRowValidator().Validate(rows, travelGuide(t))

	if len(result.ValidRows) != 1 || result.ValidRows[0].RowNumber != 1 {
		t.Fatalf("expected only row 1 to be valid, got %+v", result.ValidRows)
	}
	want := []RowErrors{{
		Row: 2,
		Errors: []domain.ValidationError{{
			Field:    "excerpt",
			Value:    nil,
			Error:    "Required field 'excerpt' is missing or empty",
			Severity: domain.SeverityError,
		}},
	}}
	if !reflect.DeepEqual(result.Errors, want) {
		t.Fatalf("unexpected errors:\n got %+v\nwant %+v", result.Errors, want)
	}
}

func TestValidateMissingColumnIsRequiredFailure(t *testing.T) {
	rows := []map[string]any{{"title": "Only a title"}}
	result := NewRowValidator().Validate(rows, travelGuide(t))
	if len(result.ValidRows) != 0 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestValidateDuplicateSlugNamesFirstRow(t *testing.T) {
	rows := []map[string]any{
		{"title": "Rome I", "excerpt": "one", "slug": "rome"},
		{"title": "Rome II", "excerpt": "two", "slug": "rome"},
	}

	result := NewRowValidator().Validate(rows, travelGuide(t))

	if len(result.ValidRows) != 1 {
		t.Fatalf("expected one valid row, got %d", len(result.ValidRows))
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 2 {
		t.Fatalf("expected row 2 to fail, got %+v", result.Errors)
	}
	finding := result.Errors[0].Errors[0]
	if finding.Field != "slug" || finding.Error != "Duplicate slug 'rome' (already used in row 1)" {
		t.Fatalf("unexpected finding %+v", finding)
	}
}

func TestValidateRejectedRowDoesNotReserveSlug(t *testing.T) {
	rows := []map[string]any{
		{"title": "Rome I", "slug": "rome"},
		{"title": "Rome II", "excerpt": "two", "slug": "rome"},
	}
	result := NewRowValidator().Validate(rows, travelGuide(t))
	if len(result.ValidRows) != 1 || result.ValidRows[0].RowNumber != 2 {
		t.Fatalf("expected row 2 to be accepted, got %+v", result)
	}
}

func TestValidateRuleViolations(t *testing.T) {
	rows := []map[string]any{{
		"title":          "Ok",
		"excerpt":        "fine",
		"slug":           "Not A Slug",
		"status":         "live",
		"featured_image": "not a url",
		"reading_time":   float64(500),
	}}

	result := NewRowValidator().Validate(rows, travelGuide(t))
	if len(result.Errors) != 1 {
		t.Fatalf("expected one rejected row, got %+v", result)
	}

	fields := map[string]string{}
	for _, finding := range result.Errors[0].Errors {
		fields[finding.Field] = finding.Error
	}
	for _, field := range []string{"title", "slug", "status", "featured_image", "reading_time"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected a finding for %s, got %v", field, fields)
		}
	}
	if fields["title"] != "Field 'title' must be at least 3 characters" {
		t.Fatalf("unexpected title message %q", fields["title"])
	}
	if !strings.Contains(fields["status"], "must be one of: draft, published, archived") {
		t.Fatalf("unexpected status message %q", fields["status"])
	}
}

func TestValidateWarningsDoNotExcludeRow(t *testing.T) {
	rows := []map[string]any{{
		"title":      "Patagonia",
		"excerpt":    "Wind and glaciers",
		"meta_title": strings.Repeat("x", 90),
	}}

	result := NewRowValidator().Validate(rows, travelGuide(t))
	if len(result.Errors) != 0 || len(result.ValidRows) != 1 {
		t.Fatalf("warning must not exclude the row: %+v", result)
	}
	warnings := result.ValidRows[0].Warnings
	if len(warnings) != 1 || warnings[0].Field != "meta_title" || warnings[0].Severity != domain.SeverityWarning {
		t.Fatalf("unexpected warnings %+v", warnings)
	}
}
