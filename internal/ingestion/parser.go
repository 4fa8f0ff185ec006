package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyFile is returned when an upload carries no header row.
	ErrEmptyFile = errors.New("file is empty")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	headerWhitespace = regexp.MustCompile(`\s+`)

	arrayColumns   = map[string]struct{}{"tags": {}, "highlights": {}, "seo_keywords": {}}
	jsonColumns    = map[string]struct{}{"faq_items": {}, "internal_links_manual": {}, "custom_json_ld": {}}
	truthyBooleans = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "on": {}}
)

// ParseResult is the typed view of an uploaded file.
type ParseResult struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
	Errors  []string         `json:"errors"`
}

// Parse reads a CSV or XLSX upload into typed rows. Row level problems are
// collected into Errors and parsing continues; an error is returned only when
// the file cannot be read at all.
func Parse(fileName string, payload []byte) (ParseResult, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", "":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return ParseResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (ParseResult, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.ReuseRecord = false

	builder := newRowBuilder()
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) && record != nil {
				builder.addError(fmt.Sprintf("expected %d fields but parsed %d", len(builder.headers), len(record)))
			} else {
				builder.addError(tokenizerMessage(err))
				if record == nil {
					continue
				}
			}
		}
		builder.add(record)
	}

	return builder.result()
}

func parseExcel(payload []byte) (ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	builder := newRowBuilder()
	for _, row := range rows {
		builder.add(row)
	}
	return builder.result()
}

func tokenizerMessage(err error) string {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Err.Error()
	}
	return err.Error()
}

// rowBuilder turns raw records into typed rows. The first non-empty record is
// the header.
type rowBuilder struct {
	headers []string
	rows    []map[string]any
	errors  []string
}

func newRowBuilder() *rowBuilder {
	return &rowBuilder{
		rows:   []map[string]any{},
		errors: []string{},
	}
}

// addError records a problem against the next data row.
func (b *rowBuilder) addError(message string) {
	b.errors = append(b.errors, fmt.Sprintf("Row %d: %s", len(b.rows)+1, message))
}

func (b *rowBuilder) add(record []string) {
	if isBlankRecord(record) {
		return
	}
	if b.headers == nil {
		b.headers = sanitizeHeaders(record)
		return
	}

	rowNumber := len(b.rows) + 1
	row := make(map[string]any, len(b.headers))
	for idx, header := range b.headers {
		if idx >= len(record) {
			break
		}
		value, coerceErr := coerceCell(header, record[idx])
		if coerceErr != "" {
			b.errors = append(b.errors, fmt.Sprintf("Row %d: %s", rowNumber, coerceErr))
		}
		row[header] = value
	}
	b.rows = append(b.rows, row)
}

func (b *rowBuilder) result() (ParseResult, error) {
	if b.headers == nil {
		return ParseResult{}, ErrEmptyFile
	}
	return ParseResult{
		Headers: b.headers,
		Rows:    b.rows,
		Errors:  b.errors,
	}, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders trims and lowercases header names and collapses whitespace
// runs into underscores.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		headers[idx] = headerWhitespace.ReplaceAllString(name, "_")
	}
	return headers
}

// coerceCell converts a raw cell according to its column name. The second
// return value is a non-empty message when the cell could not be decoded.
func coerceCell(column, raw string) (any, string) {
	trimmed := strings.TrimSpace(raw)

	switch {
	case isArrayColumn(column):
		return splitList(trimmed), ""
	case isJSONColumn(column):
		if trimmed == "" {
			return nil, ""
		}
		var out any
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, fmt.Sprintf("Invalid JSON in field '%s': %s", column, raw)
		}
		return out, ""
	case isBooleanColumn(column):
		if trimmed == "" {
			return nil, ""
		}
		_, truthy := truthyBooleans[strings.ToLower(trimmed)]
		return truthy, ""
	case isNumberColumn(column):
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ""
		}
		return f, ""
	default:
		if trimmed == "" {
			return nil, ""
		}
		return trimmed, ""
	}
}

func splitList(value string) []string {
	items := []string{}
	if value == "" {
		return items
	}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func isArrayColumn(name string) bool {
	if strings.HasSuffix(name, "_array") {
		return true
	}
	_, ok := arrayColumns[name]
	return ok
}

func isJSONColumn(name string) bool {
	if strings.HasSuffix(name, "_json") {
		return true
	}
	_, ok := jsonColumns[name]
	return ok
}

func isBooleanColumn(name string) bool {
	return strings.HasSuffix(name, "_boolean") ||
		strings.HasSuffix(name, "_enabled") ||
		strings.Contains(name, "robots_") ||
		name == "structured_data_enabled"
}

func isNumberColumn(name string) bool {
	return strings.HasSuffix(name, "_number") || name == "reading_time"
}
