package ingestion

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseIsDeterministic(t *testing.T) {
	data := []byte("Title,Excerpt,Tags,faq_items\nParis,Lights,\"a, b\",\"[{\"\"q\"\":1}]\"\nRome,Ruins,,{bad\n")

	first, err := Parse("posts.csv", data)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	second, err := Parse("posts.csv", data)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("parsing the same bytes twice differed:\n%+v\n%+v", first, second)
	}
}

func TestParseNormalizesHeaders(t *testing.T) {
	result, err := Parse("posts.csv", []byte("  Meta Title ,HERO   IMAGE\nx,y\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if !reflect.DeepEqual(result.Headers, []string{"meta_title", "hero_image"}) {
		t.Fatalf("unexpected headers %v", result.Headers)
	}
}

func TestParseSplitsArrayColumns(t *testing.T) {
	result, err := Parse("posts.csv", []byte("title,tags\nA,\"a, b ,c\"\nB,\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if got := result.Rows[0]["tags"]; !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected [a b c], got %#v", got)
	}
	if got := result.Rows[1]["tags"]; !reflect.DeepEqual(got, []string{}) {
		t.Fatalf("expected empty list, got %#v", got)
	}
}

func TestParseIsolatesBadJSON(t *testing.T) {
	result, err := Parse("posts.csv", []byte("title,faq_items,where_to_stay_json\nLisbon,{bad json,{also bad\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("row with bad json must be kept, got %d rows", len(result.Rows))
	}
	row := result.Rows[0]
	if row["title"] != "Lisbon" {
		t.Fatalf("other cells must survive, got %v", row["title"])
	}
	if v, ok := row["faq_items"]; !ok || v != nil {
		t.Fatalf("expected faq_items to be nil, got %#v", v)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 parse errors, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "faq_items") || !strings.HasPrefix(result.Errors[0], "Row 1:") {
		t.Fatalf("unexpected error %q", result.Errors[0])
	}
	if !strings.Contains(result.Errors[1], "where_to_stay_json") {
		t.Fatalf("unexpected error %q", result.Errors[1])
	}
}

func TestParseCoercesTypedColumns(t *testing.T) {
	data := "title,reading_time,robots_index,structured_data_enabled,custom_json_ld,excerpt\n" +
		"A,7,yes,0,\"{\"\"@type\"\":\"\"Article\"\"}\",  \n" +
		"B,soon,FALSE,on,,text\n"
	result, err := Parse("posts.csv", []byte(data))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}

	first := result.Rows[0]
	if first["reading_time"] != float64(7) {
		t.Fatalf("expected reading_time 7, got %#v", first["reading_time"])
	}
	if first["robots_index"] != true || first["structured_data_enabled"] != false {
		t.Fatalf("unexpected booleans %#v %#v", first["robots_index"], first["structured_data_enabled"])
	}
	if ld, ok := first["custom_json_ld"].(map[string]any); !ok || ld["@type"] != "Article" {
		t.Fatalf("unexpected custom_json_ld %#v", first["custom_json_ld"])
	}
	if first["excerpt"] != nil {
		t.Fatalf("blank string cell should be nil, got %#v", first["excerpt"])
	}

	second := result.Rows[1]
	if second["reading_time"] != nil {
		t.Fatalf("non numeric reading_time should be nil, got %#v", second["reading_time"])
	}
	if second["robots_index"] != false || second["structured_data_enabled"] != true {
		t.Fatalf("unexpected booleans %#v %#v", second["robots_index"], second["structured_data_enabled"])
	}
	if second["custom_json_ld"] != nil {
		t.Fatalf("blank json cell should be nil, got %#v", second["custom_json_ld"])
	}
}

func TestParseStripsBOMAndSkipsBlankLines(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("title,excerpt\n\nA,one\n,\nB,two\n")...)
	result, err := Parse("posts.csv", data)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if result.Headers[0] != "title" {
		t.Fatalf("BOM leaked into header: %q", result.Headers[0])
	}
	if len(result.Rows) != 2 || result.Rows[1]["title"] != "B" {
		t.Fatalf("unexpected rows %+v", result.Rows)
	}
}

func TestParseKeepsShortRowsAndReportsThem(t *testing.T) {
	result, err := Parse("posts.csv", []byte("title,excerpt,slug\nA,one\nB,two,b\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected both rows, got %d", len(result.Rows))
	}
	if _, ok := result.Rows[0]["slug"]; ok {
		t.Fatalf("missing cell should be absent, got %#v", result.Rows[0])
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "Row 1: expected 3 fields but parsed 2") {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
}

func TestParseRejectsEmptyAndUnsupported(t *testing.T) {
	if _, err := Parse("posts.csv", []byte("\n\n")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := Parse("posts.pdf", []byte("title\nA\n")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseExcelFirstSheet(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"Title", "Tags", "Reading Time"},
		{"Kyoto", "temples, food", 12},
	}
	for r, values := range rows {
		for c, value := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := book.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	result, err := Parse("posts.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if !reflect.DeepEqual(result.Headers, []string{"title", "tags", "reading_time"}) {
		t.Fatalf("unexpected headers %v", result.Headers)
	}
	row := result.Rows[0]
	if row["title"] != "Kyoto" || row["reading_time"] != float64(12) {
		t.Fatalf("unexpected row %#v", row)
	}
	if !reflect.DeepEqual(row["tags"], []string{"temples", "food"}) {
		t.Fatalf("unexpected tags %#v", row["tags"])
	}
}
