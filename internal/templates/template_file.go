package templates

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/rpattn/travelcms/internal/domain"

	"github.com/xuri/excelize/v2"
)

const templateSheet = "Posts"

// BuildTemplateCSV renders the downloadable upload template: a header of the
// required then optional fields and one blank data row.
func BuildTemplateCSV(tpl domain.PostTemplate) ([]byte, error) {
	headers := tpl.FieldNames()

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write template header: %w", err)
	}
	if err := writer.Write(make([]string, len(headers))); err != nil {
		return nil, fmt.Errorf("failed to write template row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush template: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildTemplateXLSX renders the same layout as a workbook. Required columns
// get a bold header.
func BuildTemplateXLSX(tpl domain.PostTemplate) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), templateSheet); err != nil {
		return nil, fmt.Errorf("failed to name template sheet: %w", err)
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for idx, name := range tpl.FieldNames() {
		cell, err := excelize.CoordinatesToCellName(idx+1, 1)
		if err != nil {
			return nil, err
		}
		if err := book.SetCellValue(templateSheet, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header %s: %w", name, err)
		}
		if tpl.IsRequired(name) {
			if err := book.SetCellStyle(templateSheet, cell, cell, bold); err != nil {
				return nil, fmt.Errorf("failed to style header %s: %w", name, err)
			}
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
