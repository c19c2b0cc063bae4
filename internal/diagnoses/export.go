package diagnoses

import (
	"bytes"
	"fmt"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"clinic-portal-server/internal/models"
)

const exportSheet = "Diagnoses"

// ExportHeader is the header row of the diagnosis workbook.
var ExportHeader = []string{
	"Diagnosis Date",
	"ICD-10",
	"Description",
	"Type",
	"Notes",
	"Created At",
	"Created By",
}

var exportColumnWidths = []float64{14, 10, 40, 14, 40, 22, 38}

// Export renders diagnoses as an xlsx workbook, one row per diagnosis in the given order.
func Export(rows []models.Diagnosis) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FCE4EC"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &ExportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, d := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := []interface{}{
			d.DiagnosisDate.String(),
			d.ICD10Code,
			lo.FromPtr(d.Description),
			lo.FromPtr(d.DiagnosisType),
			lo.FromPtr(d.Notes),
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			lo.FromPtr(d.CreatedBy),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
