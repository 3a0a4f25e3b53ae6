package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	measurements "aquatracking/internal/measurements/domain"
)

// Report is a measurement history of one biotope over a window.
type Report struct {
	BiotopeID    string
	From         time.Time
	To           time.Time
	MetricTypes  map[string]measurements.MetricType
	Measurements []measurements.Measurement
}

func (r Report) metricLabel(code string) (string, string) {
	if t, ok := r.MetricTypes[code]; ok {
		return t.Name, t.Unit
	}
	return code, ""
}

// BuildPDF renders the history as a one-table PDF.
func BuildPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, tr("Historique des mesures"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Biotope : %s", report.BiotopeID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Du : %s", report.From.UTC().Format(time.RFC3339))))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Au : %s", report.To.UTC().Format(time.RFC3339))))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Mesures : %d", len(report.Measurements))))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, tr("Date"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, tr("Mesure"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, tr("Valeur"), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, m := range report.Measurements {
		name, unit := report.metricLabel(m.MetricCode)
		value := fmt.Sprintf("%g", m.Value)
		if unit != "" {
			value += " " + unit
		}
		pdf.CellFormat(50, 6, m.MeasuredAt.UTC().Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, tr(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(value), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the history with a summary sheet and one row per measurement.
func BuildXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "resume"
	dataSheet := "mesures"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dataSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Historique des mesures")
	_ = f.SetCellValue(summarySheet, "A3", "Biotope")
	_ = f.SetCellValue(summarySheet, "B3", report.BiotopeID)
	_ = f.SetCellValue(summarySheet, "A4", "Du")
	_ = f.SetCellValue(summarySheet, "B4", report.From.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Au")
	_ = f.SetCellValue(summarySheet, "B5", report.To.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Mesures")
	_ = f.SetCellValue(summarySheet, "B6", len(report.Measurements))

	_ = f.SetCellValue(dataSheet, "A1", "Date")
	_ = f.SetCellValue(dataSheet, "B1", "Code")
	_ = f.SetCellValue(dataSheet, "C1", "Mesure")
	_ = f.SetCellValue(dataSheet, "D1", "Valeur")
	_ = f.SetCellValue(dataSheet, "E1", "Unité")
	for i, m := range report.Measurements {
		row := i + 2
		name, unit := report.metricLabel(m.MetricCode)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("A%d", row), m.MeasuredAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("B%d", row), m.MetricCode)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("C%d", row), name)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("D%d", row), m.Value)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("E%d", row), unit)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
