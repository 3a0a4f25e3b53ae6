package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	measurements "aquatracking/internal/measurements/domain"
)

func sampleReport() Report {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Report{
		BiotopeID: "biotope-1",
		From:      from,
		To:        from.Add(24 * time.Hour),
		MetricTypes: map[string]measurements.MetricType{
			"TEMPERATURE": {Code: "TEMPERATURE", Name: "Température", Unit: "°C"},
		},
		Measurements: []measurements.Measurement{
			{ID: "m1", BiotopeID: "biotope-1", MetricCode: "TEMPERATURE", Value: 25.5, MeasuredAt: from.Add(time.Hour)},
			{ID: "m2", BiotopeID: "biotope-1", MetricCode: "PH", Value: 7.1, MeasuredAt: from.Add(2 * time.Hour)},
		},
	}
}

func TestBuildPDF(t *testing.T) {
	data, err := BuildPDF(sampleReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected PDF header")
	}
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX(sampleReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	value, err := f.GetCellValue("mesures", "C2")
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if value != "Température" {
		t.Fatalf("expected metric name, got %q", value)
	}
	unit, _ := f.GetCellValue("mesures", "E3")
	if unit != "" {
		t.Fatalf("expected empty unit for unknown metric, got %q", unit)
	}
	code, _ := f.GetCellValue("mesures", "C3")
	if code != "PH" {
		t.Fatalf("expected code fallback, got %q", code)
	}
}
