package oeehttp

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	oeeapp "oee-cloud/internal/oee/application"
)

// BuildReportPDF renders a summary PDF of a metrics result.
func BuildReportPDF(res *oeeapp.MetricsResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "OEE Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Entity type: %s", res.EntityType))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s", formatTime(res.Window.Start), formatTime(res.Window.End)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Strategy: %s (%s)", res.Strategy, res.State))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Computed: %s", formatTime(res.ComputedAt)))
	pdf.Ln(5)
	if res.Degraded {
		pdf.Cell(0, 6, "Result is degraded: some entities did not finish before the deadline")
		pdf.Ln(5)
	}

	fleet := res.Fleet.Metrics.Percent()
	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Fleet (%d entities): availability %.2f%%  efficiency %.2f%%  throughput %.2f%%  OEE %.2f%%",
		res.Fleet.Entities, fleet.Availability, fleet.Efficiency, fleet.Throughput, fleet.OEE))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	for _, header := range []string{"Entity", "Outcome", "Avail %", "Eff %", "Thru %", "OEE %", "Runtime (h)"} {
		pdf.CellFormat(26, 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, entity := range res.Entities {
		m := entity.Metrics.Percent()
		pdf.CellFormat(26, 6, string(entity.EntityRef), "1", 0, "L", false, 0, "")
		pdf.CellFormat(26, 6, string(entity.Outcome), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", m.Availability), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", m.Efficiency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", m.Throughput), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", m.OEE), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", entity.Totals.RuntimeSec/3600), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 9)
	for _, header := range []string{"Day", "Kind", "Strategy", "Reason"} {
		pdf.CellFormat(45, 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, part := range res.Partitions {
		pdf.CellFormat(45, 6, part.Day.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, string(part.Kind), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, string(part.Strategy), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, part.Reason, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a workbook with summary, entities and partitions sheets.
func BuildReportXLSX(res *oeeapp.MetricsResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	summarySheet := "summary"
	entitiesSheet := "entities"
	partitionsSheet := "partitions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(entitiesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(partitionsSheet); err != nil {
		return nil, err
	}

	fleet := res.Fleet.Metrics.Percent()
	summary := [][]any{
		{"OEE Report"},
		{},
		{"Query", res.QueryID},
		{"Entity type", string(res.EntityType)},
		{"Start", formatTime(res.Window.Start)},
		{"End", formatTime(res.Window.End)},
		{"Strategy", string(res.Strategy)},
		{"Plan state", string(res.State)},
		{"Degraded", res.Degraded},
		{"Fleet entities", res.Fleet.Entities},
		{"Availability %", fleet.Availability},
		{"Efficiency %", fleet.Efficiency},
		{"Throughput %", fleet.Throughput},
		{"OEE %", fleet.OEE},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	if err := setRow(f, entitiesSheet, 1, []any{
		"Entity", "Outcome", "Strategy", "Availability %", "Efficiency %", "Throughput %", "OEE %",
		"Runtime (s)", "Worked (s)", "Time credit (s)", "Valid", "Misfeed", "Fault (s)", "Error",
	}); err != nil {
		return nil, err
	}
	for i, entity := range res.Entities {
		m := entity.Metrics.Percent()
		errText := ""
		if entity.Err != nil {
			errText = entity.Err.Error()
		}
		if err := setRow(f, entitiesSheet, i+2, []any{
			string(entity.EntityRef), string(entity.Outcome), string(entity.Strategy),
			m.Availability, m.Efficiency, m.Throughput, m.OEE,
			entity.Totals.RuntimeSec, entity.Totals.WorkedTimeSec, entity.Totals.TimeCreditSec,
			entity.Totals.ValidCount, entity.Totals.MisfeedCount, entity.Totals.FaultTimeSec, errText,
		}); err != nil {
			return nil, err
		}
	}

	if err := setRow(f, partitionsSheet, 1, []any{"Day", "Start", "End", "Kind", "Strategy", "Reason"}); err != nil {
		return nil, err
	}
	for i, part := range res.Partitions {
		if err := setRow(f, partitionsSheet, i+2, []any{
			part.Day.String(), formatTime(part.Start), formatTime(part.End),
			string(part.Kind), string(part.Strategy), part.Reason,
		}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
