package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Column headers of a batch sheet.
var batchHeaders = []string{"Success Indicator", "Accomplishment", "Remarks"}

// placeholder is written when a person has no rows.
var placeholder = Line{Indicator: "N/A", Description: "No reports"}

// PersonSheet is the content of one worksheet in a batch export.
type PersonSheet struct {
	Name  string
	Unit  string
	Lines []Line
}

// BatchData is a multi-sheet export.
type BatchData struct {
	MonthLabel string
	Sheets     []PersonSheet
}

// CompileBatch writes one worksheet per person: a header row, the rows (or a
// placeholder row), and month, personnel and unit notes in column E.
func CompileBatch(w io.Writer, data BatchData) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(f.GetActiveSheetIndex())
	sheets := data.Sheets
	if len(sheets) == 0 {
		sheets = []PersonSheet{{}}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	used := make(map[string]struct{}, len(sheets))
	for i, ps := range sheets {
		name := uniqueName(SheetName(ps.Name), used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %q: %w", name, err)
		}
		if err := writePersonSheet(f, name, data.MonthLabel, ps, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writePersonSheet(f *excelize.File, sheet, month string, ps PersonSheet, headerStyle int) error {
	for col, header := range batchHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, header); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", headerStyle); err != nil {
		return err
	}

	lines := ps.Lines
	if len(lines) == 0 {
		lines = []Line{placeholder}
	}
	for i, line := range lines {
		if err := writeLine(f, sheet, i+2, line); err != nil {
			return err
		}
	}

	name := ps.Name
	if name == "" {
		name = Unassigned
	}
	notes := [][2]string{
		{"E1", "Month: " + month},
		{"E2", "Personnel: " + name},
	}
	if ps.Unit != "" {
		notes = append(notes, [2]string{"E3", "Unit: " + ps.Unit})
	}
	for _, note := range notes {
		if err := f.SetCellStr(sheet, note[0], note[1]); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 40)
}
