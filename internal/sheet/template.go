package sheet

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"example.com/ipmt/internal/domain"
)

// Fixed cells of the organizational IPMT template.
const (
	PersonnelCell = "B8"
	MonthCell     = "B11"
	FirstRow      = 13
)

// NoPersonnel fills the personnel cell when no name is given.
const NoPersonnel = "No personnel found"

// TemplateData is what the template variant writes.
type TemplateData struct {
	Personnel  []string
	MonthLabel string
	Lines      []Line
}

// TemplateCompiler fills the IPMT template file. Only the personnel cell,
// the month cell and the row cells are written; everything else in the
// workbook is left as loaded.
type TemplateCompiler struct {
	path string
}

// NewTemplateCompiler returns a compiler for the template at path.
func NewTemplateCompiler(path string) *TemplateCompiler {
	return &TemplateCompiler{path: path}
}

// Path is the template location.
func (c *TemplateCompiler) Path() string {
	return c.path
}

// Compile renders data into a copy of the template and writes it to w.
func (c *TemplateCompiler) Compile(w io.Writer, data TemplateData) error {
	if _, err := os.Stat(c.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrTemplateMissing, c.path)
		}
		return fmt.Errorf("stat template: %w", err)
	}
	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrTemplateMissing, c.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := Fill(f, sheet, data); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Fill writes data into sheet of an open workbook.
func Fill(f *excelize.File, sheet string, data TemplateData) error {
	personnel := NoPersonnel
	if names := nonBlank(data.Personnel); len(names) > 0 {
		personnel = strings.Join(names, ", ")
	}
	if err := f.SetCellStr(sheet, PersonnelCell, personnel); err != nil {
		return fmt.Errorf("write %s: %w", PersonnelCell, err)
	}
	if err := f.SetCellStr(sheet, MonthCell, data.MonthLabel); err != nil {
		return fmt.Errorf("write %s: %w", MonthCell, err)
	}
	for i, line := range data.Lines {
		if err := writeLine(f, sheet, FirstRow+i, line); err != nil {
			return err
		}
	}
	return nil
}

// NewTemplate builds a blank starter template with the labels around the
// fixed cells, for installations without the organizational file.
func NewTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, "IPMT"); err != nil {
		return err
	}
	sheet = "IPMT"
	labels := map[string]string{
		"A1":  "INDIVIDUAL PERFORMANCE MONITORING TOOL",
		"A8":  "Name of Personnel:",
		"A11": "Month:",
		"A12": "Success Indicator",
		"B12": "Actual Accomplishment",
		"C12": "Remarks",
	}
	for cell, value := range labels {
		if err := f.SetCellStr(sheet, cell, value); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A12", "C12", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "C", 45); err != nil {
		return err
	}
	return f.Write(w)
}

func writeLine(f *excelize.File, sheet string, row int, line Line) error {
	for col, value := range []string{line.Indicator, line.Description, line.Remarks} {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, value); err != nil {
			return fmt.Errorf("write %s: %w", cell, err)
		}
	}
	return nil
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
