package sheet

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/ipmt/internal/domain"
)

func writeTemplate(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewTemplate(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr("IPMT", "D20", "keep me"))
	_, err = f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr("Notes", "A1", "untouched"))

	path := filepath.Join(t.TempDir(), "sampleipmt.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	require.NoError(t, err)
	return v
}

func TestTemplateCompilerWritesFixedCells(t *testing.T) {
	compiler := NewTemplateCompiler(writeTemplate(t))
	var out bytes.Buffer
	err := compiler.Compile(&out, TemplateData{
		Personnel:  []string{"Jane Cruz", " ", "Mark Santos"},
		MonthLabel: "March 2025",
		Lines: []Line{
			{Indicator: "CF1 - Facilities maintained", Description: "Fixed AC units", Remarks: "Fixed AC units"},
			{Indicator: "CF2 - Electrical works done"},
		},
	})
	require.NoError(t, err)

	f := openWorkbook(t, out.Bytes())
	require.Equal(t, "Jane Cruz, Mark Santos", cell(t, f, "IPMT", "B8"))
	require.Equal(t, "March 2025", cell(t, f, "IPMT", "B11"))
	require.Equal(t, "CF1 - Facilities maintained", cell(t, f, "IPMT", "A13"))
	require.Equal(t, "Fixed AC units", cell(t, f, "IPMT", "B13"))
	require.Equal(t, "Fixed AC units", cell(t, f, "IPMT", "C13"))
	require.Equal(t, "CF2 - Electrical works done", cell(t, f, "IPMT", "A14"))
	require.Empty(t, cell(t, f, "IPMT", "A15"))

	require.Equal(t, "Success Indicator", cell(t, f, "IPMT", "A12"))
	require.Equal(t, "keep me", cell(t, f, "IPMT", "D20"))
	require.Equal(t, "untouched", cell(t, f, "Notes", "A1"))
	require.Equal(t, []string{"IPMT", "Notes"}, f.GetSheetList())
}

func TestTemplateCompilerWithoutPersonnel(t *testing.T) {
	compiler := NewTemplateCompiler(writeTemplate(t))
	var out bytes.Buffer
	require.NoError(t, compiler.Compile(&out, TemplateData{MonthLabel: "April 2025"}))

	f := openWorkbook(t, out.Bytes())
	require.Equal(t, NoPersonnel, cell(t, f, "IPMT", "B8"))
}

func TestTemplateCompilerMissingTemplate(t *testing.T) {
	compiler := NewTemplateCompiler(filepath.Join(t.TempDir(), "missing.xlsx"))
	err := compiler.Compile(&bytes.Buffer{}, TemplateData{})
	require.True(t, errors.Is(err, domain.ErrTemplateMissing))

	garbage := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(garbage, []byte("not a workbook"), 0o600))
	err = NewTemplateCompiler(garbage).Compile(&bytes.Buffer{}, TemplateData{})
	require.True(t, errors.Is(err, domain.ErrTemplateMissing))
}

func TestCompileBatch(t *testing.T) {
	var out bytes.Buffer
	err := CompileBatch(&out, BatchData{
		MonthLabel: "March 2025",
		Sheets: []PersonSheet{
			{Name: "Jane Cruz", Unit: "Engineering", Lines: []Line{{Indicator: "CF1 - Facilities maintained", Description: "Fixed AC", Remarks: "Fixed AC"}}},
			{Name: "Mark Santos", Unit: "Engineering"},
			{Name: ""},
		},
	})
	require.NoError(t, err)

	f := openWorkbook(t, out.Bytes())
	require.Equal(t, []string{"Jane Cruz", "Mark Santos", Unassigned}, f.GetSheetList())

	require.Equal(t, "Success Indicator", cell(t, f, "Jane Cruz", "A1"))
	require.Equal(t, "Accomplishment", cell(t, f, "Jane Cruz", "B1"))
	require.Equal(t, "Remarks", cell(t, f, "Jane Cruz", "C1"))
	require.Equal(t, "Fixed AC", cell(t, f, "Jane Cruz", "B2"))
	require.Equal(t, "Month: March 2025", cell(t, f, "Jane Cruz", "E1"))
	require.Equal(t, "Personnel: Jane Cruz", cell(t, f, "Jane Cruz", "E2"))
	require.Equal(t, "Unit: Engineering", cell(t, f, "Jane Cruz", "E3"))

	require.Equal(t, "N/A", cell(t, f, "Mark Santos", "A2"))
	require.Equal(t, "No reports", cell(t, f, "Mark Santos", "B2"))
	require.Empty(t, cell(t, f, "Mark Santos", "C2"))
	require.Empty(t, cell(t, f, Unassigned, "E3"))
}

func TestSheetName(t *testing.T) {
	require.Equal(t, Unassigned, SheetName("   "))
	require.Equal(t, "Dela Cruz Juan", SheetName("Dela Cruz/Juan"))
	long := strings.Repeat("x", 40)
	require.Len(t, SheetName(long), MaxSheetName)

	used := map[string]struct{}{}
	require.Equal(t, "Jane", uniqueName("Jane", used))
	require.Equal(t, "Jane (2)", uniqueName("Jane", used))
	require.Equal(t, "jane (3)", uniqueName("jane", used))
	require.Len(t, uniqueName(strings.Repeat("y", MaxSheetName), map[string]struct{}{strings.Repeat("y", MaxSheetName): {}}), MaxSheetName)
}
