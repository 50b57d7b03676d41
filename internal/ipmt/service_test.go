package ipmt

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/ipmt/internal/aggregate"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/fixture"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/sheet"
)

func newService(t *testing.T, env *fixture.Env, opts ...Option) *Service {
	t.Helper()
	agg := aggregate.New(env.Store, nil)

	var buf bytes.Buffer
	require.NoError(t, sheet.NewTemplate(&buf))
	path := filepath.Join(t.TempDir(), "sampleipmt.xlsx")
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	return NewService(env.Store, agg, sheet.NewTemplateCompiler(path), opts...)
}

func listRows(t *testing.T, env *fixture.Env) []domain.IPMTRow {
	t.Helper()
	rows, err := env.Store.ListRows(context.Background(), domain.IPMTFilter{})
	require.NoError(t, err)
	return rows
}

func TestUpsertReplacesByIdentity(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)
	ctx := context.Background()
	in := UpsertInput{
		Person:         env.People["jane"],
		Unit:           env.Unit,
		MonthLabel:     "March 2025",
		IndicatorCode:  "CF1",
		Accomplishment: "X",
	}

	_, err := svc.Upsert(ctx, in)
	require.NoError(t, err)
	in.Accomplishment = "Y"
	_, err = svc.Upsert(ctx, in)
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, in)
	require.NoError(t, err)

	rows := listRows(t, env)
	require.Len(t, rows, 1)
	require.Equal(t, "Y", rows[0].Accomplishment)
	require.Equal(t, "Y", rows[0].Remarks)
	require.Equal(t, "CF1", rows[0].IndicatorCode)
}

func TestUpsertKeepsExplicitRemarks(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	row, err := svc.Upsert(context.Background(), UpsertInput{
		Person: env.People["jane"], Unit: env.Unit, MonthLabel: "March 2025",
		IndicatorCode: "CF1", Accomplishment: "Fixed AC", Remarks: "Done ahead of schedule",
	})
	require.NoError(t, err)
	require.Equal(t, "Done ahead of schedule", row.Remarks)
}

func TestUpsertLinksMatchingRecords(t *testing.T) {
	env := fixture.New(t)
	env.Accomplishment(t, "war-1", "Maintenance", "Fixed AC", fixture.Day(3), "jane")
	env.Accomplishment(t, "war-2", "Maintenance", "Fixed door", fixture.Day(8), "jane")
	env.Accomplishment(t, "war-3", "Electrical", "New wiring", fixture.Day(9), "jane")
	env.Accomplishment(t, "war-4", "Maintenance", "Fixed sink", fixture.Day(9), "mark")
	svc := newService(t, env)
	ctx := context.Background()
	in := UpsertInput{Person: env.People["jane"], Unit: env.Unit, MonthLabel: "March 2025", IndicatorCode: "CF1", Accomplishment: "Repairs"}

	row, err := svc.Upsert(ctx, in)
	require.NoError(t, err)
	require.Equal(t, []string{"war-1", "war-2"}, row.RecordIDs)

	in.RecordIDs = []string{"war-2", "war-3", "war-4", "missing"}
	row, err = svc.Upsert(ctx, in)
	require.NoError(t, err)
	require.Equal(t, []string{"war-2"}, row.RecordIDs)
	require.Len(t, listRows(t, env), 1)
}

func TestUpsertCreatesMissingIndicator(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)
	ctx := context.Background()

	row, err := svc.Upsert(ctx, UpsertInput{
		Person: env.People["jane"], Unit: env.Unit, MonthLabel: "March 2025",
		IndicatorCode: "ADHOC", Accomplishment: "Inventory",
	})
	require.NoError(t, err)
	require.Equal(t, "ADHOC", row.IndicatorCode)

	created, err := env.Store.FindIndicatorByCode(ctx, env.Unit.ID, "ADHOC")
	require.NoError(t, err)
	require.NotNil(t, created)
	require.True(t, created.Active)
	require.Equal(t, "ADHOC", created.Description)
}

func TestUpsertWithoutIndicatorCreation(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env, WithCreateMissingIndicators(false))

	_, err := svc.Upsert(context.Background(), UpsertInput{
		Person: env.People["jane"], Unit: env.Unit, MonthLabel: "March 2025",
		IndicatorCode: "ADHOC", Accomplishment: "Inventory",
	})
	require.True(t, errors.Is(err, domain.ErrIndicatorNotFound))
	require.Empty(t, listRows(t, env))
}

func TestSave(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	result, err := svc.Save(context.Background(), SaveRequest{
		Month:     "2025-03",
		Unit:      "Engineering",
		Personnel: []string{"jane", "ghost", "Mark Santos"},
		Rows: []RowInput{
			{Indicator: "CF1 - Facilities maintained", Description: "Fixed AC"},
			{Indicator: "CF2", Description: "New wiring", Remarks: "ok"},
			{Indicator: ""},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ghost"}, result.Unresolved)
	require.Len(t, result.Rows, 4)
	for _, row := range result.Rows {
		require.Equal(t, "March 2025", row.Month)
	}

	rows, err := svc.ListRows(context.Background(), RowQuery{Personnel: "jane", Unit: "engineering", Month: "March 2025"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "CF1", rows[0].IndicatorCode)
	require.Equal(t, "Fixed AC", rows[0].Remarks)
	require.Equal(t, "ok", rows[1].Remarks)
}

func TestSaveWithoutPersonnelWritesNothing(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	result, err := svc.Save(context.Background(), SaveRequest{
		Month: "2025-03", Unit: "Engineering",
		Rows: []RowInput{{Indicator: "CF1", Description: "X"}},
	})
	require.NoError(t, err)
	require.Empty(t, result.Rows)
	require.Empty(t, listRows(t, env))

	result, err = svc.Save(context.Background(), SaveRequest{
		Month: "2025-03", Unit: "Engineering", Personnel: []string{"all"},
		Rows: []RowInput{{Indicator: "CF1", Description: "X"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
}

func TestSaveUnknownUnitWritesNothing(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	_, err := svc.Save(context.Background(), SaveRequest{
		Month: "2025-03", Unit: "Nowhere", Personnel: []string{"jane"},
		Rows: []RowInput{{Indicator: "CF1", Description: "x"}},
	})
	require.True(t, errors.Is(err, domain.ErrUnitNotFound))
	require.Empty(t, listRows(t, env))
}

func TestPreviewRejectsMalformedMonth(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	_, err := svc.Preview(context.Background(), "March 2025", "Engineering", nil)
	require.True(t, errors.Is(err, domain.ErrMalformedMonth))

	result, err := svc.Preview(context.Background(), "2025-03", "Engineering", nil)
	require.NoError(t, err)
	require.Equal(t, 6, result.RowCount())
}

func readCell(t *testing.T, data []byte, sheetName, ref string) string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheetName, ref)
	require.NoError(t, err)
	return v
}

func TestExportTemplatePrefersSavedRows(t *testing.T) {
	env := fixture.New(t)
	env.Accomplishment(t, "war-1", "Maintenance", "Fixed AC units", fixture.Day(10), "jane", "mark")
	svc := newService(t, env)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{
		Person: env.People["jane"], Unit: env.Unit, MonthLabel: "March 2025",
		IndicatorCode: "CF2", Accomplishment: "Saved text",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	name, err := svc.ExportTemplate(ctx, &out, ExportRequest{
		Month: "2025-03", Unit: "Engineering", Personnel: []string{"jane", "Mark Santos", "Ghost Writer"},
	})
	require.NoError(t, err)
	require.Equal(t, "IPMT_Engineering_2025-03.xlsx", name)

	data := out.Bytes()
	require.Equal(t, "Jane Cruz, Mark Santos, Ghost Writer", readCell(t, data, "IPMT", "B8"))
	require.Equal(t, "March 2025", readCell(t, data, "IPMT", "B11"))
	// Jane has one saved row; Mark falls back to aggregation (two rows).
	require.Equal(t, "CF2 - Electrical works done", readCell(t, data, "IPMT", "A13"))
	require.Equal(t, "Saved text", readCell(t, data, "IPMT", "B13"))
	require.Equal(t, "CF1 - Facilities maintained", readCell(t, data, "IPMT", "A14"))
	require.Equal(t, "Fixed AC units", readCell(t, data, "IPMT", "B14"))
	require.Equal(t, "CF2 - Electrical works done", readCell(t, data, "IPMT", "A15"))
	require.Empty(t, readCell(t, data, "IPMT", "A16"))
}

func TestExportTemplateSurfacesDirectoryFailure(t *testing.T) {
	env := fixture.New(t)
	broken := personnel.NewResolver(env.Store, personnel.WithStrategies(personnel.Strategy{
		Name: "broken",
		Lookup: func(context.Context, personnel.Directory, string) (*domain.Person, error) {
			return nil, errors.New("connection reset")
		},
	}))
	agg := aggregate.New(env.Store, nil, aggregate.WithResolver(broken))
	base := newService(t, env)
	svc := NewService(env.Store, agg, base.template)

	_, err := svc.ExportTemplate(context.Background(), &bytes.Buffer{}, ExportRequest{
		Month: "2025-03", Unit: "Engineering", Personnel: []string{"jane"},
	})
	require.ErrorContains(t, err, "connection reset")
}

func TestExportTemplateWithEditedRows(t *testing.T) {
	env := fixture.New(t)
	svc := newService(t, env)

	var out bytes.Buffer
	_, err := svc.ExportTemplate(context.Background(), &out, ExportRequest{
		Month: "March 2025", Unit: "Engineering", Personnel: []string{"lia"},
		Rows: []RowInput{{Indicator: "CF2", Description: "Edited", Remarks: "R"}, {Indicator: "XYZ", Description: "Other"}},
	})
	require.NoError(t, err)
	data := out.Bytes()
	require.Equal(t, "CF2 - Electrical works done", readCell(t, data, "IPMT", "A13"))
	require.Equal(t, "R", readCell(t, data, "IPMT", "C13"))
	require.Equal(t, "XYZ", readCell(t, data, "IPMT", "A14"))
}

func TestExportBatch(t *testing.T) {
	env := fixture.New(t)
	env.Accomplishment(t, "war-1", "Maintenance", "Fixed AC units", fixture.Day(10), "mark")
	env.Accomplishment(t, "war-2", "Electrical", "New wiring", fixture.Day(11), "jane")
	env.Accomplishment(t, "war-old", "Electrical", "Old wiring", time.Date(2025, time.February, 11, 0, 0, 0, 0, time.UTC), "lia")
	svc := newService(t, env)

	var out bytes.Buffer
	require.NoError(t, svc.ExportBatch(context.Background(), &out, "2025-03", "all", nil))

	f, err := excelize.OpenReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"Jane Cruz", "Mark Santos"}, f.GetSheetList())

	v, err := f.GetCellValue("Mark Santos", "B2")
	require.NoError(t, err)
	require.Equal(t, "Fixed AC units", v)
	v, err = f.GetCellValue("Jane Cruz", "E3")
	require.NoError(t, err)
	require.Equal(t, "Unit: Engineering", v)

	err = svc.ExportBatch(context.Background(), &bytes.Buffer{}, "2025/03", "all", nil)
	require.True(t, errors.Is(err, domain.ErrMalformedMonth))
}
