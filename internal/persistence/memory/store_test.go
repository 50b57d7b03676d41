package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/fixture"
	"example.com/ipmt/internal/persistence/memory"
)

func TestUpsertRowKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))
	unit, err := store.SaveUnit(ctx, domain.Unit{Name: "Engineering"})
	require.NoError(t, err)
	person, err := store.SavePerson(ctx, domain.Person{Username: "jane", UnitID: unit.ID, Role: domain.RolePersonnel, Active: true})
	require.NoError(t, err)
	ind, err := store.SaveIndicator(ctx, domain.SuccessIndicator{UnitID: unit.ID, Code: "CF1", Description: "Facilities maintained", Active: true})
	require.NoError(t, err)

	row := domain.IPMTRow{PersonnelID: person.ID, UnitID: unit.ID, Month: "March 2025", IndicatorID: ind.ID,
		Accomplishment: "first", RecordIDs: []string{"war-1", "war-1", ""}}
	first, err := store.UpsertRow(ctx, row)
	require.NoError(t, err)
	require.Equal(t, []string{"war-1"}, first.RecordIDs)
	require.Equal(t, "CF1", first.IndicatorCode)
	require.Equal(t, first.CreatedAt, first.UpdatedAt)

	row.Accomplishment = "second"
	row.RecordIDs = []string{"war-2"}
	second, err := store.UpsertRow(ctx, row)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))

	rows, err := store.ListRows(ctx, domain.IPMTFilter{PersonnelID: person.ID, Month: "March 2025"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "second", rows[0].Accomplishment)
	require.Equal(t, []string{"war-2"}, rows[0].RecordIDs)
}

func TestUpsertRowValidatesReferences(t *testing.T) {
	ctx := context.Background()
	env := fixture.New(t)
	person := env.People["jane"]

	_, err := env.Store.UpsertRow(ctx, domain.IPMTRow{PersonnelID: person.ID, UnitID: "nope", IndicatorID: "ind-cf1", Month: "March 2025"})
	require.ErrorIs(t, err, domain.ErrUnitNotFound)

	_, err = env.Store.UpsertRow(ctx, domain.IPMTRow{PersonnelID: person.ID, UnitID: env.Unit.ID, IndicatorID: "nope", Month: "March 2025"})
	require.ErrorIs(t, err, domain.ErrIndicatorNotFound)

	rows, err := env.Store.ListRows(ctx, domain.IPMTFilter{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestListRowsFollowsCatalogOrder(t *testing.T) {
	ctx := context.Background()
	env := fixture.New(t)
	person := env.People["jane"]
	for _, code := range []string{"CF2", "CF1"} {
		_, err := env.Store.UpsertRow(ctx, domain.IPMTRow{
			PersonnelID: person.ID, UnitID: env.Unit.ID, Month: "March 2025", IndicatorID: env.Indicators[code].ID,
		})
		require.NoError(t, err)
	}
	rows, err := env.Store.ListRows(ctx, domain.IPMTFilter{UnitID: env.Unit.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "CF1", rows[0].IndicatorCode)
	require.Equal(t, "CF2", rows[1].IndicatorCode)
}

func TestRecordsFilterByMonthAndPerson(t *testing.T) {
	ctx := context.Background()
	env := fixture.New(t)
	env.Accomplishment(t, "war-mar", "Maintenance", "Fixed door", fixture.Day(31), "jane")
	env.Accomplishment(t, "war-apr", "Maintenance", "Fixed window", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "jane")
	env.Request(t, "req-mar", "Broken lock", domain.StatusCompleted, fixture.Day(2), "mark")

	month := fixture.March2025
	wars, err := env.Store.ListAccomplishments(ctx, domain.RecordFilter{UnitID: env.Unit.ID, Month: &month})
	require.NoError(t, err)
	require.Len(t, wars, 1)
	require.Equal(t, "war-mar", wars[0].ID)
	require.Equal(t, "Engineering", wars[0].Unit.Name)

	reqs, err := env.Store.ListRequests(ctx, domain.RecordFilter{PersonnelID: env.People["mark"].ID, Month: &month, Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	reqs, err = env.Store.ListRequests(ctx, domain.RecordFilter{PersonnelID: env.People["jane"].ID})
	require.NoError(t, err)
	require.Empty(t, reqs)
}

func TestSaveAccomplishmentRules(t *testing.T) {
	ctx := context.Background()
	env := fixture.New(t)
	unit := env.Unit

	rec := &domain.AccomplishmentRecord{ID: "war-1", Unit: &unit, DateStarted: fixture.Day(1), MaterialCost: 10, LaborCost: 5, ControlNumber: "CN-1"}
	require.NoError(t, env.Store.SaveAccomplishment(ctx, rec))
	require.Equal(t, domain.StatusCompleted, rec.Status)
	require.InDelta(t, 15, rec.TotalCost, 0.001)

	dup := &domain.AccomplishmentRecord{ID: "war-2", Unit: &unit, DateStarted: fixture.Day(1), ControlNumber: "CN-1"}
	require.Error(t, env.Store.SaveAccomplishment(ctx, dup))
	require.Error(t, env.Store.SaveAccomplishment(ctx, &domain.AccomplishmentRecord{ID: "war-3"}))

	missing, err := env.Store.GetRecord(ctx, "war-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListActivePersonnelSkipsInactive(t *testing.T) {
	env := fixture.New(t)
	people, err := env.Store.ListActivePersonnel(context.Background(), env.Unit.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Username)
	}
	require.Equal(t, []string{"jane", "lia", "mark"}, names)
}
