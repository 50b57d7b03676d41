// Package fixture seeds an in-memory store with a small Engineering unit for
// tests across packages.
package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/persistence/memory"
)

// Env is a seeded store plus handles on the seeded entities.
type Env struct {
	Store      *memory.Store
	Unit       domain.Unit
	OtherUnit  domain.Unit
	Activities map[string]domain.ActivityName
	Indicators map[string]domain.SuccessIndicator
	People     map[string]domain.Person
}

// March2025 is the month most fixtures fall in.
var March2025 = domain.Month{Year: 2025, Month: time.March}

// New seeds the Engineering unit: activities Maintenance, Electrical and
// Miscellaneous; indicators CF1 (Maintenance) and CF2 (Electrical); active
// personnel jane, mark and lia; an inactive user old.
func New(t testing.TB) *Env {
	t.Helper()
	ctx := context.Background()
	env := &Env{
		Store:      memory.New(),
		Activities: map[string]domain.ActivityName{},
		Indicators: map[string]domain.SuccessIndicator{},
		People:     map[string]domain.Person{},
	}
	var err error
	env.Unit, err = env.Store.SaveUnit(ctx, domain.Unit{ID: "unit-eng", Name: "Engineering"})
	require.NoError(t, err)
	env.OtherUnit, err = env.Store.SaveUnit(ctx, domain.Unit{ID: "unit-ground", Name: "Grounds"})
	require.NoError(t, err)

	for _, a := range []domain.ActivityName{
		{ID: "act-maint", Name: "Maintenance", Keywords: "repair, fixed, aircon", Active: true},
		{ID: "act-elec", Name: "Electrical", Keywords: "wiring, outlet", Active: true},
		{ID: "act-misc", Name: domain.FallbackActivity, Active: true},
	} {
		saved, err := env.Store.SaveActivity(ctx, a)
		require.NoError(t, err)
		env.Activities[saved.Name] = saved
	}

	for _, ind := range []domain.SuccessIndicator{
		{ID: "ind-cf1", UnitID: env.Unit.ID, Code: "CF1", Description: "Facilities maintained", ActivityID: "act-maint", Active: true},
		{ID: "ind-cf2", UnitID: env.Unit.ID, Code: "CF2", Description: "Electrical works done", ActivityID: "act-elec", Active: true},
		{ID: "ind-old", UnitID: env.Unit.ID, Code: "OLD", Description: "Retired indicator", Active: false},
		{ID: "ind-g1", UnitID: env.OtherUnit.ID, Code: "G1", Description: "Grounds kept", ActivityID: "act-maint", Active: true},
	} {
		saved, err := env.Store.SaveIndicator(ctx, ind)
		require.NoError(t, err)
		env.Indicators[saved.Code] = saved
	}

	for _, p := range []domain.Person{
		{ID: "p-jane", Username: "jane", FirstName: "Jane", LastName: "Cruz", UnitID: env.Unit.ID, Role: domain.RolePersonnel, Active: true},
		{ID: "p-mark", Username: "mark", FirstName: "Mark", LastName: "Santos", UnitID: env.Unit.ID, Role: domain.RolePersonnel, Active: true},
		{ID: "p-lia", Username: "lia", FirstName: "Lia", LastName: "Reyes", UnitID: env.Unit.ID, Role: domain.RolePersonnel, Active: true},
		{ID: "p-old", Username: "old", FirstName: "Olga", LastName: "Dizon", UnitID: env.Unit.ID, Role: domain.RolePersonnel, Active: false},
		{ID: "p-gus", Username: "gus", FirstName: "Gus", LastName: "Tan", UnitID: env.OtherUnit.ID, Role: domain.RolePersonnel, Active: true},
	} {
		saved, err := env.Store.SavePerson(ctx, p)
		require.NoError(t, err)
		env.People[saved.Username] = saved
	}
	return env
}

// Accomplishment stores an accomplishment record for the Engineering unit.
func (e *Env) Accomplishment(t testing.TB, id, activity, description string, day time.Time, usernames ...string) *domain.AccomplishmentRecord {
	t.Helper()
	unit := e.Unit
	rec := &domain.AccomplishmentRecord{
		ID:           id,
		Unit:         &unit,
		Personnel:    e.people(usernames),
		DateStarted:  day,
		ActivityName: activity,
		Description:  description,
	}
	require.NoError(t, e.Store.SaveAccomplishment(context.Background(), rec))
	return rec
}

// Request stores a request for the Engineering unit.
func (e *Env) Request(t testing.TB, id, description string, status domain.Status, created time.Time, usernames ...string) *domain.RequestRecord {
	t.Helper()
	unit := e.Unit
	rec := &domain.RequestRecord{
		ID:          id,
		Description: description,
		Unit:        &unit,
		Personnel:   e.people(usernames),
		CreatedAt:   created,
		Status:      status,
	}
	require.NoError(t, e.Store.SaveRequest(context.Background(), rec))
	return rec
}

func (e *Env) people(usernames []string) []domain.Person {
	out := make([]domain.Person, 0, len(usernames))
	for _, u := range usernames {
		out = append(out, e.People[u])
	}
	return out
}

// Day returns a March 2025 date.
func Day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}
