package personnel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/persistence/memory"
)

func seedDirectory(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	unit, err := store.SaveUnit(ctx, domain.Unit{Name: "Repair"})
	require.NoError(t, err)
	for _, p := range []domain.Person{
		{ID: "p1", Username: "jdelacruz", FirstName: "Juan", LastName: "Dela Cruz", UnitID: unit.ID, Role: domain.RolePersonnel, Active: true},
		{ID: "p2", Username: "mreyes", FirstName: "Maria", LastName: "Reyes", UnitID: unit.ID, Role: domain.RolePersonnel, Active: true},
		{ID: "p3", Username: "msantos", FirstName: "Mario", LastName: "Santos", UnitID: unit.ID, Role: domain.RolePersonnel, Active: true},
	} {
		_, err := store.SavePerson(ctx, p)
		require.NoError(t, err)
	}
	return store
}

func TestResolveStrategies(t *testing.T) {
	r := NewResolver(seedDirectory(t))
	ctx := context.Background()

	cases := map[string]string{
		"JDELACRUZ":    "p1",
		"Maria Reyes":  "p2",
		"maria  reyes": "p2",
		"santos":       "p3",
		"Cruz":         "p1",
	}
	for identifier, want := range cases {
		got, err := r.Resolve(ctx, identifier)
		require.NoError(t, err, identifier)
		require.Equal(t, want, got.ID, identifier)
	}
}

func TestResolveAmbiguousPartTakesFirst(t *testing.T) {
	r := NewResolver(seedDirectory(t))
	// "mar" is contained in both Maria and Mario; directory order decides.
	got, err := r.Resolve(context.Background(), "mar")
	require.NoError(t, err)
	require.Equal(t, "p2", got.ID)
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(seedDirectory(t))
	_, err := r.Resolve(context.Background(), "nobody")
	require.True(t, errors.Is(err, domain.ErrPersonNotResolved))

	_, err = r.Resolve(context.Background(), "  ")
	require.True(t, errors.Is(err, domain.ErrPersonNotResolved))
}

func TestResolveAllSkipsAndDedupes(t *testing.T) {
	r := NewResolver(seedDirectory(t))
	people, skipped, err := r.ResolveAll(context.Background(), []string{"mreyes", "ghost", "Maria Reyes", "jdelacruz"})
	require.NoError(t, err)
	require.Equal(t, []string{"ghost"}, skipped)
	require.Len(t, people, 2)
	require.Equal(t, "p2", people[0].ID)
	require.Equal(t, "p1", people[1].ID)
}

func TestResolveWithCustomStrategies(t *testing.T) {
	r := NewResolver(seedDirectory(t), WithStrategies(DefaultStrategies[0]))
	_, err := r.Resolve(context.Background(), "santos")
	require.True(t, errors.Is(err, domain.ErrPersonNotResolved))
}

func TestSplitListAndContainsAll(t *testing.T) {
	require.Equal(t, []string{"a", "b c"}, SplitList(" a, ,b c ,"))
	require.True(t, ContainsAll([]string{"x", " ALL "}))
	require.False(t, ContainsAll([]string{"alla"}))
}

func TestListOrdersAndLabelsUnits(t *testing.T) {
	ctx := context.Background()
	store := seedDirectory(t)
	_, err := store.SavePerson(ctx, domain.Person{ID: "p4", Username: "floater", FirstName: "Ana", Role: domain.RolePersonnel, Active: true})
	require.NoError(t, err)
	_, err = store.SavePerson(ctx, domain.Person{ID: "p5", Username: "boss", FirstName: "Ben", Role: "director", Active: true})
	require.NoError(t, err)

	entries, err := List(ctx, store)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, Entry{ID: "p4", DisplayName: "Ana", Username: "floater", Unit: "unassigned"}, entries[0])
	require.Equal(t, "Juan Dela Cruz", entries[1].DisplayName)
	require.Equal(t, "repair", entries[1].Unit)
}
