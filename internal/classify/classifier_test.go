package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/domain"
)

func catalog() []domain.ActivityName {
	return []domain.ActivityName{
		{ID: "a1", Name: "Maintenance", Keywords: "repair, fixed ,Aircon", Active: true},
		{ID: "a2", Name: "Budget", Keywords: "budget,procurement", Active: true},
		{ID: "a3", Name: "Electrical", Keywords: "wiring, repair", Active: true},
		{ID: "a4", Name: "Retired", Keywords: "wiring", Active: false},
		{ID: "a5", Name: domain.FallbackActivity, Active: true},
	}
}

func TestClassifyFirstMatchInCatalogOrder(t *testing.T) {
	c, err := New(catalog())
	require.NoError(t, err)

	require.Equal(t, "Budget", c.Classify("approved the budget request").Name)
	// "repair" is shared; Maintenance comes first in catalog order.
	require.Equal(t, "Maintenance", c.Classify("Repair of the generator").Name)
	require.Equal(t, "Electrical", c.Classify("new WIRING for hall").Name)
}

func TestClassifyFallsBackToMiscellaneous(t *testing.T) {
	c, err := New(catalog())
	require.NoError(t, err)

	for _, desc := range []string{"", "   ", "planted trees", "inventory of chairs"} {
		got := c.Classify(desc)
		require.Equal(t, domain.FallbackActivity, got.Name, "description %q", desc)
		require.Contains(t, catalog(), got)
	}
}

func TestClassifySkipsInactiveEntries(t *testing.T) {
	activities := []domain.ActivityName{
		{ID: "a4", Name: "Retired", Keywords: "wiring", Active: false},
		{ID: "a5", Name: domain.FallbackActivity, Active: true},
	}
	c, err := New(activities)
	require.NoError(t, err)
	require.Equal(t, domain.FallbackActivity, c.Classify("wiring").Name)
}

func TestNewRequiresFallback(t *testing.T) {
	_, err := New([]domain.ActivityName{{Name: "Budget", Keywords: "budget", Active: true}})
	require.True(t, errors.Is(err, domain.ErrMissingFallback))
}

func TestClassifyIsDeterministic(t *testing.T) {
	first, err := New(catalog())
	require.NoError(t, err)
	second, err := New(catalog())
	require.NoError(t, err)

	for _, desc := range []string{"fixed the wiring and the budget", "AC repair", "misc"} {
		require.Equal(t, first.Classify(desc), second.Classify(desc))
		require.Equal(t, first.Classify(desc), first.Classify(desc))
	}
}

func TestClassifyRequestNotesWinWhenPresent(t *testing.T) {
	c, err := New(catalog())
	require.NoError(t, err)

	req := &domain.RequestRecord{
		Description: "budget follow-up",
		Notes:       []string{"replaced", "wiring in room 2"},
	}
	require.Equal(t, "Electrical", c.ClassifyRequest(req).Name)

	req.Notes = []string{"visited site"}
	require.Equal(t, domain.FallbackActivity, c.ClassifyRequest(req).Name)

	req.Notes = []string{"  "}
	require.Equal(t, "Budget", c.ClassifyRequest(req).Name)

	req.Notes = nil
	require.Equal(t, "Budget", c.ClassifyRequest(req).Name)
}

func TestResolveUsesStoredActivityName(t *testing.T) {
	c, err := New(catalog())
	require.NoError(t, err)

	stored := &domain.AccomplishmentRecord{ActivityName: "Budget", Description: "fixed AC"}
	require.Equal(t, "Budget", c.Resolve(stored))

	derived := &domain.AccomplishmentRecord{Description: "fixed AC"}
	require.Equal(t, "Maintenance", c.Resolve(derived))

	req := &domain.RequestRecord{Description: "no keywords here"}
	require.Equal(t, domain.FallbackActivity, c.Resolve(req))
}
