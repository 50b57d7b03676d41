package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/classify"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/persistence/memory"
)

const seed = `
units: [Engineering]
personnel:
  - username: jane
    first_name: Jane
    last_name: Cruz
    unit: Engineering
  - username: dir
    first_name: Dana
    last_name: Lim
    role: director
activities:
  - name: Maintenance
    keywords: [repair, fixed]
  - name: Budget
    keywords: [budget]
    active: false
indicators:
  - unit: Engineering
    code: CF1
    description: Facilities maintained
    activity: Maintenance
  - unit: Grounds
    code: G1
    description: Grounds kept
`

func TestApplySeedsStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	doc, err := Parse(strings.NewReader(seed))
	require.NoError(t, err)

	sum, err := Apply(ctx, store, doc, nil)
	require.NoError(t, err)
	require.Equal(t, Summary{Units: 1, Personnel: 2, Activities: 3, Indicators: 2}, sum)

	activities, err := store.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	require.Equal(t, "repair, fixed", activities[0].Keywords)
	require.False(t, activities[1].Active)
	require.Equal(t, domain.FallbackActivity, activities[2].Name)

	eng, err := store.FindUnitByName(ctx, "engineering")
	require.NoError(t, err)
	cf1, err := store.FindIndicatorByCode(ctx, eng.ID, "CF1")
	require.NoError(t, err)
	require.Equal(t, "Maintenance", cf1.ActivityName)

	grounds, err := store.FindUnitByName(ctx, "Grounds")
	require.NoError(t, err)
	require.NotNil(t, grounds)

	people, err := store.ListActivePersonnel(ctx, "")
	require.NoError(t, err)
	require.Len(t, people, 1)
	require.Equal(t, "Engineering", people[0].UnitName)

	c, err := classify.Load(ctx, store)
	require.NoError(t, err)
	require.Equal(t, "Maintenance", c.Classify("fixed the door").Name)
}

func TestApplyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	doc, err := Parse(strings.NewReader(seed))
	require.NoError(t, err)

	_, err = Apply(ctx, store, doc, nil)
	require.NoError(t, err)
	_, err = Apply(ctx, store, doc, nil)
	require.NoError(t, err)

	activities, err := store.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	indicators, err := store.ListIndicators(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, indicators, 2)
	jane, err := store.FindPersonByUsername(ctx, "jane")
	require.NoError(t, err)
	require.NotNil(t, jane)
}

func TestApplyUnknownActivity(t *testing.T) {
	doc := &Document{Indicators: []Indicator{{Unit: "Engineering", Code: "X", Activity: "Nope"}}}
	_, err := Apply(context.Background(), memory.New(), doc, nil)
	require.ErrorContains(t, err, "unknown activity")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("unitz: [a]\n"))
	require.Error(t, err)

	doc, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, doc.Units)
}

func TestEnsureFallbackOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	created, err := EnsureFallback(ctx, store)
	require.NoError(t, err)
	require.True(t, created)
	created, err = EnsureFallback(ctx, store)
	require.NoError(t, err)
	require.False(t, created)
}
