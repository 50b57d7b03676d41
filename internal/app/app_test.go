package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/ipmt/internal/config"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/persistence/memory"
	"example.com/ipmt/internal/summary"
)

const catalogYAML = `
units:
  - Engineering
activities:
  - name: Maintenance
    keywords: [repair, fixed]
indicators:
  - unit: Engineering
    code: CF1
    description: Facilities maintained
    activity: Maintenance
`

func TestBuildSeedsCatalogAndFallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o600))

	cfg := config.Config{
		CatalogFile:  catalogPath,
		TemplatePath: filepath.Join(dir, "sampleipmt.xlsx"),
		TimeZone:     "UTC",
	}
	store := memory.New()
	components, err := Build(ctx, cfg, store, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, components.Service)
	classifier, err := components.Aggregator.Classifier(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.FallbackActivity, classifier.Fallback().Name)
	require.Equal(t, "Maintenance", classifier.Classify("fixed the door").Name)

	unit, err := store.FindUnitByName(ctx, "engineering")
	require.NoError(t, err)
	require.NotNil(t, unit)
}

func TestBuildPicksUpActivitiesAddedLater(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o600))

	store := memory.New()
	components, err := Build(ctx, config.Config{CatalogFile: catalogPath, TimeZone: "UTC"}, store, zaptest.NewLogger(t))
	require.NoError(t, err)

	unit, err := store.FindUnitByName(ctx, "Engineering")
	require.NoError(t, err)
	person, err := store.SavePerson(ctx, domain.Person{ID: "p-jane", Username: "jane", FirstName: "Jane", LastName: "Cruz", UnitID: unit.ID, Role: domain.RolePersonnel, Active: true})
	require.NoError(t, err)
	require.NoError(t, store.SaveRequest(ctx, &domain.RequestRecord{
		ID:          "req-1",
		Description: "Drafted the budget for Q2",
		Unit:        unit,
		Personnel:   []domain.Person{person},
		CreatedAt:   time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC),
		Status:      domain.StatusCompleted,
	}))

	activity, err := store.SaveActivity(ctx, domain.ActivityName{Name: "Budgeting", Keywords: "budget", Active: true})
	require.NoError(t, err)
	_, err = store.SaveIndicator(ctx, domain.SuccessIndicator{UnitID: unit.ID, Code: "B1", Description: "Budget prepared", ActivityID: activity.ID, Active: true})
	require.NoError(t, err)

	classifier, err := components.Aggregator.Classifier(ctx)
	require.NoError(t, err)
	require.Equal(t, "Budgeting", classifier.Classify("budget review").Name)

	result, err := components.Aggregator.Aggregate(ctx, domain.Month{Year: 2025, Month: time.March}, "Engineering", []string{"jane"})
	require.NoError(t, err)
	require.Len(t, result.People, 1)
	var found bool
	for _, row := range result.People[0].Rows {
		if row.IndicatorCode == "B1" {
			found = true
			require.Equal(t, []string{"req-1"}, row.RecordIDs)
		}
	}
	require.True(t, found)
}

func TestBuildRejectsUnknownPolicy(t *testing.T) {
	_, err := Build(context.Background(), config.Config{SummaryFailurePolicy: "explode"}, memory.New(), nil)
	require.Error(t, err)
}

func TestDelegateDefaultsToJoin(t *testing.T) {
	delegate, err := Delegate(context.Background(), config.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.IsType(t, summary.JoinDelegate{}, delegate)
}

func TestEnsureTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sampleipmt.xlsx")
	written, err := EnsureTemplate(path)
	require.NoError(t, err)
	require.True(t, written)

	written, err = EnsureTemplate(path)
	require.NoError(t, err)
	require.False(t, written)
}

func TestEnsureTemplateRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sampleipmt.xlsx")
	written, err := ensureTemplate(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("PK"))
		return errors.New("disk full")
	})
	require.Error(t, err)
	require.False(t, written)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))

	written, err = EnsureTemplate(path)
	require.NoError(t, err)
	require.True(t, written)
}
