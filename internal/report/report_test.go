package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/persistence/memory"
)

var manila = time.FixedZone("PST", 8*60*60)

func TestNormalizeRequest(t *testing.T) {
	n := NewNormalizer(manila)
	rating := "5"
	created := time.Date(2025, time.March, 3, 1, 30, 0, 0, time.UTC)
	req := &domain.RequestRecord{
		ID:          "req-1",
		Description: "Fix leaking pipe",
		Unit:        &domain.Unit{ID: "u1", Name: "Engineering"},
		Office:      &domain.Office{ID: "o1", Name: "Registrar"},
		Personnel:   []domain.Person{{ID: "p1", FirstName: "Jane", LastName: "Cruz"}, {ID: "p2", Username: "jdoe"}},
		CreatedAt:   created,
		Status:      domain.StatusCompleted,
		Rating:      &rating,
	}

	r := n.Normalize(req)
	require.Equal(t, domain.KindRequest, r.Kind)
	require.Equal(t, OriginLive, r.Source)
	require.Equal(t, "Registrar", r.RequestingOffice)
	require.Equal(t, "Engineering", r.Unit)
	require.Equal(t, []string{"Jane Cruz", "jdoe"}, r.Personnel)
	require.True(t, r.Date.Equal(created))
	require.Equal(t, manila, r.Date.Location())
	require.Equal(t, "5", *r.Rating)
	require.Same(t, req, r.Record)
}

func TestNormalizeMigratedAccomplishment(t *testing.T) {
	n := NewNormalizer(manila)
	rec := &domain.AccomplishmentRecord{
		ID:               "war-1",
		Unit:             &domain.Unit{ID: "u1", Name: "Engineering"},
		RequestingOffice: "Library",
		DateStarted:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Description:      "Fixed AC units",
	}

	r := n.Normalize(rec)
	require.Equal(t, OriginMigrated, r.Source)
	require.Equal(t, "Library", r.RequestingOffice)
	require.Equal(t, "Engineering", r.Unit)
	require.Equal(t, []string{Unassigned}, r.Personnel)
	require.Equal(t, domain.StatusCompleted, r.Status)
	require.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, manila), r.Date)
	require.Empty(t, r.RequestID)
}

func TestNormalizeLinkedAccomplishmentPrefersRequest(t *testing.T) {
	n := NewNormalizer(manila)
	req := &domain.RequestRecord{
		ID:     "req-9",
		Unit:   &domain.Unit{ID: "u2", Name: "Motorpool"},
		Office: &domain.Office{ID: "o2", Name: "Accounting"},
	}
	rec := &domain.AccomplishmentRecord{
		ID:               "war-9",
		Request:          req,
		Unit:             &domain.Unit{ID: "u1", Name: "Engineering"},
		RequestingOffice: "Library",
		DateStarted:      time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		Status:           domain.StatusInProgress,
	}

	r := n.Normalize(rec)
	require.Equal(t, OriginLive, r.Source)
	require.Equal(t, "Accounting", r.RequestingOffice)
	require.Equal(t, "Motorpool", r.Unit)
	require.Equal(t, "req-9", r.RequestID)
	require.Equal(t, domain.StatusInProgress, r.Status)

	req.Office = nil
	req.Unit = nil
	r = n.Normalize(rec)
	require.Equal(t, "Library", r.RequestingOffice)
	require.Equal(t, "Engineering", r.Unit)
}

func TestReconcileDropsCoveredAndOpenRequests(t *testing.T) {
	covered := &domain.RequestRecord{ID: "r1", Status: domain.StatusCompleted}
	open := &domain.RequestRecord{ID: "r2", Status: domain.StatusPending}
	live := &domain.RequestRecord{ID: "r3", Status: domain.StatusCompleted}
	war := &domain.AccomplishmentRecord{ID: "w1", Request: covered}

	merged := Reconcile([]*domain.RequestRecord{covered, open, live}, []*domain.AccomplishmentRecord{war})
	ids := make([]string, 0, len(merged))
	for _, rec := range merged {
		ids = append(ids, rec.RecordID())
	}
	require.Equal(t, []string{"r3", "w1"}, ids)
}

func TestFeedListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng, err := store.SaveUnit(ctx, domain.Unit{Name: "Engineering"})
	require.NoError(t, err)
	motor, err := store.SaveUnit(ctx, domain.Unit{Name: "Motorpool"})
	require.NoError(t, err)

	require.NoError(t, store.SaveRequest(ctx, &domain.RequestRecord{
		ID: "req-live", Description: "Replace bulbs", Unit: &eng, Status: domain.StatusCompleted,
		CreatedAt: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveRequest(ctx, &domain.RequestRecord{
		ID: "req-pending", Description: "Paint wall", Unit: &eng, Status: domain.StatusPending,
		CreatedAt: time.Date(2025, 3, 6, 8, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveAccomplishment(ctx, &domain.AccomplishmentRecord{
		ID: "war-blank", Unit: &motor, ActivityName: "Vehicle Repair",
		DateStarted: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveAccomplishment(ctx, &domain.AccomplishmentRecord{
		ID: "war-eng", Unit: &eng, Description: "Fixed AC units",
		DateStarted: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	feed := NewFeed(store, NewNormalizer(manila))

	all, err := feed.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "war-blank", all[0].ID)
	require.Equal(t, "WAR for activity Vehicle Repair", all[0].Description)
	require.Equal(t, "req-live", all[1].ID)
	require.Equal(t, "war-eng", all[2].ID)

	eng2, err := feed.List(ctx, Query{Unit: "engineering"})
	require.NoError(t, err)
	require.Len(t, eng2, 2)

	search, err := feed.List(ctx, Query{Search: "ac UNITS"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	require.Equal(t, "war-eng", search[0].ID)
}

func TestFeedDescription(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	unit, err := store.SaveUnit(ctx, domain.Unit{Name: "Engineering"})
	require.NoError(t, err)
	require.NoError(t, store.SaveAccomplishment(ctx, &domain.AccomplishmentRecord{
		ID: "war-1", Unit: &unit, Description: "Fixed AC units", DateStarted: time.Now(),
	}))

	feed := NewFeed(store, NewNormalizer(nil))
	desc, err := feed.Description(ctx, "war-1")
	require.NoError(t, err)
	require.Equal(t, "Fixed AC units", desc)

	_, err = feed.Description(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}
