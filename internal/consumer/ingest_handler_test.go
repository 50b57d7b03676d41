package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/events"
	"example.com/ipmt/internal/fixture"
	"example.com/ipmt/internal/personnel"
)

func newIngestHandler(t *testing.T) (*IngestHandler, *fixture.Env) {
	t.Helper()
	env := fixture.New(t)
	return NewIngestHandler(env.Store, personnel.NewResolver(env.Store), zaptest.NewLogger(t)), env
}

func eventMessage(t *testing.T, eventType string, payload any) Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Message{Topic: "gso_records", EventType: eventType, Payload: body}
}

func TestIngestHandlerStoresRequestAndLinkedAccomplishment(t *testing.T) {
	ctx := context.Background()
	h, env := newIngestHandler(t)

	completed := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.Handle(ctx, eventMessage(t, events.TypeRequestCompleted, events.RequestCompleted{
		RequestID:        "req-9",
		Description:      "Aircon not cooling",
		Unit:             "engineering",
		RequestingOffice: "Registrar",
		Personnel:        []string{"jane", "Mark Santos", "nobody"},
		Notes:            []string{"cleaned filter"},
		CreatedAt:        completed.Add(-48 * time.Hour),
		CompletedAt:      &completed,
	})))

	stored, err := env.Store.GetRecord(ctx, "req-9")
	require.NoError(t, err)
	req, ok := stored.(*domain.RequestRecord)
	require.True(t, ok)
	require.Equal(t, domain.StatusCompleted, req.Status)
	require.Equal(t, "Registrar", req.Office.Name)
	require.Len(t, req.Personnel, 2)
	require.Equal(t, []string{"cleaned filter"}, req.Notes)

	require.NoError(t, h.Handle(ctx, eventMessage(t, events.TypeAccomplishmentRecorded, events.AccomplishmentRecorded{
		RecordID:     "war-9",
		RequestID:    "req-9",
		Unit:         "Engineering",
		Personnel:    []string{"jane"},
		DateStarted:  "2025-03-05",
		ActivityName: "Maintenance",
		Description:  "Cleaned aircon filter",
		MaterialCost: 100,
		LaborCost:    50,
	})))

	stored, err = env.Store.GetRecord(ctx, "war-9")
	require.NoError(t, err)
	war, ok := stored.(*domain.AccomplishmentRecord)
	require.True(t, ok)
	require.Equal(t, "req-9", war.RequestID())
	require.InDelta(t, 150, war.TotalCost, 0.001)
	require.Equal(t, env.People["jane"].ID, war.Personnel[0].ID)
}

func TestIngestHandlerSkipsUnstorableEvents(t *testing.T) {
	ctx := context.Background()
	h, env := newIngestHandler(t)

	cases := []Message{
		eventMessage(t, events.TypeAccomplishmentRecorded, events.AccomplishmentRecorded{RecordID: "w1", Unit: "Nowhere", DateStarted: "2025-03-01"}),
		eventMessage(t, events.TypeAccomplishmentRecorded, events.AccomplishmentRecorded{RecordID: "w2", Unit: "Engineering", DateStarted: "03/01/2025"}),
		eventMessage(t, events.TypeAccomplishmentRecorded, events.AccomplishmentRecorded{RecordID: "w3", RequestID: "missing", Unit: "Engineering", DateStarted: "2025-03-01"}),
		eventMessage(t, events.TypeRequestCompleted, events.RequestCompleted{Description: "no id"}),
		{EventType: events.TypeRequestCompleted, Payload: json.RawMessage(`{not json`)},
	}
	for _, msg := range cases {
		require.NoError(t, h.Handle(ctx, msg))
	}

	for _, id := range []string{"w1", "w2", "w3"} {
		rec, err := env.Store.GetRecord(ctx, id)
		require.NoError(t, err)
		require.Nil(t, rec)
	}
}

func TestIngestHandlerIgnoresOtherEventTypes(t *testing.T) {
	h, _ := newIngestHandler(t)
	require.NoError(t, h.Handle(context.Background(), eventMessage(t, events.TypeRowSaved, events.RowSaved{RowID: "r"})))
}
