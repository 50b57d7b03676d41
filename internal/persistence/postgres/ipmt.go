package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/events"
	"example.com/ipmt/internal/observability"
)

// EventMetadata routes an outbox event type to its topic and schema.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.IPMTRow) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeRowSaved: {
		Topic:         "ipmt_rows",
		SchemaSubject: "ipmt_rows-value",
		PartitionKeyFn: func(row domain.IPMTRow) string {
			return row.PersonnelID
		},
	},
}

// UpsertRow implements domain.IPMTRepository. The row, its record links and
// the row_saved outbox event are written in one transaction.
func (r *Repository) UpsertRow(ctx context.Context, row domain.IPMTRow) (domain.IPMTRow, error) {
	var stored domain.IPMTRow
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM people WHERE id=$1)`, row.PersonnelID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("unknown personnel %s", row.PersonnelID)
		}
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM units WHERE id=$1)`, row.UnitID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: id %s", domain.ErrUnitNotFound, row.UnitID)
		}
		err := tx.QueryRow(ctx, `SELECT code, description FROM indicators WHERE id=$1`, row.IndicatorID).
			Scan(&row.IndicatorCode, &row.IndicatorDescription)
		if noRows(err) {
			return fmt.Errorf("%w: id %s", domain.ErrIndicatorNotFound, row.IndicatorID)
		}
		if err != nil {
			return err
		}

		now := r.now()
		err = tx.QueryRow(ctx, `INSERT INTO ipmt_rows (id, personnel_id, unit_id, month, indicator_id, accomplishment, remarks, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
            ON CONFLICT (personnel_id, unit_id, month, indicator_id) DO UPDATE
                SET accomplishment=EXCLUDED.accomplishment, remarks=EXCLUDED.remarks, updated_at=EXCLUDED.updated_at
            RETURNING id, created_at, updated_at`,
			newID(""), row.PersonnelID, row.UnitID, row.Month, row.IndicatorID, row.Accomplishment, row.Remarks, now).
			Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert ipmt row: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM ipmt_row_records WHERE row_id=$1`, row.ID); err != nil {
			return err
		}
		ids := make([]string, 0, len(row.RecordIDs))
		for _, id := range row.RecordIDs {
			id = strings.TrimSpace(id)
			if id == "" || contains(ids, id) {
				continue
			}
			if _, err := tx.Exec(ctx, `INSERT INTO ipmt_row_records (row_id, record_id, position) VALUES ($1,$2,$3)`, row.ID, id, len(ids)); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		row.RecordIDs = ids

		if err := insertOutbox(ctx, tx, row, events.TypeRowSaved, events.RowSaved{
			RowID:          row.ID,
			PersonnelID:    row.PersonnelID,
			UnitID:         row.UnitID,
			Month:          row.Month,
			IndicatorID:    row.IndicatorID,
			IndicatorCode:  row.IndicatorCode,
			Accomplishment: row.Accomplishment,
			Remarks:        row.Remarks,
			RecordIDs:      row.RecordIDs,
			SavedAt:        row.UpdatedAt,
		}); err != nil {
			return err
		}
		stored = row
		return nil
	})
	if err != nil {
		return domain.IPMTRow{}, err
	}
	observability.RecordOutboxEnqueued(events.TypeRowSaved)
	return stored, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, row domain.IPMTRow, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", row.ID, eventType, row.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"ipmt_row",
		row.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(row),
		body,
		dedupeKey,
	)
	return err
}

// ListRows implements domain.IPMTRepository, ordered by indicator catalog order.
func (r *Repository) ListRows(ctx context.Context, filter domain.IPMTFilter) ([]domain.IPMTRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT w.id, w.personnel_id, w.unit_id, w.month, w.indicator_id, i.code, i.description,
            w.accomplishment, w.remarks, w.created_at, w.updated_at
        FROM ipmt_rows w
        JOIN indicators i ON i.id = w.indicator_id
        WHERE ($1 = '' OR w.personnel_id = $1) AND ($2 = '' OR w.unit_id = $2) AND ($3 = '' OR w.month = $3)
        ORDER BY i.seq, w.personnel_id`, filter.PersonnelID, filter.UnitID, filter.Month)
	if err != nil {
		return nil, err
	}
	out := make([]domain.IPMTRow, 0)
	index := make(map[string]int)
	for rows.Next() {
		var row domain.IPMTRow
		if err := rows.Scan(&row.ID, &row.PersonnelID, &row.UnitID, &row.Month, &row.IndicatorID, &row.IndicatorCode,
			&row.IndicatorDescription, &row.Accomplishment, &row.Remarks, &row.CreatedAt, &row.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		row.RecordIDs = []string{}
		index[row.ID] = len(out)
		out = append(out, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, row := range out {
		ids = append(ids, row.ID)
	}
	links, err := r.pool.Query(ctx, `SELECT row_id, record_id FROM ipmt_row_records WHERE row_id = ANY($1) ORDER BY row_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var rowID, recordID string
		if err := links.Scan(&rowID, &recordID); err != nil {
			return nil, err
		}
		i := index[rowID]
		out[i].RecordIDs = append(out[i].RecordIDs, recordID)
	}
	return out, links.Err()
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
