package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Requeue moves up to limit dead-lettered events back into the outbox so the
// dispatcher retries them. It returns the number of events moved.
func Requeue(ctx context.Context, pool *pgxpool.Pool, limit int) (moved int, err error) {
	if limit <= 0 {
		limit = 100
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `SELECT id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
        FROM outbox_dlq
        ORDER BY id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return 0, err
	}
	type entry struct {
		id  int64
		msg Message
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err = rows.Scan(&e.id, &e.msg.AggregateType, &e.msg.AggregateID, &e.msg.EventType, &e.msg.Topic,
			&e.msg.SchemaSubject, &e.msg.PartitionKey, &e.msg.Payload); err != nil {
			rows.Close()
			return 0, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for _, e := range entries {
		if e.msg.SchemaSubject == "" {
			err = fmt.Errorf("missing schema_subject for dlq entry %d", e.id)
			return 0, err
		}
		if _, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.msg.AggregateType, e.msg.AggregateID, e.msg.EventType, e.msg.Topic, e.msg.SchemaSubject, e.msg.PartitionKey,
			e.msg.Payload, fmt.Sprintf("requeue:%d", e.id)); err != nil {
			return 0, err
		}
		if _, err = tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE id = $1`, e.id); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	requeuedCounter.Add(float64(len(entries)))
	return len(entries), nil
}
