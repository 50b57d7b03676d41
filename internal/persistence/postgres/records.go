package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/ipmt/internal/domain"
)

const requestSelect = `SELECT r.id, r.description, COALESCE(r.unit_id, ''), COALESCE(u.name, ''),
        COALESCE(r.office_id, ''), COALESCE(o.name, ''), r.status, r.rating, r.notes, r.created_at, r.completed_at
    FROM requests r
    LEFT JOIN units u ON u.id = r.unit_id
    LEFT JOIN offices o ON o.id = r.office_id`

const accomplishmentSelect = `SELECT w.id, COALESCE(w.request_id, ''), w.unit_id, u.name, w.requesting_office,
        w.date_started, w.date_completed, w.activity_name, w.description, w.status, w.rating,
        w.material_cost, w.labor_cost, w.total_cost, COALESCE(w.control_number, ''), w.created_at
    FROM accomplishments w
    JOIN units u ON u.id = w.unit_id`

func scanRequest(row scanner) (*domain.RequestRecord, error) {
	var (
		rec              domain.RequestRecord
		unitID, unitName string
		officeID, office string
		status           string
	)
	if err := row.Scan(&rec.ID, &rec.Description, &unitID, &unitName, &officeID, &office,
		&status, &rec.Rating, &rec.Notes, &rec.CreatedAt, &rec.CompletedAt); err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	if unitID != "" {
		rec.Unit = &domain.Unit{ID: unitID, Name: unitName}
	}
	if officeID != "" {
		rec.Office = &domain.Office{ID: officeID, Name: office}
	}
	return &rec, nil
}

func scanAccomplishment(row scanner) (*domain.AccomplishmentRecord, string, error) {
	var (
		rec              domain.AccomplishmentRecord
		requestID        string
		unitID, unitName string
		status           string
	)
	if err := row.Scan(&rec.ID, &requestID, &unitID, &unitName, &rec.RequestingOffice,
		&rec.DateStarted, &rec.DateCompleted, &rec.ActivityName, &rec.Description, &status, &rec.Rating,
		&rec.MaterialCost, &rec.LaborCost, &rec.TotalCost, &rec.ControlNumber, &rec.CreatedAt); err != nil {
		return nil, "", err
	}
	rec.Status = domain.Status(status)
	rec.Unit = &domain.Unit{ID: unitID, Name: unitName}
	return &rec, requestID, nil
}

// recordWhere builds the shared filter clause. column is the date column the
// month filter applies to; dateOnly compares calendar dates instead of instants.
func recordWhere(alias, column string, dateOnly bool, filter domain.RecordFilter, personTable, personKey string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UnitID != "" {
		add(alias+".unit_id = $%d", filter.UnitID)
	}
	if filter.Status != "" {
		add(alias+".status = $%d", string(filter.Status))
	}
	if filter.PersonnelID != "" {
		add(fmt.Sprintf("EXISTS (SELECT 1 FROM %s x WHERE x.%s = %s.id AND x.person_id = $%%d)", personTable, personKey, alias), filter.PersonnelID)
	}
	if filter.Month != nil {
		var start, end time.Time
		if dateOnly {
			start = time.Date(filter.Month.Year, filter.Month.Month, 1, 0, 0, 0, 0, time.UTC)
			end = start.AddDate(0, 1, 0)
		} else {
			start, end = filter.Month.Range(filter.Location)
		}
		add(alias+"."+column+" >= $%d", start)
		add(alias+"."+column+" < $%d", end)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListRequests implements domain.RecordRepository.
func (r *Repository) ListRequests(ctx context.Context, filter domain.RecordFilter) ([]*domain.RequestRecord, error) {
	where, args := recordWhere("r", "created_at", false, filter, "request_personnel", "request_id")
	rows, err := r.pool.Query(ctx, requestSelect+where+` ORDER BY r.created_at, r.id`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RequestRecord, 0)
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachRequestPersonnel(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAccomplishments implements domain.RecordRepository.
func (r *Repository) ListAccomplishments(ctx context.Context, filter domain.RecordFilter) ([]*domain.AccomplishmentRecord, error) {
	where, args := recordWhere("w", "date_started", true, filter, "accomplishment_personnel", "accomplishment_id")
	rows, err := r.pool.Query(ctx, accomplishmentSelect+where+` ORDER BY w.date_started, w.created_at, w.id`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AccomplishmentRecord, 0)
	requestIDs := make(map[string]string)
	for rows.Next() {
		rec, requestID, err := scanAccomplishment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if requestID != "" {
			requestIDs[rec.ID] = requestID
		}
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.hydrateAccomplishments(ctx, out, requestIDs); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecord implements domain.RecordRepository.
func (r *Repository) GetRecord(ctx context.Context, id string) (domain.SourceRecord, error) {
	rec, requestID, err := scanAccomplishment(r.pool.QueryRow(ctx, accomplishmentSelect+` WHERE w.id=$1`, id))
	if err == nil {
		ids := map[string]string{}
		if requestID != "" {
			ids[rec.ID] = requestID
		}
		if err := r.hydrateAccomplishments(ctx, []*domain.AccomplishmentRecord{rec}, ids); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if !noRows(err) {
		return nil, err
	}

	req, err := scanRequest(r.pool.QueryRow(ctx, requestSelect+` WHERE r.id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachRequestPersonnel(ctx, []*domain.RequestRecord{req}); err != nil {
		return nil, err
	}
	return req, nil
}

// SaveRequest inserts or replaces a request by id, replacing its personnel.
func (r *Repository) SaveRequest(ctx context.Context, record *domain.RequestRecord) error {
	if record == nil {
		return fmt.Errorf("nil request record")
	}
	record.ID = newID(record.ID)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	notes := record.Notes
	if notes == nil {
		notes = []string{}
	}
	var unitID, officeID string
	if record.Unit != nil {
		unitID = record.Unit.ID
	}
	if record.Office != nil {
		officeID = record.Office.ID
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO requests (id, description, unit_id, office_id, status, rating, notes, created_at, completed_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (id) DO UPDATE SET description=EXCLUDED.description, unit_id=EXCLUDED.unit_id,
                office_id=EXCLUDED.office_id, status=EXCLUDED.status, rating=EXCLUDED.rating,
                notes=EXCLUDED.notes, created_at=EXCLUDED.created_at, completed_at=EXCLUDED.completed_at`,
			record.ID, record.Description, nullIfEmpty(unitID), nullIfEmpty(officeID), string(record.Status),
			record.Rating, notes, record.CreatedAt, record.CompletedAt)
		if err != nil {
			return fmt.Errorf("save request: %w", err)
		}
		return replacePersonnel(ctx, tx, "request_personnel", "request_id", record.ID, record.Personnel)
	})
}

// SaveAccomplishment inserts or replaces an accomplishment record by id.
// TotalCost is recomputed; the control number is unique when set.
func (r *Repository) SaveAccomplishment(ctx context.Context, record *domain.AccomplishmentRecord) error {
	if record == nil {
		return fmt.Errorf("nil accomplishment record")
	}
	if record.Unit == nil {
		return fmt.Errorf("accomplishment record requires a unit")
	}
	record.ID = newID(record.ID)
	record.RecomputeTotal()
	if record.Status == "" {
		record.Status = domain.StatusCompleted
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO accomplishments (id, request_id, unit_id, requesting_office, date_started,
                date_completed, activity_name, description, status, rating, material_cost, labor_cost, total_cost,
                control_number, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
            ON CONFLICT (id) DO UPDATE SET request_id=EXCLUDED.request_id, unit_id=EXCLUDED.unit_id,
                requesting_office=EXCLUDED.requesting_office, date_started=EXCLUDED.date_started,
                date_completed=EXCLUDED.date_completed, activity_name=EXCLUDED.activity_name,
                description=EXCLUDED.description, status=EXCLUDED.status, rating=EXCLUDED.rating,
                material_cost=EXCLUDED.material_cost, labor_cost=EXCLUDED.labor_cost,
                total_cost=EXCLUDED.total_cost, control_number=EXCLUDED.control_number`,
			record.ID, nullIfEmpty(record.RequestID()), record.Unit.ID, record.RequestingOffice, record.DateStarted,
			record.DateCompleted, record.ActivityName, record.Description, string(record.Status), record.Rating,
			record.MaterialCost, record.LaborCost, record.TotalCost, nullIfEmpty(strings.TrimSpace(record.ControlNumber)),
			record.CreatedAt)
		if err != nil {
			return fmt.Errorf("save accomplishment: %w", err)
		}
		return replacePersonnel(ctx, tx, "accomplishment_personnel", "accomplishment_id", record.ID, record.Personnel)
	})
}

func replacePersonnel(ctx context.Context, tx pgx.Tx, table, key, id string, people []domain.Person) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s=$1`, table, key), id); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(people))
	for i, p := range people {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s, person_id, position) VALUES ($1,$2,$3)`, table, key), id, p.ID, i); err != nil {
			return err
		}
	}
	return nil
}

// personnelFor loads the ordered personnel of the given owner ids.
func (r *Repository) personnelFor(ctx context.Context, table, key string, ids []string) (map[string][]domain.Person, error) {
	out := make(map[string][]domain.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT x.%s, `+personColumns+`
        FROM %s x JOIN people p ON p.id = x.person_id LEFT JOIN units u ON u.id = p.unit_id
        WHERE x.%s = ANY($1) ORDER BY x.%s, x.position`, key, table, key, key), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			owner string
			p     domain.Person
		)
		if err := rows.Scan(&owner, &p.ID, &p.Username, &p.FirstName, &p.LastName, &p.UnitID, &p.UnitName, &p.Role, &p.Active); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], p)
	}
	return out, rows.Err()
}

func (r *Repository) attachRequestPersonnel(ctx context.Context, records []*domain.RequestRecord) error {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	people, err := r.personnelFor(ctx, "request_personnel", "request_id", ids)
	if err != nil {
		return err
	}
	for _, rec := range records {
		rec.Personnel = people[rec.ID]
	}
	return nil
}

func (r *Repository) hydrateAccomplishments(ctx context.Context, records []*domain.AccomplishmentRecord, requestIDs map[string]string) error {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	people, err := r.personnelFor(ctx, "accomplishment_personnel", "accomplishment_id", ids)
	if err != nil {
		return err
	}
	for _, rec := range records {
		rec.Personnel = people[rec.ID]
	}
	if len(requestIDs) == 0 {
		return nil
	}

	wanted := make([]string, 0, len(requestIDs))
	for _, id := range requestIDs {
		wanted = append(wanted, id)
	}
	rows, err := r.pool.Query(ctx, requestSelect+` WHERE r.id = ANY($1)`, wanted)
	if err != nil {
		return err
	}
	requests := make(map[string]*domain.RequestRecord, len(wanted))
	list := make([]*domain.RequestRecord, 0, len(wanted))
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return err
		}
		requests[req.ID] = req
		list = append(list, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if err := r.attachRequestPersonnel(ctx, list); err != nil {
		return err
	}
	for _, rec := range records {
		if id, ok := requestIDs[rec.ID]; ok {
			rec.Request = requests[id]
		}
	}
	return nil
}
