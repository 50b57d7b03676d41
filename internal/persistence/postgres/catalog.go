package postgres

import (
	"context"
	"fmt"

	"example.com/ipmt/internal/domain"
)

// ListActivities implements domain.CatalogRepository.
func (r *Repository) ListActivities(ctx context.Context) ([]domain.ActivityName, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, keywords, active FROM activities ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivityName, 0)
	for rows.Next() {
		var a domain.ActivityName
		if err := rows.Scan(&a.ID, &a.Name, &a.Keywords, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveActivity inserts or updates an activity by name, keeping its catalog position.
func (r *Repository) SaveActivity(ctx context.Context, activity domain.ActivityName) (domain.ActivityName, error) {
	activity.ID = newID(activity.ID)
	err := r.pool.QueryRow(ctx, `INSERT INTO activities (id, name, keywords, active) VALUES ($1,$2,$3,$4)
        ON CONFLICT (name) DO UPDATE SET keywords=EXCLUDED.keywords, active=EXCLUDED.active
        RETURNING id`, activity.ID, activity.Name, activity.Keywords, activity.Active).Scan(&activity.ID)
	return activity, err
}

const indicatorSelect = `SELECT i.id, i.unit_id, i.code, i.description, COALESCE(i.activity_id, ''), COALESCE(a.name, ''), i.active
    FROM indicators i LEFT JOIN activities a ON a.id = i.activity_id`

func scanIndicator(row scanner) (domain.SuccessIndicator, error) {
	var s domain.SuccessIndicator
	err := row.Scan(&s.ID, &s.UnitID, &s.Code, &s.Description, &s.ActivityID, &s.ActivityName, &s.Active)
	return s, err
}

// ListIndicators implements domain.CatalogRepository.
func (r *Repository) ListIndicators(ctx context.Context, unitID string, activeOnly bool) ([]domain.SuccessIndicator, error) {
	rows, err := r.pool.Query(ctx, indicatorSelect+`
        WHERE ($1 = '' OR i.unit_id = $1) AND (NOT $2 OR i.active)
        ORDER BY i.seq`, unitID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SuccessIndicator, 0)
	for rows.Next() {
		s, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindIndicatorByCode implements domain.CatalogRepository.
func (r *Repository) FindIndicatorByCode(ctx context.Context, unitID, code string) (*domain.SuccessIndicator, error) {
	s, err := scanIndicator(r.pool.QueryRow(ctx, indicatorSelect+` WHERE i.unit_id=$1 AND i.code=$2`, unitID, code))
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveIndicator implements domain.CatalogRepository.
func (r *Repository) SaveIndicator(ctx context.Context, indicator domain.SuccessIndicator) (domain.SuccessIndicator, error) {
	unit, err := r.GetUnit(ctx, indicator.UnitID)
	if err != nil {
		return domain.SuccessIndicator{}, err
	}
	if unit == nil {
		return domain.SuccessIndicator{}, fmt.Errorf("%w: id %s", domain.ErrUnitNotFound, indicator.UnitID)
	}
	indicator.ID = newID(indicator.ID)
	err = r.pool.QueryRow(ctx, `INSERT INTO indicators (id, unit_id, code, description, activity_id, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (unit_id, code) DO UPDATE SET description=EXCLUDED.description,
            activity_id=EXCLUDED.activity_id, active=EXCLUDED.active
        RETURNING id`,
		indicator.ID, indicator.UnitID, indicator.Code, indicator.Description, nullIfEmpty(indicator.ActivityID), indicator.Active,
	).Scan(&indicator.ID)
	if err != nil {
		return domain.SuccessIndicator{}, err
	}
	saved, err := r.FindIndicatorByCode(ctx, indicator.UnitID, indicator.Code)
	if err != nil || saved == nil {
		return indicator, err
	}
	return *saved, nil
}
