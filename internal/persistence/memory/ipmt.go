package memory

import (
	"context"
	"fmt"
	"sort"

	"example.com/ipmt/internal/domain"
)

// UpsertRow implements domain.IPMTRepository. Validation happens before any
// mutation so a failed upsert leaves the row untouched.
func (s *Store) UpsertRow(_ context.Context, row domain.IPMTRow) (domain.IPMTRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.personByID(row.PersonnelID); !ok {
		return domain.IPMTRow{}, fmt.Errorf("unknown personnel %s", row.PersonnelID)
	}
	if _, ok := s.unitByID(row.UnitID); !ok {
		return domain.IPMTRow{}, fmt.Errorf("%w: id %s", domain.ErrUnitNotFound, row.UnitID)
	}
	indicator, ok := s.indicatorByID(row.IndicatorID)
	if !ok {
		return domain.IPMTRow{}, fmt.Errorf("%w: id %s", domain.ErrIndicatorNotFound, row.IndicatorID)
	}

	now := s.now()
	row.IndicatorCode = indicator.Code
	row.IndicatorDescription = indicator.Description
	row.RecordIDs = dedupe(row.RecordIDs)
	row.UpdatedAt = now

	for i, existing := range s.rows {
		if existing.PersonnelID == row.PersonnelID && existing.UnitID == row.UnitID &&
			existing.Month == row.Month && existing.IndicatorID == row.IndicatorID {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			s.rows[i] = row
			return cloneRow(row), nil
		}
	}
	row.ID = newID("")
	row.CreatedAt = now
	s.rows = append(s.rows, row)
	return cloneRow(row), nil
}

// ListRows implements domain.IPMTRepository, ordered by indicator catalog order.
func (s *Store) ListRows(_ context.Context, filter domain.IPMTFilter) ([]domain.IPMTRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.IPMTRow, 0)
	for _, row := range s.rows {
		if filter.PersonnelID != "" && row.PersonnelID != filter.PersonnelID {
			continue
		}
		if filter.UnitID != "" && row.UnitID != filter.UnitID {
			continue
		}
		if filter.Month != "" && row.Month != filter.Month {
			continue
		}
		if ind, ok := s.indicatorByID(row.IndicatorID); ok {
			row.IndicatorCode = ind.Code
			row.IndicatorDescription = ind.Description
		}
		out = append(out, cloneRow(row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.indicatorPosition(out[i].IndicatorID) < s.indicatorPosition(out[j].IndicatorID)
	})
	return out, nil
}

func (s *Store) indicatorByID(id string) (domain.SuccessIndicator, bool) {
	for _, ind := range s.indicators {
		if ind.ID == id {
			return ind, true
		}
	}
	return domain.SuccessIndicator{}, false
}

func cloneRow(row domain.IPMTRow) domain.IPMTRow {
	row.RecordIDs = append([]string{}, row.RecordIDs...)
	return row
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
