package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/ipmt/internal/domain"
)

// ListRequests implements domain.RecordRepository.
func (s *Store) ListRequests(_ context.Context, filter domain.RecordFilter) ([]*domain.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var start, end time.Time
	if filter.Month != nil {
		start, end = filter.Month.Range(filter.Location)
	}

	out := make([]*domain.RequestRecord, 0)
	for _, stored := range s.requests {
		if filter.UnitID != "" && stored.unitID != filter.UnitID {
			continue
		}
		if filter.Status != "" && stored.record.Status != filter.Status {
			continue
		}
		if filter.PersonnelID != "" && !contains(stored.personnel, filter.PersonnelID) {
			continue
		}
		if filter.Month != nil && (stored.record.CreatedAt.Before(start) || !stored.record.CreatedAt.Before(end)) {
			continue
		}
		out = append(out, s.hydrateRequest(stored))
	}
	return out, nil
}

// ListAccomplishments implements domain.RecordRepository.
func (s *Store) ListAccomplishments(_ context.Context, filter domain.RecordFilter) ([]*domain.AccomplishmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AccomplishmentRecord, 0)
	for _, stored := range s.accomplishments {
		if filter.UnitID != "" && stored.unitID != filter.UnitID {
			continue
		}
		if filter.Status != "" && stored.record.Status != filter.Status {
			continue
		}
		if filter.PersonnelID != "" && !contains(stored.personnel, filter.PersonnelID) {
			continue
		}
		if filter.Month != nil && !filter.Month.ContainsDate(stored.record.DateStarted) {
			continue
		}
		out = append(out, s.hydrateAccomplishment(stored))
	}
	return out, nil
}

// GetRecord implements domain.RecordRepository.
func (s *Store) GetRecord(_ context.Context, id string) (domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stored := range s.accomplishments {
		if stored.record.ID == id {
			return s.hydrateAccomplishment(stored), nil
		}
	}
	for _, stored := range s.requests {
		if stored.record.ID == id {
			return s.hydrateRequest(stored), nil
		}
	}
	return nil, nil
}

// SaveRequest inserts or replaces a request by id. The record's ID is set when empty.
func (s *Store) SaveRequest(_ context.Context, record *domain.RequestRecord) error {
	if record == nil {
		return fmt.Errorf("nil request record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = newID(record.ID)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	stored := storedRequest{
		record:    *record,
		personnel: personIDs(record.Personnel),
	}
	if record.Unit != nil {
		stored.unitID = record.Unit.ID
	}
	if record.Office != nil {
		stored.officeID = record.Office.ID
	}
	stored.record.Unit, stored.record.Office, stored.record.Personnel = nil, nil, nil
	stored.record.Notes = append([]string(nil), record.Notes...)

	for i, existing := range s.requests {
		if existing.record.ID == record.ID {
			s.requests[i] = stored
			return nil
		}
	}
	s.requests = append(s.requests, stored)
	return nil
}

// SaveAccomplishment inserts or replaces an accomplishment record by id.
// TotalCost is recomputed and the control number must be unique when set.
func (s *Store) SaveAccomplishment(_ context.Context, record *domain.AccomplishmentRecord) error {
	if record == nil {
		return fmt.Errorf("nil accomplishment record")
	}
	if record.Unit == nil {
		return fmt.Errorf("accomplishment record requires a unit")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = newID(record.ID)
	record.RecomputeTotal()
	if record.Status == "" {
		record.Status = domain.StatusCompleted
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if cn := strings.TrimSpace(record.ControlNumber); cn != "" {
		for _, existing := range s.accomplishments {
			if existing.record.ID != record.ID && existing.record.ControlNumber == cn {
				return fmt.Errorf("control number %q already used", cn)
			}
		}
	}

	stored := storedAccomplishment{
		record:    *record,
		requestID: record.RequestID(),
		unitID:    record.Unit.ID,
		personnel: personIDs(record.Personnel),
	}
	stored.record.Request, stored.record.Unit, stored.record.Personnel = nil, nil, nil

	for i, existing := range s.accomplishments {
		if existing.record.ID == record.ID {
			s.accomplishments[i] = stored
			return nil
		}
	}
	s.accomplishments = append(s.accomplishments, stored)
	return nil
}

func (s *Store) hydrateRequest(stored storedRequest) *domain.RequestRecord {
	rec := stored.record
	rec.Notes = append([]string(nil), stored.record.Notes...)
	if u, ok := s.unitByID(stored.unitID); ok {
		rec.Unit = &u
	}
	if o, ok := s.officeByID(stored.officeID); ok {
		rec.Office = &o
	}
	rec.Personnel = s.peopleByIDs(stored.personnel)
	return &rec
}

func (s *Store) hydrateAccomplishment(stored storedAccomplishment) *domain.AccomplishmentRecord {
	rec := stored.record
	if u, ok := s.unitByID(stored.unitID); ok {
		rec.Unit = &u
	}
	rec.Personnel = s.peopleByIDs(stored.personnel)
	if stored.requestID != "" {
		for _, req := range s.requests {
			if req.record.ID == stored.requestID {
				rec.Request = s.hydrateRequest(req)
				break
			}
		}
	}
	return &rec
}

func personIDs(people []domain.Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		if p.ID != "" && !contains(out, p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
