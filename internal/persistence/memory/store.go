// Package memory provides an in-process implementation of every store port,
// used by tests and local runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/ipmt/internal/domain"
)

type storedRequest struct {
	record    domain.RequestRecord
	unitID    string
	officeID  string
	personnel []string
}

type storedAccomplishment struct {
	record    domain.AccomplishmentRecord
	requestID string
	unitID    string
	personnel []string
}

// Store keeps all entities in insertion-ordered slices guarded by one lock.
type Store struct {
	mu              sync.RWMutex
	now             func() time.Time
	units           []domain.Unit
	offices         []domain.Office
	people          []domain.Person
	activities      []domain.ActivityName
	indicators      []domain.SuccessIndicator
	requests        []storedRequest
	accomplishments []storedAccomplishment
	rows            []domain.IPMTRow
}

var _ domain.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}

// ---- units & offices ----

// FindUnitByName implements domain.UnitRepository.
func (s *Store) FindUnitByName(_ context.Context, name string) (*domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.units {
		if strings.EqualFold(u.Name, strings.TrimSpace(name)) {
			unit := u
			return &unit, nil
		}
	}
	return nil, nil
}

// GetUnit implements domain.UnitRepository.
func (s *Store) GetUnit(_ context.Context, id string) (*domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.unitByID(id); ok {
		return &u, nil
	}
	return nil, nil
}

// SaveUnit inserts a unit, or returns the existing unit with the same name.
func (s *Store) SaveUnit(_ context.Context, unit domain.Unit) (domain.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if strings.EqualFold(u.Name, unit.Name) {
			return u, nil
		}
	}
	unit.ID = newID(unit.ID)
	s.units = append(s.units, unit)
	return unit, nil
}

// FindOfficeByName implements domain.UnitRepository.
func (s *Store) FindOfficeByName(_ context.Context, name string) (*domain.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.offices {
		if strings.EqualFold(o.Name, strings.TrimSpace(name)) {
			office := o
			return &office, nil
		}
	}
	return nil, nil
}

// SaveOffice inserts an office, or returns the existing office with the same name.
func (s *Store) SaveOffice(_ context.Context, office domain.Office) (domain.Office, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offices {
		if strings.EqualFold(o.Name, office.Name) {
			return o, nil
		}
	}
	office.ID = newID(office.ID)
	s.offices = append(s.offices, office)
	return office, nil
}

func (s *Store) unitByID(id string) (domain.Unit, bool) {
	for _, u := range s.units {
		if u.ID == id {
			return u, true
		}
	}
	return domain.Unit{}, false
}

func (s *Store) officeByID(id string) (domain.Office, bool) {
	for _, o := range s.offices {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Office{}, false
}

// ---- personnel ----

// GetPerson implements domain.PersonnelRepository.
func (s *Store) GetPerson(_ context.Context, id string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.personByID(id); ok {
		return &p, nil
	}
	return nil, nil
}

// FindPersonByUsername implements domain.PersonnelRepository.
func (s *Store) FindPersonByUsername(_ context.Context, username string) (*domain.Person, error) {
	return s.firstPerson(func(p domain.Person) bool {
		return strings.EqualFold(p.Username, username)
	}), nil
}

// FindPersonByName implements domain.PersonnelRepository.
func (s *Store) FindPersonByName(_ context.Context, first, last string) (*domain.Person, error) {
	return s.firstPerson(func(p domain.Person) bool {
		return strings.EqualFold(p.FirstName, first) && strings.EqualFold(p.LastName, last)
	}), nil
}

// SearchPersonByNamePart implements domain.PersonnelRepository.
func (s *Store) SearchPersonByNamePart(_ context.Context, part string) (*domain.Person, error) {
	needle := strings.ToLower(part)
	if needle == "" {
		return nil, nil
	}
	return s.firstPerson(func(p domain.Person) bool {
		return strings.Contains(strings.ToLower(p.FirstName), needle) ||
			strings.Contains(strings.ToLower(p.LastName), needle)
	}), nil
}

// ListActivePersonnel implements domain.PersonnelRepository.
func (s *Store) ListActivePersonnel(_ context.Context, unitID string) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Person, 0)
	for _, p := range s.people {
		if !p.Active || p.Role != domain.RolePersonnel {
			continue
		}
		if unitID != "" && p.UnitID != unitID {
			continue
		}
		out = append(out, s.withUnitName(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UnitName != out[j].UnitName {
			return out[i].UnitName < out[j].UnitName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

// SavePerson inserts or replaces a person by id, or by username when no id is given.
func (s *Store) SavePerson(_ context.Context, person domain.Person) (domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.people {
		if (person.ID != "" && p.ID == person.ID) || (person.ID == "" && strings.EqualFold(p.Username, person.Username)) {
			person.ID = p.ID
			s.people[i] = person
			return s.withUnitName(person), nil
		}
	}
	person.ID = newID(person.ID)
	s.people = append(s.people, person)
	return s.withUnitName(person), nil
}

func (s *Store) firstPerson(match func(domain.Person) bool) *domain.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if match(p) {
			found := s.withUnitName(p)
			return &found
		}
	}
	return nil
}

func (s *Store) personByID(id string) (domain.Person, bool) {
	for _, p := range s.people {
		if p.ID == id {
			return s.withUnitName(p), true
		}
	}
	return domain.Person{}, false
}

func (s *Store) withUnitName(p domain.Person) domain.Person {
	if u, ok := s.unitByID(p.UnitID); ok {
		p.UnitName = u.Name
	}
	return p
}

func (s *Store) peopleByIDs(ids []string) []domain.Person {
	out := make([]domain.Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.personByID(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// ---- catalog ----

// ListActivities implements domain.CatalogRepository.
func (s *Store) ListActivities(_ context.Context) ([]domain.ActivityName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActivityName, len(s.activities))
	copy(out, s.activities)
	return out, nil
}

// SaveActivity inserts or updates an activity by name, keeping its catalog position.
func (s *Store) SaveActivity(_ context.Context, activity domain.ActivityName) (domain.ActivityName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.activities {
		if a.Name == activity.Name {
			activity.ID = a.ID
			s.activities[i] = activity
			return activity, nil
		}
	}
	activity.ID = newID(activity.ID)
	s.activities = append(s.activities, activity)
	return activity, nil
}

// ListIndicators implements domain.CatalogRepository.
func (s *Store) ListIndicators(_ context.Context, unitID string, activeOnly bool) ([]domain.SuccessIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SuccessIndicator, 0)
	for _, ind := range s.indicators {
		if unitID != "" && ind.UnitID != unitID {
			continue
		}
		if activeOnly && !ind.Active {
			continue
		}
		out = append(out, s.withActivityName(ind))
	}
	return out, nil
}

// FindIndicatorByCode implements domain.CatalogRepository.
func (s *Store) FindIndicatorByCode(_ context.Context, unitID, code string) (*domain.SuccessIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ind := range s.indicators {
		if ind.UnitID == unitID && ind.Code == code {
			found := s.withActivityName(ind)
			return &found, nil
		}
	}
	return nil, nil
}

// SaveIndicator implements domain.CatalogRepository.
func (s *Store) SaveIndicator(_ context.Context, indicator domain.SuccessIndicator) (domain.SuccessIndicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unitByID(indicator.UnitID); !ok {
		return domain.SuccessIndicator{}, fmt.Errorf("%w: id %s", domain.ErrUnitNotFound, indicator.UnitID)
	}
	for i, ind := range s.indicators {
		if ind.UnitID == indicator.UnitID && ind.Code == indicator.Code {
			indicator.ID = ind.ID
			s.indicators[i] = indicator
			return s.withActivityName(indicator), nil
		}
	}
	indicator.ID = newID(indicator.ID)
	s.indicators = append(s.indicators, indicator)
	return s.withActivityName(indicator), nil
}

func (s *Store) withActivityName(ind domain.SuccessIndicator) domain.SuccessIndicator {
	ind.ActivityName = ""
	for _, a := range s.activities {
		if a.ID == ind.ActivityID {
			ind.ActivityName = a.Name
			break
		}
	}
	return ind
}

func (s *Store) indicatorPosition(id string) int {
	for i, ind := range s.indicators {
		if ind.ID == id {
			return i
		}
	}
	return len(s.indicators)
}
