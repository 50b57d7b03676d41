// Package report normalizes both source record kinds into one report shape and
// builds the unified accomplishment feed.
package report

import (
	"time"

	"example.com/ipmt/internal/domain"
)

// Origin tells whether a report comes from a live request or a migrated record.
type Origin string

const (
	OriginLive     Origin = "Live"
	OriginMigrated Origin = "Migrated"
)

// Unassigned is listed when a record has no personnel.
const Unassigned = "Unassigned"

// Report is the unified shape of a source record.
type Report struct {
	ID               string            `json:"id"`
	Kind             domain.RecordKind `json:"type"`
	Source           Origin            `json:"source"`
	RequestingOffice string            `json:"requesting_office"`
	Description      string            `json:"description"`
	Unit             string            `json:"unit"`
	Date             time.Time         `json:"date"`
	Personnel        []string          `json:"personnel"`
	Status           domain.Status     `json:"status"`
	Rating           *string           `json:"rating,omitempty"`
	RequestID        string            `json:"request_id,omitempty"`

	Record domain.SourceRecord `json:"-"`
}

// Normalizer converts source records into Reports. Dates without a time
// component become midnight in the configured location.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer constructs a Normalizer anchored to loc (UTC when nil).
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Normalize dispatches on the record variant.
func (n *Normalizer) Normalize(record domain.SourceRecord) Report {
	switch rec := record.(type) {
	case *domain.RequestRecord:
		return n.normalizeRequest(rec)
	case *domain.AccomplishmentRecord:
		return n.normalizeAccomplishment(rec)
	default:
		return Report{Personnel: []string{Unassigned}, Record: record}
	}
}

func (n *Normalizer) normalizeRequest(req *domain.RequestRecord) Report {
	r := Report{
		ID:          req.ID,
		Kind:        domain.KindRequest,
		Source:      OriginLive,
		Description: req.Description,
		Date:        req.CreatedAt.In(n.loc),
		Personnel:   personnelNames(req.Personnel),
		Status:      req.Status,
		Rating:      req.Rating,
		RequestID:   req.ID,
		Record:      req,
	}
	if req.Office != nil {
		r.RequestingOffice = req.Office.Name
	}
	if req.Unit != nil {
		r.Unit = req.Unit.Name
	}
	return r
}

func (n *Normalizer) normalizeAccomplishment(rec *domain.AccomplishmentRecord) Report {
	r := Report{
		ID:               rec.ID,
		Kind:             domain.KindAccomplishment,
		Source:           OriginMigrated,
		RequestingOffice: rec.RequestingOffice,
		Description:      rec.Description,
		Date:             n.midnight(rec.DateStarted),
		Personnel:        personnelNames(rec.Personnel),
		Status:           rec.Status,
		Rating:           rec.Rating,
		Record:           rec,
	}
	if r.Status == "" {
		r.Status = domain.StatusCompleted
	}
	if rec.Unit != nil {
		r.Unit = rec.Unit.Name
	}
	if req := rec.Request; req != nil {
		r.Source = OriginLive
		r.RequestID = req.ID
		if req.Office != nil && req.Office.Name != "" {
			r.RequestingOffice = req.Office.Name
		}
		if req.Unit != nil && req.Unit.Name != "" {
			r.Unit = req.Unit.Name
		}
	}
	return r
}

func (n *Normalizer) midnight(date time.Time) time.Time {
	if date.IsZero() {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, n.loc)
}

// RepresentativeDate is the date Normalize would report for a record.
func (n *Normalizer) RepresentativeDate(record domain.SourceRecord) time.Time {
	switch rec := record.(type) {
	case *domain.RequestRecord:
		return rec.CreatedAt.In(n.loc)
	case *domain.AccomplishmentRecord:
		return n.midnight(rec.DateStarted)
	}
	return time.Time{}
}

func personnelNames(people []domain.Person) []string {
	if len(people) == 0 {
		return []string{Unassigned}
	}
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.DisplayName())
	}
	return out
}
