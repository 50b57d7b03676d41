package domain

import (
	"context"
	"time"
)

// UnitRepository looks up units and offices. Lookups return nil, nil when absent.
type UnitRepository interface {
	FindUnitByName(ctx context.Context, name string) (*Unit, error)
	GetUnit(ctx context.Context, id string) (*Unit, error)
	SaveUnit(ctx context.Context, unit Unit) (Unit, error)
	FindOfficeByName(ctx context.Context, name string) (*Office, error)
	SaveOffice(ctx context.Context, office Office) (Office, error)
}

// PersonnelRepository exposes the user directory. Single lookups return nil, nil
// when nothing matches; ties resolve in the store's stable order.
type PersonnelRepository interface {
	GetPerson(ctx context.Context, id string) (*Person, error)
	FindPersonByUsername(ctx context.Context, username string) (*Person, error)
	FindPersonByName(ctx context.Context, first, last string) (*Person, error)
	SearchPersonByNamePart(ctx context.Context, part string) (*Person, error)
	// ListActivePersonnel returns active users with the personnel role. An
	// empty unitID lists every unit.
	ListActivePersonnel(ctx context.Context, unitID string) ([]Person, error)
	SavePerson(ctx context.Context, person Person) (Person, error)
}

// CatalogRepository exposes activities and indicators in catalog order.
type CatalogRepository interface {
	ListActivities(ctx context.Context) ([]ActivityName, error)
	SaveActivity(ctx context.Context, activity ActivityName) (ActivityName, error)
	ListIndicators(ctx context.Context, unitID string, activeOnly bool) ([]SuccessIndicator, error)
	FindIndicatorByCode(ctx context.Context, unitID, code string) (*SuccessIndicator, error)
	// SaveIndicator inserts or updates by (unit, code).
	SaveIndicator(ctx context.Context, indicator SuccessIndicator) (SuccessIndicator, error)
}

// RecordFilter narrows source record listings. Zero fields do not filter.
type RecordFilter struct {
	UnitID      string
	PersonnelID string
	Status      Status
	Month       *Month
	// Location anchors request timestamps when filtering by Month.
	Location *time.Location
}

// RecordRepository reads and writes both source record kinds.
type RecordRepository interface {
	ListRequests(ctx context.Context, filter RecordFilter) ([]*RequestRecord, error)
	ListAccomplishments(ctx context.Context, filter RecordFilter) ([]*AccomplishmentRecord, error)
	// GetRecord returns nil, nil when no record of either kind has the id.
	GetRecord(ctx context.Context, id string) (SourceRecord, error)
	SaveRequest(ctx context.Context, record *RequestRecord) error
	SaveAccomplishment(ctx context.Context, record *AccomplishmentRecord) error
}

// IPMTFilter narrows saved row listings. Zero fields do not filter.
type IPMTFilter struct {
	PersonnelID string
	UnitID      string
	Month       string
}

// IPMTRepository persists compiled rows.
type IPMTRepository interface {
	// UpsertRow inserts or replaces the row with the same identity, replacing
	// its record links, atomically. The stored row is returned.
	UpsertRow(ctx context.Context, row IPMTRow) (IPMTRow, error)
	ListRows(ctx context.Context, filter IPMTFilter) ([]IPMTRow, error)
}

// Store bundles every port implemented by the persistence backends.
type Store interface {
	UnitRepository
	PersonnelRepository
	CatalogRepository
	RecordRepository
	IPMTRepository
}
