// Package domain defines the records, catalog and compiled rows shared by the
// IPMT compilation pipeline, together with the persistence ports it relies on.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecordKind tags the variant of a SourceRecord.
type RecordKind string

const (
	KindRequest        RecordKind = "ServiceRequest"
	KindAccomplishment RecordKind = "WorkAccomplishmentReport"
)

// Status is the lifecycle state of a source record.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	// Request-only terminal states.
	StatusCancelled Status = "Cancelled"
	StatusRejected  Status = "Rejected"
)

// ParseStatus maps free text onto a known status. Unknown values are kept verbatim.
func ParseStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(strings.ReplaceAll(trimmed, "_", " ")) {
	case "":
		return ""
	case "pending":
		return StatusPending
	case "in progress", "inprogress", "ongoing":
		return StatusInProgress
	case "completed", "complete", "done":
		return StatusCompleted
	case "cancelled", "canceled":
		return StatusCancelled
	case "rejected":
		return StatusRejected
	default:
		return Status(trimmed)
	}
}

// SourceRecord is either a *RequestRecord or an *AccomplishmentRecord.
type SourceRecord interface {
	RecordID() string
	RecordKind() RecordKind
	AssignedTo(personID string) bool
	sourceRecord()
}

// RequestRecord is a live service request owned by the request lifecycle.
type RequestRecord struct {
	ID          string
	Description string
	Unit        *Unit
	Office      *Office
	Personnel   []Person
	CreatedAt   time.Time
	CompletedAt *time.Time
	Status      Status
	Rating      *string
	// Notes are the free-text task reports filed against the request, in filing order.
	Notes []string
}

func (r *RequestRecord) RecordID() string       { return r.ID }
func (r *RequestRecord) RecordKind() RecordKind { return KindRequest }
func (r *RequestRecord) AssignedTo(personID string) bool {
	return containsPerson(r.Personnel, personID)
}
func (*RequestRecord) sourceRecord() {}

// AccomplishmentRecord is a work accomplishment report, either generated from a
// request or migrated from a legacy spreadsheet.
type AccomplishmentRecord struct {
	ID      string
	Request *RequestRecord
	Unit    *Unit
	// RequestingOffice is the office stored on the record itself, used when no
	// request is linked.
	RequestingOffice string
	Personnel        []Person
	// DateStarted and DateCompleted are calendar dates; only Y/M/D are meaningful.
	DateStarted   time.Time
	DateCompleted *time.Time
	ActivityName  string
	Description   string
	Status        Status
	Rating        *string
	MaterialCost  float64
	LaborCost     float64
	TotalCost     float64
	ControlNumber string
	CreatedAt     time.Time
}

func (a *AccomplishmentRecord) RecordID() string       { return a.ID }
func (a *AccomplishmentRecord) RecordKind() RecordKind { return KindAccomplishment }
func (a *AccomplishmentRecord) AssignedTo(personID string) bool {
	return containsPerson(a.Personnel, personID)
}
func (*AccomplishmentRecord) sourceRecord() {}

// RecomputeTotal keeps TotalCost equal to material plus labor cost.
func (a *AccomplishmentRecord) RecomputeTotal() {
	a.TotalCost = a.MaterialCost + a.LaborCost
}

// DisplayDescription returns the description or a generated stand-in when it is blank.
func (a *AccomplishmentRecord) DisplayDescription() string {
	if strings.TrimSpace(a.Description) != "" {
		return a.Description
	}
	if a.Request != nil {
		return fmt.Sprintf("WAR generated from request %s: %s", a.Request.ID, a.Request.Description)
	}
	name := a.ActivityName
	if name == "" {
		name = "N/A"
	}
	return fmt.Sprintf("WAR for activity %s", name)
}

// RequestID returns the id of the originating request, or "".
func (a *AccomplishmentRecord) RequestID() string {
	if a.Request == nil {
		return ""
	}
	return a.Request.ID
}

func containsPerson(people []Person, id string) bool {
	for _, p := range people {
		if p.ID == id {
			return true
		}
	}
	return false
}
