// Package events defines the payloads exchanged over Kafka.
package events

import "time"

// Event types.
const (
	TypeRowSaved               = "ipmt.row_saved"
	TypeRequestCompleted       = "request.completed"
	TypeAccomplishmentRecorded = "accomplishment.recorded"
)

// DateLayout formats calendar dates inside payloads.
const DateLayout = "2006-01-02"

// RowSaved is emitted every time an IPMT row is upserted.
type RowSaved struct {
	RowID          string    `json:"row_id"`
	PersonnelID    string    `json:"personnel_id"`
	UnitID         string    `json:"unit_id"`
	Month          string    `json:"month"`
	IndicatorID    string    `json:"indicator_id"`
	IndicatorCode  string    `json:"indicator_code"`
	Accomplishment string    `json:"accomplishment"`
	Remarks        string    `json:"remarks"`
	RecordIDs      []string  `json:"record_ids"`
	SavedAt        time.Time `json:"saved_at"`
}

// RequestCompleted carries a request from the request lifecycle. Personnel
// entries are identifiers resolved on ingestion.
type RequestCompleted struct {
	RequestID        string     `json:"request_id"`
	Description      string     `json:"description"`
	Unit             string     `json:"unit"`
	RequestingOffice string     `json:"requesting_office,omitempty"`
	Personnel        []string   `json:"personnel"`
	Status           string     `json:"status"`
	Rating           *string    `json:"rating,omitempty"`
	Notes            []string   `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// AccomplishmentRecorded carries a work accomplishment report.
type AccomplishmentRecorded struct {
	RecordID         string   `json:"record_id"`
	RequestID        string   `json:"request_id,omitempty"`
	Unit             string   `json:"unit"`
	RequestingOffice string   `json:"requesting_office,omitempty"`
	Personnel        []string `json:"personnel"`
	DateStarted      string   `json:"date_started"`
	DateCompleted    string   `json:"date_completed,omitempty"`
	ActivityName     string   `json:"activity_name,omitempty"`
	Description      string   `json:"description"`
	Status           string   `json:"status,omitempty"`
	Rating           *string  `json:"rating,omitempty"`
	MaterialCost     float64  `json:"material_cost"`
	LaborCost        float64  `json:"labor_cost"`
	ControlNumber    string   `json:"control_number,omitempty"`
}
