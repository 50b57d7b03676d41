// Package ingest loads legacy accomplishment records and requests from CSV or
// XLSX files into the store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/personnel"
)

// Target is the entity kind a file is imported into.
type Target string

const (
	TargetAccomplishment Target = "accomplishment"
	TargetRequest        Target = "request"
)

var targetAliases = map[string]Target{
	"accomplishment":                       TargetAccomplishment,
	"war":                                  TargetAccomplishment,
	"gso_reports.workaccomplishmentreport": TargetAccomplishment,
	"gso_reports.datamigration":            TargetAccomplishment,
	"request":                              TargetRequest,
	"gso_requests.servicerequest":          TargetRequest,
}

// ResolveTarget maps a target name or alias to a Target.
func ResolveTarget(name string) (Target, error) {
	if t, ok := targetAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownTarget, name)
}

var recognized = map[Target]map[string]struct{}{
	TargetAccomplishment: set("id", "unit", "requesting_office", "assigned_personnel", "date_started",
		"date_completed", "activity_name", "request_type", "description", "status", "rating",
		"material_cost", "labor_cost", "control_number"),
	TargetRequest: set("id", "unit", "requesting_office", "department", "assigned_personnel",
		"description", "status", "rating", "created_at", "notes"),
}

// RowError explains why one data row was skipped. Line is 1-based and counts
// the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result summarizes an import.
type Result struct {
	Target   Target     `json:"target"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Importer writes imported rows through the store ports.
type Importer struct {
	store       domain.Store
	resolver    *personnel.Resolver
	loc         *time.Location
	defaultUnit string
	logger      *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithLocation sets the zone for date cells.
func WithLocation(loc *time.Location) Option {
	return func(i *Importer) {
		if loc != nil {
			i.loc = loc
		}
	}
}

// WithDefaultUnit names the unit used for rows without a unit column.
func WithDefaultUnit(name string) Option {
	return func(i *Importer) { i.defaultUnit = name }
}

// NewImporter constructs an Importer.
func NewImporter(store domain.Store, opts ...Option) *Importer {
	i := &Importer{store: store, loc: time.UTC, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	i.resolver = personnel.NewResolver(store, personnel.WithLogger(i.logger))
	return i
}

// Import reads r as CSV or XLSX according to fileName and inserts one record
// per data row into target. Unrecognized columns are ignored; rows that cannot
// be stored are skipped and reported.
func (i *Importer) Import(ctx context.Context, r io.Reader, fileName, target string) (*Result, error) {
	t, err := ResolveTarget(target)
	if err != nil {
		return nil, err
	}
	tbl, err := readTable(r, fileName)
	if err != nil {
		return nil, err
	}

	result := &Result{Target: t}
	for idx := range tbl.rows {
		if blank(tbl.rows[idx]) {
			continue
		}
		fields := tbl.record(idx, recognized[t])
		switch t {
		case TargetAccomplishment:
			err = i.importAccomplishment(ctx, fields)
		case TargetRequest:
			err = i.importRequest(ctx, fields)
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Line: idx + 2, Reason: err.Error()})
			continue
		}
		result.Inserted++
	}
	i.logger.Info("import finished",
		zap.String("file", fileName),
		zap.String("target", string(t)),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (i *Importer) importAccomplishment(ctx context.Context, fields map[string]string) error {
	unit, err := i.unit(ctx, fields["unit"])
	if err != nil {
		return err
	}
	started, err := parseDate(fields["date_started"], i.loc)
	if err != nil {
		return fmt.Errorf("date_started: %w", err)
	}
	rec := &domain.AccomplishmentRecord{
		ID:               fields["id"],
		Unit:             unit,
		RequestingOffice: fields["requesting_office"],
		DateStarted:      started,
		ActivityName:     fields["activity_name"],
		Description:      fields["description"],
		Status:           domain.ParseStatus(fields["status"]),
		Rating:           optional(fields["rating"]),
		ControlNumber:    fields["control_number"],
	}
	if rec.ActivityName == "" {
		rec.ActivityName = fields["request_type"]
	}
	if raw := fields["date_completed"]; raw != "" {
		completed, err := parseDate(raw, i.loc)
		if err != nil {
			return fmt.Errorf("date_completed: %w", err)
		}
		rec.DateCompleted = &completed
	}
	if rec.MaterialCost, err = parseAmount(fields["material_cost"]); err != nil {
		return fmt.Errorf("material_cost: %w", err)
	}
	if rec.LaborCost, err = parseAmount(fields["labor_cost"]); err != nil {
		return fmt.Errorf("labor_cost: %w", err)
	}
	if rec.Personnel, err = i.people(ctx, fields["assigned_personnel"]); err != nil {
		return err
	}
	return i.store.SaveAccomplishment(ctx, rec)
}

func (i *Importer) importRequest(ctx context.Context, fields map[string]string) error {
	unit, err := i.unit(ctx, fields["unit"])
	if err != nil {
		return err
	}
	rec := &domain.RequestRecord{
		ID:          fields["id"],
		Description: fields["description"],
		Unit:        unit,
		Status:      domain.ParseStatus(fields["status"]),
		Rating:      optional(fields["rating"]),
	}
	if rec.Status == "" {
		rec.Status = domain.StatusPending
	}
	if raw := fields["created_at"]; raw != "" {
		if rec.CreatedAt, err = parseDate(raw, i.loc); err != nil {
			return fmt.Errorf("created_at: %w", err)
		}
	}
	if notes := fields["notes"]; notes != "" {
		for _, n := range strings.Split(notes, ";") {
			if n = strings.TrimSpace(n); n != "" {
				rec.Notes = append(rec.Notes, n)
			}
		}
	}
	officeName := fields["requesting_office"]
	if officeName == "" {
		officeName = fields["department"]
	}
	if officeName != "" {
		office, err := i.store.FindOfficeByName(ctx, officeName)
		if err != nil {
			return err
		}
		if office == nil {
			saved, err := i.store.SaveOffice(ctx, domain.Office{Name: officeName})
			if err != nil {
				return err
			}
			office = &saved
		}
		rec.Office = office
	}
	if rec.Personnel, err = i.people(ctx, fields["assigned_personnel"]); err != nil {
		return err
	}
	return i.store.SaveRequest(ctx, rec)
}

func (i *Importer) unit(ctx context.Context, name string) (*domain.Unit, error) {
	if name == "" {
		name = i.defaultUnit
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no unit given", domain.ErrUnitNotFound)
	}
	unit, err := i.store.FindUnitByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnitNotFound, name)
	}
	return unit, nil
}

func (i *Importer) people(ctx context.Context, raw string) ([]domain.Person, error) {
	people, _, err := i.resolver.ResolveAll(ctx, personnel.SplitList(raw))
	return people, err
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"1-2-06",
	"1/2/06",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func parseAmount(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
