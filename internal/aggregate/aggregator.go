// Package aggregate compiles per-person success indicator rows for one unit
// and month from the reconciled source records.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/ipmt/internal/classify"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/observability"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/report"
	"example.com/ipmt/internal/summary"
)

// Source is the read side of the store the aggregator needs.
type Source interface {
	domain.UnitRepository
	domain.PersonnelRepository
	domain.CatalogRepository
	domain.RecordRepository
}

// FailurePolicy decides what a row holds when the summary delegate fails.
type FailurePolicy string

const (
	// PolicyPlaceholder annotates the joined descriptions.
	PolicyPlaceholder FailurePolicy = "placeholder"
	// PolicyEmpty leaves the accomplishment blank.
	PolicyEmpty FailurePolicy = "empty"
	// PolicyError aborts the aggregation.
	PolicyError FailurePolicy = "error"
)

// PlaceholderPrefix marks accomplishments written without a summary.
const PlaceholderPrefix = "[summary unavailable] "

// ParseFailurePolicy maps a config value to a policy, defaulting to placeholder.
func ParseFailurePolicy(raw string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyPlaceholder:
		return PolicyPlaceholder, nil
	case PolicyEmpty:
		return PolicyEmpty, nil
	case PolicyError:
		return PolicyError, nil
	default:
		return "", fmt.Errorf("unknown summary failure policy %q", raw)
	}
}

// Row is one compiled (person, indicator) entry.
type Row struct {
	IndicatorID          string   `json:"indicator_id"`
	IndicatorCode        string   `json:"indicator"`
	IndicatorDescription string   `json:"indicator_description"`
	Accomplishment       string   `json:"description"`
	Remarks              string   `json:"remarks"`
	RecordIDs            []string `json:"war_ids"`
}

// IndicatorLabel renders "CODE - description" for spreadsheets.
func (r Row) IndicatorLabel() string {
	return domain.SuccessIndicator{Code: r.IndicatorCode, Description: r.IndicatorDescription}.Label()
}

// PersonRows groups the rows compiled for one person.
type PersonRows struct {
	Person domain.Person `json:"person"`
	Rows   []Row         `json:"rows"`
}

// Result is the output of one aggregation run.
type Result struct {
	Unit       domain.Unit  `json:"unit"`
	Month      domain.Month `json:"-"`
	MonthLabel string       `json:"month"`
	People     []PersonRows `json:"personnel"`
	Unresolved []string     `json:"unresolved,omitempty"`
}

// RowCount is the number of rows over every person.
func (r *Result) RowCount() int {
	n := 0
	for _, p := range r.People {
		n += len(p.Rows)
	}
	return n
}

// Aggregator compiles indicator rows.
type Aggregator struct {
	source     Source
	delegate   summary.Delegate
	resolver   *personnel.Resolver
	normalizer *report.Normalizer
	loc        *time.Location
	policy     FailurePolicy
	logger     *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLocation anchors month ranges and record dates.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithFailurePolicy sets the delegate failure policy.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(a *Aggregator) { a.policy = policy }
}

// WithResolver replaces the default personnel resolver.
func WithResolver(resolver *personnel.Resolver) Option {
	return func(a *Aggregator) { a.resolver = resolver }
}

// New constructs an Aggregator. A nil delegate joins descriptions offline.
func New(source Source, delegate summary.Delegate, opts ...Option) *Aggregator {
	if delegate == nil {
		delegate = summary.JoinDelegate{}
	}
	a := &Aggregator{
		source:   source,
		delegate: delegate,
		loc:      time.UTC,
		policy:   PolicyPlaceholder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = personnel.NewResolver(source, personnel.WithLogger(a.logger))
	}
	a.normalizer = report.NewNormalizer(a.loc)
	return a
}

// Classifier builds a classifier from the activity catalog as currently
// stored. It fails with domain.ErrMissingFallback when Miscellaneous is gone.
func (a *Aggregator) Classifier(ctx context.Context) (*classify.Classifier, error) {
	classifier, err := classify.Load(ctx, a.source, classify.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	return classifier, nil
}

// Resolver exposes the personnel resolver used for filters.
func (a *Aggregator) Resolver() *personnel.Resolver {
	return a.resolver
}

// Aggregate compiles rows for unitName and month. An empty filter or one that
// holds "all" selects every active personnel of the unit; otherwise each
// identifier is resolved and unresolved ones are skipped.
func (a *Aggregator) Aggregate(ctx context.Context, month domain.Month, unitName string, filter []string) (*Result, error) {
	unit, err := a.FindUnit(ctx, unitName)
	if err != nil {
		return nil, err
	}

	var (
		people     []domain.Person
		unresolved []string
	)
	if len(filter) == 0 || personnel.ContainsAll(filter) {
		people, err = a.source.ListActivePersonnel(ctx, unit.ID)
		if err != nil {
			return nil, fmt.Errorf("list personnel: %w", err)
		}
	} else {
		people, unresolved, err = a.resolver.ResolveAll(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	result, err := a.Compile(ctx, month, *unit, people)
	if err != nil {
		return nil, err
	}
	result.Unresolved = unresolved
	return result, nil
}

// FindUnit looks a unit up by name, failing with domain.ErrUnitNotFound.
func (a *Aggregator) FindUnit(ctx context.Context, name string) (*domain.Unit, error) {
	unit, err := a.source.FindUnitByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("find unit: %w", err)
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnitNotFound, name)
	}
	return unit, nil
}

// Compile aggregates rows for an already resolved unit and person list.
// People are emitted ordered by display name.
func (a *Aggregator) Compile(ctx context.Context, month domain.Month, unit domain.Unit, people []domain.Person) (*Result, error) {
	indicators, err := a.source.ListIndicators(ctx, unit.ID, true)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	candidates, err := a.Candidates(ctx, &month, unit.ID)
	if err != nil {
		return nil, err
	}

	people = append([]domain.Person(nil), people...)
	sort.SliceStable(people, func(i, j int) bool {
		di, dj := people[i].DisplayName(), people[j].DisplayName()
		if di != dj {
			return di < dj
		}
		return people[i].ID < people[j].ID
	})

	r := &run{Aggregator: a, memo: summary.NewMemo(a.delegate), candidates: candidates}
	result := &Result{Unit: unit, Month: month, MonthLabel: month.Label(), People: make([]PersonRows, 0, len(people))}
	for _, person := range people {
		rows := make([]Row, 0, len(indicators))
		for _, indicator := range indicators {
			row, err := r.compileRow(ctx, person, indicator)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		result.People = append(result.People, PersonRows{Person: person, Rows: rows})
	}

	observability.RecordRowsCompiled(result.RowCount())
	a.logger.Info("aggregated ipmt rows",
		zap.String("unit", unit.Name),
		zap.String("month", month.Label()),
		zap.Int("personnel", len(result.People)),
		zap.Int("rows", result.RowCount()))
	return result, nil
}

// Candidate is a reconciled source record with its resolved activity.
type Candidate struct {
	Record   domain.SourceRecord
	Activity string
}

// Candidates lists the reconciled source records of a unit, chronologically,
// each with its resolved activity name. A nil month lists every month.
// Requests are dropped when any accomplishment record links to them, whatever
// month that record falls in. Activities are classified against the catalog
// as stored at call time.
func (a *Aggregator) Candidates(ctx context.Context, month *domain.Month, unitID string) ([]Candidate, error) {
	classifier, err := a.Classifier(ctx)
	if err != nil {
		return nil, err
	}

	filter := domain.RecordFilter{UnitID: unitID, Month: month, Location: a.loc}
	accomplishments, err := a.source.ListAccomplishments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list accomplishments: %w", err)
	}
	linked := accomplishments
	if month != nil {
		linked, err = a.source.ListAccomplishments(ctx, domain.RecordFilter{})
		if err != nil {
			return nil, fmt.Errorf("list linked accomplishments: %w", err)
		}
	}
	filter.Status = domain.StatusCompleted
	requests, err := a.source.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	records := report.ReconcileLinked(requests, accomplishments, linked)
	a.normalizer.SortChronologically(records)
	out := make([]Candidate, 0, len(records))
	for _, rec := range records {
		out = append(out, Candidate{Record: rec, Activity: classifier.Resolve(rec)})
	}
	return out, nil
}

// MatchRecords returns the candidates that evidence indicator for person.
func MatchRecords(candidates []Candidate, personID string, indicator domain.SuccessIndicator) []domain.SourceRecord {
	name := indicator.MatchName()
	var out []domain.SourceRecord
	for _, c := range candidates {
		if domain.SameActivity(c.Activity, name) && c.Record.AssignedTo(personID) {
			out = append(out, c.Record)
		}
	}
	return out
}

type run struct {
	*Aggregator
	memo       *summary.Memo
	candidates []Candidate
}

func (r *run) compileRow(ctx context.Context, person domain.Person, indicator domain.SuccessIndicator) (Row, error) {
	row := Row{
		IndicatorID:          indicator.ID,
		IndicatorCode:        indicator.Code,
		IndicatorDescription: indicator.Description,
		RecordIDs:            []string{},
	}
	matched := MatchRecords(r.candidates, person.ID, indicator)
	for _, rec := range matched {
		row.RecordIDs = append(row.RecordIDs, rec.RecordID())
	}

	switch len(matched) {
	case 0:
	case 1:
		row.Accomplishment = recordDescription(matched[0])
	default:
		text, err := r.summarize(ctx, indicator.Label(), matched)
		if err != nil {
			return Row{}, err
		}
		row.Accomplishment = text
	}
	row.Remarks = row.Accomplishment
	return row, nil
}

func (r *run) summarize(ctx context.Context, label string, matched []domain.SourceRecord) (string, error) {
	descriptions := make([]string, 0, len(matched))
	for _, rec := range matched {
		if desc := strings.TrimSpace(recordDescription(rec)); desc != "" {
			descriptions = append(descriptions, desc)
		}
	}
	if len(descriptions) == 0 {
		return "", nil
	}

	if r.memo.Hit(label, descriptions) {
		observability.ObserveSummary("cached", 0)
		return r.memo.Summarize(ctx, label, descriptions)
	}
	start := time.Now()
	text, err := r.memo.Summarize(ctx, label, descriptions)
	if err == nil {
		observability.ObserveSummary("ok", time.Since(start))
		return text, nil
	}
	observability.ObserveSummary("error", time.Since(start))
	if !errors.Is(err, domain.ErrDelegateFailure) {
		err = fmt.Errorf("%w: %v", domain.ErrDelegateFailure, err)
	}
	r.logger.Warn("summary delegate failed",
		zap.String("indicator", label),
		zap.String("policy", string(r.policy)),
		zap.Error(err))

	switch r.policy {
	case PolicyError:
		return "", err
	case PolicyEmpty:
		return "", nil
	default:
		return PlaceholderPrefix + strings.Join(descriptions, summary.Separator), nil
	}
}

func recordDescription(rec domain.SourceRecord) string {
	switch v := rec.(type) {
	case *domain.AccomplishmentRecord:
		return v.Description
	case *domain.RequestRecord:
		return v.Description
	default:
		return ""
	}
}
