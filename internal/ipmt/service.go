// Package ipmt runs the preview, save and export workflows over compiled
// indicator rows.
package ipmt

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"example.com/ipmt/internal/aggregate"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/observability"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/sheet"
)

// RowInput is one edited row submitted for save or export.
type RowInput struct {
	Indicator   string   `json:"indicator"`
	Description string   `json:"description"`
	Remarks     string   `json:"remarks"`
	RecordIDs   []string `json:"war_ids,omitempty"`
}

// UpsertInput identifies one row and carries its new content.
type UpsertInput struct {
	Person         domain.Person
	Unit           domain.Unit
	MonthLabel     string
	IndicatorCode  string
	Accomplishment string
	Remarks        string
	// RecordIDs restricts the link set when non-empty.
	RecordIDs []string
}

// SaveRequest is a batch save of edited rows for several people.
type SaveRequest struct {
	Month     string     `json:"month"`
	Unit      string     `json:"unit"`
	Personnel []string   `json:"personnel"`
	Rows      []RowInput `json:"rows"`
}

// SaveResult reports what Save stored.
type SaveResult struct {
	Rows       []domain.IPMTRow `json:"rows"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

// RowQuery narrows ListRows. Blank fields do not filter.
type RowQuery struct {
	Personnel string
	Unit      string
	Month     string
}

// Service wires aggregation, the row store and the spreadsheet compilers.
type Service struct {
	store         domain.Store
	aggregator    *aggregate.Aggregator
	template      *sheet.TemplateCompiler
	createMissing bool
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCreateMissingIndicators toggles on-the-fly indicator creation on upsert.
func WithCreateMissingIndicators(enabled bool) Option {
	return func(s *Service) { s.createMissing = enabled }
}

// NewService constructs a Service. Indicator creation is on by default.
func NewService(store domain.Store, aggregator *aggregate.Aggregator, template *sheet.TemplateCompiler, opts ...Option) *Service {
	s := &Service{
		store:         store,
		aggregator:    aggregator,
		template:      template,
		createMissing: true,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview aggregates rows for a "YYYY-MM" month filter.
func (s *Service) Preview(ctx context.Context, monthFilter, unitName string, people []string) (*aggregate.Result, error) {
	month, err := domain.ParseMonth(monthFilter)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, month, unitName, people)
}

// Upsert stores one row by identity (person, unit, month, indicator).
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (domain.IPMTRow, error) {
	indicator, err := s.indicator(ctx, in.Unit, in.IndicatorCode)
	if err != nil {
		return domain.IPMTRow{}, err
	}

	candidates, err := s.aggregator.Candidates(ctx, nil, in.Unit.ID)
	if err != nil {
		return domain.IPMTRow{}, err
	}
	links := restrictLinks(aggregate.MatchRecords(candidates, in.Person.ID, *indicator), in.RecordIDs)

	remarks := in.Remarks
	if strings.TrimSpace(remarks) == "" {
		remarks = in.Accomplishment
	}
	stored, err := s.store.UpsertRow(ctx, domain.IPMTRow{
		PersonnelID:    in.Person.ID,
		UnitID:         in.Unit.ID,
		Month:          in.MonthLabel,
		IndicatorID:    indicator.ID,
		Accomplishment: in.Accomplishment,
		Remarks:        remarks,
		RecordIDs:      links,
	})
	if err != nil {
		return domain.IPMTRow{}, fmt.Errorf("upsert ipmt row: %w", err)
	}
	observability.RecordRowUpserted(stored.CreatedAt.Equal(stored.UpdatedAt), stored.UpdatedAt)
	return stored, nil
}

// Save upserts every row for every resolved person. The unit is checked
// before anything is written. Only an explicit "all" fans out to the whole
// unit; no personnel saves nothing.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	month, err := domain.ParseMonthAny(req.Month)
	if err != nil {
		return nil, err
	}
	unit, err := s.aggregator.FindUnit(ctx, req.Unit)
	if err != nil {
		return nil, err
	}
	people, unresolved, err := s.resolvePeople(ctx, *unit, req.Personnel)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Rows: make([]domain.IPMTRow, 0, len(people)*len(req.Rows)), Unresolved: unresolved}
	for _, person := range people {
		for _, row := range req.Rows {
			code := indicatorCode(row.Indicator)
			if code == "" {
				continue
			}
			stored, err := s.Upsert(ctx, UpsertInput{
				Person:         person,
				Unit:           *unit,
				MonthLabel:     month.Label(),
				IndicatorCode:  code,
				Accomplishment: row.Description,
				Remarks:        row.Remarks,
				RecordIDs:      row.RecordIDs,
			})
			if err != nil {
				return nil, err
			}
			result.Rows = append(result.Rows, stored)
		}
	}
	s.logger.Info("saved ipmt rows",
		zap.String("unit", unit.Name),
		zap.String("month", month.Label()),
		zap.Int("rows", len(result.Rows)),
		zap.Strings("unresolved", unresolved))
	return result, nil
}

// ListRows returns saved rows.
func (s *Service) ListRows(ctx context.Context, q RowQuery) ([]domain.IPMTRow, error) {
	var filter domain.IPMTFilter
	if strings.TrimSpace(q.Personnel) != "" {
		person, err := s.aggregator.Resolver().Resolve(ctx, q.Personnel)
		if err != nil {
			return nil, err
		}
		filter.PersonnelID = person.ID
	}
	if strings.TrimSpace(q.Unit) != "" {
		unit, err := s.aggregator.FindUnit(ctx, q.Unit)
		if err != nil {
			return nil, err
		}
		filter.UnitID = unit.ID
	}
	if strings.TrimSpace(q.Month) != "" {
		month, err := domain.ParseMonthAny(q.Month)
		if err != nil {
			return nil, err
		}
		filter.Month = month.Label()
	}
	return s.store.ListRows(ctx, filter)
}

// FileName is the download name of a template export.
func FileName(unitName string, month domain.Month) string {
	return fmt.Sprintf("IPMT_%s_%s.xlsx", strings.ReplaceAll(strings.TrimSpace(unitName), " ", "_"), month.Filter())
}

// BatchFileName is the download name of a multi-sheet export.
func BatchFileName(unitName string, month domain.Month) string {
	return "IPMT_Batch_" + strings.TrimPrefix(FileName(unitName, month), "IPMT_")
}

func (s *Service) indicator(ctx context.Context, unit domain.Unit, code string) (*domain.SuccessIndicator, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", domain.ErrIndicatorNotFound)
	}
	found, err := s.store.FindIndicatorByCode(ctx, unit.ID, code)
	if err != nil {
		return nil, fmt.Errorf("find indicator: %w", err)
	}
	if found != nil {
		return found, nil
	}
	if !s.createMissing {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrIndicatorNotFound, code, unit.Name)
	}
	created, err := s.store.SaveIndicator(ctx, domain.SuccessIndicator{
		UnitID:      unit.ID,
		Code:        code,
		Description: code,
		Active:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create indicator %s: %w", code, err)
	}
	observability.RecordIndicatorCreated()
	s.logger.Info("created missing success indicator",
		zap.String("unit", unit.Name),
		zap.String("code", code))
	return &created, nil
}

// resolvePeople expands an explicit "all" to the unit's active personnel and
// resolves everything else. An empty list selects nobody.
func (s *Service) resolvePeople(ctx context.Context, unit domain.Unit, filter []string) ([]domain.Person, []string, error) {
	if personnel.ContainsAll(filter) {
		people, err := s.store.ListActivePersonnel(ctx, unit.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("list personnel: %w", err)
		}
		return people, nil, nil
	}
	if len(filter) == 0 {
		return nil, nil, nil
	}
	return s.aggregator.Resolver().ResolveAll(ctx, filter)
}

// restrictLinks keeps the requested ids that are among the matching records,
// in request order. No request means every match.
func restrictLinks(matched []domain.SourceRecord, requested []string) []string {
	ids := make([]string, 0, len(matched))
	for _, rec := range matched {
		ids = append(ids, rec.RecordID())
	}
	if len(requested) == 0 {
		return ids
	}
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// indicatorCode strips a " - description" suffix from a rendered label.
func indicatorCode(raw string) string {
	code, _, _ := strings.Cut(raw, " - ")
	return strings.TrimSpace(code)
}

func sortPeople(people []domain.Person) {
	sort.SliceStable(people, func(i, j int) bool {
		di, dj := people[i].DisplayName(), people[j].DisplayName()
		if di != dj {
			return di < dj
		}
		return people[i].ID < people[j].ID
	})
}
