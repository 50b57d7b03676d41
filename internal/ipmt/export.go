package ipmt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/ipmt/internal/aggregate"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/observability"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/sheet"
)

// AllUnits selects every unit in a batch export.
const AllUnits = "all"

// ExportRequest selects what a template export renders. Rows, when given,
// are the edited preview and are rendered as submitted.
type ExportRequest struct {
	Month     string     `json:"month"`
	Unit      string     `json:"unit"`
	Personnel []string   `json:"personnel"`
	Rows      []RowInput `json:"rows"`
}

// ExportTemplate fills the organizational template and writes it to w. It
// returns the download file name.
func (s *Service) ExportTemplate(ctx context.Context, w io.Writer, req ExportRequest) (string, error) {
	start := time.Now()
	month, err := domain.ParseMonthAny(req.Month)
	if err != nil {
		return "", err
	}
	unit, err := s.aggregator.FindUnit(ctx, req.Unit)
	if err != nil {
		return "", err
	}

	var (
		names  []string
		people []domain.Person
	)
	for _, identifier := range req.Personnel {
		person, err := s.aggregator.Resolver().Resolve(ctx, identifier)
		if errors.Is(err, domain.ErrPersonNotResolved) {
			names = append(names, strings.TrimSpace(identifier))
			continue
		}
		if err != nil {
			return "", err
		}
		names = append(names, person.DisplayName())
		people = append(people, *person)
	}

	var lines []sheet.Line
	if len(req.Rows) > 0 {
		lines, err = s.expandRows(ctx, *unit, req.Rows)
	} else {
		lines, err = s.savedOrCompiled(ctx, month, *unit, people)
	}
	if err != nil {
		return "", err
	}

	if err := s.template.Compile(w, sheet.TemplateData{
		Personnel:  names,
		MonthLabel: month.Label(),
		Lines:      lines,
	}); err != nil {
		return "", err
	}
	observability.ObserveExport("template", time.Since(start))
	return FileName(unit.Name, month), nil
}

// ExportBatch writes one sheet per person. An empty filter or "all" selects
// everyone assigned to a record of the month, within the unit unless unit is
// "all". Each person is compiled against the selected unit, or their own unit
// when every unit is selected.
func (s *Service) ExportBatch(ctx context.Context, w io.Writer, monthFilter, unitName string, filter []string) error {
	start := time.Now()
	month, err := domain.ParseMonth(monthFilter)
	if err != nil {
		return err
	}

	var unit *domain.Unit
	if !strings.EqualFold(strings.TrimSpace(unitName), AllUnits) && strings.TrimSpace(unitName) != "" {
		if unit, err = s.aggregator.FindUnit(ctx, unitName); err != nil {
			return err
		}
	}

	var people []domain.Person
	if len(filter) == 0 || personnel.ContainsAll(filter) {
		people, err = s.assignedPeople(ctx, month, unit)
	} else {
		people, _, err = s.aggregator.Resolver().ResolveAll(ctx, filter)
	}
	if err != nil {
		return err
	}
	sortPeople(people)

	compiled, err := s.compileByUnit(ctx, month, unit, people)
	if err != nil {
		return err
	}

	data := sheet.BatchData{MonthLabel: month.Label(), Sheets: make([]sheet.PersonSheet, 0, len(people))}
	for _, person := range people {
		ps := sheet.PersonSheet{Name: person.DisplayName()}
		if c, ok := compiled[person.ID]; ok {
			ps.Unit = c.unit
			ps.Lines = linesFromRows(c.rows)
		}
		data.Sheets = append(data.Sheets, ps)
	}
	if err := sheet.CompileBatch(w, data); err != nil {
		return err
	}
	observability.ObserveExport("batch", time.Since(start))
	s.logger.Info("exported ipmt batch",
		zap.String("month", month.Label()),
		zap.Int("sheets", len(data.Sheets)))
	return nil
}

type compiledPerson struct {
	unit string
	rows []aggregate.Row
}

// compileByUnit aggregates people grouped by the unit they are compiled in.
func (s *Service) compileByUnit(ctx context.Context, month domain.Month, unit *domain.Unit, people []domain.Person) (map[string]compiledPerson, error) {
	groups := make(map[string][]domain.Person)
	units := make(map[string]domain.Unit)
	var order []string
	for _, person := range people {
		target := unit
		if target == nil {
			own, err := s.store.GetUnit(ctx, person.UnitID)
			if err != nil {
				return nil, fmt.Errorf("get unit: %w", err)
			}
			if own == nil {
				continue
			}
			target = own
		}
		if _, seen := units[target.ID]; !seen {
			units[target.ID] = *target
			order = append(order, target.ID)
		}
		groups[target.ID] = append(groups[target.ID], person)
	}

	out := make(map[string]compiledPerson, len(people))
	for _, unitID := range order {
		result, err := s.aggregator.Compile(ctx, month, units[unitID], groups[unitID])
		if err != nil {
			return nil, err
		}
		for _, pr := range result.People {
			out[pr.Person.ID] = compiledPerson{unit: units[unitID].Name, rows: pr.Rows}
		}
	}
	return out, nil
}

// assignedPeople lists everyone assigned to a source record of the month.
func (s *Service) assignedPeople(ctx context.Context, month domain.Month, unit *domain.Unit) ([]domain.Person, error) {
	unitID := ""
	if unit != nil {
		unitID = unit.ID
	}
	candidates, err := s.aggregator.Candidates(ctx, &month, unitID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var people []domain.Person
	for _, c := range candidates {
		for _, person := range assigned(c.Record) {
			if _, dup := seen[person.ID]; dup {
				continue
			}
			seen[person.ID] = struct{}{}
			people = append(people, person)
		}
	}
	return people, nil
}

// savedOrCompiled renders each person's saved rows, or freshly aggregated
// rows when nothing is saved for the month.
func (s *Service) savedOrCompiled(ctx context.Context, month domain.Month, unit domain.Unit, people []domain.Person) ([]sheet.Line, error) {
	var lines []sheet.Line
	for _, person := range people {
		saved, err := s.store.ListRows(ctx, domain.IPMTFilter{
			PersonnelID: person.ID,
			UnitID:      unit.ID,
			Month:       month.Label(),
		})
		if err != nil {
			return nil, fmt.Errorf("list saved rows: %w", err)
		}
		if len(saved) > 0 {
			for _, row := range saved {
				lines = append(lines, sheet.Line{
					Indicator:   row.IndicatorLabel(),
					Description: row.Accomplishment,
					Remarks:     row.Remarks,
				})
			}
			continue
		}
		result, err := s.aggregator.Compile(ctx, month, unit, []domain.Person{person})
		if err != nil {
			return nil, err
		}
		for _, pr := range result.People {
			lines = append(lines, linesFromRows(pr.Rows)...)
		}
	}
	return lines, nil
}

// expandRows renders submitted rows, expanding indicator codes to
// "CODE - description" from the unit's catalog.
func (s *Service) expandRows(ctx context.Context, unit domain.Unit, rows []RowInput) ([]sheet.Line, error) {
	lines := make([]sheet.Line, 0, len(rows))
	for _, row := range rows {
		label := row.Indicator
		if code := indicatorCode(row.Indicator); code != "" {
			found, err := s.store.FindIndicatorByCode(ctx, unit.ID, code)
			if err != nil {
				return nil, fmt.Errorf("find indicator: %w", err)
			}
			if found != nil {
				label = found.Code + " - " + found.Description
			}
		}
		lines = append(lines, sheet.Line{Indicator: label, Description: row.Description, Remarks: row.Remarks})
	}
	return lines, nil
}

func linesFromRows(rows []aggregate.Row) []sheet.Line {
	lines := make([]sheet.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, sheet.Line{
			Indicator:   row.IndicatorLabel(),
			Description: row.Accomplishment,
			Remarks:     row.Remarks,
		})
	}
	return lines
}

func assigned(record domain.SourceRecord) []domain.Person {
	switch rec := record.(type) {
	case *domain.AccomplishmentRecord:
		return rec.Personnel
	case *domain.RequestRecord:
		return rec.Personnel
	default:
		return nil
	}
}
