// Package catalog loads units, personnel, activities and success indicators
// from a YAML seed document.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"example.com/ipmt/internal/domain"
)

// Document is the seed file layout. Lists are applied in document order,
// which becomes catalog order.
type Document struct {
	Units      []string    `yaml:"units"`
	Personnel  []Person    `yaml:"personnel"`
	Activities []Activity  `yaml:"activities"`
	Indicators []Indicator `yaml:"indicators"`
}

// Person is a directory entry.
type Person struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Unit      string `yaml:"unit"`
	Role      string `yaml:"role"`
	Active    *bool  `yaml:"active"`
}

// Activity is an activity name with its keywords.
type Activity struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Active   *bool    `yaml:"active"`
}

// Indicator is a unit's success indicator.
type Indicator struct {
	Unit        string `yaml:"unit"`
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	Activity    string `yaml:"activity"`
	Active      *bool  `yaml:"active"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Units      int
	Personnel  int
	Activities int
	Indicators int
}

// Parse decodes a seed document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &doc, nil
}

// LoadFile parses the seed document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Store is the write surface Apply needs.
type Store interface {
	domain.UnitRepository
	domain.PersonnelRepository
	domain.CatalogRepository
}

// Apply writes the document into store. Existing entries are updated in
// place; the Miscellaneous fallback is always ensured.
func Apply(ctx context.Context, store Store, doc *Document, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum Summary
	units := make(map[string]domain.Unit)
	unitNamed := func(name string) (domain.Unit, error) {
		key := strings.ToLower(strings.TrimSpace(name))
		if u, ok := units[key]; ok {
			return u, nil
		}
		u, err := store.SaveUnit(ctx, domain.Unit{Name: strings.TrimSpace(name)})
		if err != nil {
			return domain.Unit{}, fmt.Errorf("save unit %q: %w", name, err)
		}
		units[key] = u
		return u, nil
	}

	for _, name := range doc.Units {
		if _, err := unitNamed(name); err != nil {
			return sum, err
		}
		sum.Units++
	}

	for _, p := range doc.Personnel {
		person := domain.Person{
			Username:  p.Username,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Role:      p.Role,
			Active:    enabled(p.Active),
		}
		if person.Role == "" {
			person.Role = domain.RolePersonnel
		}
		if p.Unit != "" {
			u, err := unitNamed(p.Unit)
			if err != nil {
				return sum, err
			}
			person.UnitID = u.ID
		}
		if existing, err := store.FindPersonByUsername(ctx, p.Username); err != nil {
			return sum, err
		} else if existing != nil {
			person.ID = existing.ID
		}
		if _, err := store.SavePerson(ctx, person); err != nil {
			return sum, fmt.Errorf("save person %q: %w", p.Username, err)
		}
		sum.Personnel++
	}

	activities := make(map[string]domain.ActivityName)
	for _, a := range doc.Activities {
		saved, err := store.SaveActivity(ctx, domain.ActivityName{
			Name:     strings.TrimSpace(a.Name),
			Keywords: strings.Join(a.Keywords, ", "),
			Active:   enabled(a.Active),
		})
		if err != nil {
			return sum, fmt.Errorf("save activity %q: %w", a.Name, err)
		}
		activities[strings.ToLower(saved.Name)] = saved
		sum.Activities++
	}
	if created, err := EnsureFallback(ctx, store); err != nil {
		return sum, err
	} else if created {
		sum.Activities++
	}
	if len(doc.Indicators) > 0 {
		existing, err := store.ListActivities(ctx)
		if err != nil {
			return sum, err
		}
		for _, a := range existing {
			if _, ok := activities[strings.ToLower(a.Name)]; !ok {
				activities[strings.ToLower(a.Name)] = a
			}
		}
	}

	for _, ind := range doc.Indicators {
		u, err := unitNamed(ind.Unit)
		if err != nil {
			return sum, err
		}
		indicator := domain.SuccessIndicator{
			UnitID:      u.ID,
			Code:        strings.TrimSpace(ind.Code),
			Description: ind.Description,
			Active:      enabled(ind.Active),
		}
		if ind.Activity != "" {
			a, ok := activities[strings.ToLower(strings.TrimSpace(ind.Activity))]
			if !ok {
				return sum, fmt.Errorf("indicator %s: unknown activity %q", ind.Code, ind.Activity)
			}
			indicator.ActivityID = a.ID
		}
		if _, err := store.SaveIndicator(ctx, indicator); err != nil {
			return sum, fmt.Errorf("save indicator %s: %w", ind.Code, err)
		}
		sum.Indicators++
	}

	logger.Info("catalog applied",
		zap.Int("units", sum.Units),
		zap.Int("personnel", sum.Personnel),
		zap.Int("activities", sum.Activities),
		zap.Int("indicators", sum.Indicators))
	return sum, nil
}

// EnsureFallback adds an active Miscellaneous activity when none exists. It
// reports whether one was created.
func EnsureFallback(ctx context.Context, store domain.CatalogRepository) (bool, error) {
	activities, err := store.ListActivities(ctx)
	if err != nil {
		return false, fmt.Errorf("list activities: %w", err)
	}
	for _, a := range activities {
		if a.IsFallback() {
			return false, nil
		}
	}
	if _, err := store.SaveActivity(ctx, domain.ActivityName{Name: domain.FallbackActivity, Active: true}); err != nil {
		return false, fmt.Errorf("save fallback activity: %w", err)
	}
	return true, nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
