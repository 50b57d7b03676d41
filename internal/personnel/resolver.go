// Package personnel resolves loose person identifiers against the user directory.
package personnel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"example.com/ipmt/internal/domain"
)

// Directory is the personnel lookup surface used by the resolver.
type Directory interface {
	FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error)
	FindPersonByName(ctx context.Context, first, last string) (*domain.Person, error)
	SearchPersonByNamePart(ctx context.Context, part string) (*domain.Person, error)
}

// Strategy is one lookup attempt. It returns nil, nil when it has no match.
type Strategy struct {
	Name   string
	Lookup func(ctx context.Context, dir Directory, identifier string) (*domain.Person, error)
}

// DefaultStrategies is the ordered best-effort chain: exact username, then
// first+last token, then substring of first or last name. Ambiguous names take
// the directory's first match.
var DefaultStrategies = []Strategy{
	{Name: "username", Lookup: byUsername},
	{Name: "full_name", Lookup: byFirstLast},
	{Name: "name_part", Lookup: byNamePart},
}

// Resolver walks the strategies in order and returns the first hit.
type Resolver struct {
	dir        Directory
	strategies []Strategy
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver constructs a Resolver over dir.
func NewResolver(dir Directory, opts ...Option) *Resolver {
	r := &Resolver{dir: dir, strategies: DefaultStrategies, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds one person for identifier or fails with domain.ErrPersonNotResolved.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*domain.Person, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty identifier", domain.ErrPersonNotResolved)
	}
	for _, s := range r.strategies {
		person, err := s.Lookup(ctx, r.dir, identifier)
		if err != nil {
			return nil, fmt.Errorf("resolve %q via %s: %w", identifier, s.Name, err)
		}
		if person != nil {
			r.logger.Debug("resolved person",
				zap.String("identifier", identifier),
				zap.String("strategy", s.Name),
				zap.String("person_id", person.ID))
			return person, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrPersonNotResolved, identifier)
}

// ResolveAll resolves every identifier, skipping the ones that match nobody.
// People are de-duplicated by id, in first-seen order; skipped identifiers are
// returned alongside.
func (r *Resolver) ResolveAll(ctx context.Context, identifiers []string) ([]domain.Person, []string, error) {
	people := make([]domain.Person, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))
	var skipped []string
	for _, identifier := range identifiers {
		person, err := r.Resolve(ctx, identifier)
		if err != nil {
			if errors.Is(err, domain.ErrPersonNotResolved) {
				r.logger.Info("skipping unresolved personnel", zap.String("identifier", identifier))
				skipped = append(skipped, identifier)
				continue
			}
			return nil, nil, err
		}
		if _, dup := seen[person.ID]; dup {
			continue
		}
		seen[person.ID] = struct{}{}
		people = append(people, *person)
	}
	return people, skipped, nil
}

// ContainsAll reports whether the filter holds the literal "all" token.
func ContainsAll(filter []string) bool {
	for _, token := range filter {
		if strings.EqualFold(strings.TrimSpace(token), "all") {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated identifier list, dropping blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func byUsername(ctx context.Context, dir Directory, identifier string) (*domain.Person, error) {
	return dir.FindPersonByUsername(ctx, identifier)
}

func byFirstLast(ctx context.Context, dir Directory, identifier string) (*domain.Person, error) {
	parts := strings.Fields(identifier)
	if len(parts) < 2 {
		return nil, nil
	}
	return dir.FindPersonByName(ctx, parts[0], parts[len(parts)-1])
}

func byNamePart(ctx context.Context, dir Directory, identifier string) (*domain.Person, error) {
	return dir.SearchPersonByNamePart(ctx, identifier)
}
