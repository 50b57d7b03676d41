// Package classify maps free-text descriptions onto the standardized activity catalog.
package classify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/observability"
)

// CatalogReader is the slice of the catalog the classifier needs.
type CatalogReader interface {
	ListActivities(ctx context.Context) ([]domain.ActivityName, error)
}

type entry struct {
	activity domain.ActivityName
	keywords []string
}

// Classifier is a pure function of (description, catalog snapshot). It keeps
// the catalog order it was built with so ties always resolve the same way.
// Build one per run so catalog edits are picked up.
type Classifier struct {
	entries  []entry
	fallback domain.ActivityName
	logger   *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Classifier from activities in catalog order. It fails with
// domain.ErrMissingFallback when no Miscellaneous entry exists.
func New(activities []domain.ActivityName, opts ...Option) (*Classifier, error) {
	c := &Classifier{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	found := false
	for _, activity := range activities {
		if !found && activity.IsFallback() {
			c.fallback = activity
			found = true
		}
		if !activity.Active {
			continue
		}
		c.entries = append(c.entries, entry{activity: activity, keywords: activity.KeywordList()})
	}
	if !found {
		return nil, domain.ErrMissingFallback
	}
	return c, nil
}

// Load reads the catalog and builds a Classifier from it.
func Load(ctx context.Context, catalog CatalogReader, opts ...Option) (*Classifier, error) {
	activities, err := catalog.ListActivities(ctx)
	if err != nil {
		return nil, err
	}
	return New(activities, opts...)
}

// Fallback returns the Miscellaneous entry.
func (c *Classifier) Fallback() domain.ActivityName {
	return c.fallback
}

// Classify returns the first active activity, in catalog order, with a keyword
// contained in the lower-cased description. Blank descriptions and misses
// return the fallback.
func (c *Classifier) Classify(description string) domain.ActivityName {
	text := strings.ToLower(description)
	if strings.TrimSpace(text) == "" {
		observability.RecordClassifierFallback()
		return c.fallback
	}
	for _, e := range c.entries {
		for _, kw := range e.keywords {
			if strings.Contains(text, kw) {
				c.logger.Debug("classified description",
					zap.String("activity", e.activity.Name),
					zap.String("keyword", kw))
				return e.activity
			}
		}
	}
	observability.RecordClassifierFallback()
	return c.fallback
}

// ClassifyRequest classifies a request from its joined task notes when it has
// any, even if they only hit the fallback, and from its own description
// otherwise.
func (c *Classifier) ClassifyRequest(req *domain.RequestRecord) domain.ActivityName {
	if notes := strings.TrimSpace(strings.Join(req.Notes, " ")); notes != "" {
		return c.Classify(notes)
	}
	return c.Classify(req.Description)
}

// Resolve returns the activity name a source record counts toward. An
// accomplishment record's stored activity name wins over keyword matching.
func (c *Classifier) Resolve(record domain.SourceRecord) string {
	switch rec := record.(type) {
	case *domain.AccomplishmentRecord:
		if name := strings.TrimSpace(rec.ActivityName); name != "" {
			return name
		}
		return c.Classify(rec.Description).Name
	case *domain.RequestRecord:
		return c.ClassifyRequest(rec).Name
	default:
		return c.fallback.Name
	}
}
