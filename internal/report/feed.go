package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"example.com/ipmt/internal/domain"
)

// RecordReader is the record store slice the feed needs.
type RecordReader interface {
	ListRequests(ctx context.Context, filter domain.RecordFilter) ([]*domain.RequestRecord, error)
	ListAccomplishments(ctx context.Context, filter domain.RecordFilter) ([]*domain.AccomplishmentRecord, error)
	GetRecord(ctx context.Context, id string) (domain.SourceRecord, error)
}

// Query narrows the feed.
type Query struct {
	// Search is a case-insensitive substring matched against the report fields.
	Search string
	// Unit keeps only reports whose unit name matches, case-insensitively.
	Unit string
}

// Feed lists every accomplishment in one normalized shape.
type Feed struct {
	records    RecordReader
	normalizer *Normalizer
}

// NewFeed constructs a Feed.
func NewFeed(records RecordReader, normalizer *Normalizer) *Feed {
	return &Feed{records: records, normalizer: normalizer}
}

// List returns completed requests without an accomplishment record plus all
// accomplishment records, newest first.
func (f *Feed) List(ctx context.Context, q Query) ([]Report, error) {
	requests, err := f.records.ListRequests(ctx, domain.RecordFilter{Status: domain.StatusCompleted})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	accomplishments, err := f.records.ListAccomplishments(ctx, domain.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("list accomplishments: %w", err)
	}

	merged := Reconcile(requests, accomplishments)
	out := make([]Report, 0, len(merged))
	for _, rec := range merged {
		r := f.normalizer.Normalize(rec)
		if a, ok := rec.(*domain.AccomplishmentRecord); ok && strings.TrimSpace(r.Description) == "" {
			r.Description = a.DisplayDescription()
		}
		if !q.matches(r) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Description returns the stored description of one record.
func (f *Feed) Description(ctx context.Context, id string) (string, error) {
	rec, err := f.records.GetRecord(ctx, id)
	if err != nil {
		return "", err
	}
	switch r := rec.(type) {
	case *domain.AccomplishmentRecord:
		return r.Description, nil
	case *domain.RequestRecord:
		return r.Description, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
}

func (q Query) matches(r Report) bool {
	if unit := strings.TrimSpace(q.Unit); unit != "" && !strings.EqualFold(r.Unit, unit) {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	if needle == "" {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		string(r.Kind),
		string(r.Source),
		r.RequestingOffice,
		r.Description,
		r.Unit,
		strings.Join(r.Personnel, " "),
		string(r.Status),
		r.Date.Format("2006-01-02"),
	}, " "))
	return strings.Contains(haystack, needle)
}
