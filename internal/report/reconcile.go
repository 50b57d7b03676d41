package report

import (
	"sort"

	"example.com/ipmt/internal/domain"
)

// Reconcile merges completed requests with accomplishment records. A request
// that already has an accomplishment record linked to it is represented only
// by that record, so nothing is counted twice. Requests that are not completed
// are dropped.
func Reconcile(requests []*domain.RequestRecord, accomplishments []*domain.AccomplishmentRecord) []domain.SourceRecord {
	return ReconcileLinked(requests, accomplishments, accomplishments)
}

// ReconcileLinked is Reconcile with coverage taken from linked instead of the
// merged accomplishment records. Callers that list one month pass every
// accomplishment record as linked, so a request whose record falls in another
// month is still left out.
func ReconcileLinked(requests []*domain.RequestRecord, accomplishments, linked []*domain.AccomplishmentRecord) []domain.SourceRecord {
	covered := make(map[string]struct{}, len(linked))
	for _, a := range linked {
		if id := a.RequestID(); id != "" {
			covered[id] = struct{}{}
		}
	}
	for _, a := range accomplishments {
		if id := a.RequestID(); id != "" {
			covered[id] = struct{}{}
		}
	}

	out := make([]domain.SourceRecord, 0, len(requests)+len(accomplishments))
	for _, r := range requests {
		if r.Status != domain.StatusCompleted {
			continue
		}
		if _, ok := covered[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	for _, a := range accomplishments {
		out = append(out, a)
	}
	return out
}

// SortChronologically orders records by representative date, then id.
func (n *Normalizer) SortChronologically(records []domain.SourceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := n.RepresentativeDate(records[i]), n.RepresentativeDate(records[j])
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return records[i].RecordID() < records[j].RecordID()
	})
}
