package personnel

import (
	"context"
	"strings"

	"example.com/ipmt/internal/domain"
)

// Entry is one row of the personnel directory listing.
type Entry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Unit        string `json:"unit"`
}

// Lister lists active personnel across every unit.
type Lister interface {
	ListActivePersonnel(ctx context.Context, unitID string) ([]domain.Person, error)
}

// List returns active personnel ordered by unit then first name. Unit names
// are lower-cased; people without a unit are listed as "unassigned".
func List(ctx context.Context, lister Lister) ([]Entry, error) {
	people, err := lister.ListActivePersonnel(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(people))
	for _, p := range people {
		unit := strings.ToLower(strings.TrimSpace(p.UnitName))
		if unit == "" {
			unit = "unassigned"
		}
		out = append(out, Entry{ID: p.ID, DisplayName: p.DisplayName(), Username: p.Username, Unit: unit})
	}
	return out, nil
}
