package postgres

import (
	"context"
	"fmt"
	"strings"

	"example.com/ipmt/internal/domain"
)

// FindUnitByName implements domain.UnitRepository.
func (r *Repository) FindUnitByName(ctx context.Context, name string) (*domain.Unit, error) {
	var u domain.Unit
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM units WHERE lower(name)=lower($1)`, strings.TrimSpace(name)).Scan(&u.ID, &u.Name)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUnit implements domain.UnitRepository.
func (r *Repository) GetUnit(ctx context.Context, id string) (*domain.Unit, error) {
	var u domain.Unit
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM units WHERE id=$1`, id).Scan(&u.ID, &u.Name)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUnit inserts a unit, or returns the existing unit with the same name.
func (r *Repository) SaveUnit(ctx context.Context, unit domain.Unit) (domain.Unit, error) {
	unit.ID = newID(unit.ID)
	err := r.pool.QueryRow(ctx, `INSERT INTO units (id, name) VALUES ($1, $2)
        ON CONFLICT ((lower(name))) DO UPDATE SET name = units.name
        RETURNING id, name`, unit.ID, unit.Name).Scan(&unit.ID, &unit.Name)
	return unit, err
}

// FindOfficeByName implements domain.UnitRepository.
func (r *Repository) FindOfficeByName(ctx context.Context, name string) (*domain.Office, error) {
	var o domain.Office
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM offices WHERE lower(name)=lower($1)`, strings.TrimSpace(name)).Scan(&o.ID, &o.Name)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOffice inserts an office, or returns the existing office with the same name.
func (r *Repository) SaveOffice(ctx context.Context, office domain.Office) (domain.Office, error) {
	office.ID = newID(office.ID)
	err := r.pool.QueryRow(ctx, `INSERT INTO offices (id, name) VALUES ($1, $2)
        ON CONFLICT ((lower(name))) DO UPDATE SET name = offices.name
        RETURNING id, name`, office.ID, office.Name).Scan(&office.ID, &office.Name)
	return office, err
}

const personColumns = `p.id, p.username, p.first_name, p.last_name, COALESCE(p.unit_id, ''), COALESCE(u.name, ''), p.role, p.active`

const personFrom = ` FROM people p LEFT JOIN units u ON u.id = p.unit_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (domain.Person, error) {
	var p domain.Person
	err := row.Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.UnitID, &p.UnitName, &p.Role, &p.Active)
	return p, err
}

func (r *Repository) onePerson(ctx context.Context, where string, args ...any) (*domain.Person, error) {
	p, err := scanPerson(r.pool.QueryRow(ctx, `SELECT `+personColumns+personFrom+` WHERE `+where+` ORDER BY p.seq LIMIT 1`, args...))
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPerson implements domain.PersonnelRepository.
func (r *Repository) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	return r.onePerson(ctx, `p.id=$1`, id)
}

// FindPersonByUsername implements domain.PersonnelRepository.
func (r *Repository) FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error) {
	return r.onePerson(ctx, `lower(p.username)=lower($1)`, username)
}

// FindPersonByName implements domain.PersonnelRepository.
func (r *Repository) FindPersonByName(ctx context.Context, first, last string) (*domain.Person, error) {
	return r.onePerson(ctx, `lower(p.first_name)=lower($1) AND lower(p.last_name)=lower($2)`, first, last)
}

// SearchPersonByNamePart implements domain.PersonnelRepository.
func (r *Repository) SearchPersonByNamePart(ctx context.Context, part string) (*domain.Person, error) {
	if part == "" {
		return nil, nil
	}
	return r.onePerson(ctx, `strpos(lower(p.first_name), lower($1)) > 0 OR strpos(lower(p.last_name), lower($1)) > 0`, part)
}

// ListActivePersonnel implements domain.PersonnelRepository.
func (r *Repository) ListActivePersonnel(ctx context.Context, unitID string) ([]domain.Person, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+personColumns+personFrom+`
        WHERE p.active AND p.role=$1 AND ($2 = '' OR p.unit_id = $2)
        ORDER BY COALESCE(u.name, ''), p.first_name, p.seq`, domain.RolePersonnel, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePerson inserts or replaces a person by id, or by username when no id is given.
func (r *Repository) SavePerson(ctx context.Context, person domain.Person) (domain.Person, error) {
	if person.ID == "" {
		existing, err := r.FindPersonByUsername(ctx, person.Username)
		if err != nil {
			return domain.Person{}, err
		}
		if existing != nil {
			person.ID = existing.ID
		}
	}
	person.ID = newID(person.ID)
	_, err := r.pool.Exec(ctx, `INSERT INTO people (id, username, first_name, last_name, unit_id, role, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, first_name=EXCLUDED.first_name,
            last_name=EXCLUDED.last_name, unit_id=EXCLUDED.unit_id, role=EXCLUDED.role, active=EXCLUDED.active`,
		person.ID, person.Username, person.FirstName, person.LastName, nullIfEmpty(person.UnitID), person.Role, person.Active)
	if err != nil {
		return domain.Person{}, fmt.Errorf("save person: %w", err)
	}
	saved, err := r.GetPerson(ctx, person.ID)
	if err != nil || saved == nil {
		return person, err
	}
	return *saved, nil
}
