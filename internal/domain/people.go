package domain

import "strings"

// Roles known to the directory.
const (
	RolePersonnel = "personnel"
	RoleGSO       = "gso"
	RoleDirector  = "director"
)

// Unit is an organisational unit that owns success indicators.
type Unit struct {
	ID   string
	Name string
}

// Office is a requesting department.
type Office struct {
	ID   string
	Name string
}

// Person is a user account that can be assigned to source records.
type Person struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	UnitID    string
	UnitName  string
	Role      string
	Active    bool
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// DisplayName is the full name, or the username when no name is recorded.
func (p Person) DisplayName() string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.Username
}
