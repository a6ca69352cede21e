package models

import "time"

// Person is anyone known to the institute, regardless of role.
type Person struct {
	ID        string       `db:"id" json:"id"`
	FullName  string       `db:"full_name" json:"full_name"`
	Email     string       `db:"email" json:"email"`
	Phone     *string      `db:"phone" json:"phone,omitempty"`
	BirthDate *time.Time   `db:"birth_date" json:"birth_date,omitempty"`
	Status    PersonStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	Grants    []RoleGrant  `db:"-" json:"grants,omitempty"`
}

// RoleGrant gives a person a role for a date range. Kind is the grant subtype.
type RoleGrant struct {
	ID        string     `db:"id" json:"id"`
	PersonID  string     `db:"person_id" json:"person_id"`
	Kind      RoleKind   `db:"kind" json:"kind"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
}

// ActiveAt reports whether the grant covers the calendar day of at, in at's
// location. Start and end dates are inclusive.
func (g RoleGrant) ActiveAt(at time.Time) bool {
	day := civilDay(at, at.Location())
	if day.Before(civilDay(g.StartDate, at.Location())) {
		return false
	}
	return g.EndDate == nil || !day.After(civilDay(*g.EndDate, at.Location()))
}

func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ActiveGrant returns the person's active grant of the given kind, if any.
func (p Person) ActiveGrant(kind RoleKind, at time.Time) (RoleGrant, bool) {
	for _, g := range p.Grants {
		if g.Kind == kind && g.ActiveAt(at) {
			return g, true
		}
	}
	return RoleGrant{}, false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
