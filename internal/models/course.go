package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is either a rental course (professor pays a flat fee per installment)
// or a revenue-share course (institute pays the professor a commission).
type Course struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Kind      CourseKind `db:"kind" json:"kind"`
	Schedule  string     `db:"schedule" json:"schedule"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`

	// Rental courses only.
	RentalFee         decimal.Decimal `db:"rental_fee" json:"rental_fee"`
	TotalInstallments int             `db:"total_installments" json:"total_installments"`

	// Revenue-share courses only, expressed as a percentage (50 means half).
	CommissionPercent decimal.Decimal `db:"commission_percent" json:"commission_percent"`

	Prices            []CoursePrice `db:"-" json:"prices"`
	ProfessorGrantIDs []string      `db:"-" json:"professor_grant_ids"`
}

// CoursePrice is one row of a course's price table.
type CoursePrice struct {
	CourseID string          `db:"course_id" json:"-"`
	Plan     PaymentPlan     `db:"plan" json:"plan"`
	Price    decimal.Decimal `db:"price" json:"price"`
}

// PriceFor returns the listed price for plan.
func (c Course) PriceFor(plan PaymentPlan) (decimal.Decimal, bool) {
	for _, p := range c.Prices {
		if p.Plan == plan {
			return p.Price, true
		}
	}
	return decimal.Zero, false
}

// HasProfessor reports whether the professor grant is assigned to the course.
func (c Course) HasProfessor(grantID string) bool {
	for _, id := range c.ProfessorGrantIDs {
		if id == grantID {
			return true
		}
	}
	return false
}
