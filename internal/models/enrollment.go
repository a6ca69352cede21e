package models

import "time"

// Enrollment links one student grant to one course. Its payment status is
// never persisted; it is recomputed from Payments whenever it is needed.
type Enrollment struct {
	ID             string      `db:"id" json:"id"`
	StudentGrantID string      `db:"student_grant_id" json:"student_grant_id"`
	CourseID       string      `db:"course_id" json:"course_id"`
	Plan           PaymentPlan `db:"plan" json:"plan"`
	BenefitKind    BenefitKind `db:"benefit_kind" json:"benefit_kind"`
	BenefitPercent int         `db:"benefit_percent" json:"benefit_percent"`
	StartDate      time.Time   `db:"start_date" json:"start_date"`
	WithdrawnAt    *time.Time  `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`

	Payments []Payment `db:"-" json:"payments,omitempty"`
}

// Closed reports whether the enrollment was withdrawn.
func (e Enrollment) Closed() bool {
	return e.WithdrawnAt != nil
}

// ActivePayments returns the non-voided tuition payments in their original order.
func (e Enrollment) ActivePayments() []Payment {
	active := make([]Payment, 0, len(e.Payments))
	for _, p := range e.Payments {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active
}
