package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a tagged union over the three payment variants. Exactly one of
// Tuition, Rental or Commission is set, matching Kind. Payments are append-only;
// the void fields are the only ones ever written after creation.
type Payment struct {
	ID         string          `json:"id"`
	Kind       PaymentKind     `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	RecordedBy string          `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`

	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason *string    `json:"void_reason,omitempty"`
	VoidedBy   *string    `json:"voided_by,omitempty"`

	Tuition    *TuitionDetail    `json:"tuition,omitempty"`
	Rental     *RentalDetail     `json:"rental,omitempty"`
	Commission *CommissionDetail `json:"commission,omitempty"`
}

// TuitionDetail belongs to exactly one enrollment.
type TuitionDetail struct {
	EnrollmentID  string `json:"enrollment_id"`
	CourseID      string `json:"course_id"`
	WithSurcharge bool   `json:"with_surcharge"`
}

// RentalDetail is one installment of a rental course's fee.
type RentalDetail struct {
	CourseID          string `json:"course_id"`
	ProfessorGrantID  string `json:"professor_grant_id"`
	InstallmentNumber int    `json:"installment_number"`
	BillingMonth      int    `json:"billing_month"`
	BillingYear       int    `json:"billing_year"`
}

// CommissionDetail liquidates the revenue collected over [PeriodStart, PeriodEnd].
type CommissionDetail struct {
	CourseID         string    `json:"course_id"`
	ProfessorGrantID string    `json:"professor_grant_id"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	BillingMonth     int       `json:"billing_month"`
	BillingYear      int       `json:"billing_year"`
}

// Active reports whether the payment has not been voided.
func (p Payment) Active() bool {
	return p.VoidedAt == nil
}

// CourseID returns the course the payment is attached to.
func (p Payment) CourseID() string {
	switch p.Kind {
	case PaymentTuition:
		if p.Tuition != nil {
			return p.Tuition.CourseID
		}
	case PaymentRental:
		if p.Rental != nil {
			return p.Rental.CourseID
		}
	case PaymentCommission:
		if p.Commission != nil {
			return p.Commission.CourseID
		}
	}
	return ""
}

// ProfessorGrantID returns the professor grant of rental and commission payments.
func (p Payment) ProfessorGrantID() string {
	switch p.Kind {
	case PaymentRental:
		if p.Rental != nil {
			return p.Rental.ProfessorGrantID
		}
	case PaymentCommission:
		if p.Commission != nil {
			return p.Commission.ProfessorGrantID
		}
	}
	return ""
}

// CheckShape verifies that exactly the variant matching Kind is populated.
func (p Payment) CheckShape() error {
	set := 0
	if p.Tuition != nil {
		set++
	}
	if p.Rental != nil {
		set++
	}
	if p.Commission != nil {
		set++
	}
	ok := set == 1
	switch p.Kind {
	case PaymentTuition:
		ok = ok && p.Tuition != nil
	case PaymentRental:
		ok = ok && p.Rental != nil
	case PaymentCommission:
		ok = ok && p.Commission != nil
	default:
		ok = false
	}
	if !ok {
		return fmt.Errorf("payment %s: variant does not match kind %q", p.ID, p.Kind)
	}
	return nil
}

// PaymentDetail enriches a payment with the names and course facts the report
// and visibility views need.
type PaymentDetail struct {
	Payment
	CourseName              string     `json:"course_name"`
	CourseKind              CourseKind `json:"course_kind"`
	CourseProfessorGrantIDs []string   `json:"-"`
	StudentPersonID         string     `json:"-"`
	StudentName             string     `json:"student_name,omitempty"`
	ProfessorPersonID       string     `json:"-"`
	ProfessorName           string     `json:"professor_name,omitempty"`
}

// PaymentFilter narrows repository payment listings.
type PaymentFilter struct {
	Kinds            []PaymentKind
	CourseID         string
	ProfessorGrantID string
	EnrollmentID     string

	// From is inclusive, To exclusive.
	From          *time.Time
	To            *time.Time
	IncludeVoided bool
}

// PaymentQuery is the caller-facing query applied after role visibility.
type PaymentQuery struct {
	Search   string           `form:"search"`
	Category MovementCategory `form:"category"`
	Month    int              `form:"month" validate:"omitempty,min=1,max=12"`
	Year     int              `form:"year" validate:"omitempty,min=2000,max=2100"`
	Page     int              `form:"page"`
	PageSize int              `form:"limit"`
}
