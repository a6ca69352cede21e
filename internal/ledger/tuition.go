package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the plan-level adjustments applied before the benefit.
type Pricing struct {
	PaidInFullMultiplier decimal.Decimal
}

// DefaultPricing discounts paid-in-full plans by ten percent.
func DefaultPricing() Pricing {
	return Pricing{PaidInFullMultiplier: decimal.RequireFromString("0.90")}
}

func (p Pricing) planMultiplier(plan models.PaymentPlan) (decimal.Decimal, error) {
	switch plan {
	case models.PlanMonthly:
		return decimal.NewFromInt(1), nil
	case models.PlanPaidInFull:
		return p.PaidInFullMultiplier, nil
	default:
		return decimal.Zero, appErrors.Clonef(appErrors.ErrInvalidPlan, "unknown payment plan %q", plan)
	}
}

// FinalTuition computes what one installment of the enrollment costs:
// listed price, then plan adjustment, then the benefit percentage.
func (p Pricing) FinalTuition(course models.Course, e models.Enrollment) (decimal.Decimal, error) {
	price, ok := course.PriceFor(e.Plan)
	if !ok {
		return decimal.Zero, appErrors.Clonef(appErrors.ErrInvalidPlan, "course %s has no price for plan %s", course.ID, e.Plan)
	}
	multiplier, err := p.planMultiplier(e.Plan)
	if err != nil {
		return decimal.Zero, err
	}
	if err := validateBenefit(e.BenefitPercent); err != nil {
		return decimal.Zero, err
	}
	adjusted := price.Mul(multiplier)
	remaining := decimal.NewFromInt(int64(100 - e.BenefitPercent))
	return adjusted.Mul(remaining).Div(hundred).Round(2), nil
}

// ExpectedInstallments is the number of tuition payments owed by asOf. Monthly
// plans owe one per calendar month from the effective start month; the window
// stops at course end or withdrawal, whichever comes first.
func ExpectedInstallments(course models.Course, e models.Enrollment, asOf time.Time) int {
	if e.Plan == models.PlanPaidInFull {
		return 1
	}
	loc := asOf.Location()
	start := CalendarDay(e.StartDate, loc)
	if courseStart := CalendarDay(course.StartDate, loc); courseStart.After(start) {
		start = courseStart
	}
	end := DateOf(asOf)
	if !course.EndDate.IsZero() {
		if courseEnd := CalendarDay(course.EndDate, loc); courseEnd.Before(end) {
			end = courseEnd
		}
	}
	if e.WithdrawnAt != nil {
		if withdrawn := CalendarDay(*e.WithdrawnAt, loc); withdrawn.Before(end) {
			end = withdrawn
		}
	}
	n := MonthsInclusive(start, end)
	if n < 1 {
		return 1
	}
	return n
}

// Status derives the payment status from the non-voided payments.
func Status(course models.Course, e models.Enrollment, asOf time.Time) models.PaymentStatus {
	active := e.ActivePayments()
	if len(active) >= ExpectedInstallments(course, e, asOf) {
		return models.StatusCurrent
	}
	for _, p := range active {
		if p.Tuition != nil && p.Tuition.WithSurcharge {
			return models.StatusLate
		}
	}
	return models.StatusDelinquent
}

// OutstandingBalance is the unpaid installments times the per-installment amount.
func (p Pricing) OutstandingBalance(course models.Course, e models.Enrollment, asOf time.Time) (decimal.Decimal, error) {
	perInstallment, err := p.FinalTuition(course, e)
	if err != nil {
		return decimal.Zero, err
	}
	missing := ExpectedInstallments(course, e, asOf) - len(e.ActivePayments())
	if missing <= 0 {
		return decimal.Zero, nil
	}
	return perInstallment.Mul(decimal.NewFromInt(int64(missing))), nil
}

// TuitionSummary is the read model of an enrollment's standing.
type TuitionSummary struct {
	EnrollmentID         string               `json:"enrollment_id"`
	FinalTuition         decimal.Decimal      `json:"final_tuition"`
	ExpectedInstallments int                  `json:"expected_installments"`
	PaidInstallments     int                  `json:"paid_installments"`
	Status               models.PaymentStatus `json:"status"`
	OutstandingBalance   decimal.Decimal      `json:"outstanding_balance"`
	AsOf                 time.Time            `json:"as_of"`
}

// Summarize computes every derived figure of an enrollment at asOf.
func (p Pricing) Summarize(course models.Course, e models.Enrollment, asOf time.Time) (TuitionSummary, error) {
	final, err := p.FinalTuition(course, e)
	if err != nil {
		return TuitionSummary{}, err
	}
	outstanding, err := p.OutstandingBalance(course, e, asOf)
	if err != nil {
		return TuitionSummary{}, err
	}
	return TuitionSummary{
		EnrollmentID:         e.ID,
		FinalTuition:         final,
		ExpectedInstallments: ExpectedInstallments(course, e, asOf),
		PaidInstallments:     len(e.ActivePayments()),
		Status:               Status(course, e, asOf),
		OutstandingBalance:   outstanding,
		AsOf:                 asOf,
	}, nil
}

// NewTuitionPayment validates and builds a tuition payment for the enrollment.
// The caller appends it to the enrollment and persists it.
func NewTuitionPayment(e models.Enrollment, amount decimal.Decimal, paidAt time.Time, withSurcharge bool, recordedBy string) (models.Payment, error) {
	if e.Closed() {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrEnrollmentClosed, "enrollment %s was withdrawn on %s", e.ID, e.WithdrawnAt.Format("2006-01-02"))
	}
	if !amount.IsPositive() {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrValidation, "payment amount must be positive, got %s", amount)
	}
	return models.Payment{
		Kind:       models.PaymentTuition,
		Amount:     amount.Round(2),
		PaidAt:     paidAt,
		RecordedBy: recordedBy,
		Tuition: &models.TuitionDetail{
			EnrollmentID:  e.ID,
			CourseID:      e.CourseID,
			WithSurcharge: withSurcharge,
		},
	}, nil
}

// ApplyBenefit sets a custom benefit percentage. Past payments keep their amounts.
func ApplyBenefit(e *models.Enrollment, percent int) error {
	if err := validateBenefit(percent); err != nil {
		return err
	}
	e.BenefitPercent = percent
	e.BenefitKind = models.BenefitCustom
	return nil
}

// ApplyBenefitKind sets one of the standard benefit kinds.
func ApplyBenefitKind(e *models.Enrollment, kind models.BenefitKind) error {
	percent, ok := kind.Percent()
	if !ok {
		return appErrors.Clonef(appErrors.ErrValidation, "benefit kind %q has no fixed percentage", kind)
	}
	e.BenefitPercent = percent
	e.BenefitKind = kind
	return nil
}

// Withdraw closes the enrollment; no further tuition payments are accepted.
func Withdraw(e *models.Enrollment, at time.Time) error {
	if e.Closed() {
		return appErrors.Clonef(appErrors.ErrEnrollmentClosed, "enrollment %s already withdrawn", e.ID)
	}
	if DateOf(at).Before(CalendarDay(e.StartDate, at.Location())) {
		return appErrors.Clonef(appErrors.ErrValidation, "withdrawal date %s precedes enrollment start", at.Format("2006-01-02"))
	}
	e.WithdrawnAt = &at
	return nil
}

func validateBenefit(percent int) error {
	if percent < 0 || percent > 100 {
		return appErrors.Clonef(appErrors.ErrValidation, "benefit must be between 0 and 100, got %d", percent)
	}
	return nil
}
