package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

// CommissionPreview is the pending liquidation period for a (course, professor) pair.
type CommissionPreview struct {
	CourseID         string          `json:"course_id"`
	ProfessorGrantID string          `json:"professor_grant_id"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	DaysInPeriod     int             `json:"days_in_period"`
	TuitionCount     int             `json:"tuition_count"`
	RevenueCollected decimal.Decimal `json:"revenue_collected"`
	CommissionDue    decimal.Decimal `json:"commission_due"`
	CanRegister      bool            `json:"can_register"`
}

// PreviewCommission computes the next liquidation window, starting the day after
// the latest non-voided commission of the pair (or at course start) and ending at
// min(asOf, course end). An empty window yields a zero, non-registrable preview.
// Stored dates are read as calendar days in asOf's location.
func PreviewCommission(course models.Course, professorGrantID string, commissions, tuitions []models.Payment, asOf time.Time) (CommissionPreview, error) {
	if err := requireKind(course, models.CourseRevenueShare); err != nil {
		return CommissionPreview{}, err
	}
	if !course.HasProfessor(professorGrantID) {
		return CommissionPreview{}, appErrors.Clonef(appErrors.ErrNotAssigned, "professor %s is not assigned to course %s", professorGrantID, course.ID)
	}
	loc := asOf.Location()
	start := CalendarDay(course.StartDate, loc)
	if last, ok := LatestCommission(commissions, course.ID, professorGrantID); ok {
		start = CalendarDay(last.Commission.PeriodEnd, loc).AddDate(0, 0, 1)
	}
	end := DateOf(asOf)
	if !course.EndDate.IsZero() {
		if courseEnd := CalendarDay(course.EndDate, loc); courseEnd.Before(end) {
			end = courseEnd
		}
	}

	preview := CommissionPreview{
		CourseID:         course.ID,
		ProfessorGrantID: professorGrantID,
		PeriodStart:      start,
		PeriodEnd:        end,
		RevenueCollected: decimal.Zero,
		CommissionDue:    decimal.Zero,
	}
	if start.After(end) {
		return preview, nil
	}

	preview.DaysInPeriod = DaysInclusive(start, end)
	for _, p := range tuitions {
		if p.Kind != models.PaymentTuition || p.Tuition == nil || !p.Active() {
			continue
		}
		if p.Tuition.CourseID != course.ID || !withinDays(p.PaidAt, start, end) {
			continue
		}
		preview.RevenueCollected = preview.RevenueCollected.Add(p.Amount)
		preview.TuitionCount++
	}
	preview.CommissionDue = preview.RevenueCollected.Mul(course.CommissionPercent).Div(hundred).Round(2)
	preview.CanRegister = preview.CommissionDue.IsPositive()
	return preview, nil
}

// NewCommission turns a registrable preview into a commission payment whose
// billing period is the month of the period end.
func NewCommission(preview CommissionPreview, paidAt time.Time, recordedBy string) (models.Payment, error) {
	if !preview.CanRegister {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrNothingToLiquidate, "no pending commission for course %s up to %s", preview.CourseID, preview.PeriodEnd.Format("2006-01-02"))
	}
	return models.Payment{
		Kind:       models.PaymentCommission,
		Amount:     preview.CommissionDue,
		PaidAt:     paidAt,
		RecordedBy: recordedBy,
		Commission: &models.CommissionDetail{
			CourseID:         preview.CourseID,
			ProfessorGrantID: preview.ProfessorGrantID,
			PeriodStart:      preview.PeriodStart,
			PeriodEnd:        preview.PeriodEnd,
			BillingMonth:     int(preview.PeriodEnd.Month()),
			BillingYear:      preview.PeriodEnd.Year(),
		},
	}, nil
}

// LatestCommission returns the non-voided commission of the pair with the latest period end.
func LatestCommission(payments []models.Payment, courseID, professorGrantID string) (models.Payment, bool) {
	var (
		latest models.Payment
		found  bool
	)
	for _, p := range payments {
		if p.Kind != models.PaymentCommission || p.Commission == nil || !p.Active() {
			continue
		}
		if p.Commission.CourseID != courseID || p.Commission.ProfessorGrantID != professorGrantID {
			continue
		}
		if !found || p.Commission.PeriodEnd.After(latest.Commission.PeriodEnd) {
			latest = p
			found = true
		}
	}
	return latest, found
}
