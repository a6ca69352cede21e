package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

// InstallmentPreview describes the next rental installment a professor owes.
type InstallmentPreview struct {
	CourseID         string          `json:"course_id"`
	ProfessorGrantID string          `json:"professor_grant_id"`
	NextNumber       int             `json:"next_number"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	Paid             int             `json:"paid"`
	Total            int             `json:"total"`
	Remaining        int             `json:"remaining"`
	BillingMonth     int             `json:"billing_month,omitempty"`
	BillingYear      int             `json:"billing_year,omitempty"`
	Complete         bool            `json:"complete"`
}

// PreviewInstallment counts the pair's non-voided rental payments to find the
// next number in the sequence.
func PreviewInstallment(course models.Course, professorGrantID string, payments []models.Payment) (InstallmentPreview, error) {
	if err := requireKind(course, models.CourseRental); err != nil {
		return InstallmentPreview{}, err
	}
	if !course.HasProfessor(professorGrantID) {
		return InstallmentPreview{}, appErrors.Clonef(appErrors.ErrNotAssigned, "professor %s is not assigned to course %s", professorGrantID, course.ID)
	}
	paid := len(activeRentals(payments, course.ID, professorGrantID))
	preview := InstallmentPreview{
		CourseID:         course.ID,
		ProfessorGrantID: professorGrantID,
		NextNumber:       paid + 1,
		AmountDue:        course.RentalFee,
		Paid:             paid,
		Total:            course.TotalInstallments,
		Remaining:        course.TotalInstallments - paid,
	}
	if preview.Remaining <= 0 {
		preview.Remaining = 0
		preview.Complete = true
		preview.AmountDue = decimal.Zero
		return preview, nil
	}
	preview.BillingMonth, preview.BillingYear = BillingPeriod(course.StartDate, preview.NextNumber)
	return preview, nil
}

// NewInstallment validates the requested number against the strict sequence
// and builds the rental payment. The amount is always the flat fee.
func NewInstallment(course models.Course, professorGrantID string, requested int, payments []models.Payment, paidAt time.Time, recordedBy string) (models.Payment, error) {
	preview, err := PreviewInstallment(course, professorGrantID, payments)
	if err != nil {
		return models.Payment{}, err
	}
	if requested < 1 || requested > course.TotalInstallments {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrOutOfRange, "installment %d outside 1..%d for course %s", requested, course.TotalInstallments, course.ID)
	}
	if requested != preview.NextNumber {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrOutOfSequence, "installment %d requested but %d is next for course %s", requested, preview.NextNumber, course.ID)
	}
	if !course.RentalFee.IsPositive() {
		return models.Payment{}, appErrors.Clonef(appErrors.ErrValidation, "course %s has no rental fee", course.ID)
	}
	month, year := BillingPeriod(course.StartDate, requested)
	return models.Payment{
		Kind:       models.PaymentRental,
		Amount:     course.RentalFee,
		PaidAt:     paidAt,
		RecordedBy: recordedBy,
		Rental: &models.RentalDetail{
			CourseID:          course.ID,
			ProfessorGrantID:  professorGrantID,
			InstallmentNumber: requested,
			BillingMonth:      month,
			BillingYear:       year,
		},
	}, nil
}

// BillingPeriod is the course start month advanced by n-1 months.
func BillingPeriod(courseStart time.Time, n int) (month, year int) {
	first := time.Date(courseStart.Year(), courseStart.Month(), 1, 0, 0, 0, 0, courseStart.Location())
	billed := first.AddDate(0, n-1, 0)
	return int(billed.Month()), billed.Year()
}

func activeRentals(payments []models.Payment, courseID, professorGrantID string) []models.Payment {
	var out []models.Payment
	for _, p := range payments {
		if p.Kind != models.PaymentRental || p.Rental == nil || !p.Active() {
			continue
		}
		if p.Rental.CourseID == courseID && p.Rental.ProfessorGrantID == professorGrantID {
			out = append(out, p)
		}
	}
	return out
}

func requireKind(course models.Course, kind models.CourseKind) error {
	if course.Kind != kind {
		return appErrors.Clonef(appErrors.ErrValidation, "course %s is %s, expected %s", course.ID, course.Kind, kind)
	}
	return nil
}
