package ledger

import (
	"strings"
	"time"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

// CheckVoid validates a void request. Sequenced payments (rental installments
// and commissions) can only be voided from the tail of their (course, professor)
// sequence so the remaining active payments stay gap-free and contiguous.
// siblings must contain the payments of the same kind for the same course.
func CheckVoid(p models.Payment, siblings []models.Payment, reason string) error {
	if !p.Active() {
		return appErrors.Clonef(appErrors.ErrAlreadyVoided, "payment %s was voided on %s", p.ID, p.VoidedAt.Format("2006-01-02"))
	}
	if strings.TrimSpace(reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "void reason is required")
	}
	switch p.Kind {
	case models.PaymentTuition:
		return nil
	case models.PaymentRental:
		highest := 0
		for _, s := range activeRentals(siblings, p.Rental.CourseID, p.Rental.ProfessorGrantID) {
			if s.Rental.InstallmentNumber > highest {
				highest = s.Rental.InstallmentNumber
			}
		}
		if p.Rental.InstallmentNumber < highest {
			return appErrors.Clonef(appErrors.ErrOutOfSequence, "installment %d cannot be voided while installment %d is active", p.Rental.InstallmentNumber, highest)
		}
		return nil
	case models.PaymentCommission:
		latest, ok := LatestCommission(siblings, p.Commission.CourseID, p.Commission.ProfessorGrantID)
		if ok && latest.Commission.PeriodEnd.After(p.Commission.PeriodEnd) {
			return appErrors.Clonef(appErrors.ErrOutOfSequence, "commission ending %s cannot be voided while a later period is active", p.Commission.PeriodEnd.Format("2006-01-02"))
		}
		return nil
	default:
		return appErrors.Clonef(appErrors.ErrValidation, "unknown payment kind %q", p.Kind)
	}
}

// Void marks the payment inactive. Nothing else about the payment changes.
func Void(p *models.Payment, reason, actorID string, at time.Time) {
	reason = strings.TrimSpace(reason)
	p.VoidedAt = &at
	p.VoidReason = &reason
	p.VoidedBy = &actorID
}
