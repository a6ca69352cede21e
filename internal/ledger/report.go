package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

// Classify maps a payment to its report direction and category. Tuition paid on
// rental courses belongs to the professor and is not institute income.
func Classify(d models.PaymentDetail) (models.MovementDirection, models.MovementCategory, bool) {
	switch d.Kind {
	case models.PaymentTuition:
		if d.CourseKind != models.CourseRevenueShare {
			return "", "", false
		}
		return models.DirectionIncome, models.CategoryTuition, true
	case models.PaymentRental:
		return models.DirectionIncome, models.CategoryRental, true
	case models.PaymentCommission:
		return models.DirectionExpense, models.CategoryCommission, true
	default:
		return "", "", false
	}
}

// CategoryOf returns the movement category of a payment kind.
func CategoryOf(kind models.PaymentKind) models.MovementCategory {
	switch kind {
	case models.PaymentTuition:
		return models.CategoryTuition
	case models.PaymentRental:
		return models.CategoryRental
	case models.PaymentCommission:
		return models.CategoryCommission
	default:
		return ""
	}
}

// SummarizeWindow totals the non-voided payments dated within [from, to].
func SummarizeWindow(details []models.PaymentDetail, from, to time.Time) models.FinancialSummary {
	summary := models.FinancialSummary{
		From:       from,
		To:         to,
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		Tuition:    models.CategoryTotal{Category: models.CategoryTuition, Direction: models.DirectionIncome, Total: decimal.Zero},
		Rental:     models.CategoryTotal{Category: models.CategoryRental, Direction: models.DirectionIncome, Total: decimal.Zero},
		Commission: models.CategoryTotal{Category: models.CategoryCommission, Direction: models.DirectionExpense, Total: decimal.Zero},
	}
	for _, d := range details {
		if !d.Active() || !withinDays(d.PaidAt, from, to) {
			continue
		}
		_, category, ok := Classify(d)
		if !ok {
			continue
		}
		var bucket *models.CategoryTotal
		switch category {
		case models.CategoryTuition:
			bucket = &summary.Tuition
		case models.CategoryRental:
			bucket = &summary.Rental
		case models.CategoryCommission:
			bucket = &summary.Commission
		}
		bucket.Total = bucket.Total.Add(d.Amount)
		bucket.Count++
	}
	summary.Income = summary.Tuition.Total.Add(summary.Rental.Total)
	summary.Expense = summary.Commission.Total
	summary.Balance = summary.Income.Sub(summary.Expense)
	return summary
}

// Movements flattens the contributing payments into report lines, newest first.
func Movements(details []models.PaymentDetail, from, to time.Time) []models.Movement {
	lines := make([]models.Movement, 0, len(details))
	for _, d := range details {
		if !d.Active() || !withinDays(d.PaidAt, from, to) {
			continue
		}
		direction, category, ok := Classify(d)
		if !ok {
			continue
		}
		lines = append(lines, models.Movement{
			PaymentID:     d.ID,
			Date:          d.PaidAt,
			Direction:     direction,
			Category:      category,
			Label:         movementLabel(d),
			Amount:        d.Amount,
			StudentName:   optional(d.StudentName),
			ProfessorName: optional(d.ProfessorName),
			CourseName:    optional(d.CourseName),
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Date.Equal(lines[j].Date) {
			return lines[i].PaymentID > lines[j].PaymentID
		}
		return lines[i].Date.After(lines[j].Date)
	})
	return lines
}

// ChangePercent compares two figures: 0 when both are zero, ±100 when only the
// previous one is zero, otherwise the relative change rounded to 2 places.
func ChangePercent(prev, curr decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		switch {
		case curr.IsZero():
			return decimal.Zero
		case curr.IsPositive():
			return hundred
		default:
			return hundred.Neg()
		}
	}
	return curr.Sub(prev).Div(prev).Mul(hundred).Round(2)
}

// Compare computes ChangePercent for every summary figure.
func Compare(prev, curr models.FinancialSummary) models.SummaryChange {
	count := func(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
	return models.SummaryChange{
		Income:          ChangePercent(prev.Income, curr.Income),
		Expense:         ChangePercent(prev.Expense, curr.Expense),
		Balance:         ChangePercent(prev.Balance, curr.Balance),
		TuitionTotal:    ChangePercent(prev.Tuition.Total, curr.Tuition.Total),
		TuitionCount:    ChangePercent(count(prev.Tuition.Count), count(curr.Tuition.Count)),
		RentalTotal:     ChangePercent(prev.Rental.Total, curr.Rental.Total),
		RentalCount:     ChangePercent(count(prev.Rental.Count), count(curr.Rental.Count)),
		CommissionTotal: ChangePercent(prev.Commission.Total, curr.Commission.Total),
		CommissionCount: ChangePercent(count(prev.Commission.Count), count(curr.Commission.Count)),
	}
}

// BuildReport aggregates month/year and compares it with the preceding month.
// details may span both windows; each payment lands in the window its date falls in.
func BuildReport(month, year int, details []models.PaymentDetail, loc *time.Location) models.FinancialReport {
	from, to := MonthWindow(month, year, loc)
	prevMonth, prevYear := PreviousMonth(month, year)
	prevFrom, prevTo := MonthWindow(prevMonth, prevYear, loc)

	current := SummarizeWindow(details, from, to)
	previous := SummarizeWindow(details, prevFrom, prevTo)
	return models.FinancialReport{
		Month:     month,
		Year:      year,
		Current:   current,
		Previous:  previous,
		Change:    Compare(previous, current),
		Movements: Movements(details, from, to),
	}
}

func movementLabel(d models.PaymentDetail) string {
	switch d.Kind {
	case models.PaymentTuition:
		if d.StudentName != "" {
			return fmt.Sprintf("Tuition %s: %s", d.CourseName, d.StudentName)
		}
		return fmt.Sprintf("Tuition %s", d.CourseName)
	case models.PaymentRental:
		return fmt.Sprintf("Rental installment %d (%02d/%d) %s", d.Rental.InstallmentNumber, d.Rental.BillingMonth, d.Rental.BillingYear, d.CourseName)
	case models.PaymentCommission:
		return fmt.Sprintf("Commission %s %s to %s", d.CourseName, d.Commission.PeriodStart.Format("2006-01-02"), d.Commission.PeriodEnd.Format("2006-01-02"))
	default:
		return string(d.Kind)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
