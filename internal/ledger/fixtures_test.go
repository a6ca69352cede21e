package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func revenueShareCourse() models.Course {
	return models.Course{
		ID:                "course-rs",
		Name:              "Guitar",
		Kind:              models.CourseRevenueShare,
		StartDate:         day(2024, time.March, 1),
		EndDate:           day(2024, time.December, 15),
		CommissionPercent: dec("50"),
		Prices: []models.CoursePrice{
			{CourseID: "course-rs", Plan: models.PlanMonthly, Price: dec("10000")},
			{CourseID: "course-rs", Plan: models.PlanPaidInFull, Price: dec("10000")},
		},
		ProfessorGrantIDs: []string{"prof-1"},
	}
}

func rentalCourse() models.Course {
	return models.Course{
		ID:                "course-rent",
		Name:              "Pottery",
		Kind:              models.CourseRental,
		StartDate:         day(2024, time.March, 1),
		EndDate:           day(2024, time.August, 31),
		RentalFee:         dec("5000"),
		TotalInstallments: 6,
		Prices: []models.CoursePrice{
			{CourseID: "course-rent", Plan: models.PlanMonthly, Price: dec("8000")},
		},
		ProfessorGrantIDs: []string{"prof-1", "prof-2"},
	}
}

func tuition(id, courseID string, amount string, paidAt time.Time) models.Payment {
	return models.Payment{
		ID:     id,
		Kind:   models.PaymentTuition,
		Amount: dec(amount),
		PaidAt: paidAt,
		Tuition: &models.TuitionDetail{
			EnrollmentID: "enr-" + id,
			CourseID:     courseID,
		},
	}
}

func rental(n int, professorGrantID string, paidAt time.Time) models.Payment {
	return models.Payment{
		ID:     fmt.Sprintf("rent-%s-%d", professorGrantID, n),
		Kind:   models.PaymentRental,
		Amount: dec("5000"),
		PaidAt: paidAt,
		Rental: &models.RentalDetail{
			CourseID:          "course-rent",
			ProfessorGrantID:  professorGrantID,
			InstallmentNumber: n,
		},
	}
}

func commission(id string, start, end time.Time, amount string) models.Payment {
	return models.Payment{
		ID:     id,
		Kind:   models.PaymentCommission,
		Amount: dec(amount),
		PaidAt: end,
		Commission: &models.CommissionDetail{
			CourseID:         "course-rs",
			ProfessorGrantID: "prof-1",
			PeriodStart:      start,
			PeriodEnd:        end,
			BillingMonth:     int(end.Month()),
			BillingYear:      end.Year(),
		},
	}
}

func voided(p models.Payment) models.Payment {
	at := p.PaidAt.AddDate(0, 0, 1)
	reason := "entered twice"
	p.VoidedAt = &at
	p.VoidReason = &reason
	return p
}

func paidOn(p models.Payment, at time.Time) models.Payment {
	p.PaidAt = at
	return p
}
