package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

func TestPreviewInstallment(t *testing.T) {
	course := rentalCourse()
	payments := []models.Payment{
		rental(1, "prof-1", day(2024, 3, 2)),
		rental(2, "prof-1", day(2024, 4, 2)),
		rental(1, "prof-2", day(2024, 3, 3)),
		voided(rental(3, "prof-1", day(2024, 5, 2))),
	}

	preview, err := PreviewInstallment(course, "prof-1", payments)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.NextNumber)
	assert.Equal(t, 2, preview.Paid)
	assert.Equal(t, 4, preview.Remaining)
	assert.Equal(t, "5000", preview.AmountDue.String())
	assert.Equal(t, 5, preview.BillingMonth)
	assert.Equal(t, 2024, preview.BillingYear)
	assert.False(t, preview.Complete)

	preview, err = PreviewInstallment(course, "prof-2", payments)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.NextNumber)
}

func TestPreviewInstallmentErrors(t *testing.T) {
	_, err := PreviewInstallment(rentalCourse(), "prof-9", nil)
	assert.ErrorIs(t, err, appErrors.ErrNotAssigned)

	_, err = PreviewInstallment(revenueShareCourse(), "prof-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPreviewInstallmentComplete(t *testing.T) {
	course := rentalCourse()
	course.TotalInstallments = 2
	preview, err := PreviewInstallment(course, "prof-1", []models.Payment{rental(1, "prof-1", day(2024, 3, 2)), rental(2, "prof-1", day(2024, 4, 2))})
	require.NoError(t, err)
	assert.True(t, preview.Complete)
	assert.Equal(t, 0, preview.Remaining)
	assert.True(t, preview.AmountDue.IsZero())
}

func TestNewInstallmentStrictSequence(t *testing.T) {
	course := rentalCourse()
	var payments []models.Payment
	register := func(n int) error {
		p, err := NewInstallment(course, "prof-1", n, payments, day(2024, 3, 1).AddDate(0, n-1, 0), "office-1")
		if err == nil {
			payments = append(payments, p)
		}
		return err
	}

	require.NoError(t, register(1))
	assert.ErrorIs(t, register(3), appErrors.ErrOutOfSequence)
	require.NoError(t, register(2))
	require.NoError(t, register(3))

	last := payments[len(payments)-1]
	require.NoError(t, last.CheckShape())
	assert.Equal(t, 3, last.Rental.InstallmentNumber)
	assert.Equal(t, 5, last.Rental.BillingMonth)
	assert.Equal(t, 2024, last.Rental.BillingYear)
	assert.Equal(t, "5000", last.Amount.String())
}

func TestNewInstallmentOutOfRange(t *testing.T) {
	course := rentalCourse()
	for _, n := range []int{0, -1, 7} {
		_, err := NewInstallment(course, "prof-1", n, nil, day(2024, 3, 1), "office-1")
		assert.ErrorIs(t, err, appErrors.ErrOutOfRange, "installment %d", n)
	}
}

func TestNewInstallmentReopensVoidedSlot(t *testing.T) {
	course := rentalCourse()
	payments := []models.Payment{
		rental(1, "prof-1", day(2024, 3, 2)),
		rental(2, "prof-1", day(2024, 4, 2)),
		voided(rental(3, "prof-1", day(2024, 5, 2))),
	}
	_, err := NewInstallment(course, "prof-1", 4, payments, day(2024, 5, 3), "office-1")
	assert.ErrorIs(t, err, appErrors.ErrOutOfSequence)

	p, err := NewInstallment(course, "prof-1", 3, payments, day(2024, 5, 3), "office-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Rental.InstallmentNumber)
}

func TestInstallmentSequenceStaysGapFree(t *testing.T) {
	course := rentalCourse()
	var payments []models.Payment
	ops := []string{"reg", "reg", "reg", "void", "reg", "void", "void", "reg", "reg", "reg"}
	for i, op := range ops {
		switch op {
		case "reg":
			preview, err := PreviewInstallment(course, "prof-1", payments)
			require.NoError(t, err)
			p, err := NewInstallment(course, "prof-1", preview.NextNumber, payments, day(2024, 6, 1), "office-1")
			require.NoError(t, err)
			p.ID = fmt.Sprintf("rent-%d", i)
			payments = append(payments, p)
		case "void":
			for i := len(payments) - 1; i >= 0; i-- {
				if payments[i].Active() {
					require.NoError(t, CheckVoid(payments[i], payments, "mistake"))
					Void(&payments[i], "mistake", "admin-1", day(2024, 6, 2))
					break
				}
			}
		}

		var numbers []int
		for _, p := range activeRentals(payments, course.ID, "prof-1") {
			numbers = append(numbers, p.Rental.InstallmentNumber)
		}
		for i, n := range numbers {
			assert.Equal(t, i+1, n)
		}
	}
}

func TestBillingPeriod(t *testing.T) {
	m, y := BillingPeriod(day(2024, time.November, 30), 3)
	assert.Equal(t, 1, m)
	assert.Equal(t, 2025, y)
}
