package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *memLedger, *memEnrollments) {
	t.Helper()
	store := newMemLedger()
	store.addCourse(revenueShare())
	store.addCourse(rentalCourse())
	store.addEnrollment(newEnrollment("e-1", "course-rs"), "Ana Torres")
	repo := &memEnrollments{m: store}
	grants := stubGrants{
		"stud-1": {ID: "stud-1", PersonID: "person-stud-1", Kind: models.RoleStudent, StartDate: day(2024, time.January, 1)},
		"prof-1": {ID: "prof-1", PersonID: "person-prof-1", Kind: models.RoleProfessor, StartDate: day(2024, time.January, 1)},
	}
	cfg := EnrollmentServiceConfig{Pricing: ledger.DefaultPricing(), ConflictRetries: 2, Location: time.UTC}
	svc := NewEnrollmentService(repo, memCourses{m: store}, grants, store, nil, nil, NewMetricsService(), cfg, nil, zap.NewNop())
	svc.now = fixedClock
	return svc, store, repo
}

func TestEnrollmentServiceRegisterPaymentUpdatesStatus(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.seed(tuitionPayment("e-1", "course-rs", "10000", day(2024, time.March, 5)))
	store.seed(tuitionPayment("e-1", "course-rs", "10000", day(2024, time.April, 5)))
	ctx := context.Background()

	before, err := svc.Summary(ctx, officeAct, "e-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelinquent, before.Status)
	assert.Equal(t, 3, before.ExpectedInstallments)
	assert.True(t, dec("10000").Equal(before.OutstandingBalance))

	receipt, err := svc.RegisterPayment(ctx, officeAct, "e-1", RegisterTuitionRequest{})
	require.NoError(t, err)
	assert.True(t, dec("10000").Equal(receipt.Payment.Amount))
	assert.Equal(t, "person-office", receipt.Payment.RecordedBy)
	assert.Equal(t, testNow, receipt.Payment.PaidAt)
	assert.Equal(t, models.StatusCurrent, receipt.Summary.Status)
	assert.Equal(t, 3, receipt.Summary.PaidInstallments)
	assert.True(t, receipt.Summary.OutstandingBalance.IsZero())
	assert.Equal(t, []string{"enrollment:e-1"}, store.scopes)
	assert.Len(t, store.active(models.PaymentTuition), 3)
}

func TestEnrollmentServiceSurchargeMarksLate(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	paidAt := day(2024, time.April, 12)

	receipt, err := svc.RegisterPayment(context.Background(), adminAct, "e-1", RegisterTuitionRequest{
		Amount:        ptrDecimal(dec("11000")),
		PaidAt:        &paidAt,
		WithSurcharge: true,
	})
	require.NoError(t, err)
	assert.True(t, dec("11000").Equal(receipt.Payment.Amount))
	assert.True(t, receipt.Payment.Tuition.WithSurcharge)
	assert.Equal(t, models.StatusLate, receipt.Summary.Status)
	assert.True(t, dec("20000").Equal(receipt.Summary.OutstandingBalance))
}

func TestEnrollmentServiceApplyBenefitGoesForward(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.seed(tuitionPayment("e-1", "course-rs", "10000", day(2024, time.March, 5)))
	ctx := context.Background()

	percent := 20
	updated, err := svc.ApplyBenefit(ctx, officeAct, "e-1", ApplyBenefitRequest{Percent: &percent})
	require.NoError(t, err)
	assert.Equal(t, models.BenefitCustom, updated.BenefitKind)
	assert.Equal(t, 20, updated.BenefitPercent)

	summary, err := svc.Summary(ctx, officeAct, "e-1", nil)
	require.NoError(t, err)
	assert.True(t, dec("8000").Equal(summary.FinalTuition))
	assert.True(t, dec("10000").Equal(store.active(models.PaymentTuition)[0].Amount))

	updated, err = svc.ApplyBenefit(ctx, officeAct, "e-1", ApplyBenefitRequest{Kind: models.BenefitStaffFamily})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.BenefitPercent)

	tooMuch := 120
	_, err = svc.ApplyBenefit(ctx, officeAct, "e-1", ApplyBenefitRequest{Percent: &tooMuch})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ApplyBenefit(ctx, officeAct, "e-1", ApplyBenefitRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollmentServiceWithdrawClosesEnrollment(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	withdrawn, err := svc.Withdraw(ctx, officeAct, "e-1", WithdrawRequest{})
	require.NoError(t, err)
	require.NotNil(t, withdrawn.WithdrawnAt)
	assert.Equal(t, day(2024, time.May, 20), *withdrawn.WithdrawnAt)

	_, err = svc.RegisterPayment(ctx, officeAct, "e-1", RegisterTuitionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentClosed)

	_, err = svc.Withdraw(ctx, officeAct, "e-1", WithdrawRequest{})
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentClosed)

	percent := 10
	_, err = svc.ApplyBenefit(ctx, officeAct, "e-1", ApplyBenefitRequest{Percent: &percent})
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentClosed)
}

func TestEnrollmentServiceRejectsNonStaff(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	for _, actor := range []models.Actor{studAct, profAct, gateAct} {
		_, err := svc.RegisterPayment(ctx, actor, "e-1", RegisterTuitionRequest{})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	}
	assert.Zero(t, store.txCalls)

	_, err := svc.RegisterPayment(ctx, officeAct, "missing", RegisterTuitionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentServiceRetriesStoreConflicts(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.conflicts = 1

	_, err := svc.RegisterPayment(context.Background(), officeAct, "e-1", RegisterTuitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.txCalls)
	assert.Len(t, store.active(models.PaymentTuition), 1)

	store.conflicts = 10
	_, err = svc.RegisterPayment(context.Background(), officeAct, "e-1", RegisterTuitionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, 5, store.txCalls)
	assert.Len(t, store.active(models.PaymentTuition), 1)
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, _, repo := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, officeAct, EnrollRequest{StudentGrantID: "prof-1", CourseID: "course-rs", Plan: models.PlanMonthly})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Enroll(ctx, officeAct, EnrollRequest{StudentGrantID: "stud-1", CourseID: "course-rent", Plan: models.PlanPaidInFull})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPlan)

	_, err = svc.Enroll(ctx, officeAct, EnrollRequest{StudentGrantID: "stud-1", CourseID: "nope", Plan: models.PlanMonthly})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Enroll(ctx, officeAct, EnrollRequest{StudentGrantID: "stud-1", CourseID: "course-rs", Plan: "WEEKLY"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.open = true
	_, err = svc.Enroll(ctx, officeAct, EnrollRequest{StudentGrantID: "stud-1", CourseID: "course-rs", Plan: models.PlanMonthly})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	repo.open = false
	enrollment, err := svc.Enroll(ctx, officeAct, EnrollRequest{
		StudentGrantID: "stud-1",
		CourseID:       "course-rent",
		Plan:           models.PlanMonthly,
		BenefitKind:    models.BenefitSibling,
	})
	require.NoError(t, err)
	assert.Equal(t, "enr-new", enrollment.ID)
	assert.Equal(t, 10, enrollment.BenefitPercent)
	assert.Equal(t, day(2024, time.May, 20), enrollment.StartDate)
	assert.Same(t, enrollment, repo.created)
}

func TestEnrollmentServiceGetVisibility(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	got, err := svc.Get(ctx, studAct, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "e-1", got.ID)

	other := models.Actor{PersonID: "person-2", ActiveRole: models.RoleStudent, GrantIDs: map[models.RoleKind]string{models.RoleStudent: "stud-2"}}
	_, err = svc.Get(ctx, other, "e-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Summary(ctx, gateAct, "e-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentServiceListByCourse(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(t)
	store.addEnrollment(newEnrollment("e-2", "course-rs"), "Luis Vega")
	store.addEnrollment(newEnrollment("e-3", "course-rent"), "Ana Torres")
	ctx := context.Background()

	roster, err := svc.ListByCourse(ctx, officeAct, "course-rs")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "e-1", roster[0].ID)
	assert.Equal(t, "e-2", roster[1].ID)

	_, err = svc.ListByCourse(ctx, officeAct, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.ListByCourse(ctx, profAct, "course-rs")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentServiceWithdrawKeepsRequestedDateInLocation(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	svc.loc = time.FixedZone("ART", -3*60*60)
	date := day(2024, time.March, 1)

	withdrawn, err := svc.Withdraw(context.Background(), officeAct, "e-1", WithdrawRequest{Date: &date})
	require.NoError(t, err)
	require.NotNil(t, withdrawn.WithdrawnAt)
	assert.Equal(t, "2024-03-01", withdrawn.WithdrawnAt.Format("2006-01-02"))
}
