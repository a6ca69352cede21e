package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type mockCourseRepo struct {
	courses  map[string]models.Course
	prices   []models.CoursePrice
	assigned []string
}

func (m *mockCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *mockCourseRepo) List(_ context.Context) ([]models.Course, error) {
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCourseRepo) Create(_ context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) SetPrice(_ context.Context, price models.CoursePrice) error {
	m.prices = append(m.prices, price)
	return nil
}

func (m *mockCourseRepo) AssignProfessor(_ context.Context, courseID, grantID string) error {
	m.assigned = append(m.assigned, courseID+"/"+grantID)
	return nil
}

func newCourseFixture() (*CourseService, *mockCourseRepo) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-rs":   revenueShare(),
		"course-rent": rentalCourse(),
	}}
	grants := stubGrants{
		"prof-3": {ID: "prof-3", Kind: models.RoleProfessor, StartDate: day(2024, time.January, 1)},
		"stud-1": {ID: "stud-1", Kind: models.RoleStudent, StartDate: day(2024, time.January, 1)},
	}
	svc := NewCourseService(repo, grants, nil, zap.NewNop())
	svc.now = fixedClock
	return svc, repo
}

func TestCourseServiceCreateValidatesVariant(t *testing.T) {
	svc, repo := newCourseFixture()
	ctx := context.Background()
	base := CreateCourseRequest{
		Name:      "Tango",
		Kind:      models.CourseRental,
		StartDate: day(2024, time.June, 1),
		EndDate:   day(2024, time.November, 30),
		Prices:    []PriceRequest{{Plan: models.PlanMonthly, Price: dec("9000")}},
	}

	_, err := svc.Create(ctx, adminAct, base)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	rental := base
	rental.RentalFee = dec("4000")
	rental.TotalInstallments = 6
	course, err := svc.Create(ctx, adminAct, rental)
	require.NoError(t, err)
	assert.Equal(t, "course-new", course.ID)
	assert.Contains(t, repo.courses, "course-new")

	share := base
	share.Kind = models.CourseRevenueShare
	share.CommissionPercent = dec("150")
	_, err = svc.Create(ctx, adminAct, share)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	dup := rental
	dup.Prices = append(dup.Prices, PriceRequest{Plan: models.PlanMonthly, Price: dec("1")})
	_, err = svc.Create(ctx, adminAct, dup)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	backwards := rental
	backwards.EndDate = day(2024, time.May, 1)
	_, err = svc.Create(ctx, adminAct, backwards)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, officeAct, rental)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCourseServiceSetPricePermissions(t *testing.T) {
	svc, repo := newCourseFixture()
	ctx := context.Background()
	req := PriceRequest{Plan: models.PlanMonthly, Price: dec("12000")}

	_, err := svc.SetPrice(ctx, profAct, "course-rs", req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	course, err := svc.SetPrice(ctx, profAct, "course-rent", req)
	require.NoError(t, err)
	price, ok := course.PriceFor(models.PlanMonthly)
	require.True(t, ok)
	assert.True(t, dec("12000").Equal(price))

	outsider := models.Actor{PersonID: "p9", ActiveRole: models.RoleProfessor, GrantIDs: map[models.RoleKind]string{models.RoleProfessor: "prof-9"}}
	_, err = svc.SetPrice(ctx, outsider, "course-rent", req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	course, err = svc.SetPrice(ctx, adminAct, "course-rs", PriceRequest{Plan: models.PlanPaidInFull, Price: dec("95000")})
	require.NoError(t, err)
	assert.Len(t, course.Prices, 2)
	assert.Len(t, repo.prices, 2)

	_, err = svc.SetPrice(ctx, adminAct, "course-rs", PriceRequest{Plan: models.PlanMonthly, Price: dec("0")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCourseServiceAssignProfessor(t *testing.T) {
	svc, repo := newCourseFixture()
	ctx := context.Background()

	course, err := svc.AssignProfessor(ctx, adminAct, "course-rs", AssignProfessorRequest{ProfessorGrantID: "prof-3"})
	require.NoError(t, err)
	assert.Contains(t, course.ProfessorGrantIDs, "prof-3")
	assert.Equal(t, []string{"course-rs/prof-3"}, repo.assigned)

	_, err = svc.AssignProfessor(ctx, adminAct, "course-rs", AssignProfessorRequest{ProfessorGrantID: "prof-1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.AssignProfessor(ctx, adminAct, "course-rs", AssignProfessorRequest{ProfessorGrantID: "stud-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.AssignProfessor(ctx, officeAct, "course-rs", AssignProfessorRequest{ProfessorGrantID: "prof-3"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCourseServiceGet(t *testing.T) {
	svc, _ := newCourseFixture()

	course, err := svc.Get(context.Background(), "course-rent")
	require.NoError(t, err)
	assert.Equal(t, 6, course.TotalInstallments)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
