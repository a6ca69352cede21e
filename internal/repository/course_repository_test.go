package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + courseColumns + " FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "kind", "schedule", "start_date", "end_date", "rental_fee", "total_installments", "commission_percent"}).
			AddRow("course-1", "Pottery", "RENTAL", "Mon 18:00", start, start.AddDate(0, 6, -1), "5000.00", 6, "0"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT plan, price FROM course_prices WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "price"}).AddRow("MONTHLY", "8000.00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT professor_grant_id FROM course_professors WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"professor_grant_id"}).AddRow("prof-1").AddRow("prof-2"))

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, models.CourseRental, course.Kind)
	assert.Equal(t, 6, course.TotalInstallments)
	assert.True(t, dec("5000").Equal(course.RentalFee))
	price, ok := course.PriceFor(models.PlanMonthly)
	require.True(t, ok)
	assert.True(t, dec("8000").Equal(price))
	assert.Equal(t, []string{"prof-1", "prof-2"}, course.ProfessorGrantIDs)
	assert.True(t, course.HasProfessor("prof-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateWritesPrices(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO courses").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_prices (course_id, plan, price) VALUES ($1, $2, $3)")).
		WithArgs(sqlmock.AnyArg(), models.PlanMonthly, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO course_prices").
		WithArgs(sqlmock.AnyArg(), models.PlanPaidInFull, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	course := &models.Course{
		Name:              "Guitar",
		Kind:              models.CourseRevenueShare,
		CommissionPercent: dec("40"),
		Prices: []models.CoursePrice{
			{Plan: models.PlanMonthly, Price: dec("10000")},
			{Plan: models.PlanPaidInFull, Price: dec("95000")},
		},
	}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.NotEmpty(t, course.ID)
	assert.Equal(t, course.ID, course.Prices[1].CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAssignProfessorIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(`INSERT INTO course_professors .* ON CONFLICT \(course_id, professor_grant_id\) DO NOTHING`).
		WithArgs("course-1", "prof-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.AssignProfessor(context.Background(), "course-1", "prof-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
