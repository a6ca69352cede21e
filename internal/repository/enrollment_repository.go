package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

const enrollmentColumns = `id, student_grant_id, course_id, plan, benefit_kind, benefit_percent, start_date, withdrawn_at, created_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID loads an enrollment with its full tuition payment history, voided included.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return loadEnrollment(ctx, r.db, id, false)
}

// ListByCourse returns the course's enrollments without payments.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE course_id = $1 ORDER BY start_date ASC`
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	return enrollments, nil
}

// HasOpen reports whether the student grant already has an open enrollment in the course.
func (r *EnrollmentRepository) HasOpen(ctx context.Context, studentGrantID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_grant_id = $1 AND course_id = $2 AND withdrawn_at IS NULL)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentGrantID, courseID); err != nil {
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (` + enrollmentColumns + `)
VALUES (:id, :student_grant_id, :course_id, :plan, :benefit_kind, :benefit_percent, :start_date, :withdrawn_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func loadEnrollment(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	payments, err := listPayments(ctx, q, models.PaymentFilter{
		Kinds:         []models.PaymentKind{models.PaymentTuition},
		EnrollmentID:  id,
		IncludeVoided: true,
	})
	if err != nil {
		return nil, err
	}
	enrollment.Payments = payments
	return &enrollment, nil
}
