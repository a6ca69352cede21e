package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

const courseColumns = `id, name, kind, schedule, start_date, end_date, rental_fee, total_installments, commission_percent`

// CourseRepository persists courses, their price tables and professor assignments.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID loads a course with prices and assigned professor grants.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return loadCourse(ctx, r.db, id)
}

// List returns every course ordered by start date, without prices or professors.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT `+courseColumns+` FROM courses ORDER BY start_date DESC, name ASC`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create inserts the course and its price table in one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) (err error) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertCourse = `INSERT INTO courses (` + courseColumns + `)
VALUES (:id, :name, :kind, :schedule, :start_date, :end_date, :rental_fee, :total_installments, :commission_percent)`
	if _, err = tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	for i := range course.Prices {
		course.Prices[i].CourseID = course.ID
		if err = upsertPrice(ctx, tx, course.Prices[i]); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}

// SetPrice inserts or replaces one row of the price table.
func (r *CourseRepository) SetPrice(ctx context.Context, price models.CoursePrice) error {
	return upsertPrice(ctx, r.db, price)
}

// AssignProfessor links a professor grant to the course. Assigning twice is a no-op.
func (r *CourseRepository) AssignProfessor(ctx context.Context, courseID, professorGrantID string) error {
	const query = `INSERT INTO course_professors (course_id, professor_grant_id, assigned_at) VALUES ($1, $2, NOW())
ON CONFLICT (course_id, professor_grant_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, professorGrantID); err != nil {
		return fmt.Errorf("assign professor: %w", err)
	}
	return nil
}

func upsertPrice(ctx context.Context, e sqlx.ExecerContext, price models.CoursePrice) error {
	const query = `INSERT INTO course_prices (course_id, plan, price) VALUES ($1, $2, $3)
ON CONFLICT (course_id, plan) DO UPDATE SET price = EXCLUDED.price`
	if _, err := e.ExecContext(ctx, query, price.CourseID, price.Plan, price.Price); err != nil {
		return fmt.Errorf("set course price: %w", err)
	}
	return nil
}

func loadCourse(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Course, error) {
	var course models.Course
	if err := sqlx.GetContext(ctx, q, &course, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}

	var prices []struct {
		Plan  models.PaymentPlan `db:"plan"`
		Price decimal.Decimal    `db:"price"`
	}
	if err := sqlx.SelectContext(ctx, q, &prices, `SELECT plan, price FROM course_prices WHERE course_id = $1 ORDER BY plan`, id); err != nil {
		return nil, fmt.Errorf("list course prices: %w", err)
	}
	for _, p := range prices {
		course.Prices = append(course.Prices, models.CoursePrice{CourseID: id, Plan: p.Plan, Price: p.Price})
	}

	if err := sqlx.SelectContext(ctx, q, &course.ProfessorGrantIDs, `SELECT professor_grant_id FROM course_professors WHERE course_id = $1 ORDER BY assigned_at`, id); err != nil {
		return nil, fmt.Errorf("list course professors: %w", err)
	}
	return &course, nil
}
