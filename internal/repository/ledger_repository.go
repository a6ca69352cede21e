package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

// LedgerTx is the view of the store available inside one ledger transaction.
// Every read happens after the scope lock is held, so a read-then-write on the
// same scope cannot interleave with another transaction.
type LedgerTx interface {
	Course(ctx context.Context, id string) (*models.Course, error)
	Enrollment(ctx context.Context, id string) (*models.Enrollment, error)
	Payment(ctx context.Context, id string) (*models.Payment, error)
	Payments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	InsertPayment(ctx context.Context, payment *models.Payment) error
	MarkVoided(ctx context.Context, payment models.Payment) error
	UpdateEnrollmentTerms(ctx context.Context, enrollment models.Enrollment) error
}

// LedgerRepository runs ledger operations in scoped transactions.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// EnrollmentScope is the lock scope of tuition operations on one enrollment.
func EnrollmentScope(enrollmentID string) string {
	return "enrollment:" + enrollmentID
}

// PairScope is the lock scope of rental and commission operations for a
// (course, professor) pair.
func PairScope(courseID, professorGrantID string) string {
	return "pair:" + courseID + ":" + professorGrantID
}

// InLedgerTx begins a transaction, takes a transaction-scoped advisory lock on
// scope and runs fn. The transaction commits when fn returns nil.
func (r *LedgerRepository) InLedgerTx(ctx context.Context, scope string, fn func(tx LedgerTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
		return fmt.Errorf("lock ledger scope %s: %w", scope, err)
	}
	if err = fn(&sqlLedgerTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

type sqlLedgerTx struct {
	tx *sqlx.Tx
}

func (t *sqlLedgerTx) Course(ctx context.Context, id string) (*models.Course, error) {
	return loadCourse(ctx, t.tx, id)
}

func (t *sqlLedgerTx) Enrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	return loadEnrollment(ctx, t.tx, id, true)
}

func (t *sqlLedgerTx) Payment(ctx context.Context, id string) (*models.Payment, error) {
	return findPayment(ctx, t.tx, id, true)
}

func (t *sqlLedgerTx) Payments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	return listPayments(ctx, t.tx, filter)
}

func (t *sqlLedgerTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if err := payment.CheckShape(); err != nil {
		return err
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, kind, amount, paid_at, recorded_by, created_at, course_id, enrollment_id, with_surcharge,
	professor_grant_id, installment_number, billing_month, billing_year, period_start, period_end)
VALUES (:id, :kind, :amount, :paid_at, :recorded_by, :created_at, :course_id, :enrollment_id, :with_surcharge,
	:professor_grant_id, :installment_number, :billing_month, :billing_year, :period_start, :period_end)`
	if _, err := t.tx.NamedExecContext(ctx, query, paymentRowFrom(*payment)); err != nil {
		return fmt.Errorf("insert %s payment: %w", payment.Kind, err)
	}
	return nil
}

// MarkVoided writes the void marker only if the row is still active, so two
// concurrent voids cannot both succeed.
func (t *sqlLedgerTx) MarkVoided(ctx context.Context, payment models.Payment) error {
	if payment.VoidedAt == nil || payment.VoidReason == nil {
		return fmt.Errorf("payment %s has no void marker", payment.ID)
	}
	const query = `UPDATE payments SET voided_at = $2, void_reason = $3, voided_by = $4 WHERE id = $1 AND voided_at IS NULL`
	res, err := t.tx.ExecContext(ctx, query, payment.ID, *payment.VoidedAt, *payment.VoidReason, payment.VoidedBy)
	if err != nil {
		return fmt.Errorf("void payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("void payment rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.Clonef(appErrors.ErrAlreadyVoided, "payment %s is already voided", payment.ID)
	}
	return nil
}

func (t *sqlLedgerTx) UpdateEnrollmentTerms(ctx context.Context, enrollment models.Enrollment) error {
	const query = `UPDATE enrollments SET benefit_kind = :benefit_kind, benefit_percent = :benefit_percent, withdrawn_at = :withdrawn_at WHERE id = :id`
	res, err := t.tx.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment terms: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
