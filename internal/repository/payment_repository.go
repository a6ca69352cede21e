package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

const paymentColumns = `p.id, p.kind, p.amount, p.paid_at, p.recorded_by, p.created_at,
	p.voided_at, p.void_reason, p.voided_by, p.course_id, p.enrollment_id, p.with_surcharge,
	p.professor_grant_id, p.installment_number, p.billing_month, p.billing_year,
	p.period_start, p.period_end`

// paymentRow is the flat storage shape of the payment union.
type paymentRow struct {
	ID                string             `db:"id"`
	Kind              models.PaymentKind `db:"kind"`
	Amount            decimal.Decimal    `db:"amount"`
	PaidAt            time.Time          `db:"paid_at"`
	RecordedBy        string             `db:"recorded_by"`
	CreatedAt         time.Time          `db:"created_at"`
	VoidedAt          *time.Time         `db:"voided_at"`
	VoidReason        *string            `db:"void_reason"`
	VoidedBy          *string            `db:"voided_by"`
	CourseID          string             `db:"course_id"`
	EnrollmentID      *string            `db:"enrollment_id"`
	WithSurcharge     bool               `db:"with_surcharge"`
	ProfessorGrantID  *string            `db:"professor_grant_id"`
	InstallmentNumber *int               `db:"installment_number"`
	BillingMonth      *int               `db:"billing_month"`
	BillingYear       *int               `db:"billing_year"`
	PeriodStart       *time.Time         `db:"period_start"`
	PeriodEnd         *time.Time         `db:"period_end"`
}

func (r paymentRow) toModel() models.Payment {
	p := models.Payment{
		ID:         r.ID,
		Kind:       r.Kind,
		Amount:     r.Amount,
		PaidAt:     r.PaidAt,
		RecordedBy: r.RecordedBy,
		CreatedAt:  r.CreatedAt,
		VoidedAt:   r.VoidedAt,
		VoidReason: r.VoidReason,
		VoidedBy:   r.VoidedBy,
	}
	switch r.Kind {
	case models.PaymentTuition:
		p.Tuition = &models.TuitionDetail{
			EnrollmentID:  deref(r.EnrollmentID),
			CourseID:      r.CourseID,
			WithSurcharge: r.WithSurcharge,
		}
	case models.PaymentRental:
		p.Rental = &models.RentalDetail{
			CourseID:          r.CourseID,
			ProfessorGrantID:  deref(r.ProfessorGrantID),
			InstallmentNumber: derefInt(r.InstallmentNumber),
			BillingMonth:      derefInt(r.BillingMonth),
			BillingYear:       derefInt(r.BillingYear),
		}
	case models.PaymentCommission:
		c := &models.CommissionDetail{
			CourseID:         r.CourseID,
			ProfessorGrantID: deref(r.ProfessorGrantID),
			BillingMonth:     derefInt(r.BillingMonth),
			BillingYear:      derefInt(r.BillingYear),
		}
		if r.PeriodStart != nil {
			c.PeriodStart = *r.PeriodStart
		}
		if r.PeriodEnd != nil {
			c.PeriodEnd = *r.PeriodEnd
		}
		p.Commission = c
	}
	return p
}

func paymentRowFrom(p models.Payment) paymentRow {
	row := paymentRow{
		ID:         p.ID,
		Kind:       p.Kind,
		Amount:     p.Amount,
		PaidAt:     p.PaidAt,
		RecordedBy: p.RecordedBy,
		CreatedAt:  p.CreatedAt,
		VoidedAt:   p.VoidedAt,
		VoidReason: p.VoidReason,
		VoidedBy:   p.VoidedBy,
		CourseID:   p.CourseID(),
	}
	switch p.Kind {
	case models.PaymentTuition:
		row.EnrollmentID = &p.Tuition.EnrollmentID
		row.WithSurcharge = p.Tuition.WithSurcharge
	case models.PaymentRental:
		row.ProfessorGrantID = &p.Rental.ProfessorGrantID
		row.InstallmentNumber = &p.Rental.InstallmentNumber
		row.BillingMonth = &p.Rental.BillingMonth
		row.BillingYear = &p.Rental.BillingYear
	case models.PaymentCommission:
		row.ProfessorGrantID = &p.Commission.ProfessorGrantID
		row.PeriodStart = &p.Commission.PeriodStart
		row.PeriodEnd = &p.Commission.PeriodEnd
		row.BillingMonth = &p.Commission.BillingMonth
		row.BillingYear = &p.Commission.BillingYear
	}
	return row
}

type paymentDetailRow struct {
	paymentRow
	CourseName         string            `db:"course_name"`
	CourseKind         models.CourseKind `db:"course_kind"`
	CourseProfessorIDs pq.StringArray    `db:"course_professor_ids"`
	StudentPersonID    sql.NullString    `db:"student_person_id"`
	StudentName        sql.NullString    `db:"student_name"`
	ProfessorPersonID  sql.NullString    `db:"professor_person_id"`
	ProfessorName      sql.NullString    `db:"professor_name"`
}

func (r paymentDetailRow) toModel() models.PaymentDetail {
	return models.PaymentDetail{
		Payment:                 r.paymentRow.toModel(),
		CourseName:              r.CourseName,
		CourseKind:              r.CourseKind,
		CourseProfessorGrantIDs: []string(r.CourseProfessorIDs),
		StudentPersonID:         r.StudentPersonID.String,
		StudentName:             r.StudentName.String,
		ProfessorPersonID:       r.ProfessorPersonID.String,
		ProfessorName:           r.ProfessorName.String,
	}
}

// PaymentRepository reads payments outside ledger transactions.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment or sql.ErrNoRows.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	return findPayment(ctx, r.db, id, false)
}

// List returns payments matching filter ordered by payment date.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	return listPayments(ctx, r.db, filter)
}

// ListDetails returns payments joined with course and people names, newest first.
func (r *PaymentRepository) ListDetails(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error) {
	where, args := paymentWhere(filter)
	query := `SELECT ` + paymentColumns + `,
	c.name AS course_name,
	c.kind AS course_kind,
	ARRAY(SELECT cp.professor_grant_id::text FROM course_professors cp WHERE cp.course_id = c.id ORDER BY cp.assigned_at) AS course_professor_ids,
	sp.id AS student_person_id,
	sp.full_name AS student_name,
	pp.id AS professor_person_id,
	pp.full_name AS professor_name
FROM payments p
JOIN courses c ON c.id = p.course_id
LEFT JOIN enrollments e ON e.id = p.enrollment_id
LEFT JOIN role_grants sg ON sg.id = e.student_grant_id
LEFT JOIN persons sp ON sp.id = sg.person_id
LEFT JOIN role_grants pg ON pg.id = p.professor_grant_id
LEFT JOIN persons pp ON pp.id = pg.person_id` + where + `
ORDER BY p.paid_at DESC, p.id DESC`

	var rows []paymentDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list payment details: %w", err)
	}
	details := make([]models.PaymentDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.toModel())
	}
	return details, nil
}

func findPayment(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row paymentRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	p := row.toModel()
	return &p, nil
}

func listPayments(ctx context.Context, q sqlx.QueryerContext, filter models.PaymentFilter) ([]models.Payment, error) {
	where, args := paymentWhere(filter)
	query := `SELECT ` + paymentColumns + ` FROM payments p` + where + ` ORDER BY p.paid_at ASC, p.created_at ASC`
	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	payments := make([]models.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toModel())
	}
	return payments, nil
}

func paymentWhere(filter models.PaymentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		args = append(args, pq.Array(kinds))
		conditions = append(conditions, fmt.Sprintf("p.kind = ANY($%d)", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("p.course_id = $%d", len(args)))
	}
	if filter.ProfessorGrantID != "" {
		args = append(args, filter.ProfessorGrantID)
		conditions = append(conditions, fmt.Sprintf("p.professor_grant_id = $%d", len(args)))
	}
	if filter.EnrollmentID != "" {
		args = append(args, filter.EnrollmentID)
		conditions = append(conditions, fmt.Sprintf("p.enrollment_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("p.paid_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("p.paid_at < $%d", len(args)))
	}
	if !filter.IncludeVoided {
		conditions = append(conditions, "p.voided_at IS NULL")
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
