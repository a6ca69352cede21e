package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

// memLedger is an in-memory store. InLedgerTx serialises all transactions and
// stages writes until fn succeeds.
type memLedger struct {
	mu          sync.Mutex
	courses     map[string]models.Course
	enrollments map[string]models.Enrollment
	payments    []models.Payment
	students    map[string]namedPerson
	professors  map[string]namedPerson
	seq         int

	conflicts int
	txCalls   int
	scopes    []string
}

type namedPerson struct {
	personID string
	name     string
}

func newMemLedger() *memLedger {
	return &memLedger{
		courses:     make(map[string]models.Course),
		enrollments: make(map[string]models.Enrollment),
		students:    make(map[string]namedPerson),
		professors:  make(map[string]namedPerson),
	}
}

func (m *memLedger) InLedgerTx(ctx context.Context, scope string, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	m.scopes = append(m.scopes, scope)
	tx := &memTx{m: m}
	if err := fn(tx); err != nil {
		return err
	}
	if m.conflicts > 0 {
		m.conflicts--
		return fmt.Errorf("insert payment: %w", &pq.Error{Code: "23505", Message: "duplicate key value"})
	}
	for _, p := range tx.inserted {
		m.payments = append(m.payments, p)
	}
	for _, v := range tx.voided {
		for i := range m.payments {
			if m.payments[i].ID == v.ID {
				m.payments[i] = v
			}
		}
	}
	for _, e := range tx.enrollments {
		m.enrollments[e.ID] = e
	}
	return nil
}

func (m *memLedger) addCourse(c models.Course) {
	m.courses[c.ID] = c
}

func (m *memLedger) addEnrollment(e models.Enrollment, studentName string) {
	m.enrollments[e.ID] = e
	m.students[e.StudentGrantID] = namedPerson{personID: "person-" + e.StudentGrantID, name: studentName}
}

func (m *memLedger) seed(p models.Payment) models.Payment {
	m.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("seed-%d", m.seq)
	}
	m.payments = append(m.payments, p)
	return p
}

func (m *memLedger) active(kind models.PaymentKind) []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if p.Kind == kind && p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (m *memLedger) enrollmentWithPayments(id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e.Payments = nil
	for _, p := range m.payments {
		if p.Kind == models.PaymentTuition && p.Tuition.EnrollmentID == id {
			e.Payments = append(e.Payments, p)
		}
	}
	return &e, nil
}

func (m *memLedger) list(filter models.PaymentFilter) []models.Payment {
	var out []models.Payment
	for _, p := range m.payments {
		if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, p.Kind) {
			continue
		}
		if filter.CourseID != "" && p.CourseID() != filter.CourseID {
			continue
		}
		if filter.ProfessorGrantID != "" && p.ProfessorGrantID() != filter.ProfessorGrantID {
			continue
		}
		if filter.EnrollmentID != "" && (p.Tuition == nil || p.Tuition.EnrollmentID != filter.EnrollmentID) {
			continue
		}
		if filter.From != nil && p.PaidAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !p.PaidAt.Before(*filter.To) {
			continue
		}
		if !filter.IncludeVoided && !p.Active() {
			continue
		}
		out = append(out, p)
	}
	return out
}

type memTx struct {
	m           *memLedger
	inserted    []models.Payment
	voided      []models.Payment
	enrollments []models.Enrollment
}

func (t *memTx) Course(_ context.Context, id string) (*models.Course, error) {
	c, ok := t.m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (t *memTx) Enrollment(_ context.Context, id string) (*models.Enrollment, error) {
	return t.m.enrollmentWithPayments(id)
}

func (t *memTx) Payment(_ context.Context, id string) (*models.Payment, error) {
	for _, p := range t.m.payments {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) Payments(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	return t.m.list(filter), nil
}

func (t *memTx) InsertPayment(_ context.Context, payment *models.Payment) error {
	if err := payment.CheckShape(); err != nil {
		return err
	}
	t.m.seq++
	payment.ID = fmt.Sprintf("pay-%d", t.m.seq)
	payment.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t.inserted = append(t.inserted, *payment)
	return nil
}

func (t *memTx) MarkVoided(_ context.Context, payment models.Payment) error {
	for _, p := range t.m.payments {
		if p.ID == payment.ID && !p.Active() {
			return appErrors.Clonef(appErrors.ErrAlreadyVoided, "payment %s is already voided", payment.ID)
		}
	}
	t.voided = append(t.voided, payment)
	return nil
}

func (t *memTx) UpdateEnrollmentTerms(_ context.Context, enrollment models.Enrollment) error {
	if _, ok := t.m.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	enrollment.Payments = nil
	t.enrollments = append(t.enrollments, enrollment)
	return nil
}

// Read-side adapters over the same store.

type memCourses struct{ m *memLedger }

func (r memCourses) FindByID(_ context.Context, id string) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

type memPayments struct{ m *memLedger }

func (r memPayments) FindByID(_ context.Context, id string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memPayments) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.list(filter), nil
}

func (r memPayments) ListDetails(_ context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	payments := r.m.list(filter)
	details := make([]models.PaymentDetail, 0, len(payments))
	for _, p := range payments {
		course := r.m.courses[p.CourseID()]
		d := models.PaymentDetail{
			Payment:                 p,
			CourseName:              course.Name,
			CourseKind:              course.Kind,
			CourseProfessorGrantIDs: course.ProfessorGrantIDs,
		}
		if p.Tuition != nil {
			e := r.m.enrollments[p.Tuition.EnrollmentID]
			s := r.m.students[e.StudentGrantID]
			d.StudentPersonID, d.StudentName = s.personID, s.name
		}
		if prof, ok := r.m.professors[p.ProfessorGrantID()]; ok {
			d.ProfessorPersonID, d.ProfessorName = prof.personID, prof.name
		}
		details = append(details, d)
	}
	sort.SliceStable(details, func(i, j int) bool { return details[i].PaidAt.After(details[j].PaidAt) })
	return details, nil
}

type memEnrollments struct {
	m       *memLedger
	open    bool
	created *models.Enrollment
}

func (r *memEnrollments) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.enrollmentWithPayments(id)
}

func (r *memEnrollments) HasOpen(_ context.Context, _, _ string) (bool, error) {
	return r.open, nil
}

func (r *memEnrollments) ListByCourse(_ context.Context, courseID string) ([]models.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range r.m.enrollments {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEnrollments) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	r.m.mu.Lock()
	r.m.enrollments[enrollment.ID] = *enrollment
	r.m.mu.Unlock()
	r.created = enrollment
	return nil
}

type stubGrants map[string]models.RoleGrant

func (s stubGrants) FindGrant(_ context.Context, id string) (*models.RoleGrant, error) {
	g, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

// Fixtures shared by the ledger service tests.

var (
	testNow   = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	adminAct  = models.Actor{PersonID: "person-admin", ActiveRole: models.RoleAdministrator, GrantIDs: map[models.RoleKind]string{models.RoleAdministrator: "grant-admin"}}
	officeAct = models.Actor{PersonID: "person-office", ActiveRole: models.RoleOffice, GrantIDs: map[models.RoleKind]string{models.RoleOffice: "grant-office"}}
	profAct   = models.Actor{PersonID: "person-prof-1", ActiveRole: models.RoleProfessor, GrantIDs: map[models.RoleKind]string{models.RoleProfessor: "prof-1"}}
	studAct   = models.Actor{PersonID: "person-stud-1", ActiveRole: models.RoleStudent, GrantIDs: map[models.RoleKind]string{models.RoleStudent: "stud-1"}}
	gateAct   = models.Actor{PersonID: "person-gate", ActiveRole: models.RoleGate, GrantIDs: map[models.RoleKind]string{models.RoleGate: "grant-gate"}}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func revenueShare() models.Course {
	return models.Course{
		ID:                "course-rs",
		Name:              "Salsa",
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
		Name:              "Yoga",
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

func newEnrollment(id, courseID string) models.Enrollment {
	return models.Enrollment{
		ID:             id,
		StudentGrantID: "stud-1",
		CourseID:       courseID,
		Plan:           models.PlanMonthly,
		BenefitKind:    models.BenefitNone,
		StartDate:      day(2024, time.March, 1),
	}
}

func tuitionPayment(enrollmentID, courseID string, amount string, paidAt time.Time) models.Payment {
	return models.Payment{
		Kind:       models.PaymentTuition,
		Amount:     dec(amount),
		PaidAt:     paidAt,
		RecordedBy: "person-office",
		Tuition:    &models.TuitionDetail{EnrollmentID: enrollmentID, CourseID: courseID},
	}
}

func fixedClock() time.Time {
	return testNow
}

func ptrDecimal(d decimal.Decimal) *decimal.Decimal {
	return &d
}
