package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
	"github.com/noah-isme/institute-ledger-api/pkg/database"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	HasOpen(ctx context.Context, studentGrantID, courseID string) (bool, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type grantReader interface {
	FindGrant(ctx context.Context, grantID string) (*models.RoleGrant, error)
}

// EnrollRequest opens an enrollment. Either a benefit kind or a custom percent
// may be supplied; neither means no benefit.
type EnrollRequest struct {
	StudentGrantID string             `json:"student_grant_id" validate:"required"`
	CourseID       string             `json:"course_id" validate:"required"`
	Plan           models.PaymentPlan `json:"plan" validate:"required,oneof=MONTHLY PAID_IN_FULL"`
	BenefitKind    models.BenefitKind `json:"benefit_kind" validate:"omitempty,oneof=NONE SIBLING STAFF_FAMILY SCHOLARSHIP FULL_SCHOLARSHIP CUSTOM"`
	BenefitPercent *int               `json:"benefit_percent" validate:"omitempty,min=0,max=100"`
	StartDate      *time.Time         `json:"start_date"`
}

// RegisterTuitionRequest records a tuition payment. Amount defaults to the
// final tuition and PaidAt to now.
type RegisterTuitionRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	PaidAt        *time.Time       `json:"paid_at"`
	WithSurcharge bool             `json:"with_surcharge"`
}

// ApplyBenefitRequest changes the benefit going forward.
type ApplyBenefitRequest struct {
	Kind    models.BenefitKind `json:"kind" validate:"omitempty,oneof=NONE SIBLING STAFF_FAMILY SCHOLARSHIP FULL_SCHOLARSHIP CUSTOM"`
	Percent *int               `json:"percent" validate:"omitempty,min=0,max=100"`
}

// WithdrawRequest closes an enrollment; Date defaults to today.
type WithdrawRequest struct {
	Date *time.Time `json:"date"`
}

// TuitionReceipt is the created payment together with the recomputed standing.
type TuitionReceipt struct {
	Payment models.Payment        `json:"payment"`
	Summary ledger.TuitionSummary `json:"summary"`
}

// EnrollmentServiceConfig carries the ledger tuning the service needs.
type EnrollmentServiceConfig struct {
	Pricing         ledger.Pricing
	ConflictRetries int
	Location        *time.Location
}

// EnrollmentService owns the tuition side of the ledger.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	grants    grantReader
	runner    ledgerRunner
	pricing   ledger.Pricing
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, grants grantReader, store ledgerStore, cache *CacheService, events *NotificationService, metrics *MetricsService, cfg EnrollmentServiceConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Pricing.PaidInFullMultiplier.IsZero() {
		cfg.Pricing = ledger.DefaultPricing()
	}
	return &EnrollmentService{
		repo:    repo,
		courses: courses,
		grants:  grants,
		runner: ledgerRunner{
			store:   store,
			retries: cfg.ConflictRetries,
			metrics: metrics,
			cache:   cache,
			events:  events,
			logger:  logger,
		},
		pricing:   cfg.Pricing,
		loc:       cfg.Location,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Enroll links a student grant to a course.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.Actor, req EnrollRequest) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid enrollment payload")
	}
	now := s.now().In(s.loc)

	grant, err := s.grants.FindGrant(ctx, req.StudentGrantID)
	if err != nil {
		return nil, lookupErr(err, "role grant", req.StudentGrantID)
	}
	if grant.Kind != models.RoleStudent || !grant.ActiveAt(now) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "grant %s is not an active student grant", grant.ID)
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, lookupErr(err, "course", req.CourseID)
	}
	if _, ok := course.PriceFor(req.Plan); !ok {
		return nil, appErrors.Clonef(appErrors.ErrInvalidPlan, "course %s has no price for plan %s", course.ID, req.Plan)
	}
	open, err := s.repo.HasOpen(ctx, grant.ID, course.ID)
	if err != nil {
		return nil, internalErr(err, "failed to check enrollments")
	}
	if open {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "grant %s already has an open enrollment in course %s", grant.ID, course.ID)
	}

	enrollment := &models.Enrollment{
		StudentGrantID: grant.ID,
		CourseID:       course.ID,
		Plan:           req.Plan,
		BenefitKind:    models.BenefitNone,
		StartDate:      ledger.DateOf(now),
	}
	if req.StartDate != nil {
		enrollment.StartDate = ledger.CalendarDay(*req.StartDate, s.loc)
	}
	if err := applyBenefit(enrollment, req.BenefitKind, req.BenefitPercent); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsConflict(err) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "grant %s already has an open enrollment in course %s", grant.ID, course.ID)
		}
		return nil, internalErr(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment opened", zap.String("enrollment_id", enrollment.ID), zap.String("course_id", course.ID), zap.String("plan", string(enrollment.Plan)))
	return enrollment, nil
}

// Get returns the enrollment with its tuition history.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "enrollment", id)
	}
	if err := canReadEnrollment(actor, *enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ListByCourse returns the course roster. Payments are not loaded.
func (s *EnrollmentService) ListByCourse(ctx context.Context, actor models.Actor, courseID string) ([]models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, lookupErr(err, "course", courseID)
	}
	enrollments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalErr(err, "failed to list enrollments")
	}
	return enrollments, nil
}

// Summary computes the enrollment's standing at asOf, or now when asOf is nil.
func (s *EnrollmentService) Summary(ctx context.Context, actor models.Actor, id string, asOf *time.Time) (*ledger.TuitionSummary, error) {
	enrollment, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, lookupErr(err, "course", enrollment.CourseID)
	}
	at := s.now().In(s.loc)
	if asOf != nil {
		at = ledger.CalendarDay(*asOf, s.loc)
	}
	summary, err := s.pricing.Summarize(*course, *enrollment, at)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// RegisterPayment appends a tuition payment and returns the new standing.
func (s *EnrollmentService) RegisterPayment(ctx context.Context, actor models.Actor, id string, req RegisterTuitionRequest) (*TuitionReceipt, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.In(s.loc)
	}

	var receipt TuitionReceipt
	err := s.runner.run(ctx, "register_tuition", repository.EnrollmentScope(id), func(tx repository.LedgerTx) error {
		enrollment, err := tx.Enrollment(ctx, id)
		if err != nil {
			return lookupErr(err, "enrollment", id)
		}
		course, err := tx.Course(ctx, enrollment.CourseID)
		if err != nil {
			return lookupErr(err, "course", enrollment.CourseID)
		}
		amount := decimal.Zero
		if req.Amount != nil {
			amount = *req.Amount
		} else if amount, err = s.pricing.FinalTuition(*course, *enrollment); err != nil {
			return err
		}
		payment, err := ledger.NewTuitionPayment(*enrollment, amount, paidAt, req.WithSurcharge, actor.PersonID)
		if err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		enrollment.Payments = append(enrollment.Payments, payment)
		summary, err := s.pricing.Summarize(*course, *enrollment, now)
		if err != nil {
			return err
		}
		receipt = TuitionReceipt{Payment: payment, Summary: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tuition registered",
		zap.String("enrollment_id", id),
		zap.String("payment_id", receipt.Payment.ID),
		zap.String("amount", receipt.Payment.Amount.StringFixed(2)),
		zap.String("status", string(receipt.Summary.Status)),
	)
	s.runner.committed(ctx, EventPaymentRegistered, receipt.Payment, actor.PersonID)
	return &receipt, nil
}

// ApplyBenefit changes the enrollment's benefit; earlier payments keep their amounts.
func (s *EnrollmentService) ApplyBenefit(ctx context.Context, actor models.Actor, id string, req ApplyBenefitRequest) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid benefit payload")
	}
	if req.Kind == "" && req.Percent == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "benefit kind or percent is required")
	}
	var updated models.Enrollment
	err := s.runner.run(ctx, "apply_benefit", repository.EnrollmentScope(id), func(tx repository.LedgerTx) error {
		enrollment, err := tx.Enrollment(ctx, id)
		if err != nil {
			return lookupErr(err, "enrollment", id)
		}
		if enrollment.Closed() {
			return appErrors.Clonef(appErrors.ErrEnrollmentClosed, "enrollment %s was withdrawn", id)
		}
		if err := applyBenefit(enrollment, req.Kind, req.Percent); err != nil {
			return err
		}
		if err := tx.UpdateEnrollmentTerms(ctx, *enrollment); err != nil {
			return err
		}
		updated = *enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("benefit applied", zap.String("enrollment_id", id), zap.String("benefit_kind", string(updated.BenefitKind)), zap.Int("benefit_percent", updated.BenefitPercent))
	return &updated, nil
}

// Withdraw closes the enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, actor models.Actor, id string, req WithdrawRequest) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	at := ledger.DateOf(s.now().In(s.loc))
	if req.Date != nil {
		at = ledger.CalendarDay(*req.Date, s.loc)
	}
	var updated models.Enrollment
	err := s.runner.run(ctx, "withdraw", repository.EnrollmentScope(id), func(tx repository.LedgerTx) error {
		enrollment, err := tx.Enrollment(ctx, id)
		if err != nil {
			return lookupErr(err, "enrollment", id)
		}
		if err := ledger.Withdraw(enrollment, at); err != nil {
			return err
		}
		if err := tx.UpdateEnrollmentTerms(ctx, *enrollment); err != nil {
			return err
		}
		updated = *enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrollment withdrawn", zap.String("enrollment_id", id), zap.Time("withdrawn_at", at))
	return &updated, nil
}

func applyBenefit(e *models.Enrollment, kind models.BenefitKind, percent *int) error {
	if percent != nil {
		return ledger.ApplyBenefit(e, *percent)
	}
	if kind == "" {
		return nil
	}
	return ledger.ApplyBenefitKind(e, kind)
}

func canReadEnrollment(actor models.Actor, e models.Enrollment) error {
	if isStaff(actor) {
		return nil
	}
	if actor.ActiveRole == models.RoleStudent && actor.GrantID(models.RoleStudent) == e.StudentGrantID {
		return nil
	}
	return appErrors.Clonef(appErrors.ErrForbidden, "enrollment %s is not visible to this actor", e.ID)
}
