package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type paymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
}

// RegisterInstallmentRequest pays one rental installment.
type RegisterInstallmentRequest struct {
	ProfessorGrantID  string     `json:"professor_grant_id" validate:"required"`
	InstallmentNumber int        `json:"installment_number" validate:"required,min=1"`
	PaidAt            *time.Time `json:"paid_at"`
}

// LedgerServiceConfig is shared by the pair-scoped ledger services.
type LedgerServiceConfig struct {
	ConflictRetries int
	Location        *time.Location
}

// RentalService runs the installment sequence of rental courses.
type RentalService struct {
	courses   courseReader
	payments  paymentLister
	runner    ledgerRunner
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRentalService constructs RentalService.
func NewRentalService(courses courseReader, payments paymentLister, store ledgerStore, cache *CacheService, events *NotificationService, metrics *MetricsService, cfg LedgerServiceConfig, validate *validator.Validate, logger *zap.Logger) *RentalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &RentalService{
		courses:   courses,
		payments:  payments,
		runner:    ledgerRunner{store: store, retries: cfg.ConflictRetries, metrics: metrics, cache: cache, events: events, logger: logger},
		loc:       cfg.Location,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Preview returns the next installment owed by the professor.
func (s *RentalService) Preview(ctx context.Context, actor models.Actor, courseID, professorGrantID string) (*ledger.InstallmentPreview, error) {
	if err := canSeePair(actor, professorGrantID); err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, "course", courseID)
	}
	payments, err := s.payments.List(ctx, pairFilter(models.PaymentRental, courseID, professorGrantID))
	if err != nil {
		return nil, internalErr(err, "failed to list rental payments")
	}
	preview, err := ledger.PreviewInstallment(*course, professorGrantID, payments)
	if err != nil {
		return nil, err
	}
	return &preview, nil
}

// Register records the requested installment if it is next in sequence.
func (s *RentalService) Register(ctx context.Context, actor models.Actor, courseID string, req RegisterInstallmentRequest) (*models.Payment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid installment payload")
	}
	paidAt := s.now().In(s.loc)
	if req.PaidAt != nil {
		paidAt = req.PaidAt.In(s.loc)
	}

	var payment models.Payment
	err := s.runner.run(ctx, "register_installment", repository.PairScope(courseID, req.ProfessorGrantID), func(tx repository.LedgerTx) error {
		course, err := tx.Course(ctx, courseID)
		if err != nil {
			return lookupErr(err, "course", courseID)
		}
		existing, err := tx.Payments(ctx, pairFilter(models.PaymentRental, courseID, req.ProfessorGrantID))
		if err != nil {
			return err
		}
		payment, err = ledger.NewInstallment(*course, req.ProfessorGrantID, req.InstallmentNumber, existing, paidAt, actor.PersonID)
		if err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rental installment registered",
		zap.String("course_id", courseID),
		zap.String("professor_grant_id", req.ProfessorGrantID),
		zap.Int("installment", req.InstallmentNumber),
		zap.String("payment_id", payment.ID),
	)
	s.runner.committed(ctx, EventPaymentRegistered, payment, actor.PersonID)
	return &payment, nil
}

func pairFilter(kind models.PaymentKind, courseID, professorGrantID string) models.PaymentFilter {
	return models.PaymentFilter{Kinds: []models.PaymentKind{kind}, CourseID: courseID, ProfessorGrantID: professorGrantID}
}

// canSeePair lets staff and the professor of the pair read its previews.
func canSeePair(actor models.Actor, professorGrantID string) error {
	if isStaff(actor) {
		return nil
	}
	if actor.ActiveRole == models.RoleProfessor && actor.GrantID(models.RoleProfessor) == professorGrantID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only staff or the professor may preview this sequence")
}
