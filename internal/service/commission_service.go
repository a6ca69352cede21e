package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
)

// RegisterCommissionRequest liquidates the pending period up to AsOf.
type RegisterCommissionRequest struct {
	ProfessorGrantID string     `json:"professor_grant_id" validate:"required"`
	AsOf             *time.Time `json:"as_of"`
	PaidAt           *time.Time `json:"paid_at"`
}

// CommissionService runs the liquidation periods of revenue-share courses.
type CommissionService struct {
	courses   courseReader
	payments  paymentLister
	runner    ledgerRunner
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCommissionService constructs CommissionService.
func NewCommissionService(courses courseReader, payments paymentLister, store ledgerStore, cache *CacheService, events *NotificationService, metrics *MetricsService, cfg LedgerServiceConfig, validate *validator.Validate, logger *zap.Logger) *CommissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CommissionService{
		courses:   courses,
		payments:  payments,
		runner:    ledgerRunner{store: store, retries: cfg.ConflictRetries, metrics: metrics, cache: cache, events: events, logger: logger},
		loc:       cfg.Location,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Preview computes the pending liquidation period at asOf (default now).
func (s *CommissionService) Preview(ctx context.Context, actor models.Actor, courseID, professorGrantID string, asOf *time.Time) (*ledger.CommissionPreview, error) {
	if err := canSeePair(actor, professorGrantID); err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, "course", courseID)
	}
	commissions, err := s.payments.List(ctx, pairFilter(models.PaymentCommission, courseID, professorGrantID))
	if err != nil {
		return nil, internalErr(err, "failed to list commissions")
	}
	tuitions, err := s.payments.List(ctx, courseTuitionFilter(courseID))
	if err != nil {
		return nil, internalErr(err, "failed to list tuition payments")
	}
	preview, err := ledger.PreviewCommission(*course, professorGrantID, commissions, tuitions, s.asOf(asOf))
	if err != nil {
		return nil, err
	}
	return &preview, nil
}

// Register recomputes the preview inside the pair's transaction and records it.
func (s *CommissionService) Register(ctx context.Context, actor models.Actor, courseID string, req RegisterCommissionRequest) (*models.Payment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid commission payload")
	}
	asOf := s.asOf(req.AsOf)
	paidAt := s.now().In(s.loc)
	if req.PaidAt != nil {
		paidAt = req.PaidAt.In(s.loc)
	}

	var payment models.Payment
	err := s.runner.run(ctx, "register_commission", repository.PairScope(courseID, req.ProfessorGrantID), func(tx repository.LedgerTx) error {
		course, err := tx.Course(ctx, courseID)
		if err != nil {
			return lookupErr(err, "course", courseID)
		}
		commissions, err := tx.Payments(ctx, pairFilter(models.PaymentCommission, courseID, req.ProfessorGrantID))
		if err != nil {
			return err
		}
		tuitions, err := tx.Payments(ctx, courseTuitionFilter(courseID))
		if err != nil {
			return err
		}
		preview, err := ledger.PreviewCommission(*course, req.ProfessorGrantID, commissions, tuitions, asOf)
		if err != nil {
			return err
		}
		if payment, err = ledger.NewCommission(preview, paidAt, actor.PersonID); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("commission registered",
		zap.String("course_id", courseID),
		zap.String("professor_grant_id", req.ProfessorGrantID),
		zap.Time("period_start", payment.Commission.PeriodStart),
		zap.Time("period_end", payment.Commission.PeriodEnd),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	s.runner.committed(ctx, EventPaymentRegistered, payment, actor.PersonID)
	return &payment, nil
}

func (s *CommissionService) asOf(at *time.Time) time.Time {
	if at != nil {
		return ledger.CalendarDay(*at, s.loc)
	}
	return s.now().In(s.loc)
}

func courseTuitionFilter(courseID string) models.PaymentFilter {
	return models.PaymentFilter{Kinds: []models.PaymentKind{models.PaymentTuition}, CourseID: courseID}
}
