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

type paymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListDetails(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
}

// VoidPaymentRequest carries the mandatory void reason.
type VoidPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// PaymentService exposes payment lookups, the role-scoped payment views and voiding.
type PaymentService struct {
	payments  paymentReader
	runner    ledgerRunner
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(payments paymentReader, store ledgerStore, cache *CacheService, events *NotificationService, metrics *MetricsService, cfg LedgerServiceConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &PaymentService{
		payments:  payments,
		runner:    ledgerRunner{store: store, retries: cfg.ConflictRetries, metrics: metrics, cache: cache, events: events, logger: logger},
		loc:       cfg.Location,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns one payment, voided or not. Staff only.
func (s *PaymentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "payment", id)
	}
	return payment, nil
}

// Void marks a payment inactive. Derived figures reopen on their next read.
func (s *PaymentService) Void(ctx context.Context, actor models.Actor, id string, req VoidPaymentRequest) (*models.Payment, error) {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid void payload")
	}
	target, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "payment", id)
	}
	scope := repository.PairScope(target.CourseID(), target.ProfessorGrantID())
	if target.Kind == models.PaymentTuition && target.Tuition != nil {
		scope = repository.EnrollmentScope(target.Tuition.EnrollmentID)
	}
	now := s.now().In(s.loc)

	var voided models.Payment
	err = s.runner.run(ctx, "void_payment", scope, func(tx repository.LedgerTx) error {
		current, err := tx.Payment(ctx, id)
		if err != nil {
			return lookupErr(err, "payment", id)
		}
		var siblings []models.Payment
		if current.Kind == models.PaymentRental || current.Kind == models.PaymentCommission {
			if siblings, err = tx.Payments(ctx, pairFilter(current.Kind, current.CourseID(), current.ProfessorGrantID())); err != nil {
				return err
			}
		}
		if err := ledger.CheckVoid(*current, siblings, req.Reason); err != nil {
			return err
		}
		ledger.Void(current, req.Reason, actor.PersonID, now)
		if err := tx.MarkVoided(ctx, *current); err != nil {
			return err
		}
		voided = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment voided", zap.String("payment_id", id), zap.String("kind", string(voided.Kind)), zap.String("voided_by", actor.PersonID))
	s.runner.committed(ctx, EventPaymentVoided, voided, actor.PersonID)
	return &voided, nil
}

// Received lists the payments flowing toward the actor.
func (s *PaymentService) Received(ctx context.Context, actor models.Actor, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error) {
	return s.view(ctx, actor, ledger.ViewReceived, query)
}

// Issued lists the payments the actor made or disbursed.
func (s *PaymentService) Issued(ctx context.Context, actor models.Actor, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error) {
	return s.view(ctx, actor, ledger.ViewIssued, query)
}

func (s *PaymentService) view(ctx context.Context, actor models.Actor, view ledger.View, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationErr(err, "invalid payment query")
	}
	filter := models.PaymentFilter{IncludeVoided: true}
	if query.Month > 0 && query.Year > 0 {
		from, last := ledger.MonthWindow(query.Month, query.Year, s.loc)
		to := last.AddDate(0, 0, 1)
		filter.From = &from
		filter.To = &to
	}
	details, err := s.payments.ListDetails(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list payments")
	}
	items, pagination := ledger.Project(actor, view, details, query)
	return items, &pagination, nil
}
