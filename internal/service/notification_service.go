package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/pkg/jobs"
)

// Notification event types.
const (
	EventPaymentRegistered = "payment.registered"
	EventPaymentVoided     = "payment.voided"
)

// PaymentEvent is published after a ledger mutation commits.
type PaymentEvent struct {
	Type      string             `json:"type"`
	PaymentID string             `json:"payment_id"`
	Kind      models.PaymentKind `json:"kind"`
	CourseID  string             `json:"course_id"`
	Amount    decimal.Decimal    `json:"amount"`
	ActorID   string             `json:"actor_id"`
	At        time.Time          `json:"at"`
}

func newPaymentEvent(eventType string, p models.Payment, actorID string) PaymentEvent {
	at := p.CreatedAt
	if eventType == EventPaymentVoided && p.VoidedAt != nil {
		at = *p.VoidedAt
	}
	return PaymentEvent{
		Type:      eventType,
		PaymentID: p.ID,
		Kind:      p.Kind,
		CourseID:  p.CourseID(),
		Amount:    p.Amount,
		ActorID:   actorID,
		At:        at,
	}
}

// NotificationSink delivers an event to its audience.
type NotificationSink interface {
	Deliver(ctx context.Context, event PaymentEvent) error
}

type logSink struct {
	logger *zap.Logger
}

func (s logSink) Deliver(_ context.Context, event PaymentEvent) error {
	s.logger.Info("notification delivered",
		zap.String("type", event.Type),
		zap.String("payment_id", event.PaymentID),
		zap.String("kind", string(event.Kind)),
		zap.String("course_id", event.CourseID),
		zap.String("amount", event.Amount.StringFixed(2)),
	)
	return nil
}

// NotificationService fans payment events out through a background queue.
// A nil *NotificationService drops events.
type NotificationService struct {
	queue  *jobs.Queue
	sink   NotificationSink
	logger *zap.Logger
}

// NewNotificationService builds the service and its queue. A nil sink logs events.
func NewNotificationService(sink NotificationSink, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = logSink{logger: logger}
	}
	cfg.Logger = logger
	s := &NotificationService{sink: sink, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (s *NotificationService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Publish enqueues the event. Failures are logged only.
func (s *NotificationService) Publish(_ context.Context, event PaymentEvent) {
	if s == nil {
		return
	}
	job := jobs.Job{ID: fmt.Sprintf("%s:%s", event.Type, event.PaymentID), Type: event.Type, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("type", event.Type), zap.String("payment_id", event.PaymentID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(PaymentEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.sink.Deliver(ctx, event)
}
