package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/pkg/jobs"
)

type chanSink struct {
	events chan PaymentEvent
}

func (s chanSink) Deliver(_ context.Context, event PaymentEvent) error {
	s.events <- event
	return nil
}

func TestNotificationServiceDeliversRegisteredPayments(t *testing.T) {
	sink := chanSink{events: make(chan PaymentEvent, 4)}
	notifier := NewNotificationService(sink, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond}, zap.NewNop())
	notifier.Start(context.Background())
	defer notifier.Stop()

	svc, _ := newRentalFixture()
	svc.runner.events = notifier

	payment, err := svc.Register(context.Background(), officeAct, "course-rent", RegisterInstallmentRequest{ProfessorGrantID: "prof-1", InstallmentNumber: 1})
	require.NoError(t, err)

	select {
	case event := <-sink.events:
		assert.Equal(t, EventPaymentRegistered, event.Type)
		assert.Equal(t, payment.ID, event.PaymentID)
		assert.Equal(t, "course-rent", event.CourseID)
		assert.Equal(t, "person-office", event.ActorID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestNotificationServicePublishFailureDoesNotUndoMutation(t *testing.T) {
	// The queue is never started, so every enqueue fails.
	notifier := NewNotificationService(nil, jobs.QueueConfig{}, zap.NewNop())
	svc, store := newRentalFixture()
	svc.runner.events = notifier

	_, err := svc.Register(context.Background(), officeAct, "course-rent", RegisterInstallmentRequest{ProfessorGrantID: "prof-1", InstallmentNumber: 1})
	require.NoError(t, err)
	assert.Len(t, store.payments, 1)
}

func TestNilNotificationServiceIsNoop(t *testing.T) {
	var notifier *NotificationService
	assert.NotPanics(t, func() {
		notifier.Start(context.Background())
		notifier.Publish(context.Background(), PaymentEvent{Type: EventPaymentVoided})
		notifier.Stop()
	})
}
