package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
	"github.com/noah-isme/institute-ledger-api/pkg/database"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

const reportCachePattern = "report:*"

type ledgerStore interface {
	InLedgerTx(ctx context.Context, scope string, fn func(tx repository.LedgerTx) error) error
}

// ledgerRunner executes one ledger operation per transaction. Store conflicts
// are retried; business rule failures are returned as-is.
type ledgerRunner struct {
	store   ledgerStore
	retries int
	metrics *MetricsService
	cache   *CacheService
	events  *NotificationService
	logger  *zap.Logger
}

func (r ledgerRunner) run(ctx context.Context, op, scope string, fn func(tx repository.LedgerTx) error) error {
	for attempt := 0; ; attempt++ {
		err := r.store.InLedgerTx(ctx, scope, fn)
		switch {
		case err == nil:
			r.metrics.RecordLedgerOperation(op, "ok")
			return nil
		case database.IsConflict(err):
			r.metrics.RecordLedgerConflict(op)
			if attempt >= r.retries {
				r.metrics.RecordLedgerOperation(op, "conflict")
				r.logger.Warn("ledger conflict retries exhausted", zap.String("operation", op), zap.String("scope", scope), zap.Error(err))
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("%s conflicted with a concurrent update on %s", op, scope))
			}
			r.logger.Debug("ledger conflict, retrying", zap.String("operation", op), zap.Int("attempt", attempt+1))
		default:
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				r.metrics.RecordLedgerOperation(op, "rejected")
				return err
			}
			r.metrics.RecordLedgerOperation(op, "error")
			return internalErr(err, op+" failed")
		}
	}
}

// committed runs the side effects of a successful mutation. None of them can
// undo the mutation.
func (r ledgerRunner) committed(ctx context.Context, eventType string, payment models.Payment, actorID string) {
	r.cache.Invalidate(ctx, reportCachePattern)
	if eventType == EventPaymentRegistered {
		r.metrics.RecordPaymentAmount(string(payment.Kind), payment.Amount)
	}
	r.events.Publish(ctx, newPaymentEvent(eventType, payment, actorID))
}

// lookupErr maps a missing row to NOT_FOUND and anything else to INTERNAL_ERROR.
func lookupErr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %s not found", entity, id)
	}
	return internalErr(err, "failed to load "+entity)
}

func internalErr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationErr(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func requireRole(actor models.Actor, roles ...models.RoleKind) error {
	for _, role := range roles {
		if actor.ActiveRole == role && actor.Has(role) {
			return nil
		}
	}
	return appErrors.Clonef(appErrors.ErrForbidden, "role %s may not perform this operation", actor.ActiveRole)
}

func isStaff(actor models.Actor) bool {
	return requireRole(actor, models.RoleAdministrator, models.RoleOffice) == nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
