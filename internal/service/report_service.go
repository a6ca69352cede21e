package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type paymentDetailLister interface {
	ListDetails(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
}

// ReportServiceConfig governs report caching.
type ReportServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// ReportService builds the monthly financial report.
type ReportService struct {
	payments paymentDetailLister
	cache    *CacheService
	metrics  *MetricsService
	cfg      ReportServiceConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(payments paymentDetailLister, cache *CacheService, metrics *MetricsService, cfg ReportServiceConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReportService{payments: payments, cache: cache, metrics: metrics, cfg: cfg, logger: logger, now: time.Now}
}

// Monthly returns the report for month/year. The boolean reports a cache hit.
func (s *ReportService) Monthly(ctx context.Context, actor models.Actor, month, year int) (*models.FinancialReport, bool, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, false, err
	}
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clonef(appErrors.ErrValidation, "month must be between 1 and 12, got %d", month)
	}
	if year < 2000 || year > 2100 {
		return nil, false, appErrors.Clonef(appErrors.ErrValidation, "year out of range: %d", year)
	}

	key := reportCacheKey(month, year)
	var cached models.FinancialReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	report, err := s.build(ctx, month, year)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, report, s.cfg.CacheTTL)
	return report, false, nil
}

// Warm rebuilds and caches the report of the month before now.
func (s *ReportService) Warm(ctx context.Context) error {
	now := s.now().In(s.cfg.Location)
	month, year := ledger.PreviousMonth(int(now.Month()), now.Year())
	report, err := s.build(ctx, month, year)
	if err != nil {
		s.logger.Warn("report warm-up failed", zap.Int("month", month), zap.Int("year", year), zap.Error(err))
		return err
	}
	s.cache.Set(ctx, reportCacheKey(month, year), report, s.cfg.CacheTTL)
	s.logger.Info("report warmed", zap.Int("month", month), zap.Int("year", year), zap.Int("movements", len(report.Movements)))
	return nil
}

func (s *ReportService) build(ctx context.Context, month, year int) (*models.FinancialReport, error) {
	prevMonth, prevYear := ledger.PreviousMonth(month, year)
	from, _ := ledger.MonthWindow(prevMonth, prevYear, s.cfg.Location)
	_, last := ledger.MonthWindow(month, year, s.cfg.Location)
	to := last.AddDate(0, 0, 1)

	details, err := s.payments.ListDetails(ctx, models.PaymentFilter{From: &from, To: &to})
	if err != nil {
		return nil, internalErr(err, "failed to load payments for report")
	}
	report := ledger.BuildReport(month, year, details, s.cfg.Location)
	return &report, nil
}

func reportCacheKey(month, year int) string {
	return fmt.Sprintf("report:%04d-%02d", year, month)
}
