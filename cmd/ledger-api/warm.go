package main

import (
	"context"

	"github.com/noah-isme/institute-ledger-api/internal/service"
)

type reportWarmer interface {
	Warm(ctx context.Context) error
}

// warmReportsJob is the cron entry that pre-builds last month's report. The
// service logs failures; the job only counts outcomes.
func warmReportsJob(ctx context.Context, reports reportWarmer, metrics *service.MetricsService) func() {
	return func() {
		metrics.RecordReportWarm(reports.Warm(ctx))
	}
}
