package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/institute-ledger-api/internal/service"
)

type warmerStub struct {
	errs  []error
	calls int
}

func (w *warmerStub) Warm(context.Context) error {
	err := w.errs[w.calls]
	w.calls++
	return err
}

func TestWarmReportsJobRecordsOutcome(t *testing.T) {
	metrics := service.NewMetricsService()
	warmer := &warmerStub{errs: []error{nil, errors.New("store down"), nil}}
	job := warmReportsJob(context.Background(), warmer, metrics)

	job()
	job()
	job()

	assert.Equal(t, 3, warmer.calls)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `report_warm_runs_total{outcome="ok"} 2`)
	assert.Contains(t, rec.Body.String(), `report_warm_runs_total{outcome="error"} 1`)
}
