package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/middleware"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type reportService interface {
	Monthly(ctx context.Context, actor models.Actor, month, year int) (*models.FinancialReport, bool, error)
}

// ReportHandler exposes financial reports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Monthly godoc
// @Summary Monthly financial report
// @Description Income, expenses and balance for a month compared with the previous month
// @Tags Reports
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/monthly [get]
func (h *ReportHandler) Monthly(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if c.Query("month") == "" || c.Query("year") == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month and year required"))
		return
	}
	month, err := intQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	year, err := intQuery(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, cached, err := h.reports.Monthly(c.Request.Context(), actor, month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}
