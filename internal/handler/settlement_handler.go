package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type rentalService interface {
	Preview(ctx context.Context, actor models.Actor, courseID, professorGrantID string) (*ledger.InstallmentPreview, error)
	Register(ctx context.Context, actor models.Actor, courseID string, req service.RegisterInstallmentRequest) (*models.Payment, error)
}

type commissionService interface {
	Preview(ctx context.Context, actor models.Actor, courseID, professorGrantID string, asOf *time.Time) (*ledger.CommissionPreview, error)
	Register(ctx context.Context, actor models.Actor, courseID string, req service.RegisterCommissionRequest) (*models.Payment, error)
}

// SettlementHandler exposes professor settlements: rental installments paid
// to the institute and commissions paid by it.
type SettlementHandler struct {
	rentals     rentalService
	commissions commissionService
}

// NewSettlementHandler constructs SettlementHandler.
func NewSettlementHandler(rentals rentalService, commissions commissionService) *SettlementHandler {
	return &SettlementHandler{rentals: rentals, commissions: commissions}
}

func professorQuery(c *gin.Context) (string, bool) {
	id := c.Query("professorGrantId")
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "professorGrantId required"))
		return "", false
	}
	return id, true
}

// InstallmentPreview godoc
// @Summary Next rental installment for a professor
// @Tags Settlements
// @Produce json
// @Param id path string true "Course ID"
// @Param professorGrantId query string true "Professor grant ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/installments/preview [get]
func (h *SettlementHandler) InstallmentPreview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profID, ok := professorQuery(c)
	if !ok {
		return
	}
	preview, err := h.rentals.Preview(c.Request.Context(), actor, c.Param("id"), profID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, preview)
}

// RegisterInstallment godoc
// @Summary Register a rental installment
// @Tags Settlements
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.RegisterInstallmentRequest true "Installment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/installments [post]
func (h *SettlementHandler) RegisterInstallment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RegisterInstallmentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.rentals.Register(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// CommissionPreview godoc
// @Summary Commission owed for the open period
// @Tags Settlements
// @Produce json
// @Param id path string true "Course ID"
// @Param professorGrantId query string true "Professor grant ID"
// @Param asOf query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/commissions/preview [get]
func (h *SettlementHandler) CommissionPreview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profID, ok := professorQuery(c)
	if !ok {
		return
	}
	asOf, err := dateQuery(c, "asOf")
	if err != nil {
		response.Error(c, err)
		return
	}
	preview, err := h.commissions.Preview(c.Request.Context(), actor, c.Param("id"), profID, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, preview)
}

// RegisterCommission godoc
// @Summary Liquidate the open commission period
// @Tags Settlements
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.RegisterCommissionRequest true "Commission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/commissions [post]
func (h *SettlementHandler) RegisterCommission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RegisterCommissionRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.commissions.Register(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}
