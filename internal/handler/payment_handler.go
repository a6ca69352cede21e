package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type paymentService interface {
	Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error)
	Void(ctx context.Context, actor models.Actor, id string, req service.VoidPaymentRequest) (*models.Payment, error)
	Received(ctx context.Context, actor models.Actor, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error)
	Issued(ctx context.Context, actor models.Actor, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error)
}

// PaymentHandler exposes payment lookups, listings and voids.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}

// Void godoc
// @Summary Void a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.VoidPaymentRequest true "Void payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/void [post]
func (h *PaymentHandler) Void(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.VoidPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Void(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}

// Received godoc
// @Summary Payments received by the institute
// @Tags Payments
// @Produce json
// @Param search query string false "Free text search"
// @Param category query string false "TUITION, RENTAL or COMMISSION"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments/received [get]
func (h *PaymentHandler) Received(c *gin.Context) {
	h.list(c, h.payments.Received)
}

// Issued godoc
// @Summary Payments issued by the institute
// @Tags Payments
// @Produce json
// @Param search query string false "Free text search"
// @Param category query string false "TUITION, RENTAL or COMMISSION"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments/issued [get]
func (h *PaymentHandler) Issued(c *gin.Context) {
	h.list(c, h.payments.Issued)
}

type paymentLister func(ctx context.Context, actor models.Actor, query models.PaymentQuery) ([]models.PaymentDetail, *models.Pagination, error)

func (h *PaymentHandler) list(c *gin.Context, fn paymentLister) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query models.PaymentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	details, pagination, err := fn(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, pagination)
}
