package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, actor models.Actor, req service.EnrollRequest) (*models.Enrollment, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, actor models.Actor, courseID string) ([]models.Enrollment, error)
	Summary(ctx context.Context, actor models.Actor, id string, asOf *time.Time) (*ledger.TuitionSummary, error)
	RegisterPayment(ctx context.Context, actor models.Actor, id string, req service.RegisterTuitionRequest) (*service.TuitionReceipt, error)
	ApplyBenefit(ctx context.Context, actor models.Actor, id string, req service.ApplyBenefitRequest) (*models.Enrollment, error)
	Withdraw(ctx context.Context, actor models.Actor, id string, req service.WithdrawRequest) (*models.Enrollment, error)
}

// EnrollmentHandler exposes enrollment and tuition endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Create godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// ListByCourse godoc
// @Summary Course roster
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByCourse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollments, err := h.enrollments.ListByCourse(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollments)
}

// Summary godoc
// @Summary Tuition summary with derived payment status
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param asOf query string false "Evaluation date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/summary [get]
func (h *EnrollmentHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	asOf, err := dateQuery(c, "asOf")
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.enrollments.Summary(c.Request.Context(), actor, c.Param("id"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// RegisterPayment godoc
// @Summary Register a tuition payment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RegisterTuitionRequest false "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/payments [post]
func (h *EnrollmentHandler) RegisterPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RegisterTuitionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	receipt, err := h.enrollments.RegisterPayment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// ApplyBenefit godoc
// @Summary Change the enrollment benefit
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ApplyBenefitRequest true "Benefit payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/benefit [put]
func (h *EnrollmentHandler) ApplyBenefit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ApplyBenefitRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.ApplyBenefit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw from the course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.WithdrawRequest false "Withdrawal payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.WithdrawRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Withdraw(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
