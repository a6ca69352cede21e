package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	"github.com/noah-isme/institute-ledger-api/pkg/response"
)

type personService interface {
	Create(ctx context.Context, actor models.Actor, req service.CreatePersonRequest) (*models.Person, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Person, error)
	GrantRole(ctx context.Context, actor models.Actor, personID string, req service.GrantRoleRequest) (*models.RoleGrant, error)
	EndRole(ctx context.Context, actor models.Actor, grantID string, req service.EndRoleRequest) (*models.RoleGrant, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req service.UpdatePersonStatusRequest) error
}

// PersonHandler exposes people and role grant endpoints.
type PersonHandler struct {
	persons personService
}

// NewPersonHandler constructs PersonHandler.
func NewPersonHandler(persons personService) *PersonHandler {
	return &PersonHandler{persons: persons}
}

// Create godoc
// @Summary Register a person
// @Tags Persons
// @Accept json
// @Produce json
// @Param payload body service.CreatePersonRequest true "Person payload"
// @Success 201 {object} response.Envelope
// @Router /persons [post]
func (h *PersonHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreatePersonRequest
	if !bindJSON(c, &req) {
		return
	}
	person, err := h.persons.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Get godoc
// @Summary Get person with role grants
// @Tags Persons
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Router /persons/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	person, err := h.persons.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, person)
}

// UpdateStatus godoc
// @Summary Change person status
// @Tags Persons
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body service.UpdatePersonStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /persons/{id}/status [patch]
func (h *PersonHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdatePersonStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.persons.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "status": req.Status})
}

// GrantRole godoc
// @Summary Grant a role to a person
// @Tags Persons
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body service.GrantRoleRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Router /persons/{id}/grants [post]
func (h *PersonHandler) GrantRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.GrantRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	grant, err := h.persons.GrantRole(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// EndRole godoc
// @Summary End a role grant
// @Tags Persons
// @Accept json
// @Produce json
// @Param id path string true "Grant ID"
// @Param payload body service.EndRoleRequest false "End payload"
// @Success 200 {object} response.Envelope
// @Router /grants/{id}/end [post]
func (h *PersonHandler) EndRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.EndRoleRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	grant, err := h.persons.EndRole(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grant)
}
