package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/pkg/database"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type personRepository interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	FindGrant(ctx context.Context, grantID string) (*models.RoleGrant, error)
	Create(ctx context.Context, person *models.Person) error
	CreateGrant(ctx context.Context, grant *models.RoleGrant, check func(status models.PersonStatus, existing []models.RoleGrant) error) error
	EndGrant(ctx context.Context, grantID string, end time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.PersonStatus) error
}

// CreatePersonRequest registers a person without any role.
type CreatePersonRequest struct {
	FullName  string     `json:"full_name" validate:"required,max=200"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     *string    `json:"phone" validate:"omitempty,max=40"`
	BirthDate *time.Time `json:"birth_date"`
}

// GrantRoleRequest opens a role grant; StartDate defaults to today.
type GrantRoleRequest struct {
	Kind      models.RoleKind `json:"kind" validate:"required,oneof=STUDENT PROFESSOR ADMINISTRATOR OFFICE GATE"`
	StartDate *time.Time      `json:"start_date"`
}

// EndRoleRequest closes a role grant; EndDate defaults to today.
type EndRoleRequest struct {
	EndDate *time.Time `json:"end_date"`
}

// UpdatePersonStatusRequest moves a person through its lifecycle.
type UpdatePersonStatusRequest struct {
	Status models.PersonStatus `json:"status" validate:"required,oneof=PENDING ACTIVE INACTIVE WITHDRAWN"`
}

// PersonService manages people and their role grants.
type PersonService struct {
	repo      personRepository
	validator *validator.Validate
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewPersonService constructs PersonService.
func NewPersonService(repo personRepository, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *PersonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PersonService{repo: repo, validator: validate, loc: loc, logger: logger, now: time.Now}
}

// Create registers a new active person.
func (s *PersonService) Create(ctx context.Context, actor models.Actor, req CreatePersonRequest) (*models.Person, error) {
	if err := requireRole(actor, models.RoleAdministrator, models.RoleOffice); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid person payload")
	}
	person := &models.Person{
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		Status:    models.PersonActive,
	}
	if err := s.repo.Create(ctx, person); err != nil {
		return nil, internalErr(err, "failed to create person")
	}
	s.logger.Info("person created", zap.String("person_id", person.ID))
	return person, nil
}

// Get returns a person with its grants. Staff may read anyone; others only themselves.
func (s *PersonService) Get(ctx context.Context, actor models.Actor, id string) (*models.Person, error) {
	if !isStaff(actor) && actor.PersonID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot read another person")
	}
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "person", id)
	}
	return person, nil
}

// GrantRole opens a new role grant. A person holds each role kind at most once at a time.
func (s *PersonService) GrantRole(ctx context.Context, actor models.Actor, personID string, req GrantRoleRequest) (*models.RoleGrant, error) {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid role grant payload")
	}
	start := ledger.DateOf(s.now().In(s.loc))
	if req.StartDate != nil {
		start = ledger.CalendarDay(*req.StartDate, s.loc)
	}
	grant := &models.RoleGrant{PersonID: personID, Kind: req.Kind, StartDate: start}
	err := s.repo.CreateGrant(ctx, grant, func(status models.PersonStatus, existing []models.RoleGrant) error {
		if status == models.PersonWithdrawn {
			return appErrors.Clonef(appErrors.ErrValidation, "person %s is withdrawn", personID)
		}
		for _, g := range existing {
			if g.Kind == req.Kind && (g.EndDate == nil || !ledger.CalendarDay(*g.EndDate, s.loc).Before(start)) {
				return appErrors.Clonef(appErrors.ErrValidation, "person %s already holds an active %s grant", personID, req.Kind)
			}
		}
		return nil
	})
	if err != nil {
		if isNoRows(err) {
			return nil, lookupErr(err, "person", personID)
		}
		if database.IsConflict(err) {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "person %s already holds an active %s grant", personID, req.Kind)
		}
		return nil, internalErr(err, "failed to grant role")
	}
	s.logger.Info("role granted", zap.String("person_id", personID), zap.String("grant_id", grant.ID), zap.String("kind", string(grant.Kind)))
	return grant, nil
}

// EndRole closes a grant. The end date may not precede the start.
func (s *PersonService) EndRole(ctx context.Context, actor models.Actor, grantID string, req EndRoleRequest) (*models.RoleGrant, error) {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	grant, err := s.repo.FindGrant(ctx, grantID)
	if err != nil {
		return nil, lookupErr(err, "role grant", grantID)
	}
	end := ledger.DateOf(s.now().In(s.loc))
	if req.EndDate != nil {
		end = ledger.CalendarDay(*req.EndDate, s.loc)
	}
	if end.Before(ledger.CalendarDay(grant.StartDate, s.loc)) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "end date %s precedes grant start %s", end.Format("2006-01-02"), grant.StartDate.Format("2006-01-02"))
	}
	if err := s.repo.EndGrant(ctx, grantID, end); err != nil {
		return nil, lookupErr(err, "role grant", grantID)
	}
	grant.EndDate = &end
	s.logger.Info("role ended", zap.String("grant_id", grantID), zap.Time("end_date", end))
	return grant, nil
}

// UpdateStatus changes the person's lifecycle state.
func (s *PersonService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req UpdatePersonStatusRequest) error {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return validationErr(err, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return lookupErr(err, "person", id)
	}
	s.logger.Info("person status updated", zap.String("person_id", id), zap.String("status", string(req.Status)))
	return nil
}
