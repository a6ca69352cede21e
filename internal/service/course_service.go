package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	SetPrice(ctx context.Context, price models.CoursePrice) error
	AssignProfessor(ctx context.Context, courseID, professorGrantID string) error
}

// PriceRequest is one row of a course price table.
type PriceRequest struct {
	Plan  models.PaymentPlan `json:"plan" validate:"required,oneof=MONTHLY PAID_IN_FULL"`
	Price decimal.Decimal    `json:"price"`
}

// CreateCourseRequest describes a new course of either kind.
type CreateCourseRequest struct {
	Name              string            `json:"name" validate:"required,max=200"`
	Kind              models.CourseKind `json:"kind" validate:"required,oneof=RENTAL REVENUE_SHARE"`
	Schedule          string            `json:"schedule" validate:"max=200"`
	StartDate         time.Time         `json:"start_date"`
	EndDate           time.Time         `json:"end_date"`
	RentalFee         decimal.Decimal   `json:"rental_fee"`
	TotalInstallments int               `json:"total_installments" validate:"min=0,max=120"`
	CommissionPercent decimal.Decimal   `json:"commission_percent"`
	Prices            []PriceRequest    `json:"prices" validate:"dive"`
}

// AssignProfessorRequest links a professor grant to a course.
type AssignProfessorRequest struct {
	ProfessorGrantID string `json:"professor_grant_id" validate:"required"`
}

// CourseService manages the course catalogue and price tables.
type CourseService struct {
	repo      courseRepository
	grants    grantReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, grants grantReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, grants: grants, validator: validate, logger: logger, now: time.Now}
}

// List returns every course.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, internalErr(err, "failed to list courses")
	}
	return courses, nil
}

// Get returns a course with its price table and professors.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "course", id)
	}
	return course, nil
}

// Create validates the variant-specific fields and stores the course.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req CreateCourseRequest) (*models.Course, error) {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid course payload")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course start and end dates are required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course end date precedes start date")
	}
	course := &models.Course{
		Name:      req.Name,
		Kind:      req.Kind,
		Schedule:  req.Schedule,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	switch req.Kind {
	case models.CourseRental:
		if !req.RentalFee.IsPositive() || req.TotalInstallments < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rental courses need a positive fee and at least one installment")
		}
		course.RentalFee = req.RentalFee.Round(2)
		course.TotalInstallments = req.TotalInstallments
	case models.CourseRevenueShare:
		if !req.CommissionPercent.IsPositive() || req.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "commission percent must be in (0, 100]")
		}
		course.CommissionPercent = req.CommissionPercent
	}
	seen := make(map[models.PaymentPlan]struct{}, len(req.Prices))
	for _, p := range req.Prices {
		if !p.Price.IsPositive() {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "price for plan %s must be positive", p.Plan)
		}
		if _, dup := seen[p.Plan]; dup {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "plan %s listed twice", p.Plan)
		}
		seen[p.Plan] = struct{}{}
		course.Prices = append(course.Prices, models.CoursePrice{Plan: p.Plan, Price: p.Price.Round(2)})
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, internalErr(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("kind", string(course.Kind)))
	return course, nil
}

// AssignProfessor links an active professor grant; assigning twice is a no-op.
func (s *CourseService) AssignProfessor(ctx context.Context, actor models.Actor, courseID string, req AssignProfessorRequest) (*models.Course, error) {
	if err := requireRole(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid assignment payload")
	}
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, "course", courseID)
	}
	grant, err := s.grants.FindGrant(ctx, req.ProfessorGrantID)
	if err != nil {
		return nil, lookupErr(err, "role grant", req.ProfessorGrantID)
	}
	if grant.Kind != models.RoleProfessor || !grant.ActiveAt(s.now()) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "grant %s is not an active professor grant", grant.ID)
	}
	if course.HasProfessor(grant.ID) {
		return course, nil
	}
	if err := s.repo.AssignProfessor(ctx, courseID, grant.ID); err != nil {
		return nil, internalErr(err, "failed to assign professor")
	}
	course.ProfessorGrantIDs = append(course.ProfessorGrantIDs, grant.ID)
	s.logger.Info("professor assigned", zap.String("course_id", courseID), zap.String("professor_grant_id", grant.ID))
	return course, nil
}

// SetPrice changes one row of the price table. Revenue-share prices are
// administrator-only; rental prices may also be set by an assigned professor.
func (s *CourseService) SetPrice(ctx context.Context, actor models.Actor, courseID string, req PriceRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid price payload")
	}
	if !req.Price.IsPositive() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "price for plan %s must be positive", req.Plan)
	}
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, "course", courseID)
	}
	if err := canSetPrice(actor, *course); err != nil {
		return nil, err
	}
	price := models.CoursePrice{CourseID: courseID, Plan: req.Plan, Price: req.Price.Round(2)}
	if err := s.repo.SetPrice(ctx, price); err != nil {
		return nil, internalErr(err, "failed to set price")
	}
	replaced := false
	for i := range course.Prices {
		if course.Prices[i].Plan == price.Plan {
			course.Prices[i] = price
			replaced = true
		}
	}
	if !replaced {
		course.Prices = append(course.Prices, price)
	}
	s.logger.Info("course price set", zap.String("course_id", courseID), zap.String("plan", string(price.Plan)), zap.String("price", price.Price.StringFixed(2)))
	return course, nil
}

func canSetPrice(actor models.Actor, course models.Course) error {
	if requireRole(actor, models.RoleAdministrator) == nil {
		return nil
	}
	if course.Kind == models.CourseRental && actor.ActiveRole == models.RoleProfessor && course.HasProfessor(actor.GrantID(models.RoleProfessor)) {
		return nil
	}
	return appErrors.Clonef(appErrors.ErrForbidden, "actor may not change prices of course %s", course.ID)
}
