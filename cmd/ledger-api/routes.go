package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-ledger-api/internal/handler"
	"github.com/noah-isme/institute-ledger-api/internal/middleware"
	"github.com/noah-isme/institute-ledger-api/internal/models"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	"github.com/noah-isme/institute-ledger-api/pkg/config"
	"github.com/noah-isme/institute-ledger-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/institute-ledger-api/pkg/middleware/requestid"
)

type services struct {
	auth        *service.AuthService
	persons     *service.PersonService
	courses     *service.CourseService
	enrollments *service.EnrollmentService
	rentals     *service.RentalService
	commissions *service.CommissionService
	payments    *service.PaymentService
	reports     *service.ReportService
	metrics     *service.MetricsService
	store       handler.Pinger
	cache       handler.Pinger
}

const (
	admin  = models.RoleAdministrator
	office = models.RoleOffice
	prof   = models.RoleProfessor
	stud   = models.RoleStudent
	gate   = models.RoleGate
)

func newRouter(cfg *config.Config, logr *zap.Logger, svcs services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(svcs.metrics, cfg.APIPrefix))

	systemHandler := handler.NewSystemHandler(svcs.metrics, svcs.store, svcs.cache)
	r.GET("/health", systemHandler.Health)
	r.GET("/ready", systemHandler.Health)
	r.GET("/metrics", systemHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svcs.auth)
	personHandler := handler.NewPersonHandler(svcs.persons)
	courseHandler := handler.NewCourseHandler(svcs.courses)
	enrollmentHandler := handler.NewEnrollmentHandler(svcs.enrollments)
	settlementHandler := handler.NewSettlementHandler(svcs.rentals, svcs.commissions)
	paymentHandler := handler.NewPaymentHandler(svcs.payments)
	reportHandler := handler.NewReportHandler(svcs.reports)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	if cfg.Env != config.EnvProduction {
		api.POST("/auth/token", authHandler.IssueToken)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(svcs.auth))
	secured.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(admin, office)
	adminOnly := middleware.RequireRoles(admin)
	audit := func(action string) gin.HandlerFunc { return middleware.Audit(logr, action) }

	persons := secured.Group("/persons")
	persons.POST("", staff, audit("person.create"), personHandler.Create)
	persons.GET("/:id", personHandler.Get)
	persons.PATCH("/:id/status", adminOnly, audit("person.status"), personHandler.UpdateStatus)
	persons.POST("/:id/grants", adminOnly, audit("grant.create"), personHandler.GrantRole)
	secured.POST("/grants/:id/end", adminOnly, audit("grant.end"), personHandler.EndRole)

	courses := secured.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", adminOnly, audit("course.create"), courseHandler.Create)
	courses.POST("/:id/professors", adminOnly, audit("course.assign_professor"), courseHandler.AssignProfessor)
	courses.PUT("/:id/prices", middleware.RequireRoles(admin, prof), audit("course.set_price"), courseHandler.SetPrice)
	courses.GET("/:id/enrollments", staff, enrollmentHandler.ListByCourse)
	courses.GET("/:id/installments/preview", middleware.RequireRoles(admin, office, prof), settlementHandler.InstallmentPreview)
	courses.POST("/:id/installments", staff, audit("rental.register"), settlementHandler.RegisterInstallment)
	courses.GET("/:id/commissions/preview", middleware.RequireRoles(admin, office, prof), settlementHandler.CommissionPreview)
	courses.POST("/:id/commissions", staff, audit("commission.register"), settlementHandler.RegisterCommission)

	enrollments := secured.Group("/enrollments")
	enrollments.POST("", staff, audit("enrollment.create"), enrollmentHandler.Create)
	enrollments.GET("/:id", middleware.RequireRoles(admin, office, stud), enrollmentHandler.Get)
	enrollments.GET("/:id/summary", middleware.RequireRoles(admin, office, stud), enrollmentHandler.Summary)
	enrollments.POST("/:id/payments", staff, audit("tuition.register"), enrollmentHandler.RegisterPayment)
	enrollments.PUT("/:id/benefit", staff, audit("enrollment.benefit"), enrollmentHandler.ApplyBenefit)
	enrollments.POST("/:id/withdraw", staff, audit("enrollment.withdraw"), enrollmentHandler.Withdraw)

	payments := secured.Group("/payments")
	payments.GET("/received", middleware.RequireRoles(admin, office, prof, stud, gate), paymentHandler.Received)
	payments.GET("/issued", middleware.RequireRoles(admin, office, prof, stud, gate), paymentHandler.Issued)
	payments.GET("/:id", staff, paymentHandler.Get)
	payments.POST("/:id/void", adminOnly, audit("payment.void"), paymentHandler.Void)

	secured.GET("/reports/monthly", staff, reportHandler.Monthly)

	return r
}
