package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/handler"
	"github.com/talentboard/pipeline-api/internal/middleware"
	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/internal/service"
	"github.com/talentboard/pipeline-api/pkg/config"
	"github.com/talentboard/pipeline-api/pkg/logger"
	corsmiddleware "github.com/talentboard/pipeline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/talentboard/pipeline-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *service.MetricsService
	userRepo    *repository.UserRepository
	authService *service.AuthService

	auth          *handler.AuthHandler
	users         *handler.UserHandler
	postings      *handler.JobPostingHandler
	stages        *handler.StageHandler
	candidates    *handler.CandidateHandler
	applications  *handler.ApplicationHandler
	processes     *handler.SelectionProcessHandler
	invitations   *handler.InvitationHandler
	compatibility *handler.CompatibilityHandler
	exports       *handler.ExportHandler
	observability *handler.MetricsHandler
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(deps.cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.observability.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.observability.Prometheus)

	if deps.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)

		session := auth.Group("", middleware.JWT(deps.authService))
		session.POST("/logout", deps.auth.Logout)
		session.POST("/change-password", deps.auth.ChangePassword)
		session.GET("/me", deps.auth.Me)
	}

	authed := api.Group("", middleware.JWT(deps.authService))

	users := authed.Group("/users", middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", deps.users.List)
		users.POST("", deps.users.Create)
		users.GET("/:id", deps.users.Get)
		users.PUT("/:id", deps.users.Update)
		users.DELETE("/:id", deps.users.Delete)
	}

	// Posting browsing is open; a token widens the view beyond published.
	browse := api.Group("/job-postings", middleware.OptionalJWT(deps.authService))
	{
		browse.GET("", deps.postings.List)
		browse.GET("/:id", deps.postings.Get)
	}

	postings := authed.Group("/job-postings")
	{
		postings.GET("/:id/stages", deps.stages.List)

		manage := postings.Group("", middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin))
		manage.POST("", deps.postings.Create)
		manage.PUT("/:id", deps.postings.Update)
		manage.DELETE("/:id", deps.postings.Delete)
		manage.POST("/:id/stages", deps.stages.Create)
		manage.PUT("/:id/stages/reorder", deps.stages.Reorder)
		manage.GET("/:id/compatibility", deps.compatibility.ListForPosting)
	}

	stages := authed.Group("/stages", middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin))
	{
		stages.PUT("/:id", deps.stages.Update)
		stages.DELETE("/:id", deps.stages.Delete)
	}

	candidates := authed.Group("/candidates")
	{
		own := candidates.Group("/me", middleware.RequireRoles(models.RoleCandidate))
		own.GET("", deps.candidates.GetOwn)
		own.PUT("", deps.candidates.UpsertOwn)
		own.PUT("/saved-postings/:id", deps.candidates.SavePosting)
		own.DELETE("/saved-postings/:id", deps.candidates.UnsavePosting)

		candidates.GET("/:id", middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin), deps.candidates.Get)
		candidates.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.candidates.Delete)
	}

	applications := authed.Group("/applications")
	{
		applications.POST("", middleware.RequireRoles(models.RoleCandidate), deps.applications.Apply)
		applications.GET("", deps.applications.List)
		applications.GET("/:id", deps.applications.Get)
		applications.DELETE("/:id", deps.applications.Withdraw)
	}

	processes := authed.Group("/selection-processes", middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin))
	{
		processes.POST("", deps.processes.Start)
		processes.GET("", deps.processes.List)
		processes.GET("/:id", deps.processes.Get)
		processes.POST("/:id/transitions",
			middleware.Audit(deps.userRepo, "transition", "selection_process"),
			deps.processes.Transition)
		processes.GET("/:id/history", deps.processes.History)
	}

	invitations := authed.Group("/invitations")
	{
		invitations.POST("",
			middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin),
			middleware.Audit(deps.userRepo, "send", "invitation"),
			deps.invitations.Send)
		invitations.GET("", deps.invitations.List)
		invitations.GET("/:id", deps.invitations.Get)
		invitations.POST("/:id/response",
			middleware.RequireRoles(models.RoleCandidate),
			deps.invitations.Respond)
	}

	authed.GET("/compatibility/:candidate_id/:job_posting_id", deps.compatibility.Get)

	if deps.exports != nil {
		exports := authed.Group("/exports", middleware.RequireRoles(models.RoleRecruiter, models.RoleAdmin))
		exports.POST("", deps.exports.Create)
		exports.GET("/:id", deps.exports.Status)

		// Download is authorized by the signed token, not a session.
		api.GET("/exports/download/:token", deps.exports.Download)
	}

	return r
}
