package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/handler"
	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/response"
	"github.com/attestra/attestra-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth         *handler.AuthHandler
	Attempt      *handler.AttemptHandler
	Report       *handler.ReportHandler
	Monitor      *handler.MonitorHandler
	Notification *handler.NotificationHandler
	WS           *handler.WSHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/healthz", handlers.System.Health)

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.GetProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1")
	candidateAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/assessments", handlers.Attempt.ListAssessments)
		candidateAPI.POST("/assessments/:assessment_id/attempt", handlers.Attempt.StartOrResume)
		candidateAPI.GET("/sessions/:session_id/state", handlers.Attempt.GetState)
		candidateAPI.PUT("/sessions/:session_id/answers", handlers.Attempt.SubmitAnswer)
		candidateAPI.POST("/sessions/:session_id/focus-loss", handlers.Attempt.RecordFocusLoss)
		candidateAPI.POST("/sessions/:session_id/complete", handlers.Attempt.Complete)
		candidateAPI.GET("/sessions/:session_id/summary", handlers.Attempt.GetSummary)
		candidateAPI.GET("/notifications", handlers.Notification.ListOwn)
	}

	// ─── 3. WebSocket Group (WS Auth via ?token=) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Management Group (JWT + Role Gate) ─────────────────────────
	manageAPI := router.Group("/api/v1/manage")
	manageAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireMinimumRole(model.RoleContentManager),
	)
	{
		manageAPI.GET("/sessions/:session_id/violations", handlers.Report.GetViolations)
		manageAPI.GET("/assessments/:assessment_id/summary", handlers.Report.SummarizeAssessment)
		manageAPI.GET("/assessments/:assessment_id/monitor", handlers.Monitor.MonitorAssessmentSSE)
		manageAPI.GET("/reports/summary", handlers.Report.SummarizeOrg)

		// Destructive operations stay behind the org admin role.
		manageAPI.DELETE("/sessions/:session_id",
			middleware.RequireMinimumRole(model.RoleOrgAdmin),
			handlers.Report.ResetAttempt,
		)
		manageAPI.DELETE("/users/:user_id/login-session",
			middleware.RequireMinimumRole(model.RoleOrgAdmin),
			handlers.Auth.ResetLoginSession,
		)
		manageAPI.GET("/system/metrics",
			middleware.RequireMinimumRole(model.RoleOrgAdmin),
			handlers.System.SystemMetricsSSE,
		)
	}

	return router
}
