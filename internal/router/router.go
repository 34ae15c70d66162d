package router

import (
	"context"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/handler"
	"github.com/SwiftTim/hub2/internal/middleware"
	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Report     *handler.ReportHandler
	Monitor    *handler.MonitorHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router such as rate limiter sweeps.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	streams middleware.StreamLocker,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Document-ID", "X-Watermark-Version", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Verification (Rate Limited) ─────────────────────────
	verifyLimiter := middleware.NewRateLimiter(ctx, cfg.VerifyRatePerMinute, time.Minute)
	publicAPI := router.Group("/api/v1/reports/verify")
	publicAPI.Use(verifyLimiter.Middleware(), middleware.CacheControl(time.Minute))
	{
		publicAPI.GET("/:document_id", handlers.Report.Verify)
	}

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService), middleware.NoStore())
	{
		studentAPI.POST("/assessments/:assessment_id/enter", handlers.Assessment.Enter)
	}

	// ─── 2. WebSocket Group (Student WS Auth + Single Stream) ──────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.SingleAssessmentStream(streams),
	)
	{
		ws.GET("/student/assessments/:assessment_id/stream", handlers.Assessment.Stream)
	}

	// ─── 3. Reports (Any Authenticated Role) ───────────────────────────
	reportsAPI := router.Group("/api/v1/reports")
	reportsAPI.Use(middleware.RequireJWT(authService), middleware.NoStore())
	{
		reportsAPI.POST("/inspect", middleware.RequireStaff(), handlers.Report.Inspect)
		reportsAPI.GET("/:type", handlers.Report.Generate)
	}

	// ─── 4. Lecturer Group (Staff JWT) ─────────────────────────────────
	lecturerAPI := router.Group("/api/v1/lecturer")
	lecturerAPI.Use(middleware.RequireJWT(authService), middleware.RequireStaff())
	{
		lecturerAPI.GET("/assessments/:assessment_id/monitor", handlers.Monitor.MonitorAssessmentSSE)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireJWT(authService), middleware.RequireRole(service.RoleAdmin))
	{
		adminAPI.GET("/system/metrics", handlers.System.Metrics)
	}

	return router
}
