package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/handler"
	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Course     *handler.CourseHandler
	Content    *handler.ContentHandler
	Test       *handler.TestHandler
	Question   *handler.QuestionHandler
	Review     *handler.ReviewHandler
	Enrollment *handler.EnrollmentHandler
	Attempt    *handler.AttemptHandler
	WS         *handler.WSHandler
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

	// Request ID first so every response carries tracing metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Public Catalog ─────────────────────────────────────────────
	catalog := router.Group("/api/v1")
	{
		catalog.GET("/courses", handlers.Course.List)
		catalog.GET("/courses/:course_id", handlers.Course.Get)
		catalog.GET("/courses/:course_id/reviews", handlers.Review.List)
	}

	// ─── 3. Learner Group (JWT) ────────────────────────────────────────
	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(middleware.RequireJWT(authService))
	{
		learnerAPI.POST("/courses/:course_id/enroll", handlers.Enrollment.Enroll)
		learnerAPI.GET("/my/courses", handlers.Enrollment.ListMine)

		learnerAPI.GET("/courses/:course_id/contents", handlers.Content.ListByCourse)
		learnerAPI.GET("/courses/:course_id/tests", handlers.Test.ListByCourse)
		learnerAPI.GET("/tests/:test_id", handlers.Test.Get)
		learnerAPI.GET("/tests/:test_id/questions", handlers.Question.ListForLearner)

		learnerAPI.PUT("/courses/:course_id/reviews", handlers.Review.Upsert)
		learnerAPI.DELETE("/courses/:course_id/reviews", handlers.Review.Delete)

		learnerAPI.POST("/attempts/tests/:test_id/start", handlers.Attempt.Start)
		learnerAPI.GET("/attempts/tests/:test_id/latest-completed", handlers.Attempt.LatestCompleted)
		learnerAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.RecordAnswer)
		learnerAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		learnerAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.State)
	}

	// ─── 4. WebSocket Group (WS Auth via query token) ──────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(middleware.RequireWSAuth(authService))
	{
		wsAPI.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Instructor Group (JWT + Role) ──────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireInstructor(authService),
	)
	{
		instructorAPI.GET("/courses", handlers.Course.ListMine)
		instructorAPI.POST("/courses", handlers.Course.Create)
		instructorAPI.PUT("/courses/:course_id", handlers.Course.Update)
		instructorAPI.DELETE("/courses/:course_id", handlers.Course.Delete)

		instructorAPI.POST("/courses/:course_id/contents", handlers.Content.Create)
		instructorAPI.PUT("/contents/:content_id", handlers.Content.Update)
		instructorAPI.DELETE("/contents/:content_id", handlers.Content.Delete)

		instructorAPI.POST("/courses/:course_id/tests", handlers.Test.Create)
		instructorAPI.PUT("/tests/:test_id", handlers.Test.Update)
		instructorAPI.DELETE("/tests/:test_id", handlers.Test.Delete)

		instructorAPI.GET("/tests/:test_id/questions", handlers.Question.ListForAuthor)
		instructorAPI.PUT("/tests/:test_id/questions", handlers.Question.Upsert)
		instructorAPI.DELETE("/questions/:question_id", handlers.Question.Delete)
	}

	return router
}
