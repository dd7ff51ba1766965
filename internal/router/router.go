package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/codeassess/sessiond/internal/config"
	"github.com/codeassess/sessiond/internal/handler"
	"github.com/codeassess/sessiond/internal/middleware"
	"github.com/codeassess/sessiond/internal/response"
	"github.com/codeassess/sessiond/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
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
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiters: session start fans out to the authority on every
	// call; signals arrive per user gesture and get a wider allowance.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)
	signalLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── Session Group (JWT) ───────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.RequireSessionJWT(tokens))
	{
		sessionAPI.POST("/start", startLimiter.Middleware(), handlers.Session.StartSession)
		sessionAPI.GET("/state", handlers.Session.GetState)
		sessionAPI.POST("/resync", handlers.Session.Resync)
		sessionAPI.POST("/navigate", handlers.Session.Navigate)
		sessionAPI.POST("/submit", handlers.Session.SubmitExam)
		sessionAPI.POST("/signals", signalLimiter.Middleware(), handlers.Session.ReportSignal)

		sessionAPI.GET("/workspace/:question_id", handlers.Session.GetWorkspace)
		sessionAPI.PUT("/workspace/:question_id", handlers.Session.SaveWorkspace)
		sessionAPI.POST("/workspace/:question_id/language", handlers.Session.SwitchLanguage)

		sessionAPI.POST("/questions/:question_id/run", handlers.Session.RunCode)
		sessionAPI.POST("/questions/:question_id/run-custom", handlers.Session.RunCodeCustom)
		sessionAPI.POST("/questions/:question_id/submit", handlers.Session.SubmitAnswer)
	}

	// ─── WebSocket Group (WS Auth) ─────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionWSAuth(tokens))
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	return router
}
