package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shuttlepay/internal/handler"
	"shuttlepay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler *handler.SessionHandler
	CodeHandler    *handler.CodeHandler
	PaymentHandler *handler.PaymentHandler
	TopupHandler   *handler.TopupHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Session routes.
		session := v1.Group("/session")
		{
			session.POST("/register", deps.SessionHandler.Register)
			session.POST("/login", deps.SessionHandler.Login)
			session.POST("/logout", deps.SessionHandler.Logout)
			session.GET("", deps.SessionHandler.Get)
			session.PATCH("/profile", deps.SessionHandler.UpdateProfile)
			session.POST("/refresh", deps.SessionHandler.Refresh)
		}

		// Driver code routes.
		codes := v1.Group("/codes")
		{
			codes.POST("", deps.CodeHandler.Generate)
		}

		// Proximity payment routes.
		payments := v1.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.Pay)
			payments.POST("/rescan", deps.PaymentHandler.Rescan)
			payments.GET("/:reference", deps.PaymentHandler.GetAttempt)
		}

		// Top-up routes.
		topups := v1.Group("/topups")
		{
			topups.POST("", deps.TopupHandler.Initialize)
			topups.GET("/return", deps.TopupHandler.HandleReturn)
			topups.POST("/:reference/retry", deps.TopupHandler.Retry)
		}
	}

	return router
}
