package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/playskrafl/backend/internal/api/handlers"
	"github.com/playskrafl/backend/internal/challenge"
	"github.com/playskrafl/backend/internal/config"
	"github.com/playskrafl/backend/internal/middleware"
	"github.com/playskrafl/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, svc *challenge.Service, matcher *challenge.Matcher, cfg *config.Config) {
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			// Aggressive no-cache for development
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Open-challenge endpoints (authenticated)
		ch := v1.Group("/challenge", middleware.RequireAuth(cfg))
		{
			ch.POST("", handlers.CreateChallenge(svc))
			ch.DELETE("", handlers.WithdrawChallenge(svc))
			ch.GET("/status", handlers.ChallengeStatus(svc))
			ch.GET("/ws", ws.HandleChallengeWS())
		}

		// Internal endpoints (external scheduler)
		internal := v1.Group("/internal")
		{
			internal.POST("/match/run", handlers.TriggerMatchCycle(matcher, cfg))
		}
	}
}
