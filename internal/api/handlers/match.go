package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playskrafl/backend/internal/challenge"
	"github.com/playskrafl/backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// TriggerMatchCycle handles POST /internal/match/run — the fixed-interval
// trigger for deployments where an external scheduler (cron) drives the
// matcher instead of the in-process worker. The scheduler must guarantee a
// single active cycle at a time.
func TriggerMatchCycle(m *challenge.Matcher, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.MatchTriggerSecretHash == "" {
			if cfg.Environment == "production" {
				c.JSON(http.StatusForbidden, gin.H{"error": "Match trigger not configured"})
				return
			}
			// Development convenience: open trigger when no hash is set.
		} else {
			secret := c.GetHeader("X-Trigger-Secret")
			if err := bcrypt.CompareHashAndPassword([]byte(cfg.MatchTriggerSecretHash), []byte(secret)); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid trigger secret"})
				return
			}
		}

		if err := m.RunMatchCycle(c.Request.Context()); err != nil {
			log.Printf("[ERROR] TriggerMatchCycle: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Match cycle failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
