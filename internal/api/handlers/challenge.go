package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playskrafl/backend/internal/challenge"
	"github.com/playskrafl/backend/internal/models"
)

const defaultRating = 1200

// CreateChallenge handles POST /challenge — queues an "anyone will do"
// challenge for the authenticated player. The rating is the caller's
// current ELO, supplied by the gateway from the stats service.
func CreateChallenge(svc *challenge.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString("player_id")

		var req struct {
			Duration int  `json:"duration"`
			Fairplay bool `json:"fairplay"`
			NewBag   bool `json:"newbag"`
			Manual   bool `json:"manual"`
			Rating   int  `json:"rating"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Rating < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rating"})
			return
		}
		if req.Rating == 0 {
			req.Rating = defaultRating
		}

		prefs := challenge.NormalizePrefs(models.ChallengePrefs{
			Duration: req.Duration,
			Fairplay: req.Fairplay,
			NewBag:   req.NewBag,
			Manual:   req.Manual,
		})

		err := svc.Request(c.Request.Context(), playerID, req.Rating, prefs)
		if errors.Is(err, challenge.ErrChallengeExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "You already have an open challenge"})
			return
		}
		if err != nil {
			log.Printf("[ERROR] CreateChallenge for %s: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue challenge"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":   "queued",
			"type_key": challenge.DeriveTypeKey(prefs),
		})
	}
}

// WithdrawChallenge handles DELETE /challenge. Withdrawing with nothing
// queued still returns 200.
func WithdrawChallenge(svc *challenge.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString("player_id")

		if err := svc.Withdraw(c.Request.Context(), playerID); err != nil {
			log.Printf("[ERROR] WithdrawChallenge for %s: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to withdraw challenge"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
	}
}

// ChallengeStatus handles GET /challenge/status
func ChallengeStatus(svc *challenge.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString("player_id")

		active, err := svc.ActiveRequest(c.Request.Context(), playerID)
		if err != nil {
			log.Printf("[ERROR] ChallengeStatus for %s: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check challenge status"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"active": active})
	}
}
