package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playskrafl/backend/internal/api"
	"github.com/playskrafl/backend/internal/challenge"
	"github.com/playskrafl/backend/internal/config"
	"github.com/playskrafl/backend/internal/database"
	"github.com/playskrafl/backend/internal/game"
	"github.com/playskrafl/backend/internal/middleware"
	"github.com/playskrafl/backend/internal/migrations"
	"github.com/playskrafl/backend/internal/redis"
	"github.com/playskrafl/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	maxAge := time.Duration(cfg.ChallengeMaxAgeSeconds) * time.Second

	// Wire the matchmaking core: authoritative store, presence cache,
	// advisory counters, game launcher.
	store := challenge.NewPostgresStore(db)
	reqCache := challenge.NewRedisRequestCache(rdb, maxAge)
	counters := challenge.NewCounterCache(challenge.NewRedisCounterStore(rdb), store, cfg.CounterCASRetries)
	launcher := game.NewSessionLauncher(db, rdb, cfg)

	svc := challenge.NewService(store, reqCache, counters)
	matcher := challenge.NewMatcher(store, reqCache, counters, launcher, maxAge, cfg.MatchBatchLimit)

	// Wire Redis and start the match notification subscriber
	ws.SetRedisClient(rdb)
	ws.StartMatchEventSubscriber(context.Background())

	// Start the match worker. Deploy exactly one instance of it; with an
	// external scheduler, disable this and hit /internal/match/run instead.
	if os.Getenv("DISABLE_MATCH_WORKER") != "true" {
		go challenge.StartMatchWorker(context.Background(), matcher, time.Duration(cfg.MatchIntervalSeconds)*time.Second)
	}

	// Start the counter recompute worker (heals CAS skew and seeds counts)
	go challenge.StartCounterWorker(context.Background(), counters, time.Duration(cfg.CounterRecomputeSeconds)*time.Second)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg))

	// Initialize API handlers
	api.SetupRoutes(router, svc, matcher, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlaySkrafl server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
