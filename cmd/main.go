package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openseva/seva-backend/internal/clients/cache"
	"github.com/openseva/seva-backend/internal/clients/faceid"
	"github.com/openseva/seva-backend/internal/db"
	"github.com/openseva/seva-backend/internal/handlers"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/middleware"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/server"
	"github.com/openseva/seva-backend/internal/services"
	"github.com/openseva/seva-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	faceWorkers := utils.GetEnvAsInt("FACE_WORKERS", 4, log)
	faceidBaseURL := utils.GetEnv("FACEID_BASE_URL", "http://localhost:9090", log)
	faceidAPIKey := os.Getenv("FACEID_API_KEY")
	faceidRetries := utils.GetEnvAsInt("FACEID_MAX_RETRIES", 2, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	participantRepo := repos.NewParticipantRepo(thePG, log)
	activityTypeRepo := repos.NewActivityTypeRepo(thePG, log)
	sessionRepo := repos.NewSessionRepo(thePG, log)
	photoRepo := repos.NewPhotoRepo(thePG, log)
	progressRepo := repos.NewProgressRepo(thePG, log)
	faceProfileRepo := repos.NewFaceProfileRepo(thePG, log)
	faceCheckRepo := repos.NewFaceCheckRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	rdb, err := cache.NewClient(log)
	if err != nil {
		log.Warn("Redis init failed, caching disabled", "error", err)
	}
	faceEngine, err := faceid.New(faceid.Options{
		BaseURL:    faceidBaseURL,
		APIKey:     faceidAPIKey,
		Timeout:    30 * time.Second,
		MaxRetries: faceidRetries,
	})
	if err != nil {
		log.Error("Could not init face engine client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	facePool := services.NewFacePool(log, faceWorkers, 0)
	defer facePool.Close()

	sessionService := services.NewSessionService(thePG, log, sessionRepo, photoRepo, activityTypeRepo, bucketService)
	pointsService := services.NewPointsService(log, sessionRepo, photoRepo, activityTypeRepo, progressRepo, participantRepo)
	faceService := services.NewFaceService(log, faceEngine, facePool, bucketService, faceProfileRepo, faceCheckRepo, sessionRepo, photoRepo, participantRepo)
	reviewService := services.NewAdminReviewService(thePG, log, sessionRepo, pointsService)
	catalogService := services.NewCatalogService(log, rdb, activityTypeRepo)

	// Handlers
	activityHandler := handlers.NewActivityHandler(sessionService, catalogService, bucketService)
	faceHandler := handlers.NewFaceHandler(faceService)
	adminHandler := handlers.NewAdminHandler(reviewService, catalogService)
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	var origins []string
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); raw != "" {
		origins = strings.Split(raw, ",")
	}

	router := server.NewRouter(server.RouterConfig{
		ActivityHandler: activityHandler,
		FaceHandler:     faceHandler,
		AdminHandler:    adminHandler,
		AuthMiddleware:  authMiddleware,
		AllowOrigins:    origins,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
