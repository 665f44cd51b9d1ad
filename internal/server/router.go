package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openseva/seva-backend/internal/handlers"
	"github.com/openseva/seva-backend/internal/middleware"
)

type RouterConfig struct {
	ActivityHandler *handlers.ActivityHandler
	FaceHandler     *handlers.FaceHandler
	AdminHandler    *handlers.AdminHandler
	AuthMiddleware  *middleware.AuthMiddleware
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Catalog
	api.GET("/activity-types", cfg.ActivityHandler.ListActivityTypes)
	api.POST("/activity-types/request", cfg.ActivityHandler.RequestActivityType)
	// Sessions
	api.POST("/sessions", cfg.ActivityHandler.CreateSession)
	api.GET("/sessions", cfg.ActivityHandler.ListSessions)
	api.GET("/sessions/:id", cfg.ActivityHandler.GetSession)
	api.POST("/sessions/:id/photos", cfg.ActivityHandler.UploadPhoto)
	api.POST("/sessions/:id/submit", cfg.ActivityHandler.SubmitSession)
	// Face
	api.POST("/face/enroll", cfg.FaceHandler.Enroll)
	api.POST("/sessions/:id/face-check", cfg.FaceHandler.VerifySession)

	// ===============
	// || Admin     ||
	// ===============
	admin := router.Group("/api/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireAdmin())
	admin.GET("/sessions", cfg.AdminHandler.ReviewQueue)
	admin.POST("/sessions/:id/approve", cfg.AdminHandler.ApproveSession)
	admin.POST("/sessions/:id/reject", cfg.AdminHandler.RejectSession)
	admin.POST("/activity-types/:id/approve", cfg.AdminHandler.ApproveActivityType)

	return router
}
