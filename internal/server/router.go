package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/visionvault-backend/internal/handlers"
	"github.com/yungbote/visionvault-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AllowedOrigins     string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	VisionHandler      *handlers.VisionHandler
	HealthcheckHandler *handlers.HealthcheckHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := []string{"http://localhost:3000", "http://localhost:5174"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Vision
	vision := protected.Group("/api/vision")
	vision.POST("/detections", cfg.VisionHandler.DetectObjects)
	vision.POST("/descriptions", cfg.VisionHandler.DescribeImage)
	vision.POST("/faces", cfg.VisionHandler.RecognizeFaces)
	vision.GET("/history", cfg.VisionHandler.GetHistory)
	vision.GET("/analyses/:id", cfg.VisionHandler.GetAnalysis)
	vision.GET("/sessions/:id", cfg.VisionHandler.GetSession)

	return router
}
