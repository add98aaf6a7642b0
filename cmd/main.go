package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/visionvault-backend/internal/db"
	"github.com/yungbote/visionvault-backend/internal/handlers"
	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/middleware"
	"github.com/yungbote/visionvault-backend/internal/observability"
	"github.com/yungbote/visionvault-backend/internal/repos"
	"github.com/yungbote/visionvault-backend/internal/server"
	"github.com/yungbote/visionvault-backend/internal/services"
	"github.com/yungbote/visionvault-backend/internal/utils"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "visionvault-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

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
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	analysisRepo := repos.NewAnalysisRepo(thePG, log)
	detectionRepo := repos.NewObjectDetectionRepo(thePG, log)
	descriptionRepo := repos.NewImageDescriptionRepo(thePG, log)
	faceRepo := repos.NewFaceRecognitionRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(
		thePG, log, userRepo, userTokenRepo,
		jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second,
	)
	storeService := services.NewAnalysisStoreService(thePG, log, analysisRepo, detectionRepo, descriptionRepo, faceRepo)
	historyService := services.NewAnalysisHistoryService(thePG, log, analysisRepo, detectionRepo, descriptionRepo, faceRepo)

	visionProvider, err := services.NewVisionProviderService(ctx, log)
	if err != nil {
		log.Error("Could not init VisionProviderService", "error", err)
		os.Exit(1)
	}
	defer visionProvider.Close()

	describer, err := services.NewDescribeProviderService(log)
	if err != nil {
		log.Error("Could not init DescribeProviderService", "error", err)
		os.Exit(1)
	}

	// The dedicated face API carries identities; without it the GCP
	// provider still detects faces, just anonymously.
	var recognizer services.FaceRecognizer = visionProvider
	if os.Getenv("FACE_API_URL") != "" {
		faceClient, fErr := services.NewFaceAPIClient(log)
		if fErr != nil {
			log.Error("Could not init FaceAPIClient", "error", fErr)
			os.Exit(1)
		}
		recognizer = faceClient
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	visionHandler := handlers.NewVisionHandler(log, storeService, historyService, visionProvider, describer, recognizer)
	healthcheckHandler := handlers.NewHealthcheckHandler(thePG)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        "visionvault-backend",
		AllowedOrigins:     utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		VisionHandler:      visionHandler,
		HealthcheckHandler: healthcheckHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if otelShutdown != nil {
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Warn("Otel shutdown failed", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
