package main

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/soundvault/backend/internal/client"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/db"
	"github.com/soundvault/backend/internal/handler"
	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/observability"
	"github.com/soundvault/backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Log.Level)

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.Warn().Err(err).Msg("sentry init failed")
	}
	defer observability.FlushSentry()

	ctx := context.Background()

	database, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.Close()

	hasher, err := service.NewPasswordHasher(service.DefaultArgon2idParams())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid password hasher params")
	}

	tokens, err := service.NewTokenService(cfg.Auth, cfg.Stream)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token config")
	}

	authService, err := service.NewAuthService(database, database, tokens, hasher, cfg.Auth, logger.Get())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid auth config")
	}
	if err := authService.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure auth schema")
	}

	if purged, err := database.DeleteExpiredRefreshTokens(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to purge expired refresh tokens")
	} else if purged > 0 {
		logger.Info().Int64("count", purged).Msg("purged expired refresh tokens")
	}

	storage := client.NewStorageClient(cfg.Storage)
	if !storage.IsConfigured() {
		logger.Warn().Msg("STORAGE_BASE_URL is not set, media streaming disabled")
	}

	mediaService := service.NewMediaService(database, storage, tokens, logger.Get())
	if err := mediaService.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure media schema")
	}

	authHandler := handler.NewAuthHandler(authService)
	mediaHandler := handler.NewMediaHandler(mediaService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())

	if origins := splitOrigins(cfg.CORS.AllowedOrigins); len(origins) > 0 {
		router.Use(handler.CORSMiddleware(origins, true))
	}

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", handler.AuthMiddleware(authService), authHandler.Me)
		}

		tracks := api.Group("/tracks", handler.AuthMiddleware(authService))
		{
			tracks.POST("", mediaHandler.CreateTrack)
			tracks.GET("", mediaHandler.ListTracks)
		}

		media := api.Group("/media")
		{
			media.GET("/stream-token/:id", handler.AuthMiddleware(authService), mediaHandler.StreamToken)
			media.GET("/stream/:id", handler.OptionalAuthMiddleware(authService), mediaHandler.Stream)
		}
	}

	logger.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
