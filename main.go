package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"parley/chat-service/config"
	"parley/chat-service/db"
	"parley/chat-service/handlers"
	"parley/chat-service/middleware"
	"parley/chat-service/realtime"
	"parley/chat-service/services"
	"parley/chat-service/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger(cfg.Environment)

	// Connect to database
	database, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	// Connect to Redis; the presence mirror is optional, so a missing Redis
	// degrades to in-memory presence only.
	var mirror realtime.PresenceMirror
	redisClient, err := services.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, presence mirror disabled", "error", err)
	} else {
		defer redisClient.Close()
		mirror = realtime.NewRedisPresenceMirror(redisClient, cfg.PresenceTTL)
	}

	// Initialize services
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	users := services.NewUserService(database)
	conversations := services.NewConversationService(database)

	// Initialize realtime hub
	hub := realtime.NewHub(conversations, mirror, logger, realtime.Options{
		TypingTimeout:      cfg.TypingTimeout,
		SendBufferSize:     cfg.SendBufferSize,
		TypingEchoToSender: cfg.TypingEchoToSender,
		MirrorRefresh:      cfg.PresenceTTL / 2,
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(users, tokens, logger)
	conversationHandler := handlers.NewConversationHandler(conversations, users, hub, logger)
	presenceHandler := handlers.NewPresenceHandler(hub.Registry())
	wsHandler := handlers.NewWebSocketHandler(hub, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// WebSocket endpoint, authenticated before upgrade
	router.GET("/ws", middleware.Auth(tokens), wsHandler.Serve)

	// API routes
	api := router.Group("/api")
	{
		api.POST("/users/register", userHandler.Register)
		api.POST("/users/login", userHandler.Login)

		authed := api.Group("")
		authed.Use(middleware.Auth(tokens))
		{
			authed.GET("/users/me", userHandler.Me)
			authed.GET("/users", userHandler.List)
			authed.GET("/users/search", userHandler.Search)
			authed.GET("/users/:id", userHandler.Get)

			authed.GET("/conversations", conversationHandler.List)
			authed.POST("/conversations", conversationHandler.Create)
			authed.GET("/conversations/:id/messages", conversationHandler.Messages)
			authed.POST("/conversations/:id/messages", conversationHandler.SendMessage)

			authed.GET("/presence/online", presenceHandler.Online)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting chat service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopHub()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
