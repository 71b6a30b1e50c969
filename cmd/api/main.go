// main.go
package main

import (
	"log"
	"os"

	"github.com/cineo-ai/cineo-api/auth"
	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/cineo-ai/cineo-api/movies"
	"github.com/cineo-ai/cineo-api/webhooks"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type Server struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Router *gin.Engine
}

func NewServer() (*Server, error) {
	// Use the shared connection initializers
	db := platform.NewDBConnection()
	rdb := platform.NewRedisClient()

	if err := db.AutoMigrate(&models.User{}, &models.Session{}, &models.Movie{}, &models.Scene{}); err != nil {
		return nil, err
	}

	// Create Gin router with CORS middleware
	router := gin.Default()

	// Add database to context middleware
	router.Use(func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	})

	// Add CORS middleware for your frontend
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", os.Getenv("FRONTEND_URL"))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		DB:     db,
		Redis:  rdb,
		Router: router,
	}

	// Setup routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check (no auth required)
	s.Router.GET("/health", func(c *gin.Context) {
		// Check database connection
		sqlDB, err := s.DB.DB()
		if err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Create handlers. The API only plans scripts; media generation runs in
	// the worker, so only the script collaborator is wired here.
	collabs := collab.NewSetFromEnv()
	authHandler := auth.NewHandler(s.DB)
	webhookHandler := webhooks.NewHandler(s.DB)
	movieHandler := movies.NewHandler(s.DB, s.Redis, collabs.Script)

	// Public routes
	// Root route - no auth needed
	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Cineo API v1"})
	})

	// Webhook routes (public - no auth, but signature verified in handler)
	webhookRoutes := s.Router.Group("/webhooks")
	{
		webhookRoutes.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	// Auth routes (public - no auth middleware)
	authRoutes := s.Router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)

		// Protected auth route - requires auth middleware
		authRoutes.GET("/me", auth.AuthMiddleware(), authHandler.GetCurrentUser)
	}

	// Protected routes that require authentication
	protected := s.Router.Group("/api")
	protected.Use(auth.AuthMiddleware())
	{
		movieRoutes := protected.Group("/movies")
		{
			movieRoutes.POST("", movieHandler.CreateMovie)
			movieRoutes.GET("", movieHandler.GetUserMovies)
			movieRoutes.GET("/:id", movieHandler.GetMovie)
			movieRoutes.GET("/:id/scenes", movieHandler.GetMovieScenes)
			movieRoutes.GET("/:id/events", movieHandler.StreamEvents)
			movieRoutes.POST("/:id/finalize", movieHandler.FinalizeMovie)
			movieRoutes.POST("/:id/poster", movieHandler.RegeneratePoster)
			movieRoutes.POST("/:id/trailer", movieHandler.CreateTrailer)
			movieRoutes.POST("/:id/cancel", movieHandler.CancelMovie)
		}

		sceneRoutes := protected.Group("/scenes")
		{
			sceneRoutes.POST("/:id/update", movieHandler.UpdateScene)
		}

		protected.GET("/user/credits", movieHandler.GetCredits)
	}
}

func (s *Server) Run() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	return s.Router.Run(":" + port)
}

func main() {
	server, err := NewServer()
	if err != nil {
		log.Fatal("Failed to create server:", err)
	}

	if err := server.Run(); err != nil {
		log.Fatal("Failed to run server:", err)
	}
}
