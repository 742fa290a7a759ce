// api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pulsetrack/api/database"
	"pulsetrack/api/handlers"
	"pulsetrack/api/insights"
	"pulsetrack/api/jobs"
	"pulsetrack/api/middleware"
	"pulsetrack/api/store"
)

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	if err := database.EnsureSchema(dbClient.DB); err != nil {
		log.Fatalf("Failed to create database schema: %v", err)
	}

	// --- Initialize Stores ---
	userStore := store.NewUserStore(dbClient.DB)
	eventStore := store.NewEventStore(dbClient.DB)
	analyticsStore := store.NewAnalyticsStore(dbClient.DB)
	recStore := store.NewRecommendationStore(dbClient.DB)

	// --- Initialize Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore)
	trackHandlers := handlers.NewTrackHandlers(eventStore, analyticsStore)
	generator := insights.NewGenerator(analyticsStore, recStore)
	recHandlers := handlers.NewRecommendationHandlers(recStore, generator)

	// --- Daily snapshot job ---
	scheduler := jobs.NewSnapshotScheduler(analyticsStore, recStore)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start snapshot scheduler: %v", err)
	}
	defer scheduler.Stop()

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		// Authentication endpoints (no authentication required)
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Ingestion is open: the client SDK posts batches without credentials.
		api.POST("/track", trackHandlers.Ingest)

		// Protected routes (require a valid JWT token or X-API-KEY)
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/stats/summary", trackHandlers.Summary)

			protected.POST("/insights/generate", recHandlers.Generate)
			protected.GET("/recommendations", recHandlers.List)
			protected.PATCH("/recommendations/:id/status", recHandlers.UpdateStatus)
			protected.GET("/snapshots", recHandlers.Snapshots)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("PulseTrack API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
