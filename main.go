package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/filelinkpro/filelink/internal/config"
	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/handlers"
	mw "github.com/filelinkpro/filelink/internal/middleware"
	"github.com/filelinkpro/filelink/internal/services"
	"github.com/filelinkpro/filelink/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Initialize storage backend
	store, err := newStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize services
	userService := services.NewUserService()
	linkService := services.NewLinkService(store, cfg.EnableAnalytics)
	fileService := services.NewFileService(store, linkService, cfg.MaxFileSize)
	websiteService := services.NewWebsiteService(store, cfg.MaxFileSize, cfg.FreeMaxSiteFiles, cfg.FreeMaxStorage)
	renderer := services.NewSiteRenderer(store)

	sessions := mw.NewSessions(cfg.JWTSecret, cfg.SessionLifetimeDays, userService)

	// Start background cleanup job
	startCleanupJob(linkService)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(fileService, linkService, userService, cfg.MaxUploadSize)
	authHandler := handlers.NewAuthHandler(userService, sessions)
	websiteHandler := handlers.NewWebsiteHandler(websiteService, cfg.MaxUploadSize)
	publicHandler := handlers.NewPublicHandler(linkService, fileService, websiteService, renderer)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	// Account routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireUser)
			r.Get("/me", authHandler.Me)
			r.Get("/dashboard", authHandler.Dashboard)
			r.Post("/recalculate-storage", authHandler.RecalculateStorage)
		})
	})

	// Website management routes (owner-only)
	r.Route("/website", func(r chi.Router) {
		r.Use(sessions.RequireUser)

		r.Post("/", websiteHandler.Create)
		r.Get("/", websiteHandler.List)
		r.Post("/{id}/upload", websiteHandler.Upload)
		r.Post("/{id}/publish", websiteHandler.Publish)
		r.Post("/{id}/fix-index", websiteHandler.FixIndex)
		r.Post("/{id}/cleanup-duplicates", websiteHandler.CleanupDuplicates)
		r.Delete("/{id}", websiteHandler.Delete)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)
		r.Get("/stats", apiHandler.Stats)

		r.Group(func(r chi.Router) {
			r.Use(sessions.WithUser)
			r.Post("/upload", apiHandler.Upload)
			r.Get("/links/{slug}", apiHandler.LinkInfo)
		})

		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireUser)
			r.Delete("/links/{slug}", apiHandler.DeleteLink)
			r.Get("/links/{slug}/analytics", apiHandler.LinkAnalytics)
		})
	})

	// Public sharing routes
	r.Get("/r/{slug}", publicHandler.SharePage)
	r.Post("/r/{slug}", publicHandler.SharePage)
	r.Get("/r/{slug}/download", publicHandler.Download)

	// Published website routes
	r.Get("/site/{slug}", publicHandler.ViewSite)
	r.Post("/site/{slug}", publicHandler.ViewSite)
	r.Get("/site/{slug}/assets/*", publicHandler.ServeAsset)

	// Start server
	log.Printf("Starting server on port %s", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// newStorage selects the storage backend from configuration.
func newStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
	}
	return storage.NewLocalStorage(cfg.UploadDir)
}

// startCleanupJob runs a background job to clean up expired links
func startCleanupJob(links *services.LinkService) {
	// Run cleanup every hour
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		// Run immediately on startup
		if err := links.CleanupExpired(); err != nil {
			log.Printf("Cleanup error: %v", err)
		} else {
			log.Println("Initial cleanup completed")
		}

		// Then run periodically
		for range ticker.C {
			if err := links.CleanupExpired(); err != nil {
				log.Printf("Cleanup error: %v", err)
			} else {
				log.Println("Cleanup completed")
			}
		}
	}()
}
