package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"

	"studioAPI/handlers"
	"studioAPI/internal/composer"
	"studioAPI/internal/config"
	"studioAPI/internal/workers"
	"studioAPI/middleware"
	"studioAPI/services"
)

var (
	cfg           config.Config
	dbPool        *pgxpool.Pool
	localProjects *services.LocalProjectService
	cloudProjects *services.CloudProjectService
	imageService  *services.ImageService
	exportService *services.ExportService
	editorManager *services.EditorManager
	rateLimiter   *middleware.RateLimiter
)

func init() {
	cfg = config.Load()

	var err error
	localProjects, err = services.OpenLocalProjectService(cfg.SQLitePath)
	if err != nil {
		log.Fatal("Failed to open local project store:", err)
	}
	log.Printf("Local gallery at %s", cfg.SQLitePath)

	if cfg.CloudEnabled() {
		if cfg.ClerkSecretKey == "" {
			log.Fatal("CLERK_SECRET_KEY environment variable is not set")
		}
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to parse database URL:", err)
		}

		poolConfig.MaxConns = 25
		poolConfig.MinConns = 5
		poolConfig.MaxConnLifetime = time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute
		poolConfig.HealthCheckPeriod = time.Minute

		dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			log.Fatal("Failed to create connection pool:", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Fatal("Failed to ping database:", err)
		}

		cloudProjects = services.NewCloudProjectService(dbPool)
		if err := cloudProjects.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		log.Println("Successfully connected to PostgreSQL, cloud projects enabled")
	} else {
		log.Println("DATABASE_URL not set, cloud projects disabled")
	}

	imageService = services.NewImageService(nil, services.WithBaseURL(cfg.PublicBaseURL))
	if cfg.PublicBaseURL == "" {
		log.Println("PUBLIC_BASE_URL not set, root-relative images will be refused")
	}

	var renderer services.Renderer
	if cfg.RendererURL != "" {
		renderer = services.NewRemoteRenderer(cfg.RendererURL, nil)
	} else {
		log.Println("RENDERER_URL not set, image exports disabled")
	}
	exportService = services.NewExportService(renderer, services.NewFontCache(nil, cfg.FontCSSURLs))

	editorManager = services.NewEditorManager(localProjects, imageService,
		composer.WithDelays(cfg.HistoryDebounce, cfg.AutosaveDebounce),
	)
	rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing project stores...")
		if dbPool != nil {
			dbPool.Close()
		}
		localProjects.Close()
	}()

	var cloud handlers.CloudProjects
	if cloudProjects != nil {
		cloud = cloudProjects
	}

	r := handlers.NewRouter(handlers.RouterConfig{
		Sessions: handlers.NewSessionHandler(editorManager, exportService, localProjects),
		Projects: handlers.NewProjectHandler(localProjects, cloud, editorManager),
		Catalog:  handlers.NewCatalogHandler(),
		Limiter:  rateLimiter,
		Health: func(ctx context.Context) error {
			if dbPool != nil {
				return dbPool.Ping(ctx)
			}
			return nil
		},
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workers.StartSessionReaper(workerCtx, editorManager, time.Minute, cfg.SessionIdleTimeout)
	workers.Every(workerCtx, time.Minute, func() { rateLimiter.Cleanup(3 * time.Minute) })

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length", "Content-Disposition", "X-Export-Skipped"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	// WriteTimeout leaves room for batch exports, which render every format
	// before answering.
	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stopWorkers()
	editorManager.Shutdown()
	log.Println("Server shutdown complete")
}
