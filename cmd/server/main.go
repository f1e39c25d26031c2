package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lotware/prodimport/internal/auth"
	"github.com/lotware/prodimport/internal/config"
	"github.com/lotware/prodimport/internal/db"
	"github.com/lotware/prodimport/internal/export"
	"github.com/lotware/prodimport/internal/importer"
	"github.com/lotware/prodimport/internal/middleware"
	"github.com/lotware/prodimport/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB.URL(), "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	jobRepo := repository.NewImportJobRepository(conn)
	recordRepo := repository.NewRecordRepository(conn)

	// Create the import pipeline service
	service := importer.NewService(jobRepo, recordRepo, importer.Config{
		FailOnZeroValid: cfg.Import.FailOnZeroValid,
		Synchronous:     cfg.Import.Synchronous,
	})
	handler := importer.NewHTTPHandler(service)
	exportHandler := export.NewHTTPHandler(export.NewService(jobRepo))

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(corsHandler.Handler)
	router.Route("/api/jobs", func(r chi.Router) {
		r.Use(auth.TenantMiddleware)
		r.Mount("/", handler.Routes())
	})
	router.Route("/api/reports", func(r chi.Router) {
		r.Use(auth.TenantMiddleware)
		r.Mount("/", exportHandler.Routes())
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting import server on %s", cfg.Server.Addr)
		log.Printf("Job endpoint available at http://localhost%s/api/jobs", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
