// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nordbay-events/sponsorreg/internal/config"
	"github.com/nordbay-events/sponsorreg/internal/database"
	"github.com/nordbay-events/sponsorreg/internal/handler"
	"github.com/nordbay-events/sponsorreg/internal/ident"
	"github.com/nordbay-events/sponsorreg/internal/model"
	"github.com/nordbay-events/sponsorreg/internal/repository"
	"github.com/nordbay-events/sponsorreg/internal/resilient"
	"github.com/nordbay-events/sponsorreg/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	log.Println("✓ Connected to PostgreSQL")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	exec := resilient.New(resilient.Options{
		MaxRetries: cfg.DBMaxRetries,
		RetryDelay: cfg.DBRetryDelay,
		Timeout:    cfg.DBQueryTimeout,
		Wake:       database.WakeProbe(pool),
	})
	gen := ident.UUID{}
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool, gen)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, model.DefaultPlans, exec, gen)
	regHandler := handler.NewRegistrationHandler(regSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for the public wizard

	// Health
	r.Get("/health", handler.HealthCheck)

	// Public wizard API
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", regHandler.Catalog)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", regHandler.StartSession)
			r.Get("/{id}", regHandler.GetSession)
			r.Post("/{id}/plan", regHandler.SelectPlan)
			r.Post("/{id}/plan/toggle", regHandler.TogglePlanDate)
			r.Post("/{id}/supplemental/limit", regHandler.SetSupplementalLimit)
			r.Post("/{id}/supplemental/toggle", regHandler.ToggleSupplementalDate)
			r.Post("/{id}/submit", regHandler.Submit)
		})

		// Admin API: manual post-registration additions
		r.Route("/admin", func(r chi.Router) {
			r.Use(handler.AdminAuth(cfg.AdminJWTSecret))
			r.Get("/registrations/{id}", regHandler.GetRegistration)
			r.Get("/registrations/{id}/available-dates", regHandler.AvailableDates)
			r.Post("/registrations/{id}/dates", regHandler.AddManualDates)
		})
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
