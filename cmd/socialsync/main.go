package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bizpulse/socialsync/internal/api"
	"github.com/bizpulse/socialsync/internal/auth/instagram"
	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/config"
	"github.com/bizpulse/socialsync/internal/db"
	"github.com/bizpulse/socialsync/internal/graph"
	"github.com/bizpulse/socialsync/internal/identity"
	"github.com/bizpulse/socialsync/internal/logging"
	"github.com/bizpulse/socialsync/internal/relay"
	syncpkg "github.com/bizpulse/socialsync/internal/sync"
	"github.com/bizpulse/socialsync/internal/version"
	"github.com/bizpulse/socialsync/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Graph client and domain services
	graphClient := graph.NewClient()
	tokenManager := token.NewManager(database, graphClient)
	identityCache := identity.NewCache(database, graphClient)
	orchestrator := syncpkg.NewOrchestrator(database, graphClient, tokenManager)
	replyRelay := relay.NewRelay(database, graphClient, tokenManager)
	webhookHandler := webhook.NewHandler(database, cfg)

	// Create router
	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// ============================================
	// Public Routes (No Auth Required)
	// ============================================

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok", "version": "` + version.Version + `"}`))
	})

	// OAuth flow
	r.Get("/auth/instagram/login", instagram.HandleLogin(cfg))
	r.Get("/auth/instagram/callback", instagram.HandleCallback(database, cfg, graphClient))

	// Webhook endpoint: GET is the provider's verification handshake, POST the
	// signed event delivery. Signature check replaces the API key here.
	r.Get("/webhooks/instagram", webhookHandler.HandleVerify)
	r.Post("/webhooks/instagram", webhookHandler.HandleEvent)

	// ============================================
	// Protected Routes (API Key Required)
	// ============================================

	r.Route("/api", func(r chi.Router) {
		r.Use(api.APIKeyAuth(database))

		// Sync
		r.Post("/sync", api.SyncHandler(orchestrator, database))
		r.Get("/sync/status", api.SyncStatusHandler(orchestrator, database))

		// Feed
		r.Get("/feed", api.FeedHandler(orchestrator, database))

		// Outbound replies
		r.Post("/reply", api.ReplyHandler(replyRelay, database))

		// Identity cache
		r.Post("/identities/refresh", api.IdentitiesRefreshHandler(identityCache, tokenManager, database))

		// Connection management
		r.Get("/connections", api.ConnectionsHandler(database))
		r.Post("/connections/{id}/disconnect", api.DisconnectHandler(tokenManager, database))

		// API Key management
		r.Get("/config/apikey", api.GetAPIKeyHandler(database))
		r.Post("/config/apikey/regenerate", api.RegenerateAPIKeyHandler(database))
	})

	log.Printf("🚀 SocialSync %s starting on http://%s", version.Version, cfg.ListenAddr)
	log.Printf("🔗 Connect an account: %s/auth/instagram/login?account_id=<id>", cfg.BaseURL)
	log.Printf("📨 Webhook endpoint: %s", cfg.WebhookURL())

	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
