package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	discordclient "guardbackend/clients/discord"
	"guardbackend/config"
	"guardbackend/db"
	"guardbackend/handlers"
	"guardbackend/middleware"
	"guardbackend/services/protectionsettings"
	"guardbackend/services/punishqueue"
	"guardbackend/services/txmanager"
	"guardbackend/triggernotif"
	"guardbackend/usecases/protection"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize error alert middleware
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.AlertConfig.ErrorWebhookURL,
		Environment: cfg.Environment,
		AppName:     "guardbackend",
	})

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories and services with shared connection
	settingsRepo := db.NewPostgresProtectionSettingsRepository(dbConn, cfg.DatabaseSchema)
	txManager := txmanager.NewTransactionManager(dbConn)
	settingsService := protectionsettings.NewProtectionSettingsService(settingsRepo)

	// Shared Discord session for gateway events and enforcement calls
	session, err := discordgo.New("Bot " + cfg.DiscordConfig.BotToken)
	if err != nil {
		return err
	}
	discordClient := discordclient.NewDiscordClient(session)

	notifier := triggernotif.NewNotifier(cfg.AlertConfig.TriggerWebhookURL, cfg.Environment)

	// The queue is the single serialization point for all punishment writes
	queue := punishqueue.NewQueue(
		discordClient,
		notifier,
		cfg.ProtectionConfig.QueueCapacity,
		time.Duration(cfg.ProtectionConfig.EnforceIntervalSeconds)*time.Second,
	)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queue.Start(queueCtx)

	engine := protection.NewProtectionEngine(settingsService, discordClient, queue, txManager, notifier)

	eventsHandler := handlers.NewDiscordEventsHandler(session, engine, alertMiddleware)
	if err := eventsHandler.StartBot(); err != nil {
		return err
	}
	defer eventsHandler.StopBot()

	// Restore protection for every guild configured before this restart
	syncGuilds := alertMiddleware.WrapBackgroundTask("SyncGuildsFromStore", func() error {
		return engine.SyncGuildsFromStore(context.Background())
	})
	if err := syncGuilds(); err != nil {
		log.Printf("⚠️ Guild protection sync failed: %v", err)
	}

	// Create a new router
	router := mux.NewRouter()

	authMiddleware := middleware.NewAPIKeyAuthMiddleware(cfg.AdminAPIKey)
	statusHandler := handlers.NewStatusHandler(engine)
	statusHandler.SetupEndpoints(router, authMiddleware)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Printf("✅ Shutdown complete")
	return nil
}
