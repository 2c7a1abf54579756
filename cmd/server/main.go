package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goenv "github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/filestore"
	"github.com/ahmedmirza994/whatsapp-sub001/infrastructure/web"
	"github.com/ahmedmirza994/whatsapp-sub001/internal"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
	"github.com/ahmedmirza994/whatsapp-sub001/repositories"
	"github.com/ahmedmirza994/whatsapp-sub001/runtime"
	"github.com/ahmedmirza994/whatsapp-sub001/runtime/workers"
	"github.com/ahmedmirza994/whatsapp-sub001/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := goenv.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge index + file store)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	files, err := filestore.NewLocalStore(config.FileStoragePath)
	if err != nil {
		return fmt.Errorf("file storage setup failed: %w", err)
	}

	// 3. Dispatch pipeline: supervisor, registry, bus, orchestrator
	monitor := observability.NewMonitor(log)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(observability.NewListenWorker(monitor, config.MetricInterval, log))

	registry := runtime.NewRegistry(config.DeliveryTimeout, monitor, log)
	bus := runtime.NewBus(config.BufferSize, monitor, log)

	// Evicted connections never run the handler cleanup path, so presence
	// updates for the addresses they vacated are published from here.
	registry.OnEvict(func(conn contract.Connection, vacated []domain.Address) {
		for _, addr := range vacated {
			if addr.Kind != domain.ConversationScope {
				continue
			}
			bus.Publish(event.UserStatusChanged{
				Conversation: addr.ID,
				UserID:       conn.Identity().UserID,
				Online:       false,
			})
		}
	})

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, bus, monitor,
		config.NumberOfDispatchers, config.BufferSize, charReplacement,
	)

	// 4. Repositories & Services
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	searchRepository := repositories.NewSearchRepository(indexWriter, log, config.SearchLimit)

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	userService := services.NewUserService(userRepository, tokens)
	conversationService := services.NewConversationService(conversationRepository, userRepository, bus)
	messageService := services.NewMessageService(messageRepository, searchRepository, conversationService, bus, log)

	gate := auth.NewGate(tokens, userService, monitor, log)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 7. HTTP Server Setup
	router := web.NewRouter(web.RouterConfig{
		Gate:          gate,
		Users:         web.NewUserHandler(userService, files, log),
		Conversations: web.NewConversationHandler(conversationService),
		Messages:      web.NewMessageHandler(messageService),
		Sockets: web.NewWebSocketHandler(
			registry, bus, conversationService, monitor,
			config.ConnectionBufferSize, log,
		),
		AllowedOrigins: config.Origins(),
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
			stats := monitor.Snapshot()
			return map[string]any{
				"events_published":  stats.EventsPublished,
				"events_dropped":    stats.EventsDropped,
				"events_discarded":  stats.EventsDiscarded,
				"deliveries":        stats.Deliveries,
				"delivery_failures": stats.DeliveryFailures,
				"auth_failures":     stats.AuthFailures,
				"open_connections":  stats.OpenConnections,
				"rss_mb":            stats.RSSBytes / 1024 / 1024,
			}
		})
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown was not clean", "error", err)
	}
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
