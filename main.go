package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/radsadsoap/EchoWave/config"
	"github.com/radsadsoap/EchoWave/modules/activity"
	"github.com/radsadsoap/EchoWave/modules/api"
	"github.com/radsadsoap/EchoWave/modules/broadcast"
	"github.com/radsadsoap/EchoWave/modules/relay"
	"github.com/radsadsoap/EchoWave/modules/store"
)

func main() {
	log.Println("=== EchoWave relay - Fiber + EventBus ===")

	cfg := config.Load()

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.JetStreamDir),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	storeModule := store.NewModule(cfg, logger.WithModule("store"))
	relayModule := relay.NewModule(cfg.BcryptCost, logger.WithModule("relay"))
	broadcastModule := broadcast.NewModule(cfg.SendBufferSize, logger.WithModule("broadcast"))
	activityModule := activity.NewModule(logger.WithModule("activity"))
	apiModule := api.NewModule(api.Options{
		Addr:           ":" + cfg.Port,
		AllowedOrigins: cfg.CORSOrigins(),
		JWTSecret:      cfg.JWTSecret,
	}, logger.WithModule("api"))

	// The hub is not exposed via ServiceContainer, so it is injected by hand.
	relayModule.SetDeliverer(broadcastModule.GetHub())
	apiModule.SetHub(broadcastModule.GetHub())

	// Order: independent modules first, then modules with dependencies
	// - store: durable document store (ServiceProviderModule)
	// - relay: rooms, membership, routing (depends on store, emits events)
	// - broadcast: WebSocket hub
	// - activity: relay event consumer (ServiceProviderModule)
	// - api: Fiber HTTP/WebSocket server (depends on relay and activity)
	app.Register(storeModule)
	app.Register(relayModule)
	app.Register(broadcastModule)
	app.Register(activityModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Printf("  - Store driver: %s", cfg.StoreDriver)
	if cfg.RedisAddr != "" {
		log.Printf("  - Read cache: redis %s (ttl %s)", cfg.RedisAddr, cfg.CacheTTL)
	}
	log.Printf("  - Allowed origins: %s", cfg.CORSOrigins())
	if cfg.JWTSecret != "" {
		log.Println("  - Identity tokens: required (HS256)")
	}
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                     - Health check")
	log.Println("  GET    /api/v1/rooms               - List rooms")
	log.Println("  POST   /api/v1/rooms               - Create a room")
	log.Println("  GET    /api/v1/rooms/:id           - Get room details")
	log.Println("  DELETE /api/v1/rooms/:id           - Delete a room")
	log.Println("  GET    /api/v1/rooms/:id/history   - Message history")
	log.Println("  GET    /api/v1/rooms/:id/members   - Current members")
	log.Println("  GET    /api/v1/stats               - Activity counters")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Events: create_room, join_room, send_message, get_chat_history, leave_room")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
