package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"sms-gateway-api/apikey"
	"sms-gateway-api/db"
	"sms-gateway-api/modem"
	"sms-gateway-api/queue"
	"sms-gateway-api/ratelimit"
	"sms-gateway-api/rest"
	"sms-gateway-api/worker"
)

const (
	defaultModemBaseURL          = "http://192.168.8.1"
	defaultModemPollIntervalMS   = 30000
	defaultHealthCheckIntervalMS = 60000
)

// durationMSFromEnv reads key as a millisecond count, falling back to
// defaultMS when unset or unparsable.
func durationMSFromEnv(key string, defaultMS int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultMS) * time.Millisecond
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("main: invalid %s %q, using default %dms", key, raw, defaultMS)
		return time.Duration(defaultMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func main() {
	if err := db.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	version, err := db.GetCurrentVersion()
	if err != nil {
		log.Printf("Warning: Failed to get current schema version: %v", err)
	} else {
		log.Printf("Database schema version: %d", version)
	}

	baseURL := os.Getenv("MODEM_BASE_URL")
	if baseURL == "" {
		baseURL = defaultModemBaseURL
	}
	modemClient, err := modem.New(modem.Config{BaseURL: baseURL})
	if err != nil {
		log.Fatalf("Failed to construct modem client: %v", err)
	}

	if bootstrapName := os.Getenv("BOOTSTRAP_API_KEY_NAME"); bootstrapName != "" {
		created, err := apikey.Create(bootstrapName, nil)
		if err != nil {
			log.Printf("Warning: failed to bootstrap api key %q: %v", bootstrapName, err)
		} else {
			log.Printf("Bootstrapped api key %q (id=%s): %s", bootstrapName, created.ID, created.Secret)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := queue.New(modemClient)
	dispatcher.Run(ctx)

	pollInterval := durationMSFromEnv("MODEM_POLL_INTERVAL", defaultModemPollIntervalMS)
	inboundPoller := worker.NewInboundPoller(modemClient, pollInterval)
	go inboundPoller.Run(ctx)

	reconciler := worker.NewReconciler(modemClient)
	go reconciler.Run(ctx)

	healthCheckInterval := durationMSFromEnv("MODEM_HEALTH_CHECK_INTERVAL", defaultHealthCheckIntervalMS)
	statusMonitor := worker.NewStatusMonitor(modemClient, healthCheckInterval)
	go statusMonitor.Run(ctx)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-API-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	deps := &rest.Deps{
		RateLimiter: ratelimit.New(),
		Monitor:     statusMonitor,
	}
	rest.Init(app, deps)

	go func() {
		log.Println("Starting server on :8080")
		if err := app.Listen(":8080"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}
