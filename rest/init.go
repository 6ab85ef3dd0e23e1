package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"sms-gateway-api/ratelimit"
	"sms-gateway-api/worker"
)

// Deps bundles the handlers' runtime collaborators, constructed once in
// main and threaded through explicitly rather than kept as package
// globals.
type Deps struct {
	RateLimiter *ratelimit.Limiter
	Monitor     *worker.StatusMonitor
}

func Init(app *fiber.App, deps *Deps) {
	SetupSwagger(app)

	app.Get("/api/health", HealthHandler(deps))

	api := app.Group("/api/v1", AuthMiddleware(deps))
	api.Post("/messages", QueueSMSHandler)
	api.Get("/messages", ListMessagesHandler)
	api.Get("/messages/:id", GetMessageHandler)

	log.Info("REST API started")
}
