package rest

import (
	"github.com/gofiber/fiber/v2"

	"sms-gateway-api/db"
)

// healthResponse is the /api/health aggregate shape.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Modem    string `json:"modem"`
	Queue    string `json:"queue"`
}

// HealthHandler reports overall readiness by combining the database
// ping, the status monitor's last modem health snapshot, and the
// sms_send queue's pause state.
func HealthHandler(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := healthResponse{Status: "healthy", Database: "up", Modem: "up", Queue: "running"}
		degraded := false

		if !db.Healthy(c.Context()) {
			resp.Database = "down"
			degraded = true
		}

		if status, ok := deps.Monitor.GetStatus(); !ok || !status.Healthy {
			resp.Modem = "down"
			degraded = true
		}

		paused, err := db.IsQueuePaused(db.QueueSMSSend)
		if err != nil {
			resp.Queue = "unknown"
			degraded = true
		} else if paused {
			resp.Queue = "paused"
			degraded = true
		}

		if degraded {
			resp.Status = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}
