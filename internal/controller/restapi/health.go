package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const _healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type healthHandler struct {
	checks map[string]HealthCheck
}

// The service is ready only when every dependency (event bus, store)
// responds; until then orchestration keeps traffic away.
func (h *healthHandler) handle(ctx *fiber.Ctx) error {
	status := http.StatusOK
	result := make(map[string]string, len(h.checks))

	for name, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx.UserContext(), _healthCheckTimeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
		} else {
			result[name] = "ok"
		}
	}

	return ctx.Status(status).JSON(result)
}
