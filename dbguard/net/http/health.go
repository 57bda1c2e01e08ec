package http

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Health status values reported by the health endpoint.
const (
	StatusAvailable = "available"
	StatusDegraded  = "degraded"
)

// DependencyCheck names a single health predicate contributing to the
// overall endpoint status.
type DependencyCheck struct {
	Name        string
	HealthCheck func(ctx context.Context) bool
}

// HealthWithDependencies returns a handler that runs every check and reports
// 200 {"status":"available"} when all pass, or 503 {"status":"degraded"}
// with per-dependency detail otherwise. With no checks configured the
// endpoint always reports available.
func HealthWithDependencies(checks ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		overall := StatusAvailable
		dependencies := make(map[string]string, len(checks))

		for _, check := range checks {
			if check.HealthCheck == nil {
				continue
			}

			if check.HealthCheck(c.UserContext()) {
				dependencies[check.Name] = StatusAvailable

				continue
			}

			dependencies[check.Name] = StatusDegraded
			overall = StatusDegraded
		}

		body := fiber.Map{"status": overall}
		if len(dependencies) > 0 {
			body["dependencies"] = dependencies
		}

		statusCode := http.StatusOK
		if overall == StatusDegraded {
			statusCode = http.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(body)
	}
}
