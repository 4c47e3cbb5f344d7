package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
)

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the state of the service dependencies
type HealthHandler struct {
	baseHandler
	version string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a health handler running checks by name
func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(),
		version:     version,
		checks:      checks,
	}
}

// Health checks the database and redis
// @Summary Health check
// @Tags Ops
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Failure 503 {object} dto.APIResponse "A dependency is down"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	status := make(fiber.Map, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			status[name] = err.Error()
			continue
		}
		status[name] = "ok"
	}

	data := fiber.Map{
		"status":    "ok",
		"checks":    status,
		"timestamp": utils.UTCNow().Unix(),
		"version":   h.version,
		"service":   "viewiq-api",
	}
	if !healthy {
		data["status"] = "degraded"
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service is unhealthy", "SERVICE_UNAVAILABLE", data)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", data)
}
