package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// ServiceInfo describes the running service for /, /health and /info.
type ServiceInfo struct {
	Name        string
	Version     string
	Debug       bool
	DatabaseURL string
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	info     ServiceInfo
	postgres Pinger
	redis    Pinger
	logger   *zap.Logger
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(info ServiceInfo, postgres, redis Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{info: info, postgres: postgres, redis: redis, logger: logger}
}

// Root serves the welcome document.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Welcome to " + h.info.Name,
		"version": h.info.Version,
		"docs":    "/docs",
		"redoc":   "/redoc",
	})
}

// Health reports that the process is serving.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": h.info.Name,
	})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.info.Name,
		"version": h.info.Version,
	})
}

// Ready reports service readiness by checking dependencies. Dependencies that
// are not configured are reported as disabled and do not fail the probe.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true
	for name, dep := range map[string]Pinger{"postgres": h.postgres, "redis": h.redis} {
		switch {
		case dep == nil || !dep.Enabled():
			depStatus[name] = "disabled"
		default:
			if err := dep.Ping(ctx); err != nil {
				h.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				depStatus[name] = "unavailable"
				ready = false
			} else {
				depStatus[name] = "ok"
			}
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"status":       "unavailable",
		"detail":       "one or more dependencies unavailable",
		"dependencies": depStatus,
	})
}

// Info exposes build information. Only the scheme of the database URL is shown.
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":         h.info.Name,
		"version":      h.info.Version,
		"debug":        h.info.Debug,
		"database_url": MaskDatabaseURL(h.info.DatabaseURL),
	})
}

// MaskDatabaseURL keeps the scheme of dsn and hides everything after it.
// An empty dsn means the in-memory store is in use.
func MaskDatabaseURL(dsn string) string {
	if dsn == "" {
		return "memory://"
	}
	scheme, _, found := strings.Cut(dsn, "://")
	if !found {
		return "***"
	}
	return scheme + "://***"
}
