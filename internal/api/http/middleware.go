package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/ratelimit"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// RateLimitedMessage is returned when a client exceeds its request budget.
const RateLimitedMessage = "Rate limit exceeded. Please try again later."

// MiddlewareConfig bundles dependencies of the global middleware chain.
type MiddlewareConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Limiter ratelimit.Limiter
	Timeout time.Duration
}

// RegisterMiddlewares attaches the global chain in order: request logging,
// panic recovery, request timeout and rate limiting. Authentication is
// attached per route group.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app.Use(observability.RequestLogger(logger, cfg.Metrics))
	app.Use(recoverMiddleware(logger))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	if cfg.Limiter != nil {
		app.Use(RateLimit(cfg.Limiter, logger, cfg.Metrics))
	}
}

// ErrorHandler renders every error returned through the chain as
// {"detail": message}. Server errors never expose their cause.
func ErrorHandler(internalMessage string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		domainErr := apperrors.ToDomainError(err)
		message := domainErr.Message
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError && internalMessage != "" {
			message = internalMessage
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"detail": message})
	}
}

// RateLimit rejects clients, keyed by source IP, that exceed the limiter's
// budget. A limiter failure admits the request.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientIP := c.IP()
		admitted, err := limiter.Admit(c.UserContext(), clientIP)
		if err != nil {
			logger.Warn("rate limiter unavailable, admitting request",
				zap.String("request_id", observability.RequestID(c)),
				zap.Error(err))
			return c.Next()
		}
		if !admitted {
			logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("request_id", observability.RequestID(c)))
			metrics.RecordRateLimited()
			return apperrors.NewRateLimited(RateLimitedMessage)
		}
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.String("request_id", observability.RequestID(c)),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}
