package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/account-service/pkg/util"
)

const tracerName = "github.com/spec-kit/account-service/internal/observability"

const requestIDKey = "request_id"

// RequestLogger logs every request and its outcome, records request metrics and
// opens a server span. Errors from the rest of the chain are logged and
// returned unchanged so the application error handler still renders them.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := otel.Tracer(tracerName)

	return func(c *fiber.Ctx) error {
		start := time.Now()
		// Copies: fiber reuses the request buffers once the handler returns,
		// while spans and metric labels outlive it.
		method := utils.CopyString(c.Method())
		path := utils.CopyString(c.Path())

		requestID := utils.CopyString(c.Get(fiber.HeaderXRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, requestID)
		c.Locals(requestIDKey, requestID)

		// Named by method only until the route template is known.
		ctx, span := tracer.Start(c.UserContext(), method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", method),
				attribute.String("url.path", path),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID))

		err := c.Next()
		elapsed := time.Since(start)
		route := routePattern(c, path)
		span.SetName(method + " " + route)

		if err != nil {
			domainErr := apperrors.ToDomainError(err)
			fields := []zap.Field{
				zap.String("method", method),
				zap.String("path", path),
				zap.String("request_id", requestID),
				zap.Int("status", domainErr.HTTPStatus),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			}
			if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
				logger.Error("request failed", fields...)
				span.SetStatus(codes.Error, domainErr.Message)
			} else {
				logger.Warn("request rejected", fields...)
			}
			span.RecordError(err)
			span.SetAttributes(attribute.Int("http.response.status_code", domainErr.HTTPStatus))
			metrics.RecordError(route, method, domainErr.Code)
			metrics.RecordRequest(route, method, domainErr.HTTPStatus, elapsed)
			return err
		}

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		logger.Info("response",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Duration("duration", elapsed))
		metrics.RecordRequest(route, method, status, elapsed)
		return nil
	}
}

// RequestID returns the id assigned to the current request by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// routePattern returns the matched route template so metric labels stay
// bounded. Requests that matched no handler only reached the global
// middlewares, whose route path is "/".
func routePattern(c *fiber.Ctx, path string) string {
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return r.Path
	}
	if path == "/" {
		return path
	}
	return "unmatched"
}
