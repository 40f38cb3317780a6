package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger writes one structured line per request. Errors from the
// chain are rendered through onError first so the logged status is the one
// the client sees. Place it after requestid so the id is available.
func RequestLogger(log *zap.Logger, onError fiber.ErrorHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := onError(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.Any("request_id", c.Locals("requestid")),
		}
		if actor := ActorFrom(c); actor.ID != "" {
			fields = append(fields, zap.String("actor_id", actor.ID))
		}
		if chainErr != nil {
			fields = append(fields, zap.NamedError("handler_error", chainErr))
		}
		log.Info("request", fields...)
		return nil
	}
}
