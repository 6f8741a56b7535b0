package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/pkg/logger"
)

// respondError writes err using the shared status mapping. Server-side
// failures are logged with their cause; the body only carries the public
// message.
func respondError(c *fiber.Ctx, action string, err error) error {
	status := apperrors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Failed to "+action,
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		logger.Debug("Request rejected",
			zap.String("action", action),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"message": apperrors.PublicMessage(err),
	})
}
