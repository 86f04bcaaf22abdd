package serverutils

import (
	"errors"

	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// kindStatus maps the billing error taxonomy onto HTTP statuses. Gateway
// failures surface as 502 except card-class declines, which are the caller's
// problem (402).
func kindStatus(appErr *apperror.Error) int {
	switch appErr.Kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindInvalidTransition:
		return fiber.StatusConflict
	case apperror.KindConcurrencyConflict:
		return fiber.StatusConflict
	case apperror.KindRetentionExpired:
		return fiber.StatusGone
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindGateway:
		switch appErr.GatewayKind {
		case apperror.GatewayCardDeclined, apperror.GatewayInsufficientFunds, apperror.GatewayExpiredCard:
			return fiber.StatusPaymentRequired
		default:
			return fiber.StatusBadGateway
		}
	}
	return fiber.StatusInternalServerError
}

// NewErrorHandler builds the app-level fiber error handler. Taxonomy errors
// return their user message; everything else is logged and masked as a 500.
func NewErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		if appErr, ok := apperror.As(err); ok {
			status := kindStatus(appErr)
			if status >= 500 {
				log.Error("http", "request failed", map[string]interface{}{
					"path":   ctx.Path(),
					"kind":   string(appErr.Kind),
					"detail": appErr.Detail,
					"error":  err.Error(),
				})
			}
			body := ErrorResponse(status, appErr.UserMessage)
			body.Kind = string(appErr.Kind)
			return ctx.Status(status).JSON(body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		log.Error("http", "unhandled error", map[string]interface{}{
			"path":  ctx.Path(),
			"error": err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
