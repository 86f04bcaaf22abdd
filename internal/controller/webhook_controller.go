package controller

import (
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Handle(ctx *fiber.Ctx) error
}

type webhookController struct {
	reconciler service.IReconcilerService
	log        logger.ILogger
}

func NewWebhookController(reconciler service.IReconcilerService, log logger.ILogger) IWebhookController {
	return &webhookController{reconciler: reconciler, log: log}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	// No auth middleware: the signature header is the authentication.
	r.Post("/webhook/gateway", c.Handle)
}

func (c *webhookController) Handle(ctx *fiber.Ctx) error {
	payload := ctx.Body()
	signature := ctx.Get("Stripe-Signature")

	err := c.reconciler.HandleWebhook(ctx.Context(), payload, signature)
	if err != nil {
		if appErr, ok := apperror.As(err); ok && appErr.GatewayKind == apperror.GatewayAuthFailed {
			c.log.Warn("webhook", "rejected delivery with bad signature", map[string]interface{}{"error": err.Error()})
			return ctx.SendStatus(fiber.StatusBadRequest)
		}
		c.log.Error("webhook", "failed to accept delivery", map[string]interface{}{"error": err.Error()})
		// 500 so the gateway retries the delivery.
		return ctx.SendStatus(fiber.StatusInternalServerError)
	}

	return ctx.SendStatus(fiber.StatusOK)
}
