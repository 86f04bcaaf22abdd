package controller

import (
	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/pkg/serverutils"
	"volunteer-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IPaymentMethodController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Attach(ctx *fiber.Ctx) error
	Detach(ctx *fiber.Ctx) error
	SetPrimary(ctx *fiber.Ctx) error
	GetAddress(ctx *fiber.Ctx) error
	UpsertAddress(ctx *fiber.Ctx) error
}

type paymentMethodController struct {
	service service.IPaymentMethodService
}

func NewPaymentMethodController(service service.IPaymentMethodService) IPaymentMethodController {
	return &paymentMethodController{service: service}
}

func (c *paymentMethodController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/payment-methods", serverutils.JwtMiddleware)
	h.Get("/", c.List)
	h.Post("/", c.Attach)
	h.Delete("/:id", c.Detach)
	h.Post("/:id/primary", c.SetPrimary)

	a := r.Group("/billing-address", serverutils.JwtMiddleware)
	a.Get("/", c.GetAddress)
	a.Put("/", c.UpsertAddress)
}

func (c *paymentMethodController) List(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.List(ctx.Context(), orgId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Payment methods", res))
}

func (c *paymentMethodController) Attach(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.AttachPaymentMethodRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Attach(ctx.Context(), orgId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Payment method attached", res))
}

func (c *paymentMethodController) Detach(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	methodId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid payment method id")
	}

	if err := c.service.Detach(ctx.Context(), orgId, methodId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Payment method removed", nil))
}

func (c *paymentMethodController) SetPrimary(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	methodId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid payment method id")
	}

	if err := c.service.SetPrimary(ctx.Context(), orgId, methodId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Primary payment method updated", nil))
}

func (c *paymentMethodController) GetAddress(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.GetBillingAddress(ctx.Context(), orgId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Billing address", res))
}

func (c *paymentMethodController) UpsertAddress(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.BillingAddressRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpsertBillingAddress(ctx.Context(), orgId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Billing address saved", res))
}
