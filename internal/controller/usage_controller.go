package controller

import (
	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/pkg/serverutils"
	"volunteer-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IUsageController interface {
	RegisterRoutes(r fiber.Router)
	GetUsage(ctx *fiber.Ctx) error
	CheckCanAdd(ctx *fiber.Ctx) error
	Increment(ctx *fiber.Ctx) error
	Decrement(ctx *fiber.Ctx) error
}

type usageController struct {
	service service.IUsageService
}

func NewUsageController(service service.IUsageService) IUsageController {
	return &usageController{service: service}
}

func (c *usageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/usage", serverutils.JwtMiddleware)
	h.Get("/", c.GetUsage)
	h.Get("/check", c.CheckCanAdd)
	h.Post("/increment", c.Increment)
	h.Post("/decrement", c.Decrement)
}

func (c *usageController) GetUsage(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.GetUsage(ctx.Context(), orgId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Usage metrics", res))
}

// Increment is called by the scheduling collaborator after it creates a
// counted resource; it fails when the plan limit is already reached.
func (c *usageController) Increment(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.UsageDeltaRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.service.Increment(ctx.Context(), orgId, entity.MetricType(req.MetricType)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Usage incremented", nil))
}

func (c *usageController) Decrement(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.UsageDeltaRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.service.Decrement(ctx.Context(), orgId, entity.MetricType(req.MetricType)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Usage decremented", nil))
}

func (c *usageController) CheckCanAdd(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	metric := entity.MetricType(ctx.Query("metric", string(entity.MetricVolunteers)))

	res, err := c.service.CheckCanAdd(ctx.Context(), orgId, metric)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Usage check", res))
}
