package controller

import (
	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/pkg/serverutils"
	"volunteer-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISubscriptionController interface {
	RegisterRoutes(r fiber.Router)
	Get(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	StartTrial(ctx *fiber.Ctx) error
	Upgrade(ctx *fiber.Ctx) error
	Downgrade(ctx *fiber.Ctx) error
	CancelDowngrade(ctx *fiber.Ctx) error
	SwitchCycle(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Reactivate(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
}

type subscriptionController struct {
	service service.ISubscriptionService
}

func NewSubscriptionController(service service.ISubscriptionService) ISubscriptionController {
	return &subscriptionController{service: service}
}

func (c *subscriptionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/subscription", serverutils.JwtMiddleware)
	h.Get("/", c.Get)
	h.Post("/", c.Create)
	h.Post("/trial", c.StartTrial)
	h.Post("/upgrade", c.Upgrade)
	h.Post("/downgrade", c.Downgrade)
	h.Delete("/downgrade", c.CancelDowngrade)
	h.Post("/cycle", c.SwitchCycle)
	h.Post("/cancel", c.Cancel)
	h.Post("/reactivate", c.Reactivate)
	h.Get("/history", c.GetHistory)
}

// orgIdFromLocals reads the org claim the JWT middleware stashed.
func orgIdFromLocals(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := ctx.Locals("org_id").(string)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Missing organization claim")
	}
	orgId, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid organization claim")
	}
	return orgId, nil
}

func actorIdFromLocals(ctx *fiber.Ctx) *uuid.UUID {
	raw, ok := ctx.Locals("user_id").(string)
	if !ok {
		return nil
	}
	userId, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &userId
}

func (c *subscriptionController) Get(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.GetSubscription(ctx.Context(), orgId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription", res))
}

// Create provisions the free subscription for a freshly registered
// organization. Called once by the onboarding flow.
func (c *subscriptionController) Create(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.CreateForOrganization(ctx.Context(), orgId)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Subscription created", res))
}

func (c *subscriptionController) StartTrial(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.StartTrialRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.StartTrial(ctx.Context(), orgId, actorIdFromLocals(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Trial started", res))
}

func (c *subscriptionController) Upgrade(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.UpgradeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Upgrade(ctx.Context(), orgId, actorIdFromLocals(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription upgraded", res))
}

func (c *subscriptionController) Downgrade(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.DowngradeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Downgrade(ctx.Context(), orgId, actorIdFromLocals(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Downgrade scheduled", res))
}

func (c *subscriptionController) CancelDowngrade(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.CancelDowngrade(ctx.Context(), orgId, actorIdFromLocals(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Downgrade cancelled", res))
}

func (c *subscriptionController) SwitchCycle(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.SwitchCycleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SwitchBillingCycle(ctx.Context(), orgId, actorIdFromLocals(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Billing cycle switched", res))
}

func (c *subscriptionController) Cancel(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	var req dto.CancelRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			return err
		}
	}

	res, err := c.service.Cancel(ctx.Context(), orgId, actorIdFromLocals(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription cancelled", res))
}

func (c *subscriptionController) Reactivate(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Reactivate(ctx.Context(), orgId, actorIdFromLocals(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription reactivated", res))
}

func (c *subscriptionController) GetHistory(ctx *fiber.Ctx) error {
	orgId, err := orgIdFromLocals(ctx)
	if err != nil {
		return err
	}
	page := ctx.QueryInt("page", 1)
	pageSize := ctx.QueryInt("page_size", 20)

	res, err := c.service.GetHistory(ctx.Context(), orgId, page, pageSize)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Billing history", res))
}
