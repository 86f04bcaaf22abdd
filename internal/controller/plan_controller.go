package controller

import (
	"volunteer-scheduling-be/internal/pkg/serverutils"
	"volunteer-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPlanController interface {
	RegisterRoutes(r fiber.Router)
	GetPlans(ctx *fiber.Ctx) error
}

type planController struct {
	service service.IPlanService
}

func NewPlanController(service service.IPlanService) IPlanController {
	return &planController{service: service}
}

func (c *planController) RegisterRoutes(r fiber.Router) {
	// Public: the pricing page reads this without a session.
	r.Get("/plans", c.GetPlans)
}

func (c *planController) GetPlans(ctx *fiber.Ctx) error {
	res, err := c.service.GetPlans(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching plans", res))
}
