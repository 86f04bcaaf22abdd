package contract

import (
	"context"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Update(ctx context.Context, sub *entity.Subscription) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)

	// FindByOrgForUpdate acquires the per-org row lock (SELECT ... FOR UPDATE
	// NOWAIT). Lock contention surfaces as a ConcurrencyConflict; the caller
	// retries once. Must run inside a unit-of-work transaction.
	FindByOrgForUpdate(ctx context.Context, orgId uuid.UUID) (*entity.Subscription, error)

	// Plan catalog
	CreatePlan(ctx context.Context, plan *entity.Plan) error
	UpdatePlan(ctx context.Context, plan *entity.Plan) error
	FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error)
	FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error)
	FindPlanByTier(ctx context.Context, tier entity.PlanTier) (*entity.Plan, error)
}
