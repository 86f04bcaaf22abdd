package service

import (
	"context"
	"time"

	"volunteer-scheduling-be/internal/billing"
	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"

	"github.com/patrickmn/go-cache"
)

type IPlanService interface {
	GetPlans(ctx context.Context) ([]*dto.PlanResponse, error)
}

const planCacheKey = "plans:active"

type planService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *cache.Cache
}

// NewPlanService serves the public plan catalog. The catalog changes rarely
// so responses are cached in-process for five minutes.
func NewPlanService(uowFactory unitofwork.RepositoryFactory) IPlanService {
	return &planService{
		uowFactory: uowFactory,
		cache:      cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *planService) GetPlans(ctx context.Context) ([]*dto.PlanResponse, error) {
	if cached, found := s.cache.Get(planCacheKey); found {
		return cached.([]*dto.PlanResponse), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.SubscriptionRepository().FindAllPlans(ctx,
		specification.FilterBy{Field: "is_active", Value: true},
		specification.OrderBy{Field: "sort_order"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		res = append(res, &dto.PlanResponse{
			Id:                p.Id,
			Tier:              string(p.Tier),
			Name:              p.Name,
			Description:       p.Description,
			MonthlyPriceCents: p.MonthlyPriceMinor,
			AnnualPriceCents:  billing.AnnualPrice(p.MonthlyPriceMinor),
			Currency:          p.Currency,
			VolunteerLimit:    p.VolunteerLimit,
			TrialAvailable:    p.TrialAvailable,
		})
	}

	s.cache.Set(planCacheKey, res, cache.DefaultExpiration)
	return res, nil
}
