package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type IUsageService interface {
	// InitializeForOrg creates the usage rows for a new organization.
	InitializeForOrg(ctx context.Context, orgId uuid.UUID, tier entity.PlanTier) error
	// ApplyTierLimit rewrites the plan limits after a tier change. Existing
	// over-limit usage is kept; only growth is blocked.
	ApplyTierLimit(ctx context.Context, orgId uuid.UUID, tier entity.PlanTier) error
	CheckCanAdd(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*dto.UsageCheckResponse, error)
	Increment(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) error
	Decrement(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) error
	GetUsage(ctx context.Context, orgId uuid.UUID) ([]*dto.UsageMetricResponse, error)
}

const usageCacheTTL = 30 * time.Second

type usageService struct {
	uowFactory unitofwork.RepositoryFactory
	redis      *redis.Client
	log        logger.ILogger
}

// NewUsageService builds the usage enforcement service. redisClient may be
// nil; enforcement then always reads the database.
func NewUsageService(uowFactory unitofwork.RepositoryFactory, redisClient *redis.Client, log logger.ILogger) IUsageService {
	return &usageService{
		uowFactory: uowFactory,
		redis:      redisClient,
		log:        log,
	}
}

func (s *usageService) InitializeForOrg(ctx context.Context, orgId uuid.UUID, tier entity.PlanTier) error {
	limit, err := s.tierLimit(ctx, tier)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.UsageRepository().Create(ctx, &entity.UsageMetric{
		OrgId:        orgId,
		MetricType:   entity.MetricVolunteers,
		CurrentValue: 0,
		PlanLimit:    limit,
	})
}

func (s *usageService) ApplyTierLimit(ctx context.Context, orgId uuid.UUID, tier entity.PlanTier) error {
	limit, err := s.tierLimit(ctx, tier)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.UsageRepository().UpdateLimit(ctx, orgId, entity.MetricVolunteers, limit); err != nil {
		return err
	}
	s.invalidate(ctx, orgId, entity.MetricVolunteers)
	return nil
}

func (s *usageService) CheckCanAdd(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*dto.UsageCheckResponse, error) {
	metric, err := s.loadMetric(ctx, orgId, metricType)
	if err != nil {
		return nil, err
	}

	if !metric.CanAdd() {
		return &dto.UsageCheckResponse{
			Allowed: false,
			Reason:  fmt.Sprintf("plan limit of %d reached (current: %d)", metric.PlanLimit, metric.CurrentValue),
		}, nil
	}
	return &dto.UsageCheckResponse{Allowed: true}, nil
}

func (s *usageService) Increment(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) error {
	// Enforcement reads the database, not the cache, so a stale cache entry
	// can never admit an over-limit resource.
	uow := s.uowFactory.NewUnitOfWork(ctx)
	metric, err := uow.UsageRepository().FindByOrgAndMetric(ctx, orgId, metricType)
	if err != nil {
		return err
	}
	if metric == nil {
		return apperror.NotFound("Usage metric")
	}
	if !metric.CanAdd() {
		return apperror.Validation(fmt.Sprintf("Plan limit of %d reached; upgrade to add more", metric.PlanLimit))
	}

	if err := uow.UsageRepository().AddDelta(ctx, orgId, metricType, 1); err != nil {
		return err
	}
	s.invalidate(ctx, orgId, metricType)
	return nil
}

func (s *usageService) Decrement(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.UsageRepository().AddDelta(ctx, orgId, metricType, -1); err != nil {
		return err
	}
	s.invalidate(ctx, orgId, metricType)
	return nil
}

func (s *usageService) GetUsage(ctx context.Context, orgId uuid.UUID) ([]*dto.UsageMetricResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	metrics, err := uow.UsageRepository().FindAllByOrg(ctx, orgId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.UsageMetricResponse, 0, len(metrics))
	for _, m := range metrics {
		res = append(res, &dto.UsageMetricResponse{
			MetricType:     string(m.MetricType),
			CurrentValue:   m.CurrentValue,
			PlanLimit:      m.PlanLimit,
			PercentageUsed: m.PercentageUsed(),
			CanAdd:         m.CanAdd(),
		})
	}
	return res, nil
}

// loadMetric is the cached read path used by the advisory CheckCanAdd.
func (s *usageService) loadMetric(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*entity.UsageMetric, error) {
	key := usageCacheKey(orgId, metricType)

	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var metric entity.UsageMetric
			if jsonErr := json.Unmarshal([]byte(raw), &metric); jsonErr == nil {
				return &metric, nil
			}
		} else if err != redis.Nil {
			s.log.Warn("usage", "redis read failed, falling back to db", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	metric, err := uow.UsageRepository().FindByOrgAndMetric(ctx, orgId, metricType)
	if err != nil {
		return nil, err
	}
	if metric == nil {
		return nil, apperror.NotFound("Usage metric")
	}

	if s.redis != nil {
		if raw, err := json.Marshal(metric); err == nil {
			if err := s.redis.Set(ctx, key, raw, usageCacheTTL).Err(); err != nil {
				s.log.Warn("usage", "redis write failed", map[string]interface{}{"key": key, "error": err.Error()})
			}
		}
	}
	return metric, nil
}

func (s *usageService) invalidate(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, usageCacheKey(orgId, metricType)).Err(); err != nil {
		s.log.Warn("usage", "redis invalidate failed", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
	}
}

func (s *usageService) tierLimit(ctx context.Context, tier entity.PlanTier) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, tier)
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return 0, apperror.NotFound("Plan")
	}
	return plan.VolunteerLimit, nil
}

func usageCacheKey(orgId uuid.UUID, metricType entity.MetricType) string {
	return fmt.Sprintf("usage:%s:%s", orgId, metricType)
}
