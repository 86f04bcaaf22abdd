package implementation

import (
	"context"
	"errors"
	"strings"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/mapper"
	"volunteer-scheduling-be/internal/model"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/repository/contract"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) contract.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.ToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	// Save with explicit column list so clearing optional fields (trial_end,
	// pending downgrade, gateway ids) persists NULLs instead of being skipped.
	if err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ?", m.Id).
		Select("*").Omit("id", "created_at").
		Updates(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.ToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	var m model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	var models []*model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Subscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionRepositoryImpl) FindByOrgForUpdate(ctx context.Context, orgId uuid.UUID) (*entity.Subscription, error) {
	var m model.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("org_id = ?", orgId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		// Postgres reports NOWAIT contention as 55P03 (lock_not_available).
		if strings.Contains(err.Error(), "55P03") || strings.Contains(err.Error(), "could not obtain lock") {
			return nil, apperror.ConcurrencyConflict("subscription row locked by another operation: org " + orgId.String())
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// Plan catalog

func (r *SubscriptionRepositoryImpl) CreatePlan(ctx context.Context, plan *entity.Plan) error {
	m := r.mapper.PlanToModel(plan)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*plan = *r.mapper.PlanToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) UpdatePlan(ctx context.Context, plan *entity.Plan) error {
	m := r.mapper.PlanToModel(plan)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*plan = *r.mapper.PlanToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error) {
	var m model.Plan
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PlanToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error) {
	var models []*model.Plan
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Order("sort_order ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Plan, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PlanToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionRepositoryImpl) FindPlanByTier(ctx context.Context, tier entity.PlanTier) (*entity.Plan, error) {
	return r.FindOnePlan(ctx, specification.Filter("tier", string(tier)))
}
