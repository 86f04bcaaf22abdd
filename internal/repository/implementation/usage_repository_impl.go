package implementation

import (
	"context"
	"errors"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/mapper"
	"volunteer-scheduling-be/internal/model"
	"volunteer-scheduling-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EventMapper
}

func NewUsageRepository(db *gorm.DB) contract.UsageRepository {
	return &UsageRepositoryImpl{
		db:     db,
		mapper: mapper.NewEventMapper(),
	}
}

func (r *UsageRepositoryImpl) Create(ctx context.Context, metric *entity.UsageMetric) error {
	m := r.mapper.UsageMetricToModel(metric)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*metric = *r.mapper.UsageMetricToEntity(m)
	return nil
}

func (r *UsageRepositoryImpl) FindByOrgAndMetric(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*entity.UsageMetric, error) {
	var m model.UsageMetric
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND metric_type = ?", orgId, string(metricType)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.UsageMetricToEntity(&m), nil
}

func (r *UsageRepositoryImpl) FindAllByOrg(ctx context.Context, orgId uuid.UUID) ([]*entity.UsageMetric, error) {
	var models []*model.UsageMetric
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgId).Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.UsageMetric, len(models))
	for i, m := range models {
		entities[i] = r.mapper.UsageMetricToEntity(m)
	}
	return entities, nil
}

func (r *UsageRepositoryImpl) AddDelta(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, delta int64) error {
	// GREATEST keeps the counter at zero or above even if a decrement races a
	// delete that already happened.
	return r.db.WithContext(ctx).Model(&model.UsageMetric{}).
		Where("org_id = ? AND metric_type = ?", orgId, string(metricType)).
		Update("current_value", gorm.Expr("GREATEST(current_value + ?, 0)", delta)).Error
}

func (r *UsageRepositoryImpl) UpdateLimit(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, limit int64) error {
	return r.db.WithContext(ctx).Model(&model.UsageMetric{}).
		Where("org_id = ? AND metric_type = ?", orgId, string(metricType)).
		Update("plan_limit", limit).Error
}
