package contract

import (
	"context"

	"volunteer-scheduling-be/internal/entity"

	"github.com/google/uuid"
)

type UsageRepository interface {
	Create(ctx context.Context, metric *entity.UsageMetric) error
	FindByOrgAndMetric(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*entity.UsageMetric, error)
	FindAllByOrg(ctx context.Context, orgId uuid.UUID) ([]*entity.UsageMetric, error)
	// AddDelta adjusts current_value in place (current_value = current_value + delta)
	// so concurrent increments never lose updates. The floor is zero.
	AddDelta(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, delta int64) error
	// UpdateLimit rewrites plan_limit after a tier change.
	UpdateLimit(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, limit int64) error
}
