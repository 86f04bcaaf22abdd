package model

import (
	"time"

	"github.com/google/uuid"
)

type UsageMetric struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_metrics_org_metric,priority:1"`
	MetricType   string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_usage_metrics_org_metric,priority:2"`
	CurrentValue int64     `gorm:"not null;default:0"`
	PlanLimit    int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UsageMetric) TableName() string {
	return "usage_metrics"
}
