package entity

import (
	"time"

	"github.com/google/uuid"
)

type MetricType string

const (
	MetricVolunteers MetricType = "volunteers_count"
)

// UsageMetric is one row per (org, metric). CurrentValue is maintained
// synchronously on every resource create/delete so enforcement stays O(1);
// there is no periodic recount.
type UsageMetric struct {
	Id           uuid.UUID
	OrgId        uuid.UUID
	MetricType   MetricType
	CurrentValue int64
	PlanLimit    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PercentageUsed is derived, not stored.
func (m *UsageMetric) PercentageUsed() float64 {
	if m.PlanLimit <= 0 {
		return 0
	}
	return float64(m.CurrentValue) / float64(m.PlanLimit) * 100
}

// CanAdd reports whether one more resource fits under the plan limit. After a
// downgrade CurrentValue may already exceed PlanLimit; existing resources are
// kept but growth is blocked until usage drops under the limit again.
func (m *UsageMetric) CanAdd() bool {
	return m.CurrentValue < m.PlanLimit
}
