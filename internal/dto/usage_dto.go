package dto

type UsageMetricResponse struct {
	MetricType     string  `json:"metric_type"`
	CurrentValue   int64   `json:"current_value"`
	PlanLimit      int64   `json:"plan_limit"`
	PercentageUsed float64 `json:"percentage_used"`
	CanAdd         bool    `json:"can_add"`
}

// UsageDeltaRequest is posted by the scheduling collaborator whenever a
// counted resource is added or removed.
type UsageDeltaRequest struct {
	MetricType string `json:"metric_type" validate:"required,oneof=active_volunteers"`
}

type UsageCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
