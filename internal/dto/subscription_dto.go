package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Subscription Lifecycle ---

type StartTrialRequest struct {
	Tier string `json:"tier" validate:"required,oneof=pro enterprise"`
}

type UpgradeRequest struct {
	Tier            string `json:"tier" validate:"required,oneof=starter pro enterprise"`
	BillingCycle    string `json:"billing_cycle" validate:"required,oneof=monthly annual"`
	PaymentMethodId string `json:"payment_method_id" validate:"required"`
}

type DowngradeRequest struct {
	Tier   string `json:"tier" validate:"required,oneof=free starter pro"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CancelRequest is optional on the cancel endpoint; an empty body means a
// scheduled end-of-period cancellation with no stated reason.
type CancelRequest struct {
	Immediately bool   `json:"immediately"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
}

type SwitchCycleRequest struct {
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly annual"`
}

type PendingDowngradeResponse struct {
	TargetTier  string    `json:"target_tier"`
	EffectiveAt time.Time `json:"effective_at"`
	CreditCents int64     `json:"credit_cents"`
}

type SubscriptionResponse struct {
	Id                 uuid.UUID                 `json:"id"`
	OrgId              uuid.UUID                 `json:"org_id"`
	PlanTier           string                    `json:"plan_tier"`
	BillingCycle       string                    `json:"billing_cycle"`
	Status             string                    `json:"status"`
	TrialEnd           *time.Time                `json:"trial_end,omitempty"`
	CurrentPeriodStart time.Time                 `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                 `json:"current_period_end"`
	CancelAtPeriodEnd  bool                      `json:"cancel_at_period_end"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	DataRetentionUntil *time.Time                `json:"data_retention_until,omitempty"`
	PendingDowngrade   *PendingDowngradeResponse `json:"pending_downgrade,omitempty"`
}

// SubscriptionDetailResponse is the read view: the subscription plus the
// current usage against its plan limits.
type SubscriptionDetailResponse struct {
	Subscription *SubscriptionResponse  `json:"subscription"`
	Usage        []*UsageMetricResponse `json:"usage"`
}

// UpgradeResponse carries the immediate proration outcome alongside the new
// subscription state so the client can show what was charged.
type UpgradeResponse struct {
	Subscription  *SubscriptionResponse `json:"subscription"`
	ChargedCents  int64                 `json:"charged_cents"`
	CreditedCents int64                 `json:"credited_cents,omitempty"`
	Currency      string                `json:"currency"`
}
