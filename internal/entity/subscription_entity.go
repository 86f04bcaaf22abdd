package entity

import (
	"time"

	"github.com/google/uuid"
)

type PlanTier string
type BillingCycle string
type SubscriptionStatus string

const (
	TierFree       PlanTier = "free"
	TierStarter    PlanTier = "starter"
	TierPro        PlanTier = "pro"
	TierEnterprise PlanTier = "enterprise"

	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"

	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// TrialDuration is how long a pro/enterprise trial lasts.
const TrialDuration = 14 * 24 * time.Hour

// RetentionWindow is the post-cancellation grace period during which
// Reactivate restores the previous paid tier.
const RetentionWindow = 30 * 24 * time.Hour

var tierRank = map[PlanTier]int{
	TierFree:       0,
	TierStarter:    1,
	TierPro:        2,
	TierEnterprise: 3,
}

// TierRank returns the ordering position of a tier (free < starter < pro < enterprise).
// Unknown tiers rank below free.
func TierRank(t PlanTier) int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

func (t PlanTier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

func (t PlanTier) IsPaid() bool {
	return t.IsValid() && t != TierFree
}

func (c BillingCycle) IsValid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// PendingDowngrade annotates an active subscription with a tier change that
// resolves at the end of the current period. It is not a separate status.
type PendingDowngrade struct {
	TargetTier  PlanTier
	EffectiveAt time.Time
	CreditMinor int64
}

// Subscription is the single billing record an organization owns. Exactly one
// row exists per org for the whole lifetime of the org; it is never deleted,
// only mutated by the state machine.
type Subscription struct {
	Id                    uuid.UUID
	OrgId                 uuid.UUID
	PlanTier              PlanTier
	BillingCycle          BillingCycle
	Status                SubscriptionStatus
	TrialEnd              *time.Time
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	CancelAtPeriodEnd     bool
	CancelledAt           *time.Time
	DataRetentionUntil    *time.Time
	PendingDowngrade      *PendingDowngrade
	GatewayCustomerId     *string
	GatewaySubscriptionId *string
	MarkedForDeletion     bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsFree reports whether the subscription is in the free state of the
// lifecycle (the starting state, and the state cancellations land in).
func (s *Subscription) IsFree() bool {
	return s.PlanTier == TierFree
}

// InRetentionWindow reports whether a completed cancellation can still be
// reactivated at the given instant.
func (s *Subscription) InRetentionWindow(now time.Time) bool {
	return s.DataRetentionUntil != nil && now.Before(*s.DataRetentionUntil)
}
