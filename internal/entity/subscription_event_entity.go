package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionEventType string

const (
	SubEventCreated            SubscriptionEventType = "created"
	SubEventUpgraded           SubscriptionEventType = "upgraded"
	SubEventDowngraded         SubscriptionEventType = "downgraded"
	SubEventDowngradeScheduled SubscriptionEventType = "downgrade_scheduled"
	SubEventDowngradeApplied   SubscriptionEventType = "downgrade_applied"
	SubEventDowngradeCancelled SubscriptionEventType = "downgrade_cancelled"
	SubEventTrialStarted       SubscriptionEventType = "trial_started"
	SubEventTrialExpired       SubscriptionEventType = "trial_expired"
	SubEventCancelled          SubscriptionEventType = "cancelled"
	SubEventReactivated        SubscriptionEventType = "reactivated"
	SubEventPaymentFailed      SubscriptionEventType = "payment_failed"
	SubEventCycleSwitched      SubscriptionEventType = "cycle_switched"
)

// SubscriptionEvent is the immutable who/why audit trail of lifecycle
// transitions, separate from the financial BillingHistoryEntry ledger.
// A nil ActorId means the transition was system-initiated.
type SubscriptionEvent struct {
	Id           uuid.UUID
	OrgId        uuid.UUID
	EventType    SubscriptionEventType
	PreviousPlan *PlanTier
	NewPlan      *PlanTier
	ActorId      *uuid.UUID
	Reason       string
	OccurredAt   time.Time
}

// ChangesTier reports whether this event represents an actual tier change
// (scheduling or cancelling a downgrade does not).
func (e *SubscriptionEvent) ChangesTier() bool {
	switch e.EventType {
	case SubEventUpgraded, SubEventDowngraded, SubEventDowngradeApplied,
		SubEventTrialStarted, SubEventTrialExpired, SubEventCancelled, SubEventReactivated:
		return e.PreviousPlan != nil && e.NewPlan != nil && *e.PreviousPlan != *e.NewPlan
	}
	return false
}
