package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SUBSCRIPTION_UPGRADED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation every producer uses.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Subscription lifecycle event codes published on the bus. Downstream
// consumers (scheduling, notifications) key off these to react to billing
// state changes.
const (
	SubscriptionCreated     = "SUBSCRIPTION_CREATED"
	SubscriptionUpgraded    = "SUBSCRIPTION_UPGRADED"
	SubscriptionDowngraded  = "SUBSCRIPTION_DOWNGRADED"
	SubscriptionCancelled   = "SUBSCRIPTION_CANCELLED"
	SubscriptionReactivated = "SUBSCRIPTION_REACTIVATED"
	TrialStarted            = "TRIAL_STARTED"
	TrialExpired            = "TRIAL_EXPIRED"
	PaymentFailed           = "PAYMENT_FAILED"
)

// Roster event codes consumed from the scheduling service. Billing keys its
// volunteer usage counters off these.
const (
	VolunteerAdded   = "VOLUNTEER_ADDED"
	VolunteerRemoved = "VOLUNTEER_REMOVED"
)

// NewSubscriptionEvent builds a lifecycle event with the common fields every
// consumer expects.
func NewSubscriptionEvent(eventType, orgId string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["org_id"] = orgId
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
