// Package gateway defines the uniform contract every external payment call
// goes through. Vendor errors never escape this boundary: callers see only
// the closed GatewayKind set from apperror.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"volunteer-scheduling-be/internal/entity"

	"github.com/google/uuid"
)

type CustomerParams struct {
	OrgId uuid.UUID
	Email string
	Name  string
}

type SubscriptionParams struct {
	CustomerId      string
	Tier            entity.PlanTier
	Cycle           entity.BillingCycle
	PaymentMethodId string
	PriceMinor      int64 // per cycle, minor units
	Currency        string
	TrialEnd        *time.Time
}

// SubscriptionState is the gateway's authoritative view of one subscription.
// The state machine copies period dates and identifiers from here verbatim;
// it never invents billing period boundaries locally.
type SubscriptionState struct {
	CustomerId     string
	SubscriptionId string
	Status         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CancelAtEnd    bool
	LatestInvoice  string
}

type PaymentMethodInfo struct {
	Id       string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// EventType is the closed set of inbound gateway events the reconciler
// handles. Anything outside this set is acknowledged and dropped.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription_created"
	EventSubscriptionUpdated     EventType = "subscription_updated"
	EventSubscriptionDeleted     EventType = "subscription_deleted"
	EventInvoicePaymentSucceeded EventType = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice_payment_failed"
	EventPaymentMethodAttached   EventType = "payment_method_attached"
)

// Event is a normalized gateway notification. Id is the gateway-issued unique
// event id the dedup store keys on.
type Event struct {
	Id             string
	Type           EventType
	CustomerId     string
	SubscriptionId string
	InvoiceId      string
	PaymentMethod  *PaymentMethodInfo
	AmountMinor    int64
	Currency       string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Status         string
	Raw            json.RawMessage
}

type PaymentGateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*SubscriptionState, error)
	UpdateSubscription(ctx context.Context, subscriptionId string, params SubscriptionParams) (*SubscriptionState, error)
	CancelSubscription(ctx context.Context, subscriptionId string, atPeriodEnd bool) error
	// ResumeSubscription clears a pending end-of-period cancellation.
	ResumeSubscription(ctx context.Context, subscriptionId string) (*SubscriptionState, error)
	FetchSubscription(ctx context.Context, subscriptionId string) (*SubscriptionState, error)
	AttachPaymentMethod(ctx context.Context, customerId, paymentMethodId string) (*PaymentMethodInfo, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodId string) error
	ApplyBalanceCredit(ctx context.Context, customerId string, amountMinor int64, currency, description string) error
	// VerifyWebhookSignature authenticates a raw delivery and normalizes it.
	// A nil event with nil error means a valid but irrelevant event type.
	VerifyWebhookSignature(payload []byte, signatureHeader string) (*Event, error)
}
