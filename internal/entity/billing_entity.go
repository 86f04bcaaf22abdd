package entity

import (
	"time"

	"github.com/google/uuid"
)

type BillingEventType string
type PaymentStatus string

const (
	BillingEventCharge       BillingEventType = "charge"
	BillingEventRefund       BillingEventType = "refund"
	BillingEventPlanChange   BillingEventType = "plan_change"
	BillingEventTrialStart   BillingEventType = "trial_start"
	BillingEventTrialEnd     BillingEventType = "trial_end"
	BillingEventCancellation BillingEventType = "cancellation"
	BillingEventReactivation BillingEventType = "reactivation"

	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusPending   PaymentStatus = "pending"
)

// BillingHistoryEntry is one immutable row per financial or lifecycle event.
// Amounts are signed integer minor units (credits are negative), never floats.
// Corrections are new rows; nothing here is ever updated or deleted.
type BillingHistoryEntry struct {
	Id               uuid.UUID
	OrgId            uuid.UUID
	SubscriptionId   *uuid.UUID
	EventType        BillingEventType
	AmountMinorUnits int64
	Currency         string
	PaymentStatus    PaymentStatus
	InvoiceRef       *string
	Description      string
	Metadata         map[string]interface{}
	OccurredAt       time.Time
}

// BillingAddress is the display/contact address attached to a payment method.
type BillingAddress struct {
	Id           uuid.UUID
	OrgId        uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentMethod stores only the gateway identifier plus display-safe card
// metadata. Full card numbers and CVVs never touch this system.
type PaymentMethod struct {
	Id               uuid.UUID
	OrgId            uuid.UUID
	GatewayMethodId  string
	Brand            string
	Last4            string
	ExpMonth         int
	ExpYear          int
	BillingAddressId *uuid.UUID
	IsPrimary        bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
