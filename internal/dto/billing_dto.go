package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Billing History ---

type BillingHistoryItemResponse struct {
	Id            uuid.UUID `json:"id"`
	EventType     string    `json:"event_type"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	InvoiceRef    *string   `json:"invoice_ref,omitempty"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BillingHistoryResponse is the standard paginated envelope.
type BillingHistoryResponse struct {
	Items      []*BillingHistoryItemResponse `json:"items"`
	Total      int64                         `json:"total"`
	Page       int                           `json:"page"`
	PageSize   int                           `json:"page_size"`
	TotalPages int                           `json:"total_pages"`
}

// --- Billing Address ---

type BillingAddressRequest struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	PostalCode   string `json:"postal_code" validate:"required,max=10"`
	Country      string `json:"country" validate:"required"`
	IsDefault    bool   `json:"is_default"`
}

type BillingAddressResponse struct {
	Id           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
}
