package dto

import (
	"time"

	"github.com/google/uuid"
)

type AttachPaymentMethodRequest struct {
	// GatewayMethodId is the tokenized method id issued by the payment
	// provider's client-side SDK. Raw card data never reaches this API.
	GatewayMethodId string `json:"gateway_method_id" validate:"required"`
	MakePrimary     bool   `json:"make_primary"`
}

type PaymentMethodResponse struct {
	Id        uuid.UUID `json:"id"`
	Brand     string    `json:"brand"`
	Last4     string    `json:"last4"`
	ExpMonth  int       `json:"exp_month"`
	ExpYear   int       `json:"exp_year"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}
