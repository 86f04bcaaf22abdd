// Package stripegateway is the Stripe-backed implementation of the payment
// gateway contract. It owns all vendor types, performs bounded retries for
// transient failures only, and classifies every error into the closed kind set.
package stripegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"

	"github.com/cenkalti/backoff/v5"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/customerbalancetransaction"
	"github.com/stripe/stripe-go/v79/paymentmethod"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	callTimeout       = 5 * time.Second
	maxAttempts       = 3
	retryBaseInterval = 500 * time.Millisecond
)

type StripeGateway struct {
	webhookSecret string
	productId     string
}

// New configures the global Stripe client key and returns the adapter.
// productId is the catalog product all subscription prices hang off.
func New(secretKey, webhookSecret, productId string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		productId:     productId,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (string, error) {
	cust, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Customer, error) {
		p := &stripe.CustomerParams{
			Email: stripe.String(params.Email),
			Name:  stripe.String(params.Name),
		}
		p.Context = callCtx
		p.AddMetadata("org_id", params.OrgId.String())
		return customer.New(p)
	})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.SubscriptionState, error) {
	sub, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Subscription, error) {
		p := &stripe.SubscriptionParams{
			Customer: stripe.String(params.CustomerId),
			Items:    []*stripe.SubscriptionItemsParams{g.priceItem(params)},
		}
		p.Context = callCtx
		if params.PaymentMethodId != "" {
			p.DefaultPaymentMethod = stripe.String(params.PaymentMethodId)
		}
		if params.TrialEnd != nil {
			p.TrialEnd = stripe.Int64(params.TrialEnd.Unix())
		}
		return subscription.New(p)
	})
	if err != nil {
		return nil, err
	}
	return mapSubscription(sub), nil
}

func (g *StripeGateway) UpdateSubscription(ctx context.Context, subscriptionId string, params gateway.SubscriptionParams) (*gateway.SubscriptionState, error) {
	sub, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Subscription, error) {
		current, err := subscription.Get(subscriptionId, &stripe.SubscriptionParams{Params: stripe.Params{Context: callCtx}})
		if err != nil {
			return nil, err
		}
		p := &stripe.SubscriptionParams{
			Items:             []*stripe.SubscriptionItemsParams{g.priceItem(params)},
			ProrationBehavior: stripe.String("none"), // proration is computed locally
		}
		p.Context = callCtx
		if len(current.Items.Data) > 0 {
			p.Items[0].ID = stripe.String(current.Items.Data[0].ID)
		}
		if params.PaymentMethodId != "" {
			p.DefaultPaymentMethod = stripe.String(params.PaymentMethodId)
		}
		return subscription.Update(subscriptionId, p)
	})
	if err != nil {
		return nil, err
	}
	return mapSubscription(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionId string, atPeriodEnd bool) error {
	_, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Subscription, error) {
		if atPeriodEnd {
			p := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
			p.Context = callCtx
			return subscription.Update(subscriptionId, p)
		}
		p := &stripe.SubscriptionCancelParams{}
		p.Context = callCtx
		return subscription.Cancel(subscriptionId, p)
	})
	return err
}

func (g *StripeGateway) ResumeSubscription(ctx context.Context, subscriptionId string) (*gateway.SubscriptionState, error) {
	sub, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Subscription, error) {
		p := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
		p.Context = callCtx
		return subscription.Update(subscriptionId, p)
	})
	if err != nil {
		return nil, err
	}
	return mapSubscription(sub), nil
}

func (g *StripeGateway) FetchSubscription(ctx context.Context, subscriptionId string) (*gateway.SubscriptionState, error) {
	sub, err := withRetry(ctx, func(callCtx context.Context) (*stripe.Subscription, error) {
		p := &stripe.SubscriptionParams{}
		p.Context = callCtx
		return subscription.Get(subscriptionId, p)
	})
	if err != nil {
		return nil, err
	}
	return mapSubscription(sub), nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerId, paymentMethodId string) (*gateway.PaymentMethodInfo, error) {
	pm, err := withRetry(ctx, func(callCtx context.Context) (*stripe.PaymentMethod, error) {
		p := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerId)}
		p.Context = callCtx
		return paymentmethod.Attach(paymentMethodId, p)
	})
	if err != nil {
		return nil, err
	}
	return mapPaymentMethod(pm), nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodId string) error {
	_, err := withRetry(ctx, func(callCtx context.Context) (*stripe.PaymentMethod, error) {
		p := &stripe.PaymentMethodDetachParams{}
		p.Context = callCtx
		return paymentmethod.Detach(paymentMethodId, p)
	})
	return err
}

func (g *StripeGateway) ApplyBalanceCredit(ctx context.Context, customerId string, amountMinor int64, currency, description string) error {
	_, err := withRetry(ctx, func(callCtx context.Context) (*stripe.CustomerBalanceTransaction, error) {
		// Negative amounts credit the customer balance against the next invoice.
		p := &stripe.CustomerBalanceTransactionParams{
			Customer:    stripe.String(customerId),
			Amount:      stripe.Int64(-amountMinor),
			Currency:    stripe.String(currency),
			Description: stripe.String(description),
		}
		p.Context = callCtx
		return customerbalancetransaction.New(p)
	})
	return err
}

func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signatureHeader string) (*gateway.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperror.Gateway(apperror.GatewayAuthFailed,
			"Webhook signature verification failed",
			fmt.Sprintf("constructing webhook event: %v", err), err)
	}
	return normalizeEvent(&event)
}

func (g *StripeGateway) priceItem(params gateway.SubscriptionParams) *stripe.SubscriptionItemsParams {
	interval := "month"
	if params.Cycle == entity.CycleAnnual {
		interval = "year"
	}
	return &stripe.SubscriptionItemsParams{
		PriceData: &stripe.SubscriptionItemPriceDataParams{
			Currency:   stripe.String(params.Currency),
			Product:    stripe.String(g.productId),
			UnitAmount: stripe.Int64(params.PriceMinor),
			Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
				Interval: stripe.String(interval),
			},
		},
		Metadata: map[string]string{"tier": string(params.Tier)},
	}
}

func mapSubscription(sub *stripe.Subscription) *gateway.SubscriptionState {
	state := &gateway.SubscriptionState{
		SubscriptionId: sub.ID,
		Status:         string(sub.Status),
		PeriodStart:    time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:      time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerId = sub.Customer.ID
	}
	if sub.LatestInvoice != nil {
		state.LatestInvoice = sub.LatestInvoice.ID
	}
	return state
}

func mapPaymentMethod(pm *stripe.PaymentMethod) *gateway.PaymentMethodInfo {
	info := &gateway.PaymentMethodInfo{Id: pm.ID}
	if pm.Card != nil {
		info.Brand = string(pm.Card.Brand)
		info.Last4 = pm.Card.Last4
		info.ExpMonth = int(pm.Card.ExpMonth)
		info.ExpYear = int(pm.Card.ExpYear)
	}
	return info
}

func normalizeEvent(event *stripe.Event) (*gateway.Event, error) {
	out := &gateway.Event{
		Id:  event.ID,
		Raw: event.Data.Raw,
	}

	switch string(event.Type) {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, apperror.Gateway(apperror.GatewayInvalidRequest,
				"Malformed webhook payload", fmt.Sprintf("parsing subscription event: %v", err), err)
		}
		switch string(event.Type) {
		case "customer.subscription.created":
			out.Type = gateway.EventSubscriptionCreated
		case "customer.subscription.updated":
			out.Type = gateway.EventSubscriptionUpdated
		default:
			out.Type = gateway.EventSubscriptionDeleted
		}
		out.SubscriptionId = sub.ID
		out.Status = string(sub.Status)
		out.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
		out.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		if sub.Customer != nil {
			out.CustomerId = sub.Customer.ID
		}
		return out, nil

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, apperror.Gateway(apperror.GatewayInvalidRequest,
				"Malformed webhook payload", fmt.Sprintf("parsing invoice event: %v", err), err)
		}
		if string(event.Type) == "invoice.payment_succeeded" {
			out.Type = gateway.EventInvoicePaymentSucceeded
			out.AmountMinor = inv.AmountPaid
		} else {
			out.Type = gateway.EventInvoicePaymentFailed
			out.AmountMinor = inv.AmountDue
		}
		out.InvoiceId = inv.ID
		out.Currency = string(inv.Currency)
		if inv.Customer != nil {
			out.CustomerId = inv.Customer.ID
		}
		if inv.Subscription != nil {
			out.SubscriptionId = inv.Subscription.ID
		}
		if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
			out.PeriodStart = time.Unix(inv.Lines.Data[0].Period.Start, 0).UTC()
			out.PeriodEnd = time.Unix(inv.Lines.Data[0].Period.End, 0).UTC()
		}
		return out, nil

	case "payment_method.attached":
		var pm stripe.PaymentMethod
		if err := json.Unmarshal(event.Data.Raw, &pm); err != nil {
			return nil, apperror.Gateway(apperror.GatewayInvalidRequest,
				"Malformed webhook payload", fmt.Sprintf("parsing payment method event: %v", err), err)
		}
		out.Type = gateway.EventPaymentMethodAttached
		out.PaymentMethod = mapPaymentMethod(&pm)
		if pm.Customer != nil {
			out.CustomerId = pm.Customer.ID
		}
		return out, nil
	}

	// Valid signature, irrelevant event type: acknowledged and dropped.
	return nil, nil
}

// withRetry runs one gateway call with a fresh per-attempt timeout, retrying
// only transient kinds (network_error, rate_limited) with exponential backoff.
func withRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryBaseInterval

	return backoff.Retry(ctx, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		v, err := op(callCtx)
		if err == nil {
			return v, nil
		}
		gerr := Classify(err)
		if !gerr.GatewayKind.Retryable() {
			return v, backoff.Permanent(gerr)
		}
		return v, gerr
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(maxAttempts))
}

// Classify maps any Stripe (or transport) failure onto the closed gateway
// error kind set. Exported for tests.
func Classify(err error) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		detail := fmt.Sprintf("stripe %s (%s): %s", stripeErr.Type, stripeErr.Code, stripeErr.Msg)
		switch {
		case stripeErr.HTTPStatusCode == 429:
			return apperror.Gateway(apperror.GatewayRateLimited,
				"Payment service is busy, please try again shortly", detail, err)
		case stripeErr.HTTPStatusCode == 401 || stripeErr.HTTPStatusCode == 403:
			return apperror.Gateway(apperror.GatewayAuthFailed,
				"Payment service rejected our credentials", detail, err)
		case stripeErr.Code == "expired_card":
			return apperror.Gateway(apperror.GatewayExpiredCard,
				"Your card has expired, please use a different card", detail, err)
		case stripeErr.Type == stripe.ErrorTypeCard:
			if stripeErr.DeclineCode == "insufficient_funds" {
				return apperror.Gateway(apperror.GatewayInsufficientFunds,
					"Your card has insufficient funds", detail, err)
			}
			return apperror.Gateway(apperror.GatewayCardDeclined,
				"Your card was declined", detail, err)
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return apperror.Gateway(apperror.GatewayInvalidRequest,
				"The payment request was rejected", detail, err)
		case stripeErr.HTTPStatusCode >= 500:
			return apperror.Gateway(apperror.GatewayNetworkError,
				"Payment service is unavailable, please try again", detail, err)
		default:
			return apperror.Gateway(apperror.GatewayUnknown,
				"Payment processing failed", detail, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.Gateway(apperror.GatewayNetworkError,
			"Payment service timed out, please try again",
			fmt.Sprintf("gateway call: %v", err), err)
	}

	// Anything non-Stripe at this boundary is transport trouble.
	return apperror.Gateway(apperror.GatewayNetworkError,
		"Could not reach the payment service", fmt.Sprintf("gateway call: %v", err), err)
}
