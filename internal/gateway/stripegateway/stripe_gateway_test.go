package stripegateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"

	stripe "github.com/stripe/stripe-go/v79"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperror.GatewayKind
	}{
		{
			name: "rate limited",
			err:  &stripe.Error{HTTPStatusCode: 429},
			want: apperror.GatewayRateLimited,
		},
		{
			name: "bad credentials",
			err:  &stripe.Error{HTTPStatusCode: 401},
			want: apperror.GatewayAuthFailed,
		},
		{
			name: "forbidden",
			err:  &stripe.Error{HTTPStatusCode: 403},
			want: apperror.GatewayAuthFailed,
		},
		{
			name: "expired card",
			err:  &stripe.Error{HTTPStatusCode: 402, Code: "expired_card"},
			want: apperror.GatewayExpiredCard,
		},
		{
			name: "insufficient funds",
			err:  &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, DeclineCode: "insufficient_funds"},
			want: apperror.GatewayInsufficientFunds,
		},
		{
			name: "generic card decline",
			err:  &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, DeclineCode: "do_not_honor"},
			want: apperror.GatewayCardDeclined,
		},
		{
			name: "invalid request",
			err:  &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest},
			want: apperror.GatewayInvalidRequest,
		},
		{
			name: "server error",
			err:  &stripe.Error{HTTPStatusCode: 503},
			want: apperror.GatewayNetworkError,
		},
		{
			name: "unclassified stripe error",
			err:  &stripe.Error{HTTPStatusCode: 402},
			want: apperror.GatewayUnknown,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: apperror.GatewayNetworkError,
		},
		{
			name: "wrapped cancellation",
			err:  fmt.Errorf("call failed: %w", context.Canceled),
			want: apperror.GatewayNetworkError,
		},
		{
			name: "plain transport error",
			err:  errors.New("connection refused"),
			want: apperror.GatewayNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != apperror.KindGateway {
				t.Fatalf("Classify() kind = %s, want %s", got.Kind, apperror.KindGateway)
			}
			if got.GatewayKind != tt.want {
				t.Errorf("Classify() gateway kind = %s, want %s", got.GatewayKind, tt.want)
			}
		})
	}
}

func TestClassifyPassesThroughAppErrors(t *testing.T) {
	orig := apperror.Gateway(apperror.GatewayAuthFailed, "msg", "detail", nil)
	if got := Classify(orig); got != orig {
		t.Errorf("Classify() rewrapped an already classified error")
	}
}

func TestGatewayKindRetryable(t *testing.T) {
	retryable := map[apperror.GatewayKind]bool{
		apperror.GatewayRateLimited:       true,
		apperror.GatewayNetworkError:      true,
		apperror.GatewayCardDeclined:      false,
		apperror.GatewayInsufficientFunds: false,
		apperror.GatewayExpiredCard:       false,
		apperror.GatewayInvalidRequest:    false,
		apperror.GatewayAuthFailed:        false,
		apperror.GatewayUnknown:           false,
	}
	for kind, want := range retryable {
		if kind.Retryable() != want {
			t.Errorf("%s.Retryable() = %v, want %v", kind, !want, want)
		}
	}
}

func TestNormalizeEvent(t *testing.T) {
	t.Run("subscription updated", func(t *testing.T) {
		event := &stripe.Event{
			ID:   "evt_1",
			Type: "customer.subscription.updated",
			Data: &stripe.EventData{
				Raw: []byte(`{"id":"sub_1","status":"active","current_period_start":1767225600,"current_period_end":1769904000,"customer":{"id":"cus_1"}}`),
			},
		}
		out, err := normalizeEvent(event)
		if err != nil {
			t.Fatalf("normalizeEvent() error = %v", err)
		}
		if out.Type != gateway.EventSubscriptionUpdated {
			t.Errorf("type = %s, want %s", out.Type, gateway.EventSubscriptionUpdated)
		}
		if out.SubscriptionId != "sub_1" || out.CustomerId != "cus_1" {
			t.Errorf("ids = %s/%s, want sub_1/cus_1", out.SubscriptionId, out.CustomerId)
		}
		if out.PeriodStart.IsZero() || out.PeriodEnd.IsZero() {
			t.Error("period dates were not parsed")
		}
	})

	t.Run("invoice payment succeeded uses amount paid", func(t *testing.T) {
		event := &stripe.Event{
			ID:   "evt_2",
			Type: "invoice.payment_succeeded",
			Data: &stripe.EventData{
				Raw: []byte(`{"id":"in_1","amount_paid":7900,"amount_due":7900,"currency":"usd","customer":{"id":"cus_1"},"subscription":{"id":"sub_1"}}`),
			},
		}
		out, err := normalizeEvent(event)
		if err != nil {
			t.Fatalf("normalizeEvent() error = %v", err)
		}
		if out.Type != gateway.EventInvoicePaymentSucceeded {
			t.Errorf("type = %s, want %s", out.Type, gateway.EventInvoicePaymentSucceeded)
		}
		if out.AmountMinor != 7900 || out.InvoiceId != "in_1" {
			t.Errorf("amount/invoice = %d/%s, want 7900/in_1", out.AmountMinor, out.InvoiceId)
		}
	})

	t.Run("irrelevant event type yields nil without error", func(t *testing.T) {
		event := &stripe.Event{
			ID:   "evt_3",
			Type: "customer.created",
			Data: &stripe.EventData{Raw: []byte(`{}`)},
		}
		out, err := normalizeEvent(event)
		if err != nil {
			t.Fatalf("normalizeEvent() error = %v", err)
		}
		if out != nil {
			t.Errorf("normalizeEvent() = %+v, want nil", out)
		}
	})

	t.Run("malformed payload is an invalid_request gateway error", func(t *testing.T) {
		event := &stripe.Event{
			ID:   "evt_4",
			Type: "customer.subscription.updated",
			Data: &stripe.EventData{Raw: []byte(`not json`)},
		}
		_, err := normalizeEvent(event)
		appErr, ok := apperror.As(err)
		if !ok || appErr.GatewayKind != apperror.GatewayInvalidRequest {
			t.Errorf("normalizeEvent() error = %v, want invalid_request gateway error", err)
		}
	})
}
