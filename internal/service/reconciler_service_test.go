package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerEnv struct {
	store  *memStore
	gw     *fakeGateway
	bus    *fakeBus
	pubSub *gochannel.GoChannel
	svc    *reconcilerService
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()
	store := newMemStore()
	gw := newFakeGateway()
	bus := &fakeBus{}
	factory := &fakeFactory{store: store}
	usage := NewUsageService(factory, nil, nopLogger{})
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	svc := NewReconcilerService(factory, gw, pubSub, usage, nil, bus, nopLogger{}).(*reconcilerService)
	return &reconcilerEnv{store: store, gw: gw, bus: bus, pubSub: pubSub, svc: svc}
}

func (e *reconcilerEnv) seed(sub *entity.Subscription) uuid.UUID {
	env := &billingEnv{store: e.store}
	return env.seed(sub)
}

// drain receives queued webhook messages until the timeout elapses.
func drain(t *testing.T, messages <-chan *message.Message, wait time.Duration) int {
	t.Helper()
	received := 0
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return received
			}
			msg.Ack()
			received++
		case <-time.After(wait):
			return received
		}
	}
}

func TestHandleWebhookDedup(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery is recorded and enqueued", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.gw.verifyEvent = &gateway.Event{Id: "evt_1", Type: gateway.EventInvoicePaymentSucceeded}
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 1, drain(t, messages, 200*time.Millisecond))
		row := env.store.webhooks["evt_1"]
		require.NotNil(t, row)
		assert.Equal(t, entity.WebhookStatusPending, row.Status)
	})

	t.Run("duplicate of a completed event is skipped", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.store.webhooks["evt_1"] = &entity.WebhookEvent{
			Id: uuid.New(), GatewayEventId: "evt_1", Status: entity.WebhookStatusCompleted,
		}
		env.gw.verifyEvent = &gateway.Event{Id: "evt_1", Type: gateway.EventInvoicePaymentSucceeded}
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 0, drain(t, messages, 200*time.Millisecond))
	})

	t.Run("duplicate of a still-queued event is not enqueued again", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.gw.verifyEvent = &gateway.Event{Id: "evt_1", Type: gateway.EventInvoicePaymentSucceeded}
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))
		// Gateway retries before the worker has consumed the first message.
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 1, drain(t, messages, 200*time.Millisecond))
	})

	t.Run("duplicate of a processing event is skipped", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.store.webhooks["evt_1"] = &entity.WebhookEvent{
			Id: uuid.New(), GatewayEventId: "evt_1", Status: entity.WebhookStatusProcessing,
		}
		env.gw.verifyEvent = &gateway.Event{Id: "evt_1", Type: gateway.EventInvoicePaymentSucceeded}
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 0, drain(t, messages, 200*time.Millisecond))
	})

	t.Run("duplicate of a failed event is reprocessed", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.store.webhooks["evt_1"] = &entity.WebhookEvent{
			Id: uuid.New(), GatewayEventId: "evt_1", Status: entity.WebhookStatusFailed,
		}
		env.gw.verifyEvent = &gateway.Event{Id: "evt_1", Type: gateway.EventInvoicePaymentSucceeded}
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 1, drain(t, messages, 200*time.Millisecond))
	})

	t.Run("irrelevant event types are acknowledged and dropped", func(t *testing.T) {
		env := newReconcilerEnv(t)
		messages, err := env.pubSub.Subscribe(ctx, WebhookTopic)
		require.NoError(t, err)

		env.gw.verifyEvent = nil // adapter returned nil, nil
		require.NoError(t, env.svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		assert.Equal(t, 0, drain(t, messages, 200*time.Millisecond))
		assert.Empty(t, env.store.webhooks)
	})
}

// Two copies of the same event can end up queued (gateway retry racing the
// worker). The claim step must let exactly one of them through.
func TestProcessMessageAppliesDuplicateOnce(t *testing.T) {
	ctx := context.Background()
	env := newReconcilerEnv(t)
	sub := activeSub(entity.TierPro, entity.CycleMonthly)
	env.seed(sub)

	env.store.webhooks["evt_once"] = &entity.WebhookEvent{
		Id: uuid.New(), GatewayEventId: "evt_once", Status: entity.WebhookStatusPending,
	}
	body, err := json.Marshal(&gateway.Event{
		Id: "evt_once", Type: gateway.EventInvoicePaymentSucceeded,
		SubscriptionId: "sub_existing", InvoiceId: "in_1",
		AmountMinor: 7900, Currency: "usd",
		PeriodStart: testNow, PeriodEnd: testNow.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	env.svc.processMessage(ctx, message.NewMessage(watermill.NewUUID(), body))
	env.svc.processMessage(ctx, message.NewMessage(watermill.NewUUID(), body))

	require.Len(t, env.store.history, 1)
	assert.Equal(t, entity.WebhookStatusCompleted, env.store.webhooks["evt_once"].Status)
}

func TestApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("payment succeeded adopts the gateway period and clears past_due", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		sub.Status = entity.SubscriptionStatusPastDue
		orgId := env.seed(sub)

		newStart := testNow
		newEnd := testNow.AddDate(0, 1, 0)
		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_pay", Type: gateway.EventInvoicePaymentSucceeded,
			SubscriptionId: "sub_existing", InvoiceId: "in_1",
			AmountMinor: 7900, Currency: "usd",
			PeriodStart: newStart, PeriodEnd: newEnd,
		})
		require.NoError(t, err)

		after := env.store.subs[orgId]
		assert.Equal(t, entity.SubscriptionStatusActive, after.Status)
		assert.Equal(t, newStart, after.CurrentPeriodStart)
		assert.Equal(t, newEnd, after.CurrentPeriodEnd)

		require.Len(t, env.store.history, 1)
		assert.Equal(t, int64(7900), env.store.history[0].AmountMinorUnits)
		assert.Equal(t, entity.PaymentStatusSucceeded, env.store.history[0].PaymentStatus)
	})

	t.Run("payment failed marks past_due and records the failure", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		orgId := env.seed(sub)

		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_fail", Type: gateway.EventInvoicePaymentFailed,
			SubscriptionId: "sub_existing", InvoiceId: "in_2",
			AmountMinor: 7900, Currency: "usd",
		})
		require.NoError(t, err)

		after := env.store.subs[orgId]
		assert.Equal(t, entity.SubscriptionStatusPastDue, after.Status)

		require.Len(t, env.store.history, 1)
		assert.Equal(t, entity.PaymentStatusFailed, env.store.history[0].PaymentStatus)

		require.Len(t, env.store.auditEvents, 1)
		assert.Equal(t, entity.SubEventPaymentFailed, env.store.auditEvents[0].EventType)

		// Downstream consumers are notified.
		require.Len(t, env.bus.published, 1)
		assert.Equal(t, "PAYMENT_FAILED", env.bus.published[0].EventType())
	})

	t.Run("subscription deleted completes the cancellation", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		sub.CancelAtPeriodEnd = true
		orgId := env.seed(sub)

		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_del", Type: gateway.EventSubscriptionDeleted,
			SubscriptionId: "sub_existing",
		})
		require.NoError(t, err)

		after := env.store.subs[orgId]
		assert.Equal(t, entity.TierFree, after.PlanTier)
		assert.Equal(t, entity.SubscriptionStatusCancelled, after.Status)
		require.NotNil(t, after.DataRetentionUntil)
	})

	t.Run("deleted is a no-op when already cancelled locally", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierFree, entity.CycleMonthly)
		sub.Status = entity.SubscriptionStatusCancelled
		sub.GatewaySubscriptionId = strPtr("sub_existing")
		orgId := env.seed(sub)

		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_del", Type: gateway.EventSubscriptionDeleted,
			SubscriptionId: "sub_existing",
		})
		require.NoError(t, err)
		assert.Empty(t, env.store.auditEvents)
		assert.Empty(t, env.bus.published)
		_ = orgId
	})

	t.Run("subscription updated never overwrites a local cancellation", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierFree, entity.CycleMonthly)
		sub.Status = entity.SubscriptionStatusCancelled
		sub.GatewaySubscriptionId = strPtr("sub_existing")
		orgId := env.seed(sub)

		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_upd", Type: gateway.EventSubscriptionUpdated,
			SubscriptionId: "sub_existing", Status: "active",
			PeriodStart: testNow, PeriodEnd: testNow.AddDate(0, 1, 0),
		})
		require.NoError(t, err)
		assert.Equal(t, entity.SubscriptionStatusCancelled, env.store.subs[orgId].Status)
	})

	t.Run("payment method attached for a known customer is recorded once", func(t *testing.T) {
		env := newReconcilerEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		orgId := env.seed(sub)

		event := &gateway.Event{
			Id: "evt_pm", Type: gateway.EventPaymentMethodAttached,
			CustomerId: "cus_test",
			PaymentMethod: &gateway.PaymentMethodInfo{
				Id: "pm_hook", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030,
			},
		}
		require.NoError(t, env.svc.applyEvent(ctx, event))
		require.NoError(t, env.svc.applyEvent(ctx, event)) // duplicate delivery

		require.Len(t, env.store.paymentMethods, 1)
		assert.Equal(t, orgId, env.store.paymentMethods[0].OrgId)
		assert.Equal(t, "pm_hook", env.store.paymentMethods[0].GatewayMethodId)
	})

	t.Run("unknown customer is ignored", func(t *testing.T) {
		env := newReconcilerEnv(t)

		err := env.svc.applyEvent(ctx, &gateway.Event{
			Id: "evt_pm", Type: gateway.EventPaymentMethodAttached,
			CustomerId:    "cus_stranger",
			PaymentMethod: &gateway.PaymentMethodInfo{Id: "pm_hook"},
		})
		require.NoError(t, err)
		assert.Empty(t, env.store.paymentMethods)
	})
}

func TestPollGatewayDrift(t *testing.T) {
	ctx := context.Background()
	env := newReconcilerEnv(t)

	drifted := activeSub(entity.TierPro, entity.CycleMonthly)
	drifted.GatewaySubscriptionId = strPtr("sub_drifted")
	orgId := env.seed(drifted)

	clean := activeSub(entity.TierStarter, entity.CycleMonthly)
	clean.GatewaySubscriptionId = strPtr("sub_clean")
	env.seed(clean)

	// The gateway has already rolled the drifted subscription into a new period.
	env.gw.fetchStates["sub_drifted"] = &gateway.SubscriptionState{
		SubscriptionId: "sub_drifted", Status: "active",
		PeriodStart: drifted.CurrentPeriodEnd,
		PeriodEnd:   drifted.CurrentPeriodEnd.AddDate(0, 1, 0),
	}
	env.gw.fetchStates["sub_clean"] = &gateway.SubscriptionState{
		SubscriptionId: "sub_clean", Status: "active",
		PeriodStart: clean.CurrentPeriodStart,
		PeriodEnd:   clean.CurrentPeriodEnd,
	}

	corrected, err := env.svc.PollGatewayDrift(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)

	after := env.store.subs[orgId]
	assert.Equal(t, drifted.CurrentPeriodEnd, after.CurrentPeriodStart)
	assert.Equal(t, drifted.CurrentPeriodEnd.AddDate(0, 1, 0), after.CurrentPeriodEnd)
}

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   entity.SubscriptionStatus
		mapped bool
	}{
		{in: "active", want: entity.SubscriptionStatusActive, mapped: true},
		{in: "trialing", want: entity.SubscriptionStatusTrialing, mapped: true},
		{in: "past_due", want: entity.SubscriptionStatusPastDue, mapped: true},
		{in: "unpaid", want: entity.SubscriptionStatusPastDue, mapped: true},
		{in: "incomplete", want: entity.SubscriptionStatusIncomplete, mapped: true},
		{in: "incomplete_expired", want: entity.SubscriptionStatusIncomplete, mapped: true},
		{in: "canceled", want: entity.SubscriptionStatusCancelled, mapped: true},
		{in: "paused", want: "", mapped: false},
		{in: "", want: "", mapped: false},
	}

	for _, tt := range tests {
		t.Run("status "+tt.in, func(t *testing.T) {
			got, ok := mapGatewayStatus(tt.in)
			assert.Equal(t, tt.mapped, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
