package service

import (
	"context"
	"encoding/json"
	"fmt"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/pkg/mailer"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"
	"volunteer-scheduling-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WebhookTopic is the in-process queue between the HTTP webhook endpoint and
// the reconciler worker. The endpoint answers the gateway fast; the worker
// does the real work.
const WebhookTopic = "billing.gateway.events"

type IReconcilerService interface {
	// HandleWebhook verifies, dedups, and enqueues one raw delivery.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	// StartWorker runs the queue consumer until ctx is cancelled.
	StartWorker(ctx context.Context) error
	// PollGatewayDrift repairs local period/status drift against the gateway.
	// Returns the number of subscriptions corrected.
	PollGatewayDrift(ctx context.Context) (int, error)
}

type reconcilerService struct {
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.PaymentGateway
	pubSub     *gochannel.GoChannel
	usage      IUsageService
	mail       mailer.IEmailService
	bus        EventBus
	log        logger.ILogger
}

func NewReconcilerService(
	uowFactory unitofwork.RepositoryFactory,
	pg gateway.PaymentGateway,
	pubSub *gochannel.GoChannel,
	usage IUsageService,
	mail mailer.IEmailService,
	bus EventBus,
	log logger.ILogger,
) IReconcilerService {
	return &reconcilerService{
		uowFactory: uowFactory,
		gateway:    pg,
		pubSub:     pubSub,
		usage:      usage,
		mail:       mail,
		bus:        bus,
		log:        log,
	}
}

func (s *reconcilerService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.gateway.VerifyWebhookSignature(payload, signatureHeader)
	if err != nil {
		return err
	}
	if event == nil {
		// Valid signature, event type we do not handle.
		return nil
	}

	var rawPayload map[string]interface{}
	if len(event.Raw) > 0 {
		_ = json.Unmarshal(event.Raw, &rawPayload)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	inserted, err := uow.WebhookEventRepository().InsertIfAbsent(ctx, &entity.WebhookEvent{
		GatewayEventId: event.Id,
		EventType:      string(event.Type),
		Status:         entity.WebhookStatusPending,
		Payload:        rawPayload,
	})
	if err != nil {
		return err
	}

	if !inserted {
		existing, err := uow.WebhookEventRepository().FindByGatewayEventId(ctx, event.Id)
		if err != nil {
			return err
		}
		// Only a failed earlier attempt warrants another queue entry. A
		// pending or processing row already has a message in flight;
		// enqueueing again would race two workers onto the same event.
		if existing == nil || existing.Status != entity.WebhookStatusFailed {
			s.log.Info("reconciler", "duplicate delivery skipped", map[string]interface{}{"event_id": event.Id})
			return nil
		}
		s.log.Info("reconciler", "re-enqueueing failed delivery", map[string]interface{}{"event_id": event.Id})
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.pubSub.Publish(WebhookTopic, message.NewMessage(watermill.NewUUID(), body))
}

func (s *reconcilerService) StartWorker(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, WebhookTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *reconcilerService) processMessage(ctx context.Context, msg *message.Message) {
	var event gateway.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.log.Error("reconciler", "failed to unmarshal queued event", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying cannot help
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	claimed, err := uow.WebhookEventRepository().ClaimForProcessing(ctx, event.Id)
	if err != nil {
		s.log.Error("reconciler", "failed to claim event", map[string]interface{}{"event_id": event.Id, "error": err.Error()})
		msg.Nack() // transient store error, let the queue retry
		return
	}
	if !claimed {
		// Another worker holds the claim or already completed the event.
		s.log.Info("reconciler", "queued duplicate skipped", map[string]interface{}{"event_id": event.Id})
		msg.Ack()
		return
	}

	if err := s.applyEvent(ctx, &event); err != nil {
		s.log.Error("reconciler", "failed to apply gateway event", map[string]interface{}{
			"event_id": event.Id, "type": string(event.Type), "error": err.Error(),
		})
		if markErr := uow.WebhookEventRepository().MarkFailed(ctx, event.Id, err); markErr != nil {
			s.log.Error("reconciler", "failed to mark event failed", map[string]interface{}{"event_id": event.Id, "error": markErr.Error()})
		}
		// The row stays failed; the gateway's redelivery triggers reprocessing.
		msg.Ack()
		return
	}

	if err := uow.WebhookEventRepository().MarkCompleted(ctx, event.Id); err != nil {
		s.log.Error("reconciler", "failed to mark event completed", map[string]interface{}{"event_id": event.Id, "error": err.Error()})
	}
	msg.Ack()
}

func (s *reconcilerService) applyEvent(ctx context.Context, event *gateway.Event) error {
	switch event.Type {
	case gateway.EventSubscriptionCreated, gateway.EventSubscriptionUpdated:
		return s.adoptGatewayState(ctx, event)
	case gateway.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	case gateway.EventInvoicePaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case gateway.EventInvoicePaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case gateway.EventPaymentMethodAttached:
		return s.handlePaymentMethodAttached(ctx, event)
	}
	return nil
}

// adoptGatewayState copies the gateway's authoritative period dates and
// status onto the local row.
func (s *reconcilerService) adoptGatewayState(ctx context.Context, event *gateway.Event) error {
	return s.withSubscription(ctx, event.SubscriptionId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		sub.CurrentPeriodStart = event.PeriodStart
		sub.CurrentPeriodEnd = event.PeriodEnd
		if status, ok := mapGatewayStatus(event.Status); ok && sub.Status != entity.SubscriptionStatusCancelled {
			sub.Status = status
		}
		return uow.SubscriptionRepository().Update(ctx, sub)
	})
}

func (s *reconcilerService) handleSubscriptionDeleted(ctx context.Context, event *gateway.Event) error {
	var orgId string
	err := s.withSubscription(ctx, event.SubscriptionId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if sub.Status == entity.SubscriptionStatusCancelled {
			return nil // already completed locally
		}
		orgId = sub.OrgId.String()
		return completeCancellation(ctx, uow, sub, nowUTC(), "gateway reported the subscription deleted")
	})
	if err != nil {
		return err
	}
	if orgId != "" && s.bus != nil {
		if pubErr := s.bus.Publish(ctx, events.NewSubscriptionEvent(events.SubscriptionCancelled, orgId, nil)); pubErr != nil {
			s.log.Warn("reconciler", "failed to publish cancellation event", map[string]interface{}{"org_id": orgId, "error": pubErr.Error()})
		}
	}
	return nil
}

func (s *reconcilerService) handlePaymentSucceeded(ctx context.Context, event *gateway.Event) error {
	return s.withSubscription(ctx, event.SubscriptionId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if !event.PeriodEnd.IsZero() {
			sub.CurrentPeriodStart = event.PeriodStart
			sub.CurrentPeriodEnd = event.PeriodEnd
		}
		// A successful charge clears past_due.
		if sub.Status == entity.SubscriptionStatusPastDue || sub.Status == entity.SubscriptionStatusIncomplete {
			sub.Status = entity.SubscriptionStatusActive
		}
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		var invoiceRef *string
		if event.InvoiceId != "" {
			invoiceRef = &event.InvoiceId
		}
		return uow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
			OrgId:            sub.OrgId,
			SubscriptionId:   &sub.Id,
			EventType:        entity.BillingEventCharge,
			AmountMinorUnits: event.AmountMinor,
			Currency:         event.Currency,
			PaymentStatus:    entity.PaymentStatusSucceeded,
			InvoiceRef:       invoiceRef,
			Description:      "subscription renewal charge",
			OccurredAt:       nowUTC(),
		})
	})
}

func (s *reconcilerService) handlePaymentFailed(ctx context.Context, event *gateway.Event) error {
	var orgIdStr, email, currency string
	var amount int64

	err := s.withSubscription(ctx, event.SubscriptionId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		sub.Status = entity.SubscriptionStatusPastDue
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		var invoiceRef *string
		if event.InvoiceId != "" {
			invoiceRef = &event.InvoiceId
		}
		if err := uow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
			OrgId:            sub.OrgId,
			SubscriptionId:   &sub.Id,
			EventType:        entity.BillingEventCharge,
			AmountMinorUnits: event.AmountMinor,
			Currency:         event.Currency,
			PaymentStatus:    entity.PaymentStatusFailed,
			InvoiceRef:       invoiceRef,
			Description:      "subscription renewal charge failed",
			OccurredAt:       nowUTC(),
		}); err != nil {
			return err
		}

		tier := sub.PlanTier
		if err := uow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
			OrgId:        sub.OrgId,
			EventType:    entity.SubEventPaymentFailed,
			PreviousPlan: &tier,
			NewPlan:      &tier,
			Reason:       "renewal payment failed",
			OccurredAt:   nowUTC(),
		}); err != nil {
			return err
		}

		orgIdStr = sub.OrgId.String()
		amount = event.AmountMinor
		currency = event.Currency

		addr, err := uow.BillingRepository().FindOneAddress(ctx, specification.OrgOwnedBy{OrgID: sub.OrgId})
		if err != nil {
			return err
		}
		if addr != nil {
			email = addr.Email
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.bus != nil {
		if pubErr := s.bus.Publish(ctx, events.NewSubscriptionEvent(events.PaymentFailed, orgIdStr, map[string]interface{}{
			"amount_cents": amount, "currency": currency,
		})); pubErr != nil {
			s.log.Warn("reconciler", "failed to publish payment failure", map[string]interface{}{"org_id": orgIdStr, "error": pubErr.Error()})
		}
	}
	if email != "" && s.mail != nil {
		if mailErr := s.mail.SendPaymentFailed(email, orgIdStr, amount, currency); mailErr != nil {
			s.log.Warn("reconciler", "failed to send payment failure email", map[string]interface{}{"org_id": orgIdStr, "error": mailErr.Error()})
		}
	}
	return nil
}

func (s *reconcilerService) handlePaymentMethodAttached(ctx context.Context, event *gateway.Event) error {
	if event.PaymentMethod == nil || event.CustomerId == "" {
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.FilterBy{Field: "gateway_customer_id", Value: event.CustomerId})
	if err != nil {
		return err
	}
	if sub == nil {
		return nil // customer unknown to us, nothing to record
	}

	existing, err := uow.BillingRepository().FindOnePaymentMethod(ctx,
		specification.FilterBy{Field: "gateway_method_id", Value: event.PaymentMethod.Id})
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return uow.BillingRepository().CreatePaymentMethod(ctx, &entity.PaymentMethod{
		OrgId:           sub.OrgId,
		GatewayMethodId: event.PaymentMethod.Id,
		Brand:           event.PaymentMethod.Brand,
		Last4:           event.PaymentMethod.Last4,
		ExpMonth:        event.PaymentMethod.ExpMonth,
		ExpYear:         event.PaymentMethod.ExpYear,
		IsActive:        true,
	})
}

func (s *reconcilerService) PollGatewayDrift(ctx context.Context) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.HasGatewaySubscription{})
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, sub := range subs {
		state, err := s.gateway.FetchSubscription(ctx, *sub.GatewaySubscriptionId)
		if err != nil {
			s.log.Warn("reconciler", "drift poll fetch failed", map[string]interface{}{
				"org_id": sub.OrgId.String(), "error": err.Error(),
			})
			continue
		}

		status, _ := mapGatewayStatus(state.Status)
		drifted := !sub.CurrentPeriodStart.Equal(state.PeriodStart) ||
			!sub.CurrentPeriodEnd.Equal(state.PeriodEnd) ||
			sub.CancelAtPeriodEnd != state.CancelAtEnd ||
			(status != "" && status != sub.Status && sub.Status != entity.SubscriptionStatusCancelled)
		if !drifted {
			continue
		}

		err = s.withSubscription(ctx, *sub.GatewaySubscriptionId, func(txUow unitofwork.UnitOfWork, locked *entity.Subscription) error {
			locked.CurrentPeriodStart = state.PeriodStart
			locked.CurrentPeriodEnd = state.PeriodEnd
			locked.CancelAtPeriodEnd = state.CancelAtEnd
			if status != "" && locked.Status != entity.SubscriptionStatusCancelled {
				locked.Status = status
			}
			return txUow.SubscriptionRepository().Update(ctx, locked)
		})
		if err != nil {
			s.log.Warn("reconciler", "drift repair failed", map[string]interface{}{
				"org_id": sub.OrgId.String(), "error": err.Error(),
			})
			continue
		}
		corrected++
		s.log.Info("reconciler", "drift repaired from gateway state", map[string]interface{}{
			"org_id": sub.OrgId.String(), "gateway_subscription_id": *sub.GatewaySubscriptionId,
		})
	}
	return corrected, nil
}

// withSubscription resolves a gateway subscription id to the local row and
// runs fn under the per-org lock.
func (s *reconcilerService) withSubscription(ctx context.Context, gatewaySubId string, fn func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error) error {
	if gatewaySubId == "" {
		return apperror.Validation("Event carries no subscription reference")
	}

	lookup := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := lookup.SubscriptionRepository().FindOne(ctx,
		specification.FilterBy{Field: "gateway_subscription_id", Value: gatewaySubId})
	if err != nil {
		return err
	}
	if sub == nil {
		return apperror.NotFound(fmt.Sprintf("Subscription for gateway id %s", gatewaySubId))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	locked, err := uow.SubscriptionRepository().FindByOrgForUpdate(ctx, sub.OrgId)
	if err != nil {
		uow.Rollback()
		return err
	}
	if locked == nil {
		uow.Rollback()
		return apperror.NotFound("Subscription")
	}
	if err := fn(uow, locked); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}

func mapGatewayStatus(status string) (entity.SubscriptionStatus, bool) {
	switch status {
	case "active":
		return entity.SubscriptionStatusActive, true
	case "trialing":
		return entity.SubscriptionStatusTrialing, true
	case "past_due", "unpaid":
		return entity.SubscriptionStatusPastDue, true
	case "incomplete", "incomplete_expired":
		return entity.SubscriptionStatusIncomplete, true
	case "canceled", "cancelled":
		return entity.SubscriptionStatusCancelled, true
	}
	return "", false
}
