package service

import (
	"context"
	"fmt"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"
	"volunteer-scheduling-be/pkg/events"
)

// JobReport summarizes one maintenance job run.
type JobReport struct {
	Job       string
	Processed int
	Failed    int
	Duration  time.Duration
}

type IJobsService interface {
	// RunDailyMaintenance runs the four sweeps in their fixed order:
	// downgrades, trials, cancellations, retention.
	RunDailyMaintenance(ctx context.Context) []JobReport
	ApplyPendingDowngrades(ctx context.Context) JobReport
	ExpireTrials(ctx context.Context) JobReport
	CompleteCancellations(ctx context.Context) JobReport
	ExpireRetentionWindows(ctx context.Context) JobReport
}

type jobsService struct {
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.PaymentGateway
	usage      IUsageService
	bus        EventBus
	log        logger.ILogger
	now        func() time.Time
}

func NewJobsService(
	uowFactory unitofwork.RepositoryFactory,
	pg gateway.PaymentGateway,
	usage IUsageService,
	bus EventBus,
	log logger.ILogger,
) IJobsService {
	return &jobsService{
		uowFactory: uowFactory,
		gateway:    pg,
		usage:      usage,
		bus:        bus,
		log:        log,
		now:        nowUTC,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (s *jobsService) RunDailyMaintenance(ctx context.Context) []JobReport {
	return []JobReport{
		s.ApplyPendingDowngrades(ctx),
		s.ExpireTrials(ctx),
		s.CompleteCancellations(ctx),
		s.ExpireRetentionWindows(ctx),
	}
}

func (s *jobsService) ApplyPendingDowngrades(ctx context.Context) JobReport {
	started := time.Now()
	report := JobReport{Job: "apply_pending_downgrades"}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.PendingDowngradeDue{Now: s.now()})
	if err != nil {
		s.log.Error("jobs", "failed to list due downgrades", map[string]interface{}{"error": err.Error()})
		report.Failed++
		report.Duration = time.Since(started)
		return report
	}

	for _, candidate := range subs {
		orgId := candidate.OrgId
		var appliedTier entity.PlanTier

		err := s.locked(ctx, candidate, func(txUow unitofwork.UnitOfWork, sub *entity.Subscription) error {
			// Re-check under the lock; the user may have cancelled meanwhile.
			if sub.PendingDowngrade == nil || sub.PendingDowngrade.EffectiveAt.After(s.now()) {
				return errSkipped
			}

			target := sub.PendingDowngrade.TargetTier
			previous := sub.PlanTier
			credit := sub.PendingDowngrade.CreditMinor

			if target.IsPaid() {
				plan, err := txUow.SubscriptionRepository().FindPlanByTier(ctx, target)
				if err != nil {
					return err
				}
				if plan == nil {
					return fmt.Errorf("plan %s not found", target)
				}
				if sub.GatewaySubscriptionId != nil && sub.GatewayCustomerId != nil {
					if _, err := s.gateway.UpdateSubscription(ctx, *sub.GatewaySubscriptionId, gateway.SubscriptionParams{
						CustomerId: *sub.GatewayCustomerId,
						Tier:       target,
						Cycle:      sub.BillingCycle,
						PriceMinor: planPrice(plan, sub.BillingCycle),
						Currency:   plan.Currency,
					}); err != nil {
						return err
					}
				}
			} else if sub.GatewaySubscriptionId != nil {
				// Downgrade to free ends the gateway subscription entirely.
				if err := s.gateway.CancelSubscription(ctx, *sub.GatewaySubscriptionId, false); err != nil {
					return err
				}
				sub.GatewaySubscriptionId = nil
			}

			// The unused-time credit earned when the downgrade was scheduled
			// lands on the balance now, against the first invoice of the new
			// tier.
			if credit > 0 && sub.GatewayCustomerId != nil {
				if err := s.gateway.ApplyBalanceCredit(ctx, *sub.GatewayCustomerId, credit, "usd",
					fmt.Sprintf("unused time credit for downgrade to %s", target)); err != nil {
					return err
				}
			}

			sub.PlanTier = target
			sub.PendingDowngrade = nil
			if !target.IsPaid() {
				sub.GatewayCustomerId = nil
			}
			if err := txUow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}

			if err := txUow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
				OrgId:        orgId,
				EventType:    entity.SubEventDowngradeApplied,
				PreviousPlan: &previous,
				NewPlan:      &target,
				Reason:       "scheduled downgrade reached its effective date",
				OccurredAt:   s.now(),
			}); err != nil {
				return err
			}
			if credit > 0 {
				if err := txUow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
					OrgId:            orgId,
					SubscriptionId:   &sub.Id,
					EventType:        entity.BillingEventPlanChange,
					AmountMinorUnits: -credit,
					Currency:         "usd",
					PaymentStatus:    entity.PaymentStatusSucceeded,
					Description:      fmt.Sprintf("unused time credited on downgrade to %s", target),
					OccurredAt:       s.now(),
				}); err != nil {
					return err
				}
			}
			appliedTier = target
			return nil
		})
		if err == errSkipped {
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("jobs", "downgrade apply failed", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
			continue
		}

		if err := s.usage.ApplyTierLimit(ctx, orgId, appliedTier); err != nil {
			s.log.Error("jobs", "failed to apply downgraded usage limit", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
		}
		s.publish(ctx, events.SubscriptionDowngraded, orgId.String(), map[string]interface{}{"tier": string(appliedTier)})
		report.Processed++
	}

	report.Duration = time.Since(started)
	return report
}

func (s *jobsService) ExpireTrials(ctx context.Context) JobReport {
	started := time.Now()
	report := JobReport{Job: "expire_trials"}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.TrialExpired{Now: s.now()})
	if err != nil {
		s.log.Error("jobs", "failed to list expired trials", map[string]interface{}{"error": err.Error()})
		report.Failed++
		report.Duration = time.Since(started)
		return report
	}

	for _, candidate := range subs {
		orgId := candidate.OrgId
		var convertedTier entity.PlanTier

		err := s.locked(ctx, candidate, func(txUow unitofwork.UnitOfWork, sub *entity.Subscription) error {
			if sub.Status != entity.SubscriptionStatusTrialing || sub.TrialEnd == nil || sub.TrialEnd.After(s.now()) {
				return errSkipped
			}

			// A trial with a chargeable payment method converts to a paid
			// subscription instead of reverting to free.
			primary, err := txUow.BillingRepository().FindOnePaymentMethod(ctx,
				specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{},
				specification.FilterBy{Field: "is_primary", Value: true})
			if err != nil {
				return err
			}
			if primary != nil {
				err := s.convertTrial(ctx, txUow, sub, primary)
				if err == nil {
					convertedTier = sub.PlanTier
					return nil
				}
				if appErr, ok := apperror.As(err); !ok || appErr.Kind != apperror.KindGateway {
					return err
				}
				// The charge failed (declined card, gateway outage). The trial
				// is over either way, so fall through to the free downgrade.
				s.log.Warn("jobs", "trial conversion charge failed, reverting to free", map[string]interface{}{
					"org_id": orgId.String(), "error": err.Error(),
				})
			}

			now := s.now()
			previous := sub.PlanTier
			free := entity.TierFree
			sub.PlanTier = entity.TierFree
			sub.Status = entity.SubscriptionStatusActive
			sub.TrialEnd = nil
			sub.CurrentPeriodStart = now
			sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
			sub.GatewaySubscriptionId = nil
			sub.GatewayCustomerId = nil
			if err := txUow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}

			if err := txUow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
				OrgId:        orgId,
				EventType:    entity.SubEventTrialExpired,
				PreviousPlan: &previous,
				NewPlan:      &free,
				Reason:       "trial window closed without conversion",
				OccurredAt:   now,
			}); err != nil {
				return err
			}
			return txUow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
				OrgId:            orgId,
				SubscriptionId:   &sub.Id,
				EventType:        entity.BillingEventTrialEnd,
				AmountMinorUnits: 0,
				Currency:         "usd",
				PaymentStatus:    entity.PaymentStatusSucceeded,
				Description:      "trial expired, reverted to free plan",
				OccurredAt:       now,
			})
		})
		if err == errSkipped {
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("jobs", "trial expiry failed", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
			continue
		}

		if convertedTier != "" {
			s.publish(ctx, events.SubscriptionUpgraded, orgId.String(), map[string]interface{}{"tier": string(convertedTier)})
			report.Processed++
			continue
		}

		if err := s.usage.ApplyTierLimit(ctx, orgId, entity.TierFree); err != nil {
			s.log.Error("jobs", "failed to reset usage limit after trial", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
		}
		s.publish(ctx, events.TrialExpired, orgId.String(), nil)
		report.Processed++
	}

	report.Duration = time.Since(started)
	return report
}

// convertTrial activates the trial tier as a real gateway subscription,
// charging the primary payment method the full plan price.
func (s *jobsService) convertTrial(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, primary *entity.PaymentMethod) error {
	plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, sub.PlanTier)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan %s not found", sub.PlanTier)
	}

	customerId, err := ensureGatewayCustomer(ctx, uow, s.gateway, sub)
	if err != nil {
		return err
	}

	price := planPrice(plan, sub.BillingCycle)
	state, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionParams{
		CustomerId:      customerId,
		Tier:            sub.PlanTier,
		Cycle:           sub.BillingCycle,
		PaymentMethodId: primary.GatewayMethodId,
		PriceMinor:      price,
		Currency:        plan.Currency,
	})
	if err != nil {
		return err
	}

	now := s.now()
	tier := sub.PlanTier
	sub.Status = entity.SubscriptionStatusActive
	sub.TrialEnd = nil
	sub.CurrentPeriodStart = state.PeriodStart
	sub.CurrentPeriodEnd = state.PeriodEnd
	sub.GatewaySubscriptionId = &state.SubscriptionId
	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		return err
	}

	if err := uow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
		OrgId:        sub.OrgId,
		EventType:    entity.SubEventUpgraded,
		PreviousPlan: &tier,
		NewPlan:      &tier,
		Reason:       "trial converted to a paid subscription",
		OccurredAt:   now,
	}); err != nil {
		return err
	}

	var invoiceRef *string
	if state.LatestInvoice != "" {
		invoiceRef = &state.LatestInvoice
	}
	return uow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
		OrgId:            sub.OrgId,
		SubscriptionId:   &sub.Id,
		EventType:        entity.BillingEventCharge,
		AmountMinorUnits: price,
		Currency:         plan.Currency,
		PaymentStatus:    entity.PaymentStatusSucceeded,
		InvoiceRef:       invoiceRef,
		Description:      fmt.Sprintf("trial converted to %s plan", plan.Name),
		OccurredAt:       now,
	})
}

func (s *jobsService) CompleteCancellations(ctx context.Context) JobReport {
	started := time.Now()
	report := JobReport{Job: "complete_cancellations"}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.CancellationDue{Now: s.now()})
	if err != nil {
		s.log.Error("jobs", "failed to list due cancellations", map[string]interface{}{"error": err.Error()})
		report.Failed++
		report.Duration = time.Since(started)
		return report
	}

	for _, candidate := range subs {
		orgId := candidate.OrgId

		err := s.locked(ctx, candidate, func(txUow unitofwork.UnitOfWork, sub *entity.Subscription) error {
			if !sub.CancelAtPeriodEnd || sub.CurrentPeriodEnd.After(s.now()) || sub.CancelledAt != nil {
				return errSkipped
			}
			return completeCancellation(ctx, txUow, sub, s.now(), "cancellation completed at period end")
		})
		if err == errSkipped {
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("jobs", "cancellation completion failed", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
			continue
		}

		if err := s.usage.ApplyTierLimit(ctx, orgId, entity.TierFree); err != nil {
			s.log.Error("jobs", "failed to reset usage limit after cancellation", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
		}
		s.publish(ctx, events.SubscriptionCancelled, orgId.String(), nil)
		report.Processed++
	}

	report.Duration = time.Since(started)
	return report
}

func (s *jobsService) ExpireRetentionWindows(ctx context.Context) JobReport {
	started := time.Now()
	report := JobReport{Job: "expire_retention_windows"}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx, specification.RetentionWindowExpired{Now: s.now()})
	if err != nil {
		s.log.Error("jobs", "failed to list expired retention windows", map[string]interface{}{"error": err.Error()})
		report.Failed++
		report.Duration = time.Since(started)
		return report
	}

	for _, candidate := range subs {
		orgId := candidate.OrgId

		err := s.locked(ctx, candidate, func(txUow unitofwork.UnitOfWork, sub *entity.Subscription) error {
			if sub.Status != entity.SubscriptionStatusCancelled || sub.MarkedForDeletion ||
				sub.DataRetentionUntil == nil || sub.DataRetentionUntil.After(s.now()) {
				return errSkipped
			}

			// The paid-era data is handed to the purge pipeline. The row stays
			// cancelled with its retention timestamp, so a late reactivation
			// attempt is rejected as expired rather than silently allowed.
			sub.MarkedForDeletion = true
			return txUow.SubscriptionRepository().Update(ctx, sub)
		})
		if err == errSkipped {
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("jobs", "retention expiry failed", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
			continue
		}
		report.Processed++
	}

	report.Duration = time.Since(started)
	return report
}

// errSkipped signals that the re-check under the lock found nothing to do.
var errSkipped = fmt.Errorf("skipped")

// locked opens a transaction, takes the per-org row lock, and runs fn on the
// freshly loaded row.
func (s *jobsService) locked(ctx context.Context, candidate *entity.Subscription, fn func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	sub, err := uow.SubscriptionRepository().FindByOrgForUpdate(ctx, candidate.OrgId)
	if err != nil {
		uow.Rollback()
		return err
	}
	if sub == nil {
		uow.Rollback()
		return errSkipped
	}
	if err := fn(uow, sub); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (s *jobsService) publish(ctx context.Context, eventType, orgId string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.NewSubscriptionEvent(eventType, orgId, data)); err != nil {
		s.log.Warn("jobs", "failed to publish lifecycle event", map[string]interface{}{
			"event": eventType, "org_id": orgId, "error": err.Error(),
		})
	}
}

// completeCancellation finalizes a cancellation: the org lands on the free
// plan in the cancelled state and the retention clock starts. Shared by the
// maintenance sweep, the gateway deletion webhook, and immediate user
// cancellation.
func completeCancellation(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, now time.Time, reason string) error {
	previous := sub.PlanTier
	free := entity.TierFree
	retentionUntil := now.Add(entity.RetentionWindow)

	sub.PlanTier = entity.TierFree
	sub.Status = entity.SubscriptionStatusCancelled
	sub.CancelAtPeriodEnd = false
	sub.CancelledAt = &now
	sub.DataRetentionUntil = &retentionUntil
	sub.PendingDowngrade = nil
	sub.GatewaySubscriptionId = nil
	sub.GatewayCustomerId = nil
	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		return err
	}

	if err := uow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
		OrgId:        sub.OrgId,
		EventType:    entity.SubEventCancelled,
		PreviousPlan: &previous,
		NewPlan:      &free,
		Reason:       reason,
		OccurredAt:   now,
	}); err != nil {
		return err
	}
	return uow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
		OrgId:            sub.OrgId,
		SubscriptionId:   &sub.Id,
		EventType:        entity.BillingEventCancellation,
		AmountMinorUnits: 0,
		Currency:         "usd",
		PaymentStatus:    entity.PaymentStatusSucceeded,
		Description:      fmt.Sprintf("cancellation completed, data retained until %s", retentionUntil.Format(time.RFC3339)),
		OccurredAt:       now,
	})
}
