package service

import (
	"context"
	"fmt"
	"time"

	"volunteer-scheduling-be/internal/billing"
	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"
	"volunteer-scheduling-be/pkg/events"

	"github.com/google/uuid"
)

// EventBus is the slice of the NATS publisher the billing services need.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
}

type ISubscriptionService interface {
	CreateForOrganization(ctx context.Context, orgId uuid.UUID) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, orgId uuid.UUID) (*dto.SubscriptionDetailResponse, error)
	StartTrial(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.StartTrialRequest) (*dto.SubscriptionResponse, error)
	Upgrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.UpgradeRequest) (*dto.UpgradeResponse, error)
	Downgrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.DowngradeRequest) (*dto.SubscriptionResponse, error)
	CancelDowngrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID) (*dto.SubscriptionResponse, error)
	SwitchBillingCycle(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.SwitchCycleRequest) (*dto.UpgradeResponse, error)
	Cancel(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.CancelRequest) (*dto.SubscriptionResponse, error)
	Reactivate(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID) (*dto.SubscriptionResponse, error)
	GetHistory(ctx context.Context, orgId uuid.UUID, page, pageSize int) (*dto.BillingHistoryResponse, error)
}

type subscriptionService struct {
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.PaymentGateway
	usage      IUsageService
	bus        EventBus
	log        logger.ILogger
	now        func() time.Time
}

func NewSubscriptionService(
	uowFactory unitofwork.RepositoryFactory,
	pg gateway.PaymentGateway,
	usage IUsageService,
	bus EventBus,
	log logger.ILogger,
) ISubscriptionService {
	return &subscriptionService{
		uowFactory: uowFactory,
		gateway:    pg,
		usage:      usage,
		bus:        bus,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// lockRetryDelay spaces the single automatic retry after a lock conflict.
const lockRetryDelay = 50 * time.Millisecond

// withOrgLock runs fn while holding the per-org subscription row lock inside
// one transaction. A lock conflict is retried exactly once before surfacing
// the ConcurrencyConflict to the caller.
func (s *subscriptionService) withOrgLock(ctx context.Context, orgId uuid.UUID, fn func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.runLocked(ctx, orgId, fn)
		if err == nil || !apperror.IsKind(err, apperror.KindConcurrencyConflict) {
			return err
		}
		if attempt == 0 {
			time.Sleep(lockRetryDelay)
		}
	}
	return err
}

func (s *subscriptionService) runLocked(ctx context.Context, orgId uuid.UUID, fn func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	sub, err := uow.SubscriptionRepository().FindByOrgForUpdate(ctx, orgId)
	if err != nil {
		uow.Rollback()
		return err
	}
	if sub == nil {
		uow.Rollback()
		return apperror.NotFound("Subscription")
	}

	if err := fn(uow, sub); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (s *subscriptionService) CreateForOrganization(ctx context.Context, orgId uuid.UUID) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.SubscriptionRepository().FindOne(ctx, specification.OrgOwnedBy{OrgID: orgId})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.InvalidTransition("Organization already has a subscription",
			fmt.Sprintf("org %s already has subscription %s", orgId, existing.Id))
	}

	now := s.now()
	sub := &entity.Subscription{
		OrgId:              orgId,
		PlanTier:           entity.TierFree,
		BillingCycle:       entity.CycleMonthly,
		Status:             entity.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	if err := uow.SubscriptionRepository().Create(ctx, sub); err != nil {
		return nil, err
	}

	freeTier := entity.TierFree
	if err := s.appendAudit(ctx, uow, orgId, entity.SubEventCreated, nil, &freeTier, nil, "organization registered"); err != nil {
		return nil, err
	}
	if err := s.usage.InitializeForOrg(ctx, orgId, entity.TierFree); err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubscriptionCreated, orgId, map[string]interface{}{"tier": string(entity.TierFree)})
	return toSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, orgId uuid.UUID) (*dto.SubscriptionDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.OrgOwnedBy{OrgID: orgId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NotFound("Subscription")
	}

	metrics, err := s.usage.GetUsage(ctx, orgId)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionDetailResponse{
		Subscription: toSubscriptionResponse(sub),
		Usage:        metrics,
	}, nil
}

func (s *subscriptionService) StartTrial(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.StartTrialRequest) (*dto.SubscriptionResponse, error) {
	tier := entity.PlanTier(req.Tier)

	var out *entity.Subscription
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if !sub.IsFree() || sub.Status != entity.SubscriptionStatusActive {
			return apperror.InvalidTransition("Trials can only start from the free plan",
				fmt.Sprintf("org %s is %s/%s", orgId, sub.PlanTier, sub.Status))
		}

		plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, tier)
		if err != nil {
			return err
		}
		if plan == nil || !plan.TrialAvailable {
			return apperror.Validation("This plan does not offer a trial")
		}

		// One trial per organization, ever.
		prior, err := uow.SubscriptionEventRepository().FindLatestByType(ctx, orgId, entity.SubEventTrialStarted)
		if err != nil {
			return err
		}
		if prior != nil {
			return apperror.InvalidTransition("This organization has already used its trial",
				fmt.Sprintf("org %s trialed at %s", orgId, prior.OccurredAt))
		}

		now := s.now()
		trialEnd := now.Add(entity.TrialDuration)
		previous := sub.PlanTier
		sub.PlanTier = tier
		sub.Status = entity.SubscriptionStatusTrialing
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = trialEnd
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		if err := s.appendAudit(ctx, uow, orgId, entity.SubEventTrialStarted, &previous, &tier, actorId, "trial started"); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, uow, sub, entity.BillingEventTrialStart, 0, plan.Currency, entity.PaymentStatusSucceeded, nil,
			fmt.Sprintf("%d-day %s trial started", int(entity.TrialDuration.Hours()/24), plan.Name)); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.usage.ApplyTierLimit(ctx, orgId, tier); err != nil {
		s.log.Error("subscription", "failed to apply trial usage limit", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
	}
	s.publish(ctx, events.TrialStarted, orgId, map[string]interface{}{"tier": req.Tier})
	return toSubscriptionResponse(out), nil
}

func (s *subscriptionService) Upgrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.UpgradeRequest) (*dto.UpgradeResponse, error) {
	targetTier := entity.PlanTier(req.Tier)
	targetCycle := entity.BillingCycle(req.BillingCycle)

	var res *dto.UpgradeResponse
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		trialConversion := sub.Status == entity.SubscriptionStatusTrialing && targetTier == sub.PlanTier
		if !trialConversion && entity.TierRank(targetTier) <= entity.TierRank(sub.PlanTier) {
			return apperror.InvalidTransition("Target plan must be higher than the current plan",
				fmt.Sprintf("org %s: %s -> %s", orgId, sub.PlanTier, targetTier))
		}
		if sub.Status == entity.SubscriptionStatusCancelled {
			return apperror.InvalidTransition("Cancelled subscriptions must be reactivated first",
				fmt.Sprintf("org %s is cancelled", orgId))
		}

		oldPlan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, sub.PlanTier)
		if err != nil {
			return err
		}
		newPlan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, targetTier)
		if err != nil {
			return err
		}
		if newPlan == nil {
			return apperror.NotFound("Plan")
		}

		customerId, err := ensureGatewayCustomer(ctx, uow, s.gateway, sub)
		if err != nil {
			return err
		}

		price := planPrice(newPlan, targetCycle)
		params := gateway.SubscriptionParams{
			CustomerId:      customerId,
			Tier:            targetTier,
			Cycle:           targetCycle,
			PaymentMethodId: req.PaymentMethodId,
			PriceMinor:      price,
			Currency:        newPlan.Currency,
		}

		// Gateway first; local state is only touched after it succeeds.
		var state *gateway.SubscriptionState
		if sub.GatewaySubscriptionId == nil {
			state, err = s.gateway.CreateSubscription(ctx, params)
		} else {
			state, err = s.gateway.UpdateSubscription(ctx, *sub.GatewaySubscriptionId, params)
		}
		if err != nil {
			return err
		}

		// Proration applies to paid->paid monthly upgrades mid-cycle. Upgrades
		// from free or trial pay the full new price via the gateway invoice.
		now := s.now()
		var charged int64
		if !trialConversion && sub.PlanTier.IsPaid() && sub.BillingCycle == entity.CycleMonthly && targetCycle == entity.CycleMonthly && oldPlan != nil {
			charged = billing.UpgradeProration(
				oldPlan.MonthlyPriceMinor, newPlan.MonthlyPriceMinor,
				billing.DaysRemaining(now, sub.CurrentPeriodEnd),
				billing.PeriodDays(sub.CurrentPeriodStart, sub.CurrentPeriodEnd),
			)
		} else {
			charged = price
		}

		previous := sub.PlanTier
		sub.PlanTier = targetTier
		sub.BillingCycle = targetCycle
		sub.Status = entity.SubscriptionStatusActive
		sub.TrialEnd = nil
		sub.CurrentPeriodStart = state.PeriodStart
		sub.CurrentPeriodEnd = state.PeriodEnd
		sub.CancelAtPeriodEnd = false
		sub.CancelledAt = nil
		sub.DataRetentionUntil = nil
		sub.PendingDowngrade = nil
		sub.GatewaySubscriptionId = &state.SubscriptionId
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		eventType := entity.SubEventUpgraded
		if err := s.appendAudit(ctx, uow, orgId, eventType, &previous, &targetTier, actorId, "plan upgraded"); err != nil {
			return err
		}
		var invoiceRef *string
		if state.LatestInvoice != "" {
			invoiceRef = &state.LatestInvoice
		}
		if err := s.appendHistory(ctx, uow, sub, entity.BillingEventCharge, charged, newPlan.Currency, entity.PaymentStatusSucceeded, invoiceRef,
			fmt.Sprintf("upgraded %s -> %s (%s)", previous, targetTier, targetCycle)); err != nil {
			return err
		}

		res = &dto.UpgradeResponse{
			Subscription: toSubscriptionResponse(sub),
			ChargedCents: charged,
			Currency:     newPlan.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.usage.ApplyTierLimit(ctx, orgId, targetTier); err != nil {
		s.log.Error("subscription", "failed to apply upgraded usage limit", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
	}
	s.publish(ctx, events.SubscriptionUpgraded, orgId, map[string]interface{}{
		"tier": req.Tier, "billing_cycle": req.BillingCycle,
	})
	return res, nil
}

func (s *subscriptionService) Downgrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.DowngradeRequest) (*dto.SubscriptionResponse, error) {
	targetTier := entity.PlanTier(req.Tier)

	var out *entity.Subscription
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if sub.Status != entity.SubscriptionStatusActive || !sub.PlanTier.IsPaid() {
			return apperror.InvalidTransition("Only active paid subscriptions can be downgraded",
				fmt.Sprintf("org %s is %s/%s", orgId, sub.PlanTier, sub.Status))
		}
		if entity.TierRank(targetTier) >= entity.TierRank(sub.PlanTier) {
			return apperror.InvalidTransition("Target plan must be lower than the current plan",
				fmt.Sprintf("org %s: %s -> %s", orgId, sub.PlanTier, targetTier))
		}
		if sub.PendingDowngrade != nil {
			return apperror.InvalidTransition("A downgrade is already scheduled",
				fmt.Sprintf("org %s has pending downgrade to %s", orgId, sub.PendingDowngrade.TargetTier))
		}

		oldPlan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, sub.PlanTier)
		if err != nil {
			return err
		}
		newPlan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, targetTier)
		if err != nil {
			return err
		}
		if oldPlan == nil || newPlan == nil {
			return apperror.NotFound("Plan")
		}

		// The credit is computed now but only lands on the gateway balance
		// when the downgrade takes effect; a downgrade to free has no next
		// invoice so no credit is owed.
		now := s.now()
		var credit int64
		if targetTier.IsPaid() && sub.BillingCycle == entity.CycleMonthly {
			credit = billing.DowngradeCredit(
				oldPlan.MonthlyPriceMinor, newPlan.MonthlyPriceMinor,
				billing.DaysRemaining(now, sub.CurrentPeriodEnd),
				billing.PeriodDays(sub.CurrentPeriodStart, sub.CurrentPeriodEnd),
			)
		}

		sub.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  targetTier,
			EffectiveAt: sub.CurrentPeriodEnd,
			CreditMinor: credit,
		}
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		current := sub.PlanTier
		reason := fmt.Sprintf("downgrade scheduled for %s", sub.CurrentPeriodEnd.Format(time.RFC3339))
		if req.Reason != "" {
			reason = req.Reason
		}
		if err := s.appendAudit(ctx, uow, orgId, entity.SubEventDowngradeScheduled, &current, &targetTier, actorId, reason); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toSubscriptionResponse(out), nil
}

func (s *subscriptionService) CancelDowngrade(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID) (*dto.SubscriptionResponse, error) {
	var out *entity.Subscription
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if sub.PendingDowngrade == nil {
			return apperror.InvalidTransition("No downgrade is scheduled", fmt.Sprintf("org %s", orgId))
		}

		// The credit was never applied; it would only have landed when the
		// downgrade took effect, so there is nothing to reverse.
		target := sub.PendingDowngrade.TargetTier
		sub.PendingDowngrade = nil
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		current := sub.PlanTier
		if err := s.appendAudit(ctx, uow, orgId, entity.SubEventDowngradeCancelled, &current, &target, actorId, "scheduled downgrade cancelled"); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toSubscriptionResponse(out), nil
}

func (s *subscriptionService) SwitchBillingCycle(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.SwitchCycleRequest) (*dto.UpgradeResponse, error) {
	targetCycle := entity.BillingCycle(req.BillingCycle)

	var res *dto.UpgradeResponse
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		if sub.Status != entity.SubscriptionStatusActive || !sub.PlanTier.IsPaid() {
			return apperror.InvalidTransition("Only active paid subscriptions can switch billing cycle",
				fmt.Sprintf("org %s is %s/%s", orgId, sub.PlanTier, sub.Status))
		}
		if sub.BillingCycle == targetCycle {
			return apperror.Validation("Subscription already uses this billing cycle")
		}
		if sub.GatewaySubscriptionId == nil || sub.GatewayCustomerId == nil {
			return apperror.InvalidTransition("Subscription is not linked to the payment gateway",
				fmt.Sprintf("org %s has no gateway subscription", orgId))
		}

		plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, sub.PlanTier)
		if err != nil {
			return err
		}
		if plan == nil {
			return apperror.NotFound("Plan")
		}

		now := s.now()
		daysRemaining := billing.DaysRemaining(now, sub.CurrentPeriodEnd)
		daysInPeriod := billing.PeriodDays(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)

		var charged, credited int64
		if targetCycle == entity.CycleAnnual {
			charged = billing.SwitchToAnnualCharge(plan.MonthlyPriceMinor, daysRemaining, daysInPeriod)
		} else {
			unused := billing.AnnualPrice(plan.MonthlyPriceMinor)
			credited = billing.SwitchToMonthlyCredit(unused, daysRemaining, daysInPeriod)
		}

		state, err := s.gateway.UpdateSubscription(ctx, *sub.GatewaySubscriptionId, gateway.SubscriptionParams{
			CustomerId: *sub.GatewayCustomerId,
			Tier:       sub.PlanTier,
			Cycle:      targetCycle,
			PriceMinor: planPrice(plan, targetCycle),
			Currency:   plan.Currency,
		})
		if err != nil {
			return err
		}
		if credited > 0 {
			if err := s.gateway.ApplyBalanceCredit(ctx, *sub.GatewayCustomerId, credited, plan.Currency,
				"unused annual value credited on switch to monthly"); err != nil {
				return err
			}
		}

		previous := sub.BillingCycle
		sub.BillingCycle = targetCycle
		sub.CurrentPeriodStart = state.PeriodStart
		sub.CurrentPeriodEnd = state.PeriodEnd
		if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
			return err
		}

		tier := sub.PlanTier
		if err := s.appendAudit(ctx, uow, orgId, entity.SubEventCycleSwitched, &tier, &tier, actorId,
			fmt.Sprintf("billing cycle %s -> %s", previous, targetCycle)); err != nil {
			return err
		}
		amount := charged
		if credited > 0 {
			amount = -credited
		}
		if err := s.appendHistory(ctx, uow, sub, entity.BillingEventPlanChange, amount, plan.Currency, entity.PaymentStatusSucceeded, nil,
			fmt.Sprintf("billing cycle switched %s -> %s", previous, targetCycle)); err != nil {
			return err
		}

		res = &dto.UpgradeResponse{
			Subscription:  toSubscriptionResponse(sub),
			ChargedCents:  charged,
			CreditedCents: credited,
			Currency:      plan.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubscriptionUpgraded, orgId, map[string]interface{}{
		"tier": "", "billing_cycle": req.BillingCycle,
	})
	return res, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID, req *dto.CancelRequest) (*dto.SubscriptionResponse, error) {
	var immediately bool
	var userReason string
	if req != nil {
		immediately = req.Immediately
		userReason = req.Reason
	}

	var out *entity.Subscription
	var landedFree bool
	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		switch {
		case sub.Status == entity.SubscriptionStatusTrialing:
			// Cancelling a trial takes effect immediately.
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
			if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}
			if err := s.appendAudit(ctx, uow, orgId, entity.SubEventCancelled, &previous, &free, actorId,
				reasonOr(userReason, "trial cancelled")); err != nil {
				return err
			}
			landedFree = true
			out = sub
			return nil

		case sub.Status == entity.SubscriptionStatusActive && sub.PlanTier.IsPaid():
			if immediately {
				if sub.GatewaySubscriptionId != nil {
					if err := s.gateway.CancelSubscription(ctx, *sub.GatewaySubscriptionId, false); err != nil {
						return err
					}
				}
				if err := completeCancellation(ctx, uow, sub, s.now(),
					reasonOr(userReason, "cancelled immediately at user request")); err != nil {
					return err
				}
				landedFree = true
				out = sub
				return nil
			}

			if sub.CancelAtPeriodEnd {
				return apperror.InvalidTransition("Cancellation is already scheduled", fmt.Sprintf("org %s", orgId))
			}
			if sub.GatewaySubscriptionId != nil {
				if err := s.gateway.CancelSubscription(ctx, *sub.GatewaySubscriptionId, true); err != nil {
					return err
				}
			}
			sub.CancelAtPeriodEnd = true
			sub.PendingDowngrade = nil
			if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}
			tier := sub.PlanTier
			if err := s.appendAudit(ctx, uow, orgId, entity.SubEventCancelled, &tier, &tier, actorId,
				reasonOr(userReason, fmt.Sprintf("cancellation scheduled for %s", sub.CurrentPeriodEnd.Format(time.RFC3339)))); err != nil {
				return err
			}
			plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, sub.PlanTier)
			if err != nil {
				return err
			}
			currency := "usd"
			if plan != nil {
				currency = plan.Currency
			}
			if err := s.appendHistory(ctx, uow, sub, entity.BillingEventCancellation, 0, currency, entity.PaymentStatusSucceeded, nil,
				"cancellation scheduled at period end"); err != nil {
				return err
			}
			out = sub
			return nil

		default:
			return apperror.InvalidTransition("Nothing to cancel",
				fmt.Sprintf("org %s is %s/%s", orgId, sub.PlanTier, sub.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	if landedFree {
		if err := s.usage.ApplyTierLimit(ctx, orgId, entity.TierFree); err != nil {
			s.log.Error("subscription", "failed to reset usage limit after cancellation", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
		}
	}
	s.publish(ctx, events.SubscriptionCancelled, orgId, nil)
	return toSubscriptionResponse(out), nil
}

// reasonOr prefers the user-supplied reason over the default audit wording.
func reasonOr(userReason, fallback string) string {
	if userReason != "" {
		return userReason
	}
	return fallback
}

func (s *subscriptionService) Reactivate(ctx context.Context, orgId uuid.UUID, actorId *uuid.UUID) (*dto.SubscriptionResponse, error) {
	var out *entity.Subscription
	var restoredTier entity.PlanTier

	err := s.withOrgLock(ctx, orgId, func(uow unitofwork.UnitOfWork, sub *entity.Subscription) error {
		switch {
		// Scheduled but not yet completed: just clear the flag.
		case sub.Status == entity.SubscriptionStatusActive && sub.CancelAtPeriodEnd:
			if sub.GatewaySubscriptionId != nil {
				if _, err := s.gateway.ResumeSubscription(ctx, *sub.GatewaySubscriptionId); err != nil {
					return err
				}
			}
			sub.CancelAtPeriodEnd = false
			if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}
			tier := sub.PlanTier
			if err := s.appendAudit(ctx, uow, orgId, entity.SubEventReactivated, &tier, &tier, actorId, "scheduled cancellation withdrawn"); err != nil {
				return err
			}
			restoredTier = sub.PlanTier
			out = sub
			return nil

		// Completed cancellation: restore the previous tier while the data
		// retention window is open.
		case sub.Status == entity.SubscriptionStatusCancelled:
			now := s.now()
			if !sub.InRetentionWindow(now) {
				return apperror.RetentionExpired("The reactivation window has closed; please start a new subscription")
			}

			cancelEvent, err := uow.SubscriptionEventRepository().FindLatestByType(ctx, orgId, entity.SubEventCancelled)
			if err != nil {
				return err
			}
			// Only a completion row (paid tier -> free) identifies the plan to
			// restore; a scheduling row records the same tier on both sides.
			if cancelEvent == nil || !cancelEvent.ChangesTier() {
				return apperror.InvalidTransition("Previous plan could not be determined",
					fmt.Sprintf("org %s has no cancellation audit trail", orgId))
			}
			targetTier := *cancelEvent.PreviousPlan

			plan, err := uow.SubscriptionRepository().FindPlanByTier(ctx, targetTier)
			if err != nil {
				return err
			}
			if plan == nil {
				return apperror.NotFound("Plan")
			}

			primary, err := uow.BillingRepository().FindOnePaymentMethod(ctx,
				specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{},
				specification.FilterBy{Field: "is_primary", Value: true})
			if err != nil {
				return err
			}
			if primary == nil {
				return apperror.Validation("A payment method is required to reactivate")
			}

			customerId, err := ensureGatewayCustomer(ctx, uow, s.gateway, sub)
			if err != nil {
				return err
			}
			state, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionParams{
				CustomerId:      customerId,
				Tier:            targetTier,
				Cycle:           sub.BillingCycle,
				PaymentMethodId: primary.GatewayMethodId,
				PriceMinor:      planPrice(plan, sub.BillingCycle),
				Currency:        plan.Currency,
			})
			if err != nil {
				return err
			}

			previous := sub.PlanTier
			sub.PlanTier = targetTier
			sub.Status = entity.SubscriptionStatusActive
			sub.CurrentPeriodStart = state.PeriodStart
			sub.CurrentPeriodEnd = state.PeriodEnd
			sub.CancelAtPeriodEnd = false
			sub.CancelledAt = nil
			sub.DataRetentionUntil = nil
			sub.GatewaySubscriptionId = &state.SubscriptionId
			if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
				return err
			}

			if err := s.appendAudit(ctx, uow, orgId, entity.SubEventReactivated, &previous, &targetTier, actorId, "subscription reactivated within retention window"); err != nil {
				return err
			}
			var invoiceRef *string
			if state.LatestInvoice != "" {
				invoiceRef = &state.LatestInvoice
			}
			if err := s.appendHistory(ctx, uow, sub, entity.BillingEventReactivation, planPrice(plan, sub.BillingCycle), plan.Currency,
				entity.PaymentStatusSucceeded, invoiceRef, fmt.Sprintf("reactivated on %s plan", plan.Name)); err != nil {
				return err
			}
			restoredTier = targetTier
			out = sub
			return nil

		default:
			return apperror.InvalidTransition("Subscription is not cancelled",
				fmt.Sprintf("org %s is %s/%s", orgId, sub.PlanTier, sub.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	if err := s.usage.ApplyTierLimit(ctx, orgId, restoredTier); err != nil {
		s.log.Error("subscription", "failed to apply reactivated usage limit", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
	}
	s.publish(ctx, events.SubscriptionReactivated, orgId, map[string]interface{}{"tier": string(restoredTier)})
	return toSubscriptionResponse(out), nil
}

func (s *subscriptionService) GetHistory(ctx context.Context, orgId uuid.UUID, page, pageSize int) (*dto.BillingHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	total, err := uow.BillingRepository().CountHistory(ctx, orgId)
	if err != nil {
		return nil, err
	}
	entries, err := uow.BillingRepository().FindHistory(ctx,
		specification.OrgOwnedBy{OrgID: orgId},
		specification.OrderBy{Field: "occurred_at", Desc: true},
		specification.Pagination{Limit: pageSize, Offset: (page - 1) * pageSize},
	)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.BillingHistoryItemResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, &dto.BillingHistoryItemResponse{
			Id:            e.Id,
			EventType:     string(e.EventType),
			AmountCents:   e.AmountMinorUnits,
			Currency:      e.Currency,
			PaymentStatus: string(e.PaymentStatus),
			InvoiceRef:    e.InvoiceRef,
			Description:   e.Description,
			OccurredAt:    e.OccurredAt,
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.BillingHistoryResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// --- helpers ---

// ensureGatewayCustomer lazily provisions the gateway customer object for an
// org that has never been billed, enriching it with the billing address when
// one exists.
func ensureGatewayCustomer(ctx context.Context, uow unitofwork.UnitOfWork, pg gateway.PaymentGateway, sub *entity.Subscription) (string, error) {
	if sub.GatewayCustomerId != nil {
		return *sub.GatewayCustomerId, nil
	}

	params := gateway.CustomerParams{OrgId: sub.OrgId}
	addr, err := uow.BillingRepository().FindOneAddress(ctx, specification.OrgOwnedBy{OrgID: sub.OrgId})
	if err != nil {
		return "", err
	}
	if addr != nil {
		params.Email = addr.Email
		params.Name = fmt.Sprintf("%s %s", addr.FirstName, addr.LastName)
	}

	customerId, err := pg.CreateCustomer(ctx, params)
	if err != nil {
		return "", err
	}
	sub.GatewayCustomerId = &customerId
	return customerId, nil
}

func (s *subscriptionService) appendAudit(ctx context.Context, uow unitofwork.UnitOfWork, orgId uuid.UUID,
	eventType entity.SubscriptionEventType, previous, next *entity.PlanTier, actorId *uuid.UUID, reason string) error {
	return uow.SubscriptionEventRepository().Append(ctx, &entity.SubscriptionEvent{
		OrgId:        orgId,
		EventType:    eventType,
		PreviousPlan: previous,
		NewPlan:      next,
		ActorId:      actorId,
		Reason:       reason,
		OccurredAt:   s.now(),
	})
}

func (s *subscriptionService) appendHistory(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription,
	eventType entity.BillingEventType, amountMinor int64, currency string, status entity.PaymentStatus,
	invoiceRef *string, description string) error {
	return uow.BillingRepository().AppendHistory(ctx, &entity.BillingHistoryEntry{
		OrgId:            sub.OrgId,
		SubscriptionId:   &sub.Id,
		EventType:        eventType,
		AmountMinorUnits: amountMinor,
		Currency:         currency,
		PaymentStatus:    status,
		InvoiceRef:       invoiceRef,
		Description:      description,
		OccurredAt:       s.now(),
	})
}

func (s *subscriptionService) publish(ctx context.Context, eventType string, orgId uuid.UUID, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.NewSubscriptionEvent(eventType, orgId.String(), data)); err != nil {
		s.log.Warn("subscription", "failed to publish lifecycle event", map[string]interface{}{
			"event": eventType, "org_id": orgId.String(), "error": err.Error(),
		})
	}
}

func planPrice(plan *entity.Plan, cycle entity.BillingCycle) int64 {
	if cycle == entity.CycleAnnual {
		return billing.AnnualPrice(plan.MonthlyPriceMinor)
	}
	return plan.MonthlyPriceMinor
}

func toSubscriptionResponse(sub *entity.Subscription) *dto.SubscriptionResponse {
	res := &dto.SubscriptionResponse{
		Id:                 sub.Id,
		OrgId:              sub.OrgId,
		PlanTier:           string(sub.PlanTier),
		BillingCycle:       string(sub.BillingCycle),
		Status:             string(sub.Status),
		TrialEnd:           sub.TrialEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CancelledAt:        sub.CancelledAt,
		DataRetentionUntil: sub.DataRetentionUntil,
	}
	if sub.PendingDowngrade != nil {
		res.PendingDowngrade = &dto.PendingDowngradeResponse{
			TargetTier:  string(sub.PendingDowngrade.TargetTier),
			EffectiveAt: sub.PendingDowngrade.EffectiveAt,
			CreditCents: sub.PendingDowngrade.CreditMinor,
		}
	}
	return res
}
