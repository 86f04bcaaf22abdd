package service

import (
	"context"
	"testing"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobsEnv struct {
	store *memStore
	gw    *fakeGateway
	bus   *fakeBus
	jobs  *jobsService
}

func newJobsEnv(t *testing.T) *jobsEnv {
	t.Helper()
	store := newMemStore()
	gw := newFakeGateway()
	bus := &fakeBus{}
	factory := &fakeFactory{store: store}
	usage := NewUsageService(factory, nil, nopLogger{})

	jobs := NewJobsService(factory, gw, usage, bus, nopLogger{}).(*jobsService)
	jobs.now = func() time.Time { return testNow }

	return &jobsEnv{store: store, gw: gw, bus: bus, jobs: jobs}
}

func (e *jobsEnv) seed(sub *entity.Subscription) *entity.Subscription {
	env := &billingEnv{store: e.store}
	env.seed(sub)
	return sub
}

func TestApplyPendingDowngrades(t *testing.T) {
	ctx := context.Background()

	t.Run("due downgrade to a paid tier updates the gateway", func(t *testing.T) {
		env := newJobsEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		sub.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  entity.TierStarter,
			EffectiveAt: testNow.Add(-time.Hour),
			CreditMinor: 2500,
		}
		env.seed(sub)

		report := env.jobs.ApplyPendingDowngrades(ctx)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 1, env.gw.callCount("UpdateSubscription"))

		// The scheduled credit lands on the balance now, not earlier.
		assert.Equal(t, []int64{2500}, env.gw.creditAmounts)
		require.Len(t, env.store.history, 1)
		assert.Equal(t, int64(-2500), env.store.history[0].AmountMinorUnits)
		assert.Equal(t, entity.BillingEventPlanChange, env.store.history[0].EventType)

		after := env.store.subs[sub.OrgId]
		assert.Equal(t, entity.TierStarter, after.PlanTier)
		assert.Nil(t, after.PendingDowngrade)
		require.NotNil(t, after.GatewaySubscriptionId)
		require.NotNil(t, after.GatewayCustomerId)

		// Usage limit follows the new tier.
		metric := env.store.usage[usageKey(sub.OrgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(50), metric.PlanLimit)

		// The audit trail records the applied downgrade.
		require.Len(t, env.store.auditEvents, 1)
		assert.Equal(t, entity.SubEventDowngradeApplied, env.store.auditEvents[0].EventType)
	})

	t.Run("due downgrade to free ends the gateway subscription", func(t *testing.T) {
		env := newJobsEnv(t)
		sub := activeSub(entity.TierStarter, entity.CycleMonthly)
		sub.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  entity.TierFree,
			EffectiveAt: testNow.Add(-time.Hour),
		}
		env.seed(sub)

		report := env.jobs.ApplyPendingDowngrades(ctx)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 1, env.gw.callCount("CancelSubscription/immediate"))
		assert.Empty(t, env.gw.creditAmounts)

		after := env.store.subs[sub.OrgId]
		assert.Equal(t, entity.TierFree, after.PlanTier)
		assert.Nil(t, after.GatewaySubscriptionId)
		assert.Nil(t, after.GatewayCustomerId)
	})

	t.Run("not yet due is left alone and rerun is a no-op", func(t *testing.T) {
		env := newJobsEnv(t)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		sub.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  entity.TierStarter,
			EffectiveAt: testNow.Add(time.Hour),
		}
		env.seed(sub)

		report := env.jobs.ApplyPendingDowngrades(ctx)
		assert.Equal(t, 0, report.Processed)

		due := activeSub(entity.TierPro, entity.CycleMonthly)
		due.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  entity.TierStarter,
			EffectiveAt: testNow.Add(-time.Hour),
		}
		env.seed(due)

		report = env.jobs.ApplyPendingDowngrades(ctx)
		assert.Equal(t, 1, report.Processed)
		report = env.jobs.ApplyPendingDowngrades(ctx)
		assert.Equal(t, 0, report.Processed)
		assert.Equal(t, 0, report.Failed)
	})
}

func TestExpireTrials(t *testing.T) {
	ctx := context.Background()
	env := newJobsEnv(t)

	trialEnd := testNow.Add(-time.Minute)
	sub := activeSub(entity.TierPro, entity.CycleMonthly)
	sub.Status = entity.SubscriptionStatusTrialing
	sub.TrialEnd = &trialEnd
	sub.GatewayCustomerId = nil
	sub.GatewaySubscriptionId = nil
	env.seed(sub)

	stillRunning := activeSub(entity.TierEnterprise, entity.CycleMonthly)
	stillRunning.Status = entity.SubscriptionStatusTrialing
	future := testNow.Add(time.Hour)
	stillRunning.TrialEnd = &future
	env.seed(stillRunning)

	report := env.jobs.ExpireTrials(ctx)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Failed)

	after := env.store.subs[sub.OrgId]
	assert.Equal(t, entity.TierFree, after.PlanTier)
	assert.Equal(t, entity.SubscriptionStatusActive, after.Status)
	assert.Nil(t, after.TrialEnd)

	// The running trial is untouched.
	assert.Equal(t, entity.SubscriptionStatusTrialing, env.store.subs[stillRunning.OrgId].Status)

	// Usage limit drops back to the free tier.
	metric := env.store.usage[usageKey(sub.OrgId, entity.MetricVolunteers)]
	assert.Equal(t, int64(10), metric.PlanLimit)

	// Idempotent on rerun.
	report = env.jobs.ExpireTrials(ctx)
	assert.Equal(t, 0, report.Processed)
}

func TestExpireTrialsConvertsWithPaymentMethod(t *testing.T) {
	ctx := context.Background()

	seedTrial := func(env *jobsEnv) *entity.Subscription {
		trialEnd := testNow.Add(-time.Minute)
		sub := activeSub(entity.TierPro, entity.CycleMonthly)
		sub.Status = entity.SubscriptionStatusTrialing
		sub.TrialEnd = &trialEnd
		sub.GatewayCustomerId = nil
		sub.GatewaySubscriptionId = nil
		env.seed(sub)
		env.store.paymentMethods = append(env.store.paymentMethods, &entity.PaymentMethod{
			Id: uuid.New(), OrgId: sub.OrgId, GatewayMethodId: "pm_primary", IsPrimary: true, IsActive: true,
		})
		return sub
	}

	t.Run("converts to a paid subscription at full price", func(t *testing.T) {
		env := newJobsEnv(t)
		sub := seedTrial(env)

		report := env.jobs.ExpireTrials(ctx)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 1, env.gw.callCount("CreateCustomer"))
		assert.Equal(t, 1, env.gw.callCount("CreateSubscription"))

		after := env.store.subs[sub.OrgId]
		assert.Equal(t, entity.TierPro, after.PlanTier)
		assert.Equal(t, entity.SubscriptionStatusActive, after.Status)
		assert.Nil(t, after.TrialEnd)
		require.NotNil(t, after.GatewaySubscriptionId)

		// The trial tier limit is unchanged.
		metric := env.store.usage[usageKey(sub.OrgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(200), metric.PlanLimit)

		require.Len(t, env.store.history, 1)
		assert.Equal(t, entity.BillingEventCharge, env.store.history[0].EventType)
		assert.Equal(t, int64(7900), env.store.history[0].AmountMinorUnits)

		require.NotEmpty(t, env.bus.published)
		assert.Equal(t, events.SubscriptionUpgraded, env.bus.published[len(env.bus.published)-1].EventType())
	})

	t.Run("declined charge falls back to the free downgrade", func(t *testing.T) {
		env := newJobsEnv(t)
		sub := seedTrial(env)
		env.gw.createSubErr = apperror.Gateway(apperror.GatewayCardDeclined, "Your card was declined", "decline_code=do_not_honor", nil)

		report := env.jobs.ExpireTrials(ctx)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 0, report.Failed)

		after := env.store.subs[sub.OrgId]
		assert.Equal(t, entity.TierFree, after.PlanTier)
		assert.Equal(t, entity.SubscriptionStatusActive, after.Status)
		assert.Nil(t, after.GatewaySubscriptionId)
		// The customer created for the conversion attempt is not kept on the
		// free row.
		assert.Nil(t, after.GatewayCustomerId)

		metric := env.store.usage[usageKey(sub.OrgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(10), metric.PlanLimit)
	})
}

func TestExpireTrialsBoundary(t *testing.T) {
	ctx := context.Background()
	env := newJobsEnv(t)

	justEnded := activeSub(entity.TierPro, entity.CycleMonthly)
	justEnded.Status = entity.SubscriptionStatusTrialing
	past := testNow.Add(-time.Second)
	justEnded.TrialEnd = &past
	justEnded.GatewayCustomerId = nil
	justEnded.GatewaySubscriptionId = nil
	env.seed(justEnded)

	stillOpen := activeSub(entity.TierEnterprise, entity.CycleMonthly)
	stillOpen.Status = entity.SubscriptionStatusTrialing
	future := testNow.Add(time.Second)
	stillOpen.TrialEnd = &future
	env.seed(stillOpen)

	report := env.jobs.ExpireTrials(ctx)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, entity.TierFree, env.store.subs[justEnded.OrgId].PlanTier)
	assert.Equal(t, entity.SubscriptionStatusTrialing, env.store.subs[stillOpen.OrgId].Status)
}

func TestCompleteCancellations(t *testing.T) {
	ctx := context.Background()
	env := newJobsEnv(t)

	sub := activeSub(entity.TierPro, entity.CycleMonthly)
	sub.CancelAtPeriodEnd = true
	sub.CurrentPeriodEnd = testNow.Add(-time.Minute)
	env.seed(sub)

	report := env.jobs.CompleteCancellations(ctx)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Failed)

	after := env.store.subs[sub.OrgId]
	assert.Equal(t, entity.TierFree, after.PlanTier)
	assert.Equal(t, entity.SubscriptionStatusCancelled, after.Status)
	require.NotNil(t, after.CancelledAt)
	require.NotNil(t, after.DataRetentionUntil)
	assert.Equal(t, testNow.Add(entity.RetentionWindow), *after.DataRetentionUntil)
	assert.Nil(t, after.GatewaySubscriptionId)
	assert.Nil(t, after.GatewayCustomerId)

	// The completion audit row is what a later reactivation reads the old
	// tier from.
	require.Len(t, env.store.auditEvents, 1)
	event := env.store.auditEvents[0]
	assert.Equal(t, entity.SubEventCancelled, event.EventType)
	assert.Equal(t, entity.TierPro, *event.PreviousPlan)
	assert.Equal(t, entity.TierFree, *event.NewPlan)

	// Idempotent on rerun.
	report = env.jobs.CompleteCancellations(ctx)
	assert.Equal(t, 0, report.Processed)
}

func TestExpireRetentionWindows(t *testing.T) {
	ctx := context.Background()
	env := newJobsEnv(t)

	expired := testNow.Add(-time.Minute)
	sub := activeSub(entity.TierFree, entity.CycleMonthly)
	sub.Status = entity.SubscriptionStatusCancelled
	sub.DataRetentionUntil = &expired
	env.seed(sub)

	open := testNow.Add(24 * time.Hour)
	inWindow := activeSub(entity.TierFree, entity.CycleMonthly)
	inWindow.Status = entity.SubscriptionStatusCancelled
	inWindow.DataRetentionUntil = &open
	env.seed(inWindow)

	report := env.jobs.ExpireRetentionWindows(ctx)
	assert.Equal(t, 1, report.Processed)

	// The row stays cancelled with its retention timestamp; only the purge
	// marker changes.
	after := env.store.subs[sub.OrgId]
	assert.True(t, after.MarkedForDeletion)
	assert.Equal(t, entity.SubscriptionStatusCancelled, after.Status)
	require.NotNil(t, after.DataRetentionUntil)
	assert.Equal(t, expired, *after.DataRetentionUntil)

	// Still inside the window: untouched.
	assert.False(t, env.store.subs[inWindow.OrgId].MarkedForDeletion)

	// Idempotent on rerun.
	report = env.jobs.ExpireRetentionWindows(ctx)
	assert.Equal(t, 0, report.Processed)
}

func TestExpireRetentionWindowsBlocksLateReactivation(t *testing.T) {
	ctx := context.Background()
	env := newJobsEnv(t)

	expired := testNow.Add(-time.Minute)
	sub := activeSub(entity.TierFree, entity.CycleMonthly)
	sub.Status = entity.SubscriptionStatusCancelled
	sub.DataRetentionUntil = &expired
	env.seed(sub)

	report := env.jobs.ExpireRetentionWindows(ctx)
	require.Equal(t, 1, report.Processed)

	// A reactivation attempt after the sweep is rejected as expired, not
	// treated as an active subscription.
	svc := NewSubscriptionService(&fakeFactory{store: env.store}, env.gw, NewUsageService(&fakeFactory{store: env.store}, nil, nopLogger{}), env.bus, nopLogger{}).(*subscriptionService)
	svc.now = func() time.Time { return testNow }

	_, err := svc.Reactivate(ctx, sub.OrgId, nil)
	assert.True(t, apperror.IsKind(err, apperror.KindRetentionExpired))
}

func TestRunDailyMaintenanceOrder(t *testing.T) {
	env := newJobsEnv(t)

	reports := env.jobs.RunDailyMaintenance(context.Background())
	require.Len(t, reports, 4)
	assert.Equal(t, "apply_pending_downgrades", reports[0].Job)
	assert.Equal(t, "expire_trials", reports[1].Job)
	assert.Equal(t, "complete_cancellations", reports[2].Job)
	assert.Equal(t, "expire_retention_windows", reports[3].Job)
}
