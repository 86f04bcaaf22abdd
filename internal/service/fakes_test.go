package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/repository/contract"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"
	"volunteer-scheduling-be/pkg/events"

	"github.com/google/uuid"
)

// testNow is the frozen clock every service test runs against.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memStore is the shared in-memory backing of the fake repositories. Entities
// are cloned on the way in and out so a service mutation only becomes visible
// once Update is called, mirroring a real transaction boundary.
type memStore struct {
	mu sync.Mutex

	subs           map[uuid.UUID]*entity.Subscription // keyed by org id
	plans          map[entity.PlanTier]*entity.Plan
	auditEvents    []*entity.SubscriptionEvent
	history        []*entity.BillingHistoryEntry
	addresses      map[uuid.UUID]*entity.BillingAddress // keyed by org id
	paymentMethods []*entity.PaymentMethod
	usage          map[string]*entity.UsageMetric
	webhooks       map[string]*entity.WebhookEvent

	// lockConflicts makes the next N FindByOrgForUpdate calls fail with a
	// concurrency conflict, to exercise the retry path.
	lockConflicts int
}

func newMemStore() *memStore {
	s := &memStore{
		subs:      make(map[uuid.UUID]*entity.Subscription),
		plans:     make(map[entity.PlanTier]*entity.Plan),
		addresses: make(map[uuid.UUID]*entity.BillingAddress),
		usage:     make(map[string]*entity.UsageMetric),
		webhooks:  make(map[string]*entity.WebhookEvent),
	}
	for _, p := range entity.DefaultPlans() {
		plan := *p
		plan.Id = uuid.New()
		s.plans[plan.Tier] = &plan
	}
	return s
}

func usageKey(orgId uuid.UUID, metricType entity.MetricType) string {
	return orgId.String() + "/" + string(metricType)
}

func cloneSub(s *entity.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	out := *s
	if s.PendingDowngrade != nil {
		pd := *s.PendingDowngrade
		out.PendingDowngrade = &pd
	}
	if s.GatewayCustomerId != nil {
		v := *s.GatewayCustomerId
		out.GatewayCustomerId = &v
	}
	if s.GatewaySubscriptionId != nil {
		v := *s.GatewaySubscriptionId
		out.GatewaySubscriptionId = &v
	}
	if s.TrialEnd != nil {
		v := *s.TrialEnd
		out.TrialEnd = &v
	}
	if s.CancelledAt != nil {
		v := *s.CancelledAt
		out.CancelledAt = &v
	}
	if s.DataRetentionUntil != nil {
		v := *s.DataRetentionUntil
		out.DataRetentionUntil = &v
	}
	return &out
}

// --- fake unit of work ---

type fakeFactory struct {
	store *memStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

type fakeUow struct {
	store *memStore
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) SubscriptionRepository() contract.SubscriptionRepository {
	return &fakeSubRepo{store: u.store}
}
func (u *fakeUow) BillingRepository() contract.BillingRepository {
	return &fakeBillingRepo{store: u.store}
}
func (u *fakeUow) SubscriptionEventRepository() contract.SubscriptionEventRepository {
	return &fakeEventRepo{store: u.store}
}
func (u *fakeUow) WebhookEventRepository() contract.WebhookEventRepository {
	return &fakeWebhookRepo{store: u.store}
}
func (u *fakeUow) UsageRepository() contract.UsageRepository {
	return &fakeUsageRepo{store: u.store}
}

// --- subscription repository ---

type fakeSubRepo struct {
	store *memStore
}

func (r *fakeSubRepo) Create(ctx context.Context, sub *entity.Subscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if sub.Id == uuid.Nil {
		sub.Id = uuid.New()
	}
	r.store.subs[sub.OrgId] = cloneSub(sub)
	return nil
}

func (r *fakeSubRepo) Update(ctx context.Context, sub *entity.Subscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.subs[sub.OrgId] = cloneSub(sub)
	return nil
}

func (r *fakeSubRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	subs, err := r.FindAll(ctx, specs...)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return subs[0], nil
}

func (r *fakeSubRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Subscription
	for _, sub := range r.store.subs {
		if matchSub(sub, specs) {
			out = append(out, cloneSub(sub))
		}
	}
	return out, nil
}

func (r *fakeSubRepo) FindByOrgForUpdate(ctx context.Context, orgId uuid.UUID) (*entity.Subscription, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.lockConflicts > 0 {
		r.store.lockConflicts--
		return nil, apperror.ConcurrencyConflict("row locked by another transaction")
	}
	return cloneSub(r.store.subs[orgId]), nil
}

func (r *fakeSubRepo) CreatePlan(ctx context.Context, plan *entity.Plan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := *plan
	r.store.plans[p.Tier] = &p
	return nil
}

func (r *fakeSubRepo) UpdatePlan(ctx context.Context, plan *entity.Plan) error {
	return r.CreatePlan(ctx, plan)
}

func (r *fakeSubRepo) FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error) {
	plans, err := r.FindAllPlans(ctx, specs...)
	if err != nil || len(plans) == 0 {
		return nil, err
	}
	return plans[0], nil
}

func (r *fakeSubRepo) FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Plan
	for _, plan := range r.store.plans {
		p := *plan
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeSubRepo) FindPlanByTier(ctx context.Context, tier entity.PlanTier) (*entity.Plan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	plan, ok := r.store.plans[tier]
	if !ok {
		return nil, nil
	}
	p := *plan
	return &p, nil
}

func matchSub(sub *entity.Subscription, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.OrgOwnedBy:
			if sub.OrgId != s.OrgID {
				return false
			}
		case specification.ByStatus:
			if string(sub.Status) != s.Status {
				return false
			}
		case specification.FilterBy:
			switch s.Field {
			case "gateway_subscription_id":
				if sub.GatewaySubscriptionId == nil || *sub.GatewaySubscriptionId != s.Value.(string) {
					return false
				}
			case "gateway_customer_id":
				if sub.GatewayCustomerId == nil || *sub.GatewayCustomerId != s.Value.(string) {
					return false
				}
			}
		case specification.HasGatewaySubscription:
			if sub.GatewaySubscriptionId == nil {
				return false
			}
		case specification.PendingDowngradeDue:
			if sub.PendingDowngrade == nil || sub.PendingDowngrade.EffectiveAt.After(s.Now) {
				return false
			}
		case specification.TrialExpired:
			if sub.Status != entity.SubscriptionStatusTrialing || sub.TrialEnd == nil || sub.TrialEnd.After(s.Now) {
				return false
			}
		case specification.CancellationDue:
			if !sub.CancelAtPeriodEnd || sub.CurrentPeriodEnd.After(s.Now) || sub.CancelledAt != nil {
				return false
			}
		case specification.RetentionWindowExpired:
			if sub.Status != entity.SubscriptionStatusCancelled || sub.MarkedForDeletion ||
				sub.DataRetentionUntil == nil || !sub.DataRetentionUntil.Before(s.Now) {
				return false
			}
		}
	}
	return true
}

// --- billing repository ---

type fakeBillingRepo struct {
	store *memStore
}

func (r *fakeBillingRepo) AppendHistory(ctx context.Context, entry *entity.BillingHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := *entry
	if e.Id == uuid.Nil {
		e.Id = uuid.New()
	}
	r.store.history = append(r.store.history, &e)
	return nil
}

func (r *fakeBillingRepo) FindHistory(ctx context.Context, specs ...specification.Specification) ([]*entity.BillingHistoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.BillingHistoryEntry
	for _, entry := range r.store.history {
		keep := true
		for _, spec := range specs {
			if s, ok := spec.(specification.OrgOwnedBy); ok && entry.OrgId != s.OrgID {
				keep = false
			}
		}
		if keep {
			e := *entry
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	for _, spec := range specs {
		if p, ok := spec.(specification.Pagination); ok {
			if p.Offset >= len(out) {
				return nil, nil
			}
			end := p.Offset + p.Limit
			if end > len(out) {
				end = len(out)
			}
			out = out[p.Offset:end]
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) CountHistory(ctx context.Context, orgId uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, entry := range r.store.history {
		if entry.OrgId == orgId {
			n++
		}
	}
	return n, nil
}

func (r *fakeBillingRepo) CreateAddress(ctx context.Context, addr *entity.BillingAddress) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a := *addr
	if a.Id == uuid.Nil {
		a.Id = uuid.New()
	}
	r.store.addresses[a.OrgId] = &a
	return nil
}

func (r *fakeBillingRepo) FindOneAddress(ctx context.Context, specs ...specification.Specification) (*entity.BillingAddress, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, spec := range specs {
		if s, ok := spec.(specification.OrgOwnedBy); ok {
			if addr, found := r.store.addresses[s.OrgID]; found {
				a := *addr
				return &a, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeBillingRepo) CreatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := *pm
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	r.store.paymentMethods = append(r.store.paymentMethods, &p)
	return nil
}

func (r *fakeBillingRepo) UpdatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.paymentMethods {
		if existing.Id == pm.Id {
			p := *pm
			r.store.paymentMethods[i] = &p
			return nil
		}
	}
	return fmt.Errorf("payment method %s not found", pm.Id)
}

func (r *fakeBillingRepo) FindOnePaymentMethod(ctx context.Context, specs ...specification.Specification) (*entity.PaymentMethod, error) {
	methods, err := r.FindAllPaymentMethods(ctx, specs...)
	if err != nil || len(methods) == 0 {
		return nil, err
	}
	return methods[0], nil
}

func (r *fakeBillingRepo) FindAllPaymentMethods(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentMethod, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.PaymentMethod
	for _, pm := range r.store.paymentMethods {
		if matchPaymentMethod(pm, specs) {
			p := *pm
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) ClearPrimary(ctx context.Context, orgId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, pm := range r.store.paymentMethods {
		if pm.OrgId == orgId {
			pm.IsPrimary = false
		}
	}
	return nil
}

func matchPaymentMethod(pm *entity.PaymentMethod, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.OrgOwnedBy:
			if pm.OrgId != s.OrgID {
				return false
			}
		case specification.ActiveOnly:
			if !pm.IsActive {
				return false
			}
		case specification.FilterBy:
			switch s.Field {
			case "is_primary":
				if pm.IsPrimary != s.Value.(bool) {
					return false
				}
			case "gateway_method_id":
				if pm.GatewayMethodId != s.Value.(string) {
					return false
				}
			}
		}
	}
	return true
}

// --- subscription event repository ---

type fakeEventRepo struct {
	store *memStore
}

func (r *fakeEventRepo) Append(ctx context.Context, event *entity.SubscriptionEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := *event
	if e.Id == uuid.Nil {
		e.Id = uuid.New()
	}
	r.store.auditEvents = append(r.store.auditEvents, &e)
	return nil
}

func (r *fakeEventRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SubscriptionEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.SubscriptionEvent
	for _, event := range r.store.auditEvents {
		keep := true
		for _, spec := range specs {
			if s, ok := spec.(specification.OrgOwnedBy); ok && event.OrgId != s.OrgID {
				keep = false
			}
		}
		if keep {
			e := *event
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) FindLatestByType(ctx context.Context, orgId uuid.UUID, eventType entity.SubscriptionEventType) (*entity.SubscriptionEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// Insertion order stands in for occurred_at DESC; later appends win ties.
	for i := len(r.store.auditEvents) - 1; i >= 0; i-- {
		event := r.store.auditEvents[i]
		if event.OrgId == orgId && event.EventType == eventType {
			e := *event
			return &e, nil
		}
	}
	return nil, nil
}

// --- webhook event repository ---

type fakeWebhookRepo struct {
	store *memStore
}

func (r *fakeWebhookRepo) InsertIfAbsent(ctx context.Context, event *entity.WebhookEvent) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.webhooks[event.GatewayEventId]; exists {
		return false, nil
	}
	e := *event
	if e.Id == uuid.Nil {
		e.Id = uuid.New()
	}
	e.ReceivedAt = testNow
	r.store.webhooks[e.GatewayEventId] = &e
	return true, nil
}

func (r *fakeWebhookRepo) FindByGatewayEventId(ctx context.Context, gatewayEventId string) (*entity.WebhookEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event, ok := r.store.webhooks[gatewayEventId]
	if !ok {
		return nil, nil
	}
	e := *event
	return &e, nil
}

func (r *fakeWebhookRepo) ClaimForProcessing(ctx context.Context, gatewayEventId string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event, ok := r.store.webhooks[gatewayEventId]
	if !ok {
		return false, nil
	}
	if event.Status != entity.WebhookStatusPending && event.Status != entity.WebhookStatusFailed {
		return false, nil
	}
	event.Status = entity.WebhookStatusProcessing
	return true, nil
}

func (r *fakeWebhookRepo) MarkCompleted(ctx context.Context, gatewayEventId string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if event, ok := r.store.webhooks[gatewayEventId]; ok {
		event.Status = entity.WebhookStatusCompleted
		now := testNow
		event.ProcessedAt = &now
	}
	return nil
}

func (r *fakeWebhookRepo) MarkFailed(ctx context.Context, gatewayEventId string, processErr error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if event, ok := r.store.webhooks[gatewayEventId]; ok {
		event.Status = entity.WebhookStatusFailed
		msg := processErr.Error()
		event.LastError = &msg
	}
	return nil
}

// --- usage repository ---

type fakeUsageRepo struct {
	store *memStore
}

func (r *fakeUsageRepo) Create(ctx context.Context, metric *entity.UsageMetric) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := *metric
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	r.store.usage[usageKey(m.OrgId, m.MetricType)] = &m
	return nil
}

func (r *fakeUsageRepo) FindByOrgAndMetric(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) (*entity.UsageMetric, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	metric, ok := r.store.usage[usageKey(orgId, metricType)]
	if !ok {
		return nil, nil
	}
	m := *metric
	return &m, nil
}

func (r *fakeUsageRepo) FindAllByOrg(ctx context.Context, orgId uuid.UUID) ([]*entity.UsageMetric, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.UsageMetric
	for _, metric := range r.store.usage {
		if metric.OrgId == orgId {
			m := *metric
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *fakeUsageRepo) AddDelta(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, delta int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	metric, ok := r.store.usage[usageKey(orgId, metricType)]
	if !ok {
		return fmt.Errorf("usage metric %s/%s not found", orgId, metricType)
	}
	metric.CurrentValue += delta
	if metric.CurrentValue < 0 {
		metric.CurrentValue = 0
	}
	return nil
}

func (r *fakeUsageRepo) UpdateLimit(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType, limit int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	metric, ok := r.store.usage[usageKey(orgId, metricType)]
	if !ok {
		return fmt.Errorf("usage metric %s/%s not found", orgId, metricType)
	}
	metric.PlanLimit = limit
	return nil
}

// --- fake payment gateway ---

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	createCustomerErr error
	createSubErr      error
	updateSubErr      error
	cancelErr         error
	resumeErr         error
	creditErr         error

	// state overrides the default synthetic subscription state when set.
	state       *fakeGatewayState
	fetchStates map[string]*gateway.SubscriptionState

	verifyEvent *gateway.Event
	verifyErr   error

	creditAmounts []int64
	subCounter    int
}

type fakeGatewayState struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fetchStates: make(map[string]*gateway.SubscriptionState)}
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) callCount(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) newState(subId, customerId string) *gateway.SubscriptionState {
	state := &gateway.SubscriptionState{
		CustomerId:     customerId,
		SubscriptionId: subId,
		Status:         "active",
		PeriodStart:    testNow,
		PeriodEnd:      testNow.AddDate(0, 1, 0),
		LatestInvoice:  "in_" + subId,
	}
	if g.state != nil {
		state.PeriodStart = g.state.PeriodStart
		state.PeriodEnd = g.state.PeriodEnd
		if g.state.Status != "" {
			state.Status = g.state.Status
		}
	}
	return state
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (string, error) {
	g.record("CreateCustomer")
	if g.createCustomerErr != nil {
		return "", g.createCustomerErr
	}
	return "cus_test", nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.SubscriptionState, error) {
	g.record("CreateSubscription")
	if g.createSubErr != nil {
		return nil, g.createSubErr
	}
	g.mu.Lock()
	g.subCounter++
	subId := fmt.Sprintf("sub_test_%d", g.subCounter)
	g.mu.Unlock()
	return g.newState(subId, params.CustomerId), nil
}

func (g *fakeGateway) UpdateSubscription(ctx context.Context, subscriptionId string, params gateway.SubscriptionParams) (*gateway.SubscriptionState, error) {
	g.record("UpdateSubscription")
	if g.updateSubErr != nil {
		return nil, g.updateSubErr
	}
	return g.newState(subscriptionId, params.CustomerId), nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionId string, atPeriodEnd bool) error {
	if atPeriodEnd {
		g.record("CancelSubscription/atPeriodEnd")
	} else {
		g.record("CancelSubscription/immediate")
	}
	return g.cancelErr
}

func (g *fakeGateway) ResumeSubscription(ctx context.Context, subscriptionId string) (*gateway.SubscriptionState, error) {
	g.record("ResumeSubscription")
	if g.resumeErr != nil {
		return nil, g.resumeErr
	}
	return g.newState(subscriptionId, "cus_test"), nil
}

func (g *fakeGateway) FetchSubscription(ctx context.Context, subscriptionId string) (*gateway.SubscriptionState, error) {
	g.record("FetchSubscription")
	g.mu.Lock()
	defer g.mu.Unlock()
	if state, ok := g.fetchStates[subscriptionId]; ok {
		s := *state
		return &s, nil
	}
	return nil, fmt.Errorf("no fetch state for %s", subscriptionId)
}

func (g *fakeGateway) AttachPaymentMethod(ctx context.Context, customerId, paymentMethodId string) (*gateway.PaymentMethodInfo, error) {
	g.record("AttachPaymentMethod")
	return &gateway.PaymentMethodInfo{Id: paymentMethodId, Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}, nil
}

func (g *fakeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodId string) error {
	g.record("DetachPaymentMethod")
	return nil
}

func (g *fakeGateway) ApplyBalanceCredit(ctx context.Context, customerId string, amountMinor int64, currency, description string) error {
	g.record("ApplyBalanceCredit")
	if g.creditErr != nil {
		return g.creditErr
	}
	g.mu.Lock()
	g.creditAmounts = append(g.creditAmounts, amountMinor)
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) VerifyWebhookSignature(payload []byte, signatureHeader string) (*gateway.Event, error) {
	g.record("VerifyWebhookSignature")
	return g.verifyEvent, g.verifyErr
}

// --- fake event bus & logger ---

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
