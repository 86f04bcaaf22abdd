package service

import (
	"context"
	"testing"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolunteerDeltaHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("roster add increments the volunteer counter", func(t *testing.T) {
		store, usage := newUsageEnv(t)
		orgId := uuid.New()
		require.NoError(t, usage.InitializeForOrg(ctx, orgId, entity.TierStarter))

		handler := volunteerDeltaHandler(usage.Increment, nopLogger{})
		err := handler(ctx, events.NewSubscriptionEvent(events.VolunteerAdded, orgId.String(), nil))
		require.NoError(t, err)

		metric := store.usage[usageKey(orgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(1), metric.CurrentValue)
	})

	t.Run("roster removal decrements the counter", func(t *testing.T) {
		store, usage := newUsageEnv(t)
		orgId := uuid.New()
		require.NoError(t, usage.InitializeForOrg(ctx, orgId, entity.TierStarter))
		require.NoError(t, usage.Increment(ctx, orgId, entity.MetricVolunteers))

		handler := volunteerDeltaHandler(usage.Decrement, nopLogger{})
		err := handler(ctx, events.NewSubscriptionEvent(events.VolunteerRemoved, orgId.String(), nil))
		require.NoError(t, err)

		metric := store.usage[usageKey(orgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(0), metric.CurrentValue)
	})

	t.Run("unroutable payload is acknowledged, not redelivered", func(t *testing.T) {
		_, usage := newUsageEnv(t)
		handler := volunteerDeltaHandler(usage.Increment, nopLogger{})

		err := handler(ctx, events.BaseEvent{Type: events.VolunteerAdded, Data: map[string]interface{}{"org_id": "not-a-uuid"}})
		assert.NoError(t, err)
	})

	t.Run("limit rejection is final", func(t *testing.T) {
		store, usage := newUsageEnv(t)
		orgId := uuid.New()
		require.NoError(t, usage.InitializeForOrg(ctx, orgId, entity.TierFree))
		for i := 0; i < 10; i++ {
			require.NoError(t, usage.Increment(ctx, orgId, entity.MetricVolunteers))
		}

		handler := volunteerDeltaHandler(usage.Increment, nopLogger{})
		err := handler(ctx, events.NewSubscriptionEvent(events.VolunteerAdded, orgId.String(), nil))
		assert.NoError(t, err)

		metric := store.usage[usageKey(orgId, entity.MetricVolunteers)]
		assert.Equal(t, int64(10), metric.CurrentValue)
	})
}
