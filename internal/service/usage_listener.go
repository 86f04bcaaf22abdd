package service

import (
	"context"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/pkg/events"
	pktNats "volunteer-scheduling-be/pkg/nats"

	"github.com/google/uuid"
)

// RegisterUsageListeners subscribes the volunteer usage counter to the
// scheduling service's roster notifications on the event stream, so adds and
// removals are metered without an HTTP round trip.
func RegisterUsageListeners(sub *pktNats.Subscriber, usage IUsageService, log logger.ILogger) error {
	if err := sub.Subscribe("events."+events.VolunteerAdded, "billing-volunteer-added",
		volunteerDeltaHandler(usage.Increment, log)); err != nil {
		return err
	}
	return sub.Subscribe("events."+events.VolunteerRemoved, "billing-volunteer-removed",
		volunteerDeltaHandler(usage.Decrement, log))
}

// volunteerDeltaHandler adapts a usage counter mutation to the bus handler
// contract. Domain rejections (unroutable payload, limit already reached)
// are final: acknowledging them keeps a deterministic failure from spinning
// the durable consumer on redeliveries.
func volunteerDeltaHandler(delta func(ctx context.Context, orgId uuid.UUID, metricType entity.MetricType) error, log logger.ILogger) pktNats.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		raw, _ := event.Payload()["org_id"].(string)
		orgId, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("usage", "roster event without a valid org_id", map[string]interface{}{"event": event.EventType()})
			return nil
		}
		if err := delta(ctx, orgId, entity.MetricVolunteers); err != nil {
			if _, ok := apperror.As(err); ok {
				log.Warn("usage", "roster event rejected", map[string]interface{}{"org_id": orgId.String(), "error": err.Error()})
				return nil
			}
			return err
		}
		return nil
	}
}
