package mapper

import (
	"encoding/json"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/model"

	"gorm.io/datatypes"
)

type EventMapper struct{}

func NewEventMapper() *EventMapper {
	return &EventMapper{}
}

func (m *EventMapper) SubscriptionEventToEntity(e *model.SubscriptionEvent) *entity.SubscriptionEvent {
	if e == nil {
		return nil
	}
	ent := &entity.SubscriptionEvent{
		Id:         e.Id,
		OrgId:      e.OrgId,
		EventType:  entity.SubscriptionEventType(e.EventType),
		ActorId:    e.ActorId,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
	}
	if e.PreviousPlan != nil {
		tier := entity.PlanTier(*e.PreviousPlan)
		ent.PreviousPlan = &tier
	}
	if e.NewPlan != nil {
		tier := entity.PlanTier(*e.NewPlan)
		ent.NewPlan = &tier
	}
	return ent
}

func (m *EventMapper) SubscriptionEventToModel(e *entity.SubscriptionEvent) *model.SubscriptionEvent {
	if e == nil {
		return nil
	}
	mdl := &model.SubscriptionEvent{
		Id:         e.Id,
		OrgId:      e.OrgId,
		EventType:  string(e.EventType),
		ActorId:    e.ActorId,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
	}
	if e.PreviousPlan != nil {
		tier := string(*e.PreviousPlan)
		mdl.PreviousPlan = &tier
	}
	if e.NewPlan != nil {
		tier := string(*e.NewPlan)
		mdl.NewPlan = &tier
	}
	return mdl
}

func (m *EventMapper) WebhookEventToEntity(e *model.WebhookEvent) *entity.WebhookEvent {
	if e == nil {
		return nil
	}
	var payload map[string]interface{}
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &payload)
	}
	return &entity.WebhookEvent{
		Id:             e.Id,
		GatewayEventId: e.GatewayEventId,
		EventType:      e.EventType,
		Status:         entity.WebhookStatus(e.Status),
		Payload:        payload,
		LastError:      e.LastError,
		ReceivedAt:     e.ReceivedAt,
		ProcessedAt:    e.ProcessedAt,
	}
}

func (m *EventMapper) WebhookEventToModel(e *entity.WebhookEvent) *model.WebhookEvent {
	if e == nil {
		return nil
	}
	var payload datatypes.JSON
	if e.Payload != nil {
		if raw, err := json.Marshal(e.Payload); err == nil {
			payload = raw
		}
	}
	return &model.WebhookEvent{
		Id:             e.Id,
		GatewayEventId: e.GatewayEventId,
		EventType:      e.EventType,
		Status:         string(e.Status),
		Payload:        payload,
		LastError:      e.LastError,
		ReceivedAt:     e.ReceivedAt,
		ProcessedAt:    e.ProcessedAt,
	}
}

func (m *EventMapper) UsageMetricToEntity(u *model.UsageMetric) *entity.UsageMetric {
	if u == nil {
		return nil
	}
	return &entity.UsageMetric{
		Id:           u.Id,
		OrgId:        u.OrgId,
		MetricType:   entity.MetricType(u.MetricType),
		CurrentValue: u.CurrentValue,
		PlanLimit:    u.PlanLimit,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *EventMapper) UsageMetricToModel(u *entity.UsageMetric) *model.UsageMetric {
	if u == nil {
		return nil
	}
	return &model.UsageMetric{
		Id:           u.Id,
		OrgId:        u.OrgId,
		MetricType:   string(u.MetricType),
		CurrentValue: u.CurrentValue,
		PlanLimit:    u.PlanLimit,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
