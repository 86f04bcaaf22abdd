package mapper

import (
	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	e := &entity.Subscription{
		Id:                    s.Id,
		OrgId:                 s.OrgId,
		PlanTier:              entity.PlanTier(s.PlanTier),
		BillingCycle:          entity.BillingCycle(s.BillingCycle),
		Status:                entity.SubscriptionStatus(s.Status),
		TrialEnd:              s.TrialEnd,
		CurrentPeriodStart:    s.CurrentPeriodStart,
		CurrentPeriodEnd:      s.CurrentPeriodEnd,
		CancelAtPeriodEnd:     s.CancelAtPeriodEnd,
		CancelledAt:           s.CancelledAt,
		DataRetentionUntil:    s.DataRetentionUntil,
		GatewayCustomerId:     s.GatewayCustomerId,
		GatewaySubscriptionId: s.GatewaySubscriptionId,
		MarkedForDeletion:     s.MarkedForDeletion,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
	if s.PendingDowngradeTier != nil && s.PendingDowngradeAt != nil {
		var credit int64
		if s.PendingCreditMinor != nil {
			credit = *s.PendingCreditMinor
		}
		e.PendingDowngrade = &entity.PendingDowngrade{
			TargetTier:  entity.PlanTier(*s.PendingDowngradeTier),
			EffectiveAt: *s.PendingDowngradeAt,
			CreditMinor: credit,
		}
	}
	return e
}

func (m *SubscriptionMapper) ToModel(e *entity.Subscription) *model.Subscription {
	if e == nil {
		return nil
	}
	s := &model.Subscription{
		Id:                    e.Id,
		OrgId:                 e.OrgId,
		PlanTier:              string(e.PlanTier),
		BillingCycle:          string(e.BillingCycle),
		Status:                string(e.Status),
		TrialEnd:              e.TrialEnd,
		CurrentPeriodStart:    e.CurrentPeriodStart,
		CurrentPeriodEnd:      e.CurrentPeriodEnd,
		CancelAtPeriodEnd:     e.CancelAtPeriodEnd,
		CancelledAt:           e.CancelledAt,
		DataRetentionUntil:    e.DataRetentionUntil,
		GatewayCustomerId:     e.GatewayCustomerId,
		GatewaySubscriptionId: e.GatewaySubscriptionId,
		MarkedForDeletion:     e.MarkedForDeletion,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
	if e.PendingDowngrade != nil {
		tier := string(e.PendingDowngrade.TargetTier)
		at := e.PendingDowngrade.EffectiveAt
		credit := e.PendingDowngrade.CreditMinor
		s.PendingDowngradeTier = &tier
		s.PendingDowngradeAt = &at
		s.PendingCreditMinor = &credit
	}
	return s
}

func (m *SubscriptionMapper) PlanToEntity(p *model.Plan) *entity.Plan {
	if p == nil {
		return nil
	}
	return &entity.Plan{
		Id:                p.Id,
		Tier:              entity.PlanTier(p.Tier),
		Name:              p.Name,
		Description:       p.Description,
		MonthlyPriceMinor: p.MonthlyPriceMinor,
		Currency:          p.Currency,
		VolunteerLimit:    p.VolunteerLimit,
		TrialAvailable:    p.TrialAvailable,
		IsActive:          p.IsActive,
		SortOrder:         p.SortOrder,
	}
}

func (m *SubscriptionMapper) PlanToModel(p *entity.Plan) *model.Plan {
	if p == nil {
		return nil
	}
	return &model.Plan{
		Id:                p.Id,
		Tier:              string(p.Tier),
		Name:              p.Name,
		Description:       p.Description,
		MonthlyPriceMinor: p.MonthlyPriceMinor,
		Currency:          p.Currency,
		VolunteerLimit:    p.VolunteerLimit,
		TrialAvailable:    p.TrialAvailable,
		IsActive:          p.IsActive,
		SortOrder:         p.SortOrder,
	}
}
