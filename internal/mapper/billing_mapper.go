package mapper

import (
	"encoding/json"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/model"

	"gorm.io/datatypes"
)

type BillingMapper struct{}

func NewBillingMapper() *BillingMapper {
	return &BillingMapper{}
}

func (m *BillingMapper) HistoryToEntity(h *model.BillingHistoryEntry) *entity.BillingHistoryEntry {
	if h == nil {
		return nil
	}
	var metadata map[string]interface{}
	if len(h.Metadata) > 0 {
		_ = json.Unmarshal(h.Metadata, &metadata)
	}
	return &entity.BillingHistoryEntry{
		Id:               h.Id,
		OrgId:            h.OrgId,
		SubscriptionId:   h.SubscriptionId,
		EventType:        entity.BillingEventType(h.EventType),
		AmountMinorUnits: h.AmountMinorUnits,
		Currency:         h.Currency,
		PaymentStatus:    entity.PaymentStatus(h.PaymentStatus),
		InvoiceRef:       h.InvoiceRef,
		Description:      h.Description,
		Metadata:         metadata,
		OccurredAt:       h.OccurredAt,
	}
}

func (m *BillingMapper) HistoryToModel(h *entity.BillingHistoryEntry) *model.BillingHistoryEntry {
	if h == nil {
		return nil
	}
	var metadata datatypes.JSON
	if h.Metadata != nil {
		if raw, err := json.Marshal(h.Metadata); err == nil {
			metadata = raw
		}
	}
	return &model.BillingHistoryEntry{
		Id:               h.Id,
		OrgId:            h.OrgId,
		SubscriptionId:   h.SubscriptionId,
		EventType:        string(h.EventType),
		AmountMinorUnits: h.AmountMinorUnits,
		Currency:         h.Currency,
		PaymentStatus:    string(h.PaymentStatus),
		InvoiceRef:       h.InvoiceRef,
		Description:      h.Description,
		Metadata:         metadata,
		OccurredAt:       h.OccurredAt,
	}
}

func (m *BillingMapper) AddressToEntity(a *model.BillingAddress) *entity.BillingAddress {
	if a == nil {
		return nil
	}
	return &entity.BillingAddress{
		Id:           a.Id,
		OrgId:        a.OrgId,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (m *BillingMapper) AddressToModel(a *entity.BillingAddress) *model.BillingAddress {
	if a == nil {
		return nil
	}
	return &model.BillingAddress{
		Id:           a.Id,
		OrgId:        a.OrgId,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (m *BillingMapper) PaymentMethodToEntity(p *model.PaymentMethod) *entity.PaymentMethod {
	if p == nil {
		return nil
	}
	return &entity.PaymentMethod{
		Id:               p.Id,
		OrgId:            p.OrgId,
		GatewayMethodId:  p.GatewayMethodId,
		Brand:            p.Brand,
		Last4:            p.Last4,
		ExpMonth:         p.ExpMonth,
		ExpYear:          p.ExpYear,
		BillingAddressId: p.BillingAddressId,
		IsPrimary:        p.IsPrimary,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (m *BillingMapper) PaymentMethodToModel(p *entity.PaymentMethod) *model.PaymentMethod {
	if p == nil {
		return nil
	}
	return &model.PaymentMethod{
		Id:               p.Id,
		OrgId:            p.OrgId,
		GatewayMethodId:  p.GatewayMethodId,
		Brand:            p.Brand,
		Last4:            p.Last4,
		ExpMonth:         p.ExpMonth,
		ExpYear:          p.ExpYear,
		BillingAddressId: p.BillingAddressId,
		IsPrimary:        p.IsPrimary,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
