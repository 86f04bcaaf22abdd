package service

import (
	"context"
	"fmt"

	"volunteer-scheduling-be/internal/dto"
	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/gateway"
	"volunteer-scheduling-be/internal/pkg/apperror"
	"volunteer-scheduling-be/internal/repository/specification"
	"volunteer-scheduling-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IPaymentMethodService interface {
	Attach(ctx context.Context, orgId uuid.UUID, req *dto.AttachPaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	Detach(ctx context.Context, orgId, methodId uuid.UUID) error
	SetPrimary(ctx context.Context, orgId, methodId uuid.UUID) error
	List(ctx context.Context, orgId uuid.UUID) ([]*dto.PaymentMethodResponse, error)

	UpsertBillingAddress(ctx context.Context, orgId uuid.UUID, req *dto.BillingAddressRequest) (*dto.BillingAddressResponse, error)
	GetBillingAddress(ctx context.Context, orgId uuid.UUID) (*dto.BillingAddressResponse, error)
}

type paymentMethodService struct {
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.PaymentGateway
}

func NewPaymentMethodService(uowFactory unitofwork.RepositoryFactory, pg gateway.PaymentGateway) IPaymentMethodService {
	return &paymentMethodService{
		uowFactory: uowFactory,
		gateway:    pg,
	}
}

func (s *paymentMethodService) Attach(ctx context.Context, orgId uuid.UUID, req *dto.AttachPaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.OrgOwnedBy{OrgID: orgId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NotFound("Subscription")
	}
	if sub.GatewayCustomerId == nil {
		return nil, apperror.InvalidTransition("Organization has no billing account yet",
			fmt.Sprintf("org %s has no gateway customer", orgId))
	}

	info, err := s.gateway.AttachPaymentMethod(ctx, *sub.GatewayCustomerId, req.GatewayMethodId)
	if err != nil {
		return nil, err
	}

	existing, err := uow.BillingRepository().FindAllPaymentMethods(ctx,
		specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{})
	if err != nil {
		return nil, err
	}
	makePrimary := req.MakePrimary || len(existing) == 0

	if makePrimary {
		if err := uow.BillingRepository().ClearPrimary(ctx, orgId); err != nil {
			return nil, err
		}
	}

	pm := &entity.PaymentMethod{
		OrgId:           orgId,
		GatewayMethodId: info.Id,
		Brand:           info.Brand,
		Last4:           info.Last4,
		ExpMonth:        info.ExpMonth,
		ExpYear:         info.ExpYear,
		IsPrimary:       makePrimary,
		IsActive:        true,
	}
	if err := uow.BillingRepository().CreatePaymentMethod(ctx, pm); err != nil {
		return nil, err
	}
	return toPaymentMethodResponse(pm), nil
}

func (s *paymentMethodService) Detach(ctx context.Context, orgId, methodId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	pm, err := uow.BillingRepository().FindOnePaymentMethod(ctx,
		specification.ByID{ID: methodId}, specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{})
	if err != nil {
		return err
	}
	if pm == nil {
		return apperror.NotFound("Payment method")
	}
	if pm.IsPrimary {
		// A paid subscription must always keep a chargeable method.
		sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.OrgOwnedBy{OrgID: orgId})
		if err != nil {
			return err
		}
		if sub != nil && sub.PlanTier.IsPaid() && sub.Status != entity.SubscriptionStatusCancelled {
			return apperror.Validation("Cannot remove the primary payment method of an active subscription")
		}
	}

	if err := s.gateway.DetachPaymentMethod(ctx, pm.GatewayMethodId); err != nil {
		return err
	}

	pm.IsActive = false
	pm.IsPrimary = false
	return uow.BillingRepository().UpdatePaymentMethod(ctx, pm)
}

func (s *paymentMethodService) SetPrimary(ctx context.Context, orgId, methodId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	pm, err := uow.BillingRepository().FindOnePaymentMethod(ctx,
		specification.ByID{ID: methodId}, specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{})
	if err != nil {
		return err
	}
	if pm == nil {
		return apperror.NotFound("Payment method")
	}

	if err := uow.BillingRepository().ClearPrimary(ctx, orgId); err != nil {
		return err
	}
	pm.IsPrimary = true
	return uow.BillingRepository().UpdatePaymentMethod(ctx, pm)
}

func (s *paymentMethodService) List(ctx context.Context, orgId uuid.UUID) ([]*dto.PaymentMethodResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	methods, err := uow.BillingRepository().FindAllPaymentMethods(ctx,
		specification.OrgOwnedBy{OrgID: orgId}, specification.ActiveOnly{},
		specification.OrderBy{Field: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PaymentMethodResponse, 0, len(methods))
	for _, pm := range methods {
		res = append(res, toPaymentMethodResponse(pm))
	}
	return res, nil
}

func (s *paymentMethodService) UpsertBillingAddress(ctx context.Context, orgId uuid.UUID, req *dto.BillingAddressRequest) (*dto.BillingAddressResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	addr, err := uow.BillingRepository().FindOneAddress(ctx, specification.OrgOwnedBy{OrgID: orgId})
	if err != nil {
		return nil, err
	}
	if addr == nil {
		addr = &entity.BillingAddress{OrgId: orgId}
	}

	addr.FirstName = req.FirstName
	addr.LastName = req.LastName
	addr.Email = req.Email
	addr.Phone = req.Phone
	addr.AddressLine1 = req.AddressLine1
	addr.AddressLine2 = req.AddressLine2
	addr.City = req.City
	addr.State = req.State
	addr.PostalCode = req.PostalCode
	addr.Country = req.Country
	addr.IsDefault = req.IsDefault

	if err := uow.BillingRepository().CreateAddress(ctx, addr); err != nil {
		return nil, err
	}
	return toBillingAddressResponse(addr), nil
}

func (s *paymentMethodService) GetBillingAddress(ctx context.Context, orgId uuid.UUID) (*dto.BillingAddressResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	addr, err := uow.BillingRepository().FindOneAddress(ctx, specification.OrgOwnedBy{OrgID: orgId})
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, apperror.NotFound("Billing address")
	}
	return toBillingAddressResponse(addr), nil
}

func toPaymentMethodResponse(pm *entity.PaymentMethod) *dto.PaymentMethodResponse {
	return &dto.PaymentMethodResponse{
		Id:        pm.Id,
		Brand:     pm.Brand,
		Last4:     pm.Last4,
		ExpMonth:  pm.ExpMonth,
		ExpYear:   pm.ExpYear,
		IsPrimary: pm.IsPrimary,
		CreatedAt: pm.CreatedAt,
	}
}

func toBillingAddressResponse(addr *entity.BillingAddress) *dto.BillingAddressResponse {
	return &dto.BillingAddressResponse{
		Id:           addr.Id,
		FirstName:    addr.FirstName,
		LastName:     addr.LastName,
		Email:        addr.Email,
		Phone:        addr.Phone,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		City:         addr.City,
		State:        addr.State,
		PostalCode:   addr.PostalCode,
		Country:      addr.Country,
		IsDefault:    addr.IsDefault,
		CreatedAt:    addr.CreatedAt,
	}
}
