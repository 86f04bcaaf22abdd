package unitofwork

import (
	"context"

	"volunteer-scheduling-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SubscriptionRepository() contract.SubscriptionRepository
	BillingRepository() contract.BillingRepository
	SubscriptionEventRepository() contract.SubscriptionEventRepository
	WebhookEventRepository() contract.WebhookEventRepository
	UsageRepository() contract.UsageRepository
}
