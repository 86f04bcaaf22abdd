package contract

import (
	"context"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionEventRepository interface {
	Append(ctx context.Context, event *entity.SubscriptionEvent) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SubscriptionEvent, error)
	// FindLatestByType returns the most recent event of the given type for an
	// org, or nil. Reactivation reads the pre-cancellation tier from it.
	FindLatestByType(ctx context.Context, orgId uuid.UUID, eventType entity.SubscriptionEventType) (*entity.SubscriptionEvent, error)
}

type WebhookEventRepository interface {
	// InsertIfAbsent records the event id atomically (insert-or-conflict).
	// Returns false when the id was already present: a duplicate delivery.
	InsertIfAbsent(ctx context.Context, event *entity.WebhookEvent) (bool, error)
	FindByGatewayEventId(ctx context.Context, gatewayEventId string) (*entity.WebhookEvent, error)
	// ClaimForProcessing atomically moves a pending or failed row to
	// processing. Returns false when another worker already claimed or
	// completed the event, in which case the caller must not apply it.
	ClaimForProcessing(ctx context.Context, gatewayEventId string) (bool, error)
	MarkCompleted(ctx context.Context, gatewayEventId string) error
	MarkFailed(ctx context.Context, gatewayEventId string, processErr error) error
}
