package contract

import (
	"context"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
)

type BillingRepository interface {
	// History is append-only: no update or delete methods exist on purpose.
	AppendHistory(ctx context.Context, entry *entity.BillingHistoryEntry) error
	FindHistory(ctx context.Context, specs ...specification.Specification) ([]*entity.BillingHistoryEntry, error)
	CountHistory(ctx context.Context, orgId uuid.UUID) (int64, error)

	CreateAddress(ctx context.Context, addr *entity.BillingAddress) error
	FindOneAddress(ctx context.Context, specs ...specification.Specification) (*entity.BillingAddress, error)

	CreatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error
	UpdatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error
	FindOnePaymentMethod(ctx context.Context, specs ...specification.Specification) (*entity.PaymentMethod, error)
	FindAllPaymentMethods(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentMethod, error)
	// ClearPrimary drops the primary flag on every method of the org so at
	// most one row can carry it afterwards.
	ClearPrimary(ctx context.Context, orgId uuid.UUID) error
}
