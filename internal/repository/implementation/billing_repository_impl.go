package implementation

import (
	"context"
	"errors"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/mapper"
	"volunteer-scheduling-be/internal/model"
	"volunteer-scheduling-be/internal/repository/contract"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BillingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BillingMapper
}

func NewBillingRepository(db *gorm.DB) contract.BillingRepository {
	return &BillingRepositoryImpl{
		db:     db,
		mapper: mapper.NewBillingMapper(),
	}
}

func (r *BillingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *BillingRepositoryImpl) AppendHistory(ctx context.Context, entry *entity.BillingHistoryEntry) error {
	m := r.mapper.HistoryToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.HistoryToEntity(m)
	return nil
}

func (r *BillingRepositoryImpl) FindHistory(ctx context.Context, specs ...specification.Specification) ([]*entity.BillingHistoryEntry, error) {
	var models []*model.BillingHistoryEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.BillingHistoryEntry, len(models))
	for i, m := range models {
		entities[i] = r.mapper.HistoryToEntity(m)
	}
	return entities, nil
}

func (r *BillingRepositoryImpl) CountHistory(ctx context.Context, orgId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BillingHistoryEntry{}).
		Where("org_id = ?", orgId).
		Count(&count).Error
	return count, err
}

func (r *BillingRepositoryImpl) CreateAddress(ctx context.Context, addr *entity.BillingAddress) error {
	// Save upserts: the settings page writes the same row repeatedly.
	m := r.mapper.AddressToModel(addr)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*addr = *r.mapper.AddressToEntity(m)
	return nil
}

func (r *BillingRepositoryImpl) FindOneAddress(ctx context.Context, specs ...specification.Specification) (*entity.BillingAddress, error) {
	var m model.BillingAddress
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.AddressToEntity(&m), nil
}

func (r *BillingRepositoryImpl) CreatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error {
	m := r.mapper.PaymentMethodToModel(pm)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*pm = *r.mapper.PaymentMethodToEntity(m)
	return nil
}

func (r *BillingRepositoryImpl) UpdatePaymentMethod(ctx context.Context, pm *entity.PaymentMethod) error {
	m := r.mapper.PaymentMethodToModel(pm)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*pm = *r.mapper.PaymentMethodToEntity(m)
	return nil
}

func (r *BillingRepositoryImpl) FindOnePaymentMethod(ctx context.Context, specs ...specification.Specification) (*entity.PaymentMethod, error) {
	var m model.PaymentMethod
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PaymentMethodToEntity(&m), nil
}

func (r *BillingRepositoryImpl) FindAllPaymentMethods(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentMethod, error) {
	var models []*model.PaymentMethod
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PaymentMethod, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PaymentMethodToEntity(m)
	}
	return entities, nil
}

func (r *BillingRepositoryImpl) ClearPrimary(ctx context.Context, orgId uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.PaymentMethod{}).
		Where("org_id = ?", orgId).
		Update("is_primary", false).Error
}
