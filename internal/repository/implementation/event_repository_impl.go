package implementation

import (
	"context"
	"errors"
	"time"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/mapper"
	"volunteer-scheduling-be/internal/model"
	"volunteer-scheduling-be/internal/repository/contract"
	"volunteer-scheduling-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EventMapper
}

func NewSubscriptionEventRepository(db *gorm.DB) contract.SubscriptionEventRepository {
	return &SubscriptionEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewEventMapper(),
	}
}

func (r *SubscriptionEventRepositoryImpl) Append(ctx context.Context, event *entity.SubscriptionEvent) error {
	m := r.mapper.SubscriptionEventToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.SubscriptionEventToEntity(m)
	return nil
}

func (r *SubscriptionEventRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SubscriptionEvent, error) {
	var models []*model.SubscriptionEvent
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.SubscriptionEvent, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SubscriptionEventToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionEventRepositoryImpl) FindLatestByType(ctx context.Context, orgId uuid.UUID, eventType entity.SubscriptionEventType) (*entity.SubscriptionEvent, error) {
	var m model.SubscriptionEvent
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND event_type = ?", orgId, string(eventType)).
		Order("occurred_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SubscriptionEventToEntity(&m), nil
}

type WebhookEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EventMapper
}

func NewWebhookEventRepository(db *gorm.DB) contract.WebhookEventRepository {
	return &WebhookEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewEventMapper(),
	}
}

func (r *WebhookEventRepositoryImpl) InsertIfAbsent(ctx context.Context, event *entity.WebhookEvent) (bool, error) {
	m := r.mapper.WebhookEventToModel(event)
	// Single atomic insert-or-conflict: the unique constraint on
	// gateway_event_id is the dedup store, never check-then-insert.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_event_id"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	inserted := result.RowsAffected > 0
	if inserted {
		*event = *r.mapper.WebhookEventToEntity(m)
	}
	return inserted, nil
}

func (r *WebhookEventRepositoryImpl) FindByGatewayEventId(ctx context.Context, gatewayEventId string) (*entity.WebhookEvent, error) {
	var m model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("gateway_event_id = ?", gatewayEventId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.WebhookEventToEntity(&m), nil
}

func (r *WebhookEventRepositoryImpl) ClaimForProcessing(ctx context.Context, gatewayEventId string) (bool, error) {
	// Conditional update as the claim: only one worker wins the
	// pending/failed -> processing transition.
	result := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ? AND status IN ?", gatewayEventId, []string{
			string(entity.WebhookStatusPending),
			string(entity.WebhookStatusFailed),
		}).
		Update("status", string(entity.WebhookStatusProcessing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WebhookEventRepositoryImpl) MarkCompleted(ctx context.Context, gatewayEventId string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ?", gatewayEventId).
		Updates(map[string]interface{}{
			"status":       string(entity.WebhookStatusCompleted),
			"processed_at": &now,
			"last_error":   nil,
		}).Error
}

func (r *WebhookEventRepositoryImpl) MarkFailed(ctx context.Context, gatewayEventId string, processErr error) error {
	msg := processErr.Error()
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ?", gatewayEventId).
		Updates(map[string]interface{}{
			"status":     string(entity.WebhookStatusFailed),
			"last_error": &msg,
		}).Error
}
