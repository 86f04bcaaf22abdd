package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WebhookEvent struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GatewayEventId string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	EventType      string    `gorm:"type:varchar(100);not null"`
	Status         string    `gorm:"type:varchar(50);not null;index"`
	Payload        datatypes.JSON
	LastError      *string   `gorm:"type:text"`
	ReceivedAt     time.Time `gorm:"autoCreateTime"`
	ProcessedAt    *time.Time
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
