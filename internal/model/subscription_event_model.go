package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionEvent struct {
	Id           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId        uuid.UUID  `gorm:"type:uuid;not null;index:idx_subscription_events_org_time,priority:1"`
	EventType    string     `gorm:"type:varchar(50);not null"`
	PreviousPlan *string    `gorm:"type:varchar(50)"`
	NewPlan      *string    `gorm:"type:varchar(50)"`
	ActorId      *uuid.UUID `gorm:"type:uuid"`
	Reason       string     `gorm:"type:text"`
	OccurredAt   time.Time  `gorm:"not null;index:idx_subscription_events_org_time,priority:2,sort:desc"`
}

func (SubscriptionEvent) TableName() string {
	return "subscription_events"
}
