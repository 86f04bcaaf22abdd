package model

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	Id                    uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId                 uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex;index:idx_subscriptions_org_status,priority:1"`
	PlanTier              string     `gorm:"type:varchar(50);not null"`
	BillingCycle          string     `gorm:"type:varchar(50);not null"`
	Status                string     `gorm:"type:varchar(50);not null;index:idx_subscriptions_org_status,priority:2"`
	TrialEnd              *time.Time `gorm:"index"`
	CurrentPeriodStart    time.Time  `gorm:"not null"`
	CurrentPeriodEnd      time.Time  `gorm:"not null;index"`
	CancelAtPeriodEnd     bool       `gorm:"default:false"`
	CancelledAt           *time.Time
	DataRetentionUntil    *time.Time `gorm:"index"`
	PendingDowngradeTier  *string    `gorm:"type:varchar(50)"`
	PendingDowngradeAt    *time.Time `gorm:"index"`
	PendingCreditMinor    *int64
	GatewayCustomerId     *string   `gorm:"type:varchar(255)"`
	GatewaySubscriptionId *string   `gorm:"type:varchar(255);index"`
	MarkedForDeletion     bool      `gorm:"default:false"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type Plan struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Tier              string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Name              string    `gorm:"type:varchar(255);not null"`
	Description       string    `gorm:"type:text"`
	MonthlyPriceMinor int64     `gorm:"not null"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'usd'"`
	VolunteerLimit    int64     `gorm:"not null"`
	TrialAvailable    bool      `gorm:"default:false"`
	IsActive          bool      `gorm:"default:true"`
	SortOrder         int       `gorm:"default:0"`
}

func (Plan) TableName() string {
	return "plans"
}
