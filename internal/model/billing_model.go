package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BillingHistoryEntry struct {
	Id               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId            uuid.UUID  `gorm:"type:uuid;not null;index:idx_billing_history_org_time,priority:1"`
	SubscriptionId   *uuid.UUID `gorm:"type:uuid;index"`
	EventType        string     `gorm:"type:varchar(50);not null"`
	AmountMinorUnits int64      `gorm:"not null"`
	Currency         string     `gorm:"type:varchar(3);not null"`
	PaymentStatus    string     `gorm:"type:varchar(50);not null"`
	InvoiceRef       *string    `gorm:"type:varchar(255)"`
	Description      string     `gorm:"type:text"`
	Metadata         datatypes.JSON
	OccurredAt       time.Time `gorm:"not null;index:idx_billing_history_org_time,priority:2,sort:desc"`
}

func (BillingHistoryEntry) TableName() string {
	return "billing_history_entries"
}

type BillingAddress struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId        uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName    string    `gorm:"type:varchar(255)"`
	LastName     string    `gorm:"type:varchar(255)"`
	Email        string    `gorm:"type:varchar(255)"`
	Phone        string    `gorm:"type:varchar(50)"`
	AddressLine1 string    `gorm:"type:varchar(255)"`
	AddressLine2 string    `gorm:"type:varchar(255)"`
	City         string    `gorm:"type:varchar(100)"`
	State        string    `gorm:"type:varchar(100)"`
	PostalCode   string    `gorm:"type:varchar(20)"`
	Country      string    `gorm:"type:varchar(2)"`
	IsDefault    bool      `gorm:"default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (BillingAddress) TableName() string {
	return "billing_addresses"
}

type PaymentMethod struct {
	Id               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId            uuid.UUID  `gorm:"type:uuid;not null;index"`
	GatewayMethodId  string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	Brand            string     `gorm:"type:varchar(50)"`
	Last4            string     `gorm:"type:varchar(4)"`
	ExpMonth         int        `gorm:"default:0"`
	ExpYear          int        `gorm:"default:0"`
	BillingAddressId *uuid.UUID `gorm:"type:uuid"`
	IsPrimary        bool       `gorm:"default:false"`
	IsActive         bool       `gorm:"default:true"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
