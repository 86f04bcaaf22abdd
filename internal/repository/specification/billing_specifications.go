package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgOwnedBy scopes a query to one organization.
type OrgOwnedBy struct {
	OrgID uuid.UUID
}

func (s OrgOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("org_id = ?", s.OrgID)
}

// ByStatus filters subscriptions by lifecycle status.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// PendingDowngradeDue selects subscriptions whose scheduled downgrade has
// reached its effective date.
type PendingDowngradeDue struct {
	Now time.Time
}

func (s PendingDowngradeDue) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("pending_downgrade_tier IS NOT NULL AND pending_downgrade_at <= ?", s.Now)
}

// TrialExpired selects trialing subscriptions whose trial window has closed.
type TrialExpired struct {
	Now time.Time
}

func (s TrialExpired) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND trial_end IS NOT NULL AND trial_end <= ?", "trialing", s.Now)
}

// CancellationDue selects subscriptions whose end-of-period cancellation is
// ready to complete.
type CancellationDue struct {
	Now time.Time
}

func (s CancellationDue) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("cancel_at_period_end = ? AND current_period_end <= ? AND cancelled_at IS NULL", true, s.Now)
}

// RetentionWindowExpired selects cancelled subscriptions past their data
// retention window that have not yet been flagged for deletion.
type RetentionWindowExpired struct {
	Now time.Time
}

func (s RetentionWindowExpired) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND data_retention_until IS NOT NULL AND data_retention_until < ? AND marked_for_deletion = ?",
		"cancelled", s.Now, false)
}

// ActiveOnly filters out soft-deleted payment methods.
type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// HasGatewaySubscription selects subscriptions linked to an external gateway
// subscription, the population the drift poll reconciles.
type HasGatewaySubscription struct{}

func (s HasGatewaySubscription) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("gateway_subscription_id IS NOT NULL")
}
