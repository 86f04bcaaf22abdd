package entity

import (
	"time"

	"github.com/google/uuid"
)

type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// WebhookEvent is the dedup record for one gateway-delivered event. The
// unique constraint on GatewayEventId turns check-then-insert into a single
// atomic insert-or-conflict. A worker claims the row (pending/failed ->
// processing) before applying it, so concurrent duplicate deliveries of the
// same event cannot both reach the handler. Completed means the handler
// fully applied the event; only failed rows are re-processed.
type WebhookEvent struct {
	Id             uuid.UUID
	GatewayEventId string
	EventType      string
	Status         WebhookStatus
	Payload        map[string]interface{}
	LastError      *string
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}
