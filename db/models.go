package db

import (
	"time"
)

// Message is a single SMS, outgoing or incoming, moving through
// pending -> queued -> sending -> sent -> {delivered|failed}, or
// created directly in received for incoming messages.
type Message struct {
	ID             string `gorm:"primaryKey;size:36"`
	Direction      string `gorm:"index;size:10;not null;check:direction IN ('outgoing','incoming')"`
	PhoneNumber    string `gorm:"size:20;not null"`
	Content        string `gorm:"type:text;not null"`
	Status         string `gorm:"index;size:20;not null;default:pending"`
	ModemMessageID *string `gorm:"size:50"`
	ErrorMessage   *string `gorm:"type:text"`
	ApiKeyID       *string `gorm:"index;size:36"`
	SentAt         *time.Time
	DeliveredAt    *time.Time
	ReceivedAt     *time.Time
	Metadata       string    `gorm:"type:text;not null;default:'{}'"` // JSON-encoded map
	ModemInboxIndex *int     `gorm:"uniqueIndex:,where:direction='incoming'"`
	InsertedAt     time.Time `gorm:"index;not null;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime"`
}

// Message status values.
const (
	StatusPending   = "pending"
	StatusQueued    = "queued"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusReceived  = "received"
)

// Message directions.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// ApiKey is a credential accepted by the submission endpoint.
type ApiKey struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string `gorm:"size:255;not null"`
	KeyHash    string `gorm:"size:255;not null;uniqueIndex"`
	KeyPrefix  string `gorm:"size:20;not null;index"`
	IsActive   bool   `gorm:"not null;default:true"`
	RateLimit  *int
	LastUsedAt *time.Time
	Metadata   string    `gorm:"type:text;not null;default:'{}'"`
	InsertedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"`
}

// Job is a durable queue row backing the outbound dispatcher (sms_send).
// The status reconciler runs on its own ticker and enqueues no jobs.
type Job struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Queue       string    `gorm:"index:idx_jobs_queue_state;size:20;not null"`
	MessageID   string    `gorm:"index;size:36;not null"`
	Attempt     int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:3"`
	State       string    `gorm:"index:idx_jobs_queue_state;size:20;not null;default:available"`
	ScheduledAt time.Time `gorm:"index;not null"`
	LastError   *string   `gorm:"type:text"`
	InsertedAt  time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

// Job states.
const (
	JobAvailable = "available"
	JobScheduled = "scheduled"
	JobExecuting = "executing"
	JobCompleted = "completed"
	JobCancelled = "cancelled"
	JobDiscarded = "discarded"
)

// Queue names.
const (
	QueueSMSSend   = "sms_send"
	QueueSMSStatus = "sms_status"
)

// QueueControl is a single-row-per-queue table gating whether the
// dispatcher is allowed to start new jobs.
type QueueControl struct {
	Queue     string    `gorm:"primaryKey;size:20"`
	Paused    bool      `gorm:"not null;default:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// InboundCursor persists the inbound poller's lastSeenIndex across
// restarts, so a redeploy doesn't re-ingest the whole inbox.
type InboundCursor struct {
	Name          string    `gorm:"primaryKey;size:50"`
	LastSeenIndex int       `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime"`
}

type SchemaMigration struct {
	Version   int       `gorm:"primaryKey"`
	AppliedAt time.Time `gorm:"not null;autoCreateTime"`
}
