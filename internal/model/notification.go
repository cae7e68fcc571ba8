package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType enum constants
const (
	NotifyDealCreated          = "DEAL_CREATED"
	NotifyInviteReceived       = "INVITE_RECEIVED"
	NotifyVerificationComplete = "VERIFICATION_COMPLETE"
	NotifyMatchConfirmed       = "MATCH_CONFIRMED"
	NotifyStepCompleted        = "STEP_COMPLETED"
	NotifyDocumentUploaded     = "DOCUMENT_UPLOADED"
	NotifyActionRequired       = "ACTION_REQUIRED"
	NotifyDealCompleted        = "DEAL_COMPLETED"
)

// Notification is one best-effort event record per recipient. Failures to
// write or push notifications never fail the transition that produced them.
type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	DealID    *uuid.UUID `gorm:"type:uuid;index" json:"deal_id"`
	Type      string     `gorm:"type:varchar(30);not null" json:"type"`
	Title     string     `gorm:"type:varchar(255);not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	ActionURL string     `gorm:"type:varchar(500)" json:"action_url"`
	Read      bool       `gorm:"not null;default:false;index" json:"read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
