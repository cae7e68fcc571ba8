package model

import (
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
)

// InviteStatus enum constants
const (
	InviteStatusPending  = "PENDING"
	InviteStatusAccepted = "ACCEPTED"
	InviteStatusExpired  = "EXPIRED"
)

// InviteTTL is how long an invite token stays redeemable
const InviteTTL = 30 * 24 * time.Hour

// Invite lets a broker pull a not-yet-registered buyer or seller into a deal.
// The token is consumed exactly once: acceptance marks the invite ACCEPTED and
// attaches the accepting company to the deal's buyer or seller side.
type Invite struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"deal_id"`
	Deal        *Deal             `gorm:"foreignKey:DealID" json:"deal,omitempty"`
	Email       string            `gorm:"type:varchar(255);not null" json:"email"`
	CompanyName string            `gorm:"type:varchar(255);not null" json:"company_name"`
	Role        catalog.PartyRole `gorm:"type:varchar(10);not null" json:"role"`
	InvitedBy   uuid.UUID         `gorm:"type:uuid;not null" json:"invited_by"`
	Token       string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Status      string            `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	SentAt      time.Time         `gorm:"autoCreateTime" json:"sent_at"`
	AcceptedAt  *time.Time        `json:"accepted_at"`
	ExpiresAt   time.Time         `gorm:"not null" json:"expires_at"`
}
