package model

import (
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
)

// PartyApproval records one role's sign-off on one workflow step. The unique
// index on (deal_id, step_number, party_role) backs the upsert semantics:
// re-approval by the same role overwrites, never duplicates.
type PartyApproval struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealID     uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_deal_step_role" json:"deal_id"`
	StepNumber int               `gorm:"not null;uniqueIndex:idx_deal_step_role" json:"step_number"`
	PartyRole  catalog.PartyRole `gorm:"type:varchar(10);not null;uniqueIndex:idx_deal_step_role" json:"party_role"`
	UserID     *uuid.UUID        `gorm:"type:uuid" json:"user_id"`
	Approved   bool              `gorm:"not null;default:false" json:"approved"`
	ApprovedAt *time.Time        `json:"approved_at"`
	DocumentID *uuid.UUID        `gorm:"type:uuid" json:"document_id"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
