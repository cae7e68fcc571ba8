package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit action constants for workflow and lifecycle events
const (
	ActionCreateDeal       = "CREATE_DEAL"
	ActionAcceptInvite     = "ACCEPT_INVITE"
	ActionUnlockWorkflow   = "UNLOCK_WORKFLOW"
	ActionRecordApproval   = "RECORD_APPROVAL"
	ActionCompleteStep     = "COMPLETE_STEP"
	ActionAdvanceStep      = "ADVANCE_STEP"
	ActionCompleteDeal     = "COMPLETE_DEAL"
	ActionUploadDocument   = "UPLOAD_DOCUMENT"
	ActionVerifyDocument   = "VERIFY_DOCUMENT"
	ActionVerifyDealParty  = "VERIFY_DEAL_PARTY"
	ActionCreateCommission = "CREATE_COMMISSION"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for system-driven events
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
