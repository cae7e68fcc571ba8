package model

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus enum constants
const (
	StepStatusPending    = "PENDING"
	StepStatusInProgress = "IN_PROGRESS"
	StepStatusCompleted  = "COMPLETED"
	StepStatusBlocked    = "BLOCKED"
	StepStatusSkipped    = "SKIPPED"
)

// DealStep is one row per (deal, step 1..12), created all-PENDING together
// with the deal. While the workflow is active exactly one step — the deal's
// CurrentStep — is IN_PROGRESS.
type DealStep struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_deal_step" json:"deal_id"`
	StepNumber  int        `gorm:"not null;uniqueIndex:idx_deal_step" json:"step_number"`
	StepName    string     `gorm:"type:varchar(100);not null" json:"step_name"`
	Status      string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *uuid.UUID `gorm:"type:uuid" json:"completed_by"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
