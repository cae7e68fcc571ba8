package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionType enum constants
const (
	CommissionPercentage = "PERCENTAGE"
	CommissionFixed      = "FIXED"
	CommissionPerUnit    = "PER_UNIT"
)

// CommissionStatus enum constants
const (
	CommissionStatusPending       = "PENDING"
	CommissionStatusPartiallyPaid = "PARTIALLY_PAID"
	CommissionStatusPaid          = "PAID"
)

// Commission records the broker's fee terms for a deal. Disbursement happens
// at step 12 of the workflow.
type Commission struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"deal_id"`
	CommissionType string          `gorm:"type:varchar(20);not null" json:"commission_type"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"commission_rate"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	Currency       string          `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	Status         string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaidAt         *time.Time      `json:"paid_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
