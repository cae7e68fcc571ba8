package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DealStatus enum constants
const (
	DealStatusDraft               = "DRAFT"
	DealStatusPendingVerification = "PENDING_VERIFICATION"
	DealStatusMatched             = "MATCHED"
	DealStatusInProgress          = "IN_PROGRESS"
	DealStatusCompleted           = "COMPLETED"
	DealStatusCancelled           = "CANCELLED"
)

// ProductType enum constants
const (
	ProductJetA1 = "JET_A1"
	ProductEN590 = "EN590"
	ProductD6    = "D6"
	ProductLNG   = "LNG"
	ProductCrude = "CRUDE"
	ProductOther = "OTHER"
)

// Deal represents one brokered commodity trade progressing through the
// 12-step workflow. BuyerID/SellerID stay nil until the matching invite is
// accepted; CurrentStep saturates at 12.
type Deal struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealNumber     string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"deal_number"`
	ProductType    string          `gorm:"type:varchar(20);not null" json:"product_type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	QuantityUnit   string          `gorm:"type:varchar(10);not null" json:"quantity_unit"`
	EstimatedValue decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"estimated_value"`
	Currency       string          `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	DeliveryTerms  string          `gorm:"type:varchar(10);not null" json:"delivery_terms"`
	Location       string          `gorm:"type:varchar(255);not null" json:"location"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	BuyerID        *uuid.UUID      `gorm:"type:uuid;index" json:"buyer_id"`
	Buyer          *Company        `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	SellerID       *uuid.UUID      `gorm:"type:uuid;index" json:"seller_id"`
	Seller         *Company        `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	BrokerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"broker_id"`
	Broker         *User           `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
	Status         string          `gorm:"type:varchar(25);not null;default:'DRAFT';index" json:"status"`
	CurrentStep    int             `gorm:"not null;default:1" json:"current_step"`
	BuyerVerified  bool            `gorm:"default:false" json:"buyer_verified"`
	SellerVerified bool            `gorm:"default:false" json:"seller_verified"`
	MatchedAt      *time.Time      `json:"matched_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// WorkflowUnlocked reports whether the 12-step workflow is actionable.
// DRAFT and PENDING_VERIFICATION deals keep the workflow locked until both
// sides pass verification.
func (d *Deal) WorkflowUnlocked() bool {
	return d.Status != DealStatusDraft && d.Status != DealStatusPendingVerification
}
