package model

import (
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
)

// DocumentFolder enum constants
const (
	FolderAgreements = "AGREEMENTS"
	FolderPOF        = "POF"
	FolderPOP        = "POP"
	FolderContracts  = "CONTRACTS"
	FolderInspection = "INSPECTION"
	FolderPayment    = "PAYMENT"
)

// Document is an uploaded artifact. StepNumber 0 marks pre-workflow
// verification uploads (POF/POP); positive numbers tie the document to a
// workflow step as approval evidence.
type Document struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DealID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"deal_id"`
	UploadedBy         uuid.UUID  `gorm:"type:uuid;not null" json:"uploaded_by"`
	Filename           string     `gorm:"type:varchar(255);not null" json:"filename"`
	FileType           string     `gorm:"type:varchar(100);not null" json:"file_type"`
	FileSize           int64      `gorm:"not null" json:"file_size"`
	FilePath           string     `gorm:"type:varchar(500);not null" json:"-"`
	FileURL            string     `gorm:"type:varchar(500);not null" json:"file_url"`
	DocumentType       string     `gorm:"type:varchar(40);not null" json:"document_type"`
	Folder             string     `gorm:"type:varchar(20);not null;index" json:"folder"`
	StepNumber         int        `gorm:"not null;default:0" json:"step_number"`
	VerificationStatus string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at"`
	VisibleToBuyer     bool       `gorm:"default:true" json:"visible_to_buyer"`
	VisibleToSeller    bool       `gorm:"default:true" json:"visible_to_seller"`
	VisibleToBroker    bool       `gorm:"default:true" json:"visible_to_broker"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// VisibleTo reports whether a role may see this document
func (d *Document) VisibleTo(role catalog.PartyRole) bool {
	switch role {
	case catalog.RoleBuyer:
		return d.VisibleToBuyer
	case catalog.RoleSeller:
		return d.VisibleToSeller
	case catalog.RoleBroker:
		return d.VisibleToBroker
	default:
		return false
	}
}
