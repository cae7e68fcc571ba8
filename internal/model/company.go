package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus enum constants, shared by companies and documents
const (
	VerificationUnverified = "UNVERIFIED"
	VerificationPending    = "PENDING"
	VerificationVerified   = "VERIFIED"
	VerificationRejected   = "REJECTED"
)

// Company represents a buyer or seller organization attached to a deal side
type Company struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name               string     `gorm:"type:varchar(255);not null" json:"name"`
	Country            string     `gorm:"type:varchar(100);not null" json:"country"`
	RegistrationNumber string     `gorm:"type:varchar(100);not null" json:"registration_number"`
	YearEstablished    int        `gorm:"not null" json:"year_established"`
	CompanyType        string     `gorm:"type:varchar(50);not null" json:"company_type"`
	Address            string     `gorm:"type:text;not null" json:"address"`
	Website            string     `gorm:"type:varchar(255)" json:"website"`
	VerificationStatus string     `gorm:"type:varchar(20);not null;default:'UNVERIFIED'" json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
