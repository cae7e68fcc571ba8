package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hazeltrade/internal/catalog"
)

// UserStatus enum constants
const (
	UserStatusPending   = "PENDING"
	UserStatusActive    = "ACTIVE"
	UserStatusSuspended = "SUSPENDED"
)

// User represents a platform account. Every user acts in exactly one party
// role (BUYER, SELLER or BROKER); buyers and sellers belong to a company.
type User struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email         string            `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash  string            `gorm:"type:varchar(255);not null" json:"-"`
	FullName      string            `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone         string            `gorm:"type:varchar(50)" json:"phone"`
	Role          catalog.PartyRole `gorm:"type:varchar(10);not null" json:"role"`
	CompanyID     *uuid.UUID        `gorm:"type:uuid;index" json:"company_id"`
	Company       *Company          `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	EmailVerified bool              `gorm:"default:false" json:"email_verified"`
	Status        string            `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	LastLogin     *time.Time        `json:"last_login"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
