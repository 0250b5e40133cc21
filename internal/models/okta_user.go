package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OktaUser mirrors one Okta user for a tenant. Identity is (tenant_id, okta_id);
// rows are soft-deleted when a user disappears from a completed full sync.
type OktaUser struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string `gorm:"not null;index;uniqueIndex:idx_okta_users_tenant_okta" json:"tenant_id"`
	OktaID   string `gorm:"not null;uniqueIndex:idx_okta_users_tenant_okta" json:"okta_id"`

	Email          string `gorm:"index" json:"email"`
	Login          string `json:"login"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Status         string `gorm:"index" json:"status"`
	EmployeeNumber string `json:"employee_number"`
	Department     string `json:"department"`
	Manager        string `json:"manager"`
	Title          string `json:"title"`
	Organization   string `json:"organization"`
	CountryCode    string `json:"country_code"`
	UserType       string `json:"user_type"`

	CustomAttributes datatypes.JSON `gorm:"type:json" json:"custom_attributes"`

	UserCreatedAt     *time.Time `json:"user_created_at"`
	ActivatedAt       *time.Time `json:"activated_at"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	PasswordChangedAt *time.Time `json:"password_changed_at"`
	StatusChangedAt   *time.Time `json:"status_changed_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *OktaUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
