package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAppAssignment records a direct application assignment for a user.
type UserAppAssignment struct {
	ID                string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID          string `gorm:"not null;index;uniqueIndex:idx_user_app_assignments_key" json:"tenant_id"`
	UserOktaID        string `gorm:"not null;index;uniqueIndex:idx_user_app_assignments_key" json:"user_okta_id"`
	ApplicationOktaID string `gorm:"not null;index;uniqueIndex:idx_user_app_assignments_key" json:"application_okta_id"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *UserAppAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
