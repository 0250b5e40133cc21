package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserGroupMembership records a user's membership in a group. The group and
// user are referenced by okta_id string, not a hard foreign key.
type UserGroupMembership struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID    string `gorm:"not null;index;uniqueIndex:idx_user_group_memberships_key" json:"tenant_id"`
	UserOktaID  string `gorm:"not null;index;uniqueIndex:idx_user_group_memberships_key" json:"user_okta_id"`
	GroupOktaID string `gorm:"not null;index;uniqueIndex:idx_user_group_memberships_key" json:"group_okta_id"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m *UserGroupMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
