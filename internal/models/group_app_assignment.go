package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupAppAssignment records an application assigned to a group. Unlike the
// other association tables this one is reconciled by full replace: the API
// always supplies the complete set for a parent, so rows are hard-deleted and
// reinserted rather than soft-deleted.
type GroupAppAssignment struct {
	ID                string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID          string `gorm:"not null;index;uniqueIndex:idx_group_app_assignments_key" json:"tenant_id"`
	GroupOktaID       string `gorm:"not null;index;uniqueIndex:idx_group_app_assignments_key" json:"group_okta_id"`
	ApplicationOktaID string `gorm:"not null;index;uniqueIndex:idx_group_app_assignments_key" json:"application_okta_id"`

	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *GroupAppAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
