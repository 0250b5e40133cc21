package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OktaGroup mirrors one Okta group for a tenant.
type OktaGroup struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string `gorm:"not null;index;uniqueIndex:idx_okta_groups_tenant_okta" json:"tenant_id"`
	OktaID   string `gorm:"not null;uniqueIndex:idx_okta_groups_tenant_okta" json:"okta_id"`

	Name        string `gorm:"index" json:"name"`
	Description string `json:"description"`
	GroupType   string `json:"group_type"`

	GroupCreatedAt      *time.Time `json:"group_created_at"`
	MembershipUpdatedAt *time.Time `json:"membership_updated_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (g *OktaGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
