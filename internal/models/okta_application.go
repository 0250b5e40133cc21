package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OktaApplication mirrors one Okta application for a tenant.
type OktaApplication struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string `gorm:"not null;index;uniqueIndex:idx_okta_apps_tenant_okta" json:"tenant_id"`
	OktaID   string `gorm:"not null;uniqueIndex:idx_okta_apps_tenant_okta" json:"okta_id"`

	Name       string `gorm:"index" json:"name"`
	Label      string `json:"label"`
	Status     string `gorm:"index" json:"status"`
	SignOnMode string `json:"sign_on_mode"`

	AppCreatedAt *time.Time `json:"app_created_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *OktaApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
