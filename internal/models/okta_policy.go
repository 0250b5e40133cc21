package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OktaPolicy mirrors one Okta policy for a tenant.
type OktaPolicy struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string `gorm:"not null;index;uniqueIndex:idx_okta_policies_tenant_okta" json:"tenant_id"`
	OktaID   string `gorm:"not null;uniqueIndex:idx_okta_policies_tenant_okta" json:"okta_id"`

	Name        string `gorm:"index" json:"name"`
	Description string `json:"description"`
	PolicyType  string `gorm:"index" json:"policy_type"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *OktaPolicy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
