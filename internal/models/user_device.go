package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserDevice links one user to one device with per-relationship metadata.
// Identity is (tenant_id, user_okta_id, device_okta_id); reconciled per device.
type UserDevice struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID     string `gorm:"not null;index;uniqueIndex:idx_user_devices_key" json:"tenant_id"`
	UserOktaID   string `gorm:"not null;index;uniqueIndex:idx_user_devices_key" json:"user_okta_id"`
	DeviceOktaID string `gorm:"not null;index;uniqueIndex:idx_user_devices_key" json:"device_okta_id"`

	ManagementStatus string `json:"management_status"`
	ScreenLockType   string `json:"screen_lock_type"`

	UserDeviceCreatedAt *time.Time `json:"user_device_created_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *UserDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
