package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OktaDevice mirrors one registered device for a tenant.
type OktaDevice struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string `gorm:"not null;index;uniqueIndex:idx_okta_devices_tenant_okta" json:"tenant_id"`
	OktaID   string `gorm:"not null;uniqueIndex:idx_okta_devices_tenant_okta" json:"okta_id"`

	DisplayName           string `gorm:"index" json:"display_name"`
	Platform              string `json:"platform"`
	Manufacturer          string `json:"manufacturer"`
	Model                 string `json:"model"`
	OSVersion             string `json:"os_version"`
	SerialNumber          string `json:"serial_number"`
	UDID                  string `json:"udid"`
	Status                string `gorm:"index" json:"status"`
	Registered            bool   `gorm:"default:false" json:"registered"`
	SecureHardwarePresent bool   `gorm:"default:false" json:"secure_hardware_present"`

	DeviceCreatedAt *time.Time `json:"device_created_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *OktaDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
