package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncStatus tracks the lifecycle of one synchronization run.
type SyncStatus string

const (
	SyncStatusStarted    SyncStatus = "STARTED"
	SyncStatusIdle       SyncStatus = "IDLE"
	SyncStatusRunning    SyncStatus = "RUNNING"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	SyncStatusCompleted  SyncStatus = "COMPLETED"
	SyncStatusSuccess    SyncStatus = "SUCCESS"
	SyncStatusFailed     SyncStatus = "FAILED"
	SyncStatusCanceled   SyncStatus = "CANCELED"
)

// Terminal reports whether the status marks a finished run.
func (s SyncStatus) Terminal() bool {
	switch s {
	case SyncStatusCompleted, SyncStatusSuccess, SyncStatusFailed, SyncStatusCanceled:
		return true
	}
	return false
}

// SyncHistory is the audit/progress record for one synchronization run.
// Created at start, counters mutated per batch, finalized at end.
type SyncHistory struct {
	ID       string     `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string     `gorm:"not null;index" json:"tenant_id"`
	Status   SyncStatus `gorm:"not null;index" json:"status"`

	StartTime time.Time  `gorm:"index" json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	RecordsProcessed int `gorm:"default:0" json:"records_processed"`
	UsersCount       int `gorm:"default:0" json:"users_count"`
	GroupsCount      int `gorm:"default:0" json:"groups_count"`
	AppsCount        int `gorm:"default:0" json:"apps_count"`
	PoliciesCount    int `gorm:"default:0" json:"policies_count"`
	DevicesCount     int `gorm:"default:0" json:"devices_count"`

	Success      bool   `gorm:"default:false" json:"success"`
	ErrorDetails string `json:"error_details"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *SyncHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// CounterColumn maps an entity type to its per-run counter column.
func CounterColumn(entity EntityType) string {
	switch entity {
	case EntityUsers:
		return "users_count"
	case EntityGroups:
		return "groups_count"
	case EntityApplications:
		return "apps_count"
	case EntityPolicies:
		return "policies_count"
	case EntityDevices:
		return "devices_count"
	}
	return ""
}
