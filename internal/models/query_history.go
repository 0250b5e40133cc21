package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueryHistory records one query served from the mirror on behalf of a local
// operator account.
type QueryHistory struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID   string  `gorm:"not null;index" json:"tenant_id"`
	AuthUserID *string `gorm:"type:uuid;index" json:"auth_user_id"`

	QueryText     string         `gorm:"not null" json:"query_text"`
	ResultSummary datatypes.JSON `gorm:"type:json" json:"result_summary"`
	Status        string         `gorm:"index" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (q *QueryHistory) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
