package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
)

// QueryHistoryService records queries served from the mirror for audit.
type QueryHistoryService struct {
	db *gorm.DB
}

// NewQueryHistoryService constructs the query audit layer.
func NewQueryHistoryService(db *gorm.DB) (*QueryHistoryService, error) {
	if db == nil {
		return nil, errors.New("query history service: db is required")
	}
	return &QueryHistoryService{db: db}, nil
}

// Record stores one served query with an optional result summary.
func (s *QueryHistoryService) Record(ctx context.Context, tenantID string, authUserID *string, queryText, status string, summary map[string]any) (*models.QueryHistory, error) {
	ctx = ensureContext(ctx)

	if tenantID == "" {
		return nil, errors.New("query history service: tenant id is required")
	}
	if queryText == "" {
		return nil, errors.New("query history service: query text is required")
	}

	row := models.QueryHistory{
		TenantID:   tenantID,
		AuthUserID: authUserID,
		QueryText:  queryText,
		Status:     status,
	}
	if len(summary) > 0 {
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("query history service: encode summary: %w", err)
		}
		row.ResultSummary = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("query history service: record: %w", err)
	}
	return &row, nil
}

// ListRecent returns a tenant's most recent queries, newest first.
func (s *QueryHistoryService) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.QueryHistory, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 {
		limit = 50
	}

	var rows []models.QueryHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query history service: list: %w", err)
	}
	return rows, nil
}

// CleanupOlderThan removes query history older than the retention window in days.
func (s *QueryHistoryService) CleanupOlderThan(ctx context.Context, tenantID string, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("query history service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("created_at < ?", cutoff).
		Delete(&models.QueryHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("query history service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
