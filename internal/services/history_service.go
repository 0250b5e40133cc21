package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
)

// HistoryService manages sync history bookkeeping: one row per run, counters
// mutated while the run streams, finalized with a terminal status at the end.
type HistoryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHistoryService constructs the sync history bookkeeping layer.
func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	if db == nil {
		return nil, errors.New("history service: db is required")
	}
	return &HistoryService{db: db, now: time.Now}, nil
}

// Start creates the history row for a new run in STARTED state.
func (s *HistoryService) Start(ctx context.Context, tenantID string) (*models.SyncHistory, error) {
	if tenantID == "" {
		return nil, errors.New("history service: tenant id is required")
	}

	row := models.SyncHistory{
		TenantID:  tenantID,
		Status:    models.SyncStatusStarted,
		StartTime: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("history service: create: %w", err)
	}
	return &row, nil
}

// SetStatus moves a run to a new (non-terminal) status.
func (s *HistoryService) SetStatus(ctx context.Context, id string, status models.SyncStatus) error {
	result := s.db.WithContext(ctx).Model(&models.SyncHistory{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("history service: set status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("history service: run %s not found", id)
	}
	return nil
}

// AddCount increments the per-entity counter and the overall processed total
// for a run. Called once per persisted batch.
func (s *HistoryService) AddCount(ctx context.Context, id string, entity models.EntityType, n int) error {
	if n <= 0 {
		return nil
	}

	column := models.CounterColumn(entity)
	if column == "" {
		return fmt.Errorf("history service: unknown entity type %q", entity)
	}

	result := s.db.WithContext(ctx).Model(&models.SyncHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			column:              gorm.Expr(column+" + ?", n),
			"records_processed": gorm.Expr("records_processed + ?", n),
			"status":            models.SyncStatusInProgress,
		})
	if result.Error != nil {
		return fmt.Errorf("history service: add count: %w", result.Error)
	}
	return nil
}

// Finish finalizes a run with a terminal status, end time, and error details.
func (s *HistoryService) Finish(ctx context.Context, id string, status models.SyncStatus, errDetails string) error {
	if !status.Terminal() {
		return fmt.Errorf("history service: %s is not a terminal status", status)
	}

	end := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.SyncHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"end_time":      &end,
			"success":       status == models.SyncStatusCompleted || status == models.SyncStatusSuccess,
			"error_details": errDetails,
		})
	if result.Error != nil {
		return fmt.Errorf("history service: finish: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("history service: run %s not found", id)
	}
	return nil
}

// Active returns the most recent non-terminal run for a tenant, or nil when
// no run is in flight.
func (s *HistoryService) Active(ctx context.Context, tenantID string) (*models.SyncHistory, error) {
	var row models.SyncHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("status IN ?", []models.SyncStatus{
			models.SyncStatusStarted,
			models.SyncStatusRunning,
			models.SyncStatusInProgress,
		}).
		Order("start_time DESC").
		First(&row).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("history service: active run: %w", err)
	}
}

// Get loads one run by id.
func (s *HistoryService) Get(ctx context.Context, id string) (*models.SyncHistory, error) {
	var row models.SyncHistory
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("history service: get run: %w", err)
	}
	return &row, nil
}

// Recent lists a tenant's most recent runs, newest first.
func (s *HistoryService) Recent(ctx context.Context, tenantID string, limit int) ([]models.SyncHistory, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []models.SyncHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("start_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history service: recent runs: %w", err)
	}
	return rows, nil
}

// CleanupOldDays retains the keepDays most recent distinct calendar days of
// history for a tenant and deletes everything older than the oldest retained
// day. Retention counts days with activity, not rows.
func (s *HistoryService) CleanupOldDays(ctx context.Context, tenantID string, keepDays int) (int64, error) {
	if tenantID == "" {
		return 0, errors.New("history service: tenant id is required")
	}
	if keepDays <= 0 {
		return 0, errors.New("history service: keepDays must be positive")
	}

	var days []string
	err := s.db.WithContext(ctx).Model(&models.SyncHistory{}).
		Where("tenant_id = ?", tenantID).
		Distinct("date(start_time)").
		Order("date(start_time) DESC").
		Limit(keepDays).
		Pluck("date(start_time)", &days).Error
	if err != nil {
		return 0, fmt.Errorf("history service: list days: %w", err)
	}
	if len(days) < keepDays {
		return 0, nil
	}

	oldestRetained := days[len(days)-1]
	result := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("date(start_time) < ?", oldestRetained).
		Delete(&models.SyncHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("history service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
