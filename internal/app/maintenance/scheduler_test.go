package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/oktamirror/oktamirror/internal/database/testutil"
	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/internal/services"
)

func newHistoryForTest(t *testing.T) *services.HistoryService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := services.NewHistoryService(db)
	require.NoError(t, err)
	return svc
}

func TestRunOnceExecutesSyncAndCleanup(t *testing.T) {
	history := newHistoryForTest(t)

	var syncCalls atomic.Int32
	sched := NewScheduler("acme", func(ctx context.Context) error {
		syncCalls.Add(1)
		return nil
	}, history, nil, WithRetentionDays(7))

	require.NoError(t, sched.RunOnce(context.Background()))
	require.Equal(t, int32(1), syncCalls.Load())
}

func TestRunOnceAggregatesErrors(t *testing.T) {
	history := newHistoryForTest(t)

	syncErr := errors.New("upstream unavailable")
	sched := NewScheduler("acme", func(ctx context.Context) error {
		return syncErr
	}, history, nil)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, syncErr)
	// Cleanup still ran despite the sync failure; only the sync error surfaces.
	require.Len(t, multierr.Errors(err), 1)
}

func TestRunOnceCleansOldHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	history, err := services.NewHistoryService(db)
	require.NoError(t, err)

	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		row := models.SyncHistory{
			TenantID:  "acme",
			Status:    models.SyncStatusCompleted,
			StartTime: base.AddDate(0, 0, -i),
			Success:   true,
		}
		require.NoError(t, db.Create(&row).Error)
	}

	sched := NewScheduler("acme", nil, history, nil, WithRetentionDays(7))
	require.NoError(t, sched.RunOnce(context.Background()))

	var remaining int64
	require.NoError(t, db.Model(&models.SyncHistory{}).Where("tenant_id = ?", "acme").Count(&remaining).Error)
	require.Equal(t, int64(7), remaining)
}

func TestStartRegistersJobs(t *testing.T) {
	history := newHistoryForTest(t)
	c := cron.New(cron.WithLogger(cron.DiscardLogger))

	sched := NewScheduler("acme", func(ctx context.Context) error { return nil }, history, nil,
		WithCron(c),
		WithSyncSchedule("@every 1h"),
		WithCleanupSchedule("@every 24h"))

	require.NoError(t, sched.Start())
	require.Len(t, c.Entries(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sched := NewScheduler("acme", func(ctx context.Context) error { return nil }, nil, nil,
		WithSyncSchedule("not a cron spec"))
	require.Error(t, sched.Start())
}

func TestScheduledSyncRuns(t *testing.T) {
	var calls atomic.Int32
	sched := NewScheduler("acme", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, nil, nil, WithSyncSchedule("@every 10ms"))

	require.NoError(t, sched.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}
