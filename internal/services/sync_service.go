package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/internal/okta"
	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
	"github.com/oktamirror/oktamirror/pkg/logger"
	"github.com/oktamirror/oktamirror/pkg/metrics"
)

// maxAuthErrorsReported bounds how many accumulated auth failures appear in
// the consolidated post-run error.
const maxAuthErrorsReported = 3

var errSyncCanceled = errors.New("sync canceled")

// SyncOptions tunes one orchestrator instance.
type SyncOptions struct {
	// DevicesEnabled includes the device entity type in the run.
	DevicesEnabled bool
}

// SyncService drives one full synchronization pass per tenant: entity types in
// fixed dependency order, each streamed batch-by-batch from the adapter and
// pushed through the store, with history counters committed per batch.
//
// Cancellation is cooperative: the flag is honoured before each entity type
// and between batches, never mid-batch. Work committed before cancellation
// stays committed.
type SyncService struct {
	store   *StoreService
	history *HistoryService
	client  okta.Client
	log     *zap.Logger
	opts    SyncOptions

	canceled atomic.Bool
}

// NewSyncService constructs the sync orchestrator.
func NewSyncService(store *StoreService, history *HistoryService, client okta.Client, opts SyncOptions) (*SyncService, error) {
	if store == nil {
		return nil, errors.New("sync service: store is required")
	}
	if history == nil {
		return nil, errors.New("sync service: history is required")
	}
	if client == nil {
		return nil, errors.New("sync service: client is required")
	}
	return &SyncService{
		store:   store,
		history: history,
		client:  client,
		log:     logger.WithModule("sync"),
		opts:    opts,
	}, nil
}

// Cancel requests cooperative cancellation of the current run.
func (s *SyncService) Cancel() {
	s.canceled.Store(true)
}

// Canceled reports whether cancellation has been requested.
func (s *SyncService) Canceled() bool {
	return s.canceled.Load()
}

// Run executes one full sync for a tenant and returns the finalized history
// row. A non-nil error means the run is recorded FAILED; cancellation is not
// an error and yields a CANCELED row.
func (s *SyncService) Run(ctx context.Context, tenantID string) (*models.SyncHistory, error) {
	hist, err := s.history.Start(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	metrics.ActiveSyncs.Inc()
	defer metrics.ActiveSyncs.Dec()

	if err := s.history.SetStatus(ctx, hist.ID, models.SyncStatusRunning); err != nil {
		return hist, err
	}

	started := time.Now()
	runErr := s.runEntities(ctx, tenantID, hist)

	switch {
	case s.canceled.Load():
		s.log.Info("sync canceled",
			zap.String("tenant_id", tenantID),
			zap.Duration("elapsed", time.Since(started)))
		metrics.SyncRuns.WithLabelValues("canceled").Inc()
		if err := s.history.Finish(ctx, hist.ID, models.SyncStatusCanceled, ""); err != nil {
			return hist, err
		}
		return s.history.Get(ctx, hist.ID)

	case runErr != nil:
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		if err := s.history.Finish(ctx, hist.ID, models.SyncStatusFailed, runErr.Error()); err != nil {
			s.log.Error("failed to finalize sync history", zap.Error(err))
		}
		return hist, apperrors.ErrSyncFailed.WithInternal(runErr)
	}

	// Auth failures are accumulated non-fatally while paging; a run only
	// fails on them here, after all entity types completed, so per-entity
	// counts for the partial data remain persisted.
	if authErrs := s.client.AuthErrors(); len(authErrs) > 0 {
		consolidated := consolidateAuthErrors(authErrs)
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		if err := s.history.Finish(ctx, hist.ID, models.SyncStatusFailed, consolidated.Error()); err != nil {
			s.log.Error("failed to finalize sync history", zap.Error(err))
		}
		return hist, consolidated
	}

	metrics.SyncRuns.WithLabelValues("completed").Inc()
	if err := s.history.Finish(ctx, hist.ID, models.SyncStatusCompleted, ""); err != nil {
		return hist, err
	}

	s.log.Info("sync completed",
		zap.String("tenant_id", tenantID),
		zap.Duration("elapsed", time.Since(started)))
	return s.history.Get(ctx, hist.ID)
}

// runEntities walks entity types in dependency order, checking the
// cancellation flag at each step boundary.
func (s *SyncService) runEntities(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	steps := []struct {
		entity models.EntityType
		run    func(context.Context, string, *models.SyncHistory) error
	}{
		{models.EntityGroups, s.syncGroups},
		{models.EntityApplications, s.syncApplications},
		{models.EntityUsers, s.syncUsers},
		{models.EntityDevices, s.syncDevices},
		{models.EntityPolicies, s.syncPolicies},
	}

	for _, step := range steps {
		if step.entity == models.EntityDevices && !s.opts.DevicesEnabled {
			continue
		}
		if s.canceled.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Info("syncing entity type",
			zap.String("tenant_id", tenantID),
			zap.String("entity", string(step.entity)))
		if err := step.run(ctx, tenantID, hist); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) syncGroups(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	return syncStream(ctx, s, tenantID, hist, models.EntityGroups,
		s.client.ListGroups, s.store.BulkUpsertGroups, okta.GroupRecord.RecordID)
}

func (s *SyncService) syncApplications(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	return syncStream(ctx, s, tenantID, hist, models.EntityApplications,
		s.client.ListApplications, s.store.BulkUpsertApplications, okta.ApplicationRecord.RecordID)
}

func (s *SyncService) syncUsers(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	return syncStream(ctx, s, tenantID, hist, models.EntityUsers,
		s.client.ListUsers, s.store.BulkUpsertUsers, okta.UserRecord.RecordID)
}

func (s *SyncService) syncDevices(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	return syncStream(ctx, s, tenantID, hist, models.EntityDevices,
		s.client.ListDevices, s.store.BulkUpsertDevices, okta.DeviceRecord.RecordID)
}

func (s *SyncService) syncPolicies(ctx context.Context, tenantID string, hist *models.SyncHistory) error {
	return syncStream(ctx, s, tenantID, hist, models.EntityPolicies,
		s.client.ListPolicies, s.store.BulkUpsertPolicies, okta.PolicyRecord.RecordID)
}

// syncStream runs one entity type end to end: verify the run's history row is
// still the active one, stream batches through the store (one transaction per
// batch, counter bumped after each), then soft-delete rows absent from the
// accumulated full ID set.
func syncStream[R any](
	ctx context.Context,
	s *SyncService,
	tenantID string,
	hist *models.SyncHistory,
	entity models.EntityType,
	list func(context.Context, okta.BatchFunc[R]) error,
	upsert func(context.Context, string, []R) (int, error),
	recordID func(R) string,
) error {
	active, err := s.history.Active(ctx, tenantID)
	if err != nil {
		return err
	}
	if active == nil || active.ID != hist.ID {
		s.log.Warn("no active sync history for run; skipping entity",
			zap.String("tenant_id", tenantID),
			zap.String("entity", string(entity)))
		return nil
	}

	seen := make(map[string]struct{})
	total := 0

	err = list(ctx, func(ctx context.Context, batch []R) error {
		if s.canceled.Load() {
			return errSyncCanceled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		n, err := upsert(ctx, tenantID, batch)
		if err != nil {
			return err
		}
		metrics.BatchDuration.WithLabelValues(string(entity)).Observe(time.Since(start).Seconds())
		metrics.RecordsSynced.WithLabelValues(string(entity)).Add(float64(n))

		for _, rec := range batch {
			if id := recordID(rec); id != "" {
				seen[id] = struct{}{}
			}
		}
		total += n

		return s.history.AddCount(ctx, hist.ID, entity, n)
	})
	if errors.Is(err, errSyncCanceled) {
		// Batches persisted so far stay committed; the missing-ID pass is
		// skipped because the ID set is incomplete.
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w", entity, err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	removed, err := s.store.MarkMissingDeleted(ctx, tenantID, entity, ids)
	if err != nil {
		return err
	}

	s.log.Info("entity sync finished",
		zap.String("tenant_id", tenantID),
		zap.String("entity", string(entity)),
		zap.Int("records", total),
		zap.Int64("soft_deleted", removed))
	return nil
}

func consolidateAuthErrors(authErrs []string) error {
	shown := authErrs
	if len(shown) > maxAuthErrorsReported {
		shown = shown[:maxAuthErrorsReported]
	}
	msg := fmt.Sprintf("%d authentication failures during sync: %s",
		len(authErrs), strings.Join(shown, "; "))
	return apperrors.ErrAuthFailed.WithInternal(errors.New(msg))
}
