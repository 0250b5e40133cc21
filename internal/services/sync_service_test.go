package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/database/testutil"
	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/internal/okta"
	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
)

// fakeClient is an instrumented in-memory directory adapter. Each List method
// records its call, streams the configured batches, then fires its hook.
type fakeClient struct {
	groups   [][]okta.GroupRecord
	apps     [][]okta.ApplicationRecord
	users    [][]okta.UserRecord
	devices  [][]okta.DeviceRecord
	policies [][]okta.PolicyRecord

	authErrs []string
	listErrs map[string]error
	calls    []string

	afterGroups     func()
	afterUsersBatch func(batchIndex int)
}

func (f *fakeClient) ListGroups(ctx context.Context, fn okta.BatchFunc[okta.GroupRecord]) error {
	f.calls = append(f.calls, "groups")
	if err := f.listErrs["groups"]; err != nil {
		return err
	}
	for _, batch := range f.groups {
		if err := fn(ctx, batch); err != nil {
			return err
		}
	}
	if f.afterGroups != nil {
		f.afterGroups()
	}
	return nil
}

func (f *fakeClient) ListApplications(ctx context.Context, fn okta.BatchFunc[okta.ApplicationRecord]) error {
	f.calls = append(f.calls, "applications")
	if err := f.listErrs["applications"]; err != nil {
		return err
	}
	for _, batch := range f.apps {
		if err := fn(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) ListUsers(ctx context.Context, fn okta.BatchFunc[okta.UserRecord]) error {
	f.calls = append(f.calls, "users")
	if err := f.listErrs["users"]; err != nil {
		return err
	}
	for i, batch := range f.users {
		if err := fn(ctx, batch); err != nil {
			return err
		}
		if f.afterUsersBatch != nil {
			f.afterUsersBatch(i)
		}
	}
	return nil
}

func (f *fakeClient) ListDevices(ctx context.Context, fn okta.BatchFunc[okta.DeviceRecord]) error {
	f.calls = append(f.calls, "devices")
	if err := f.listErrs["devices"]; err != nil {
		return err
	}
	for _, batch := range f.devices {
		if err := fn(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) ListPolicies(ctx context.Context, fn okta.BatchFunc[okta.PolicyRecord]) error {
	f.calls = append(f.calls, "policies")
	if err := f.listErrs["policies"]; err != nil {
		return err
	}
	for _, batch := range f.policies {
		if err := fn(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) AuthErrors() []string { return f.authErrs }

func newSyncHarness(t *testing.T, client okta.Client, opts SyncOptions) (*SyncService, *HistoryService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStoreService(db)
	require.NoError(t, err)
	history, err := NewHistoryService(db)
	require.NoError(t, err)
	svc, err := NewSyncService(store, history, client, opts)
	require.NoError(t, err)
	return svc, history, db
}

func TestRunDependencyOrder(t *testing.T) {
	fake := &fakeClient{}
	svc, _, _ := newSyncHarness(t, fake, SyncOptions{})

	hist, err := svc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusCompleted, hist.Status)
	require.Equal(t, []string{"groups", "applications", "users", "policies"}, fake.calls)
}

func TestRunDependencyOrderWithDevices(t *testing.T) {
	fake := &fakeClient{}
	svc, _, _ := newSyncHarness(t, fake, SyncOptions{DevicesEnabled: true})

	_, err := svc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, []string{"groups", "applications", "users", "devices", "policies"}, fake.calls)
}

func TestRunEndToEnd(t *testing.T) {
	users := make([]okta.UserRecord, 6)
	for i := range users {
		rec := userRecord("u"+string(rune('1'+i)), "user@example.com")
		rec.Factors = []okta.FactorRecord{{OktaID: "f-" + rec.OktaID, FactorType: "push", Provider: "OKTA"}}
		users[i] = rec
	}

	fake := &fakeClient{
		groups: [][]okta.GroupRecord{{{OktaID: "g1", Name: "Everyone"}}},
		users:  [][]okta.UserRecord{users[:3], users[3:]},
	}
	svc, _, db := newSyncHarness(t, fake, SyncOptions{})

	hist, err := svc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusCompleted, hist.Status)
	require.True(t, hist.Success)
	require.Equal(t, 6, hist.UsersCount)
	require.Equal(t, 1, hist.GroupsCount)
	require.Equal(t, 7, hist.RecordsProcessed)

	var userCount, factorCount int64
	require.NoError(t, db.Model(&models.OktaUser{}).Where("tenant_id = ? AND is_deleted = ?", "acme", false).Count(&userCount).Error)
	require.NoError(t, db.Model(&models.UserFactor{}).Where("tenant_id = ? AND is_deleted = ?", "acme", false).Count(&factorCount).Error)
	require.Equal(t, int64(6), userCount)
	require.Equal(t, int64(6), factorCount)
}

func TestRunSoftDeletesStaleRows(t *testing.T) {
	fake := &fakeClient{
		users: [][]okta.UserRecord{{userRecord("u1", "u1@example.com")}},
	}
	svc, _, db := newSyncHarness(t, fake, SyncOptions{})

	// A row from an earlier pass that the directory no longer reports.
	store, err := NewStoreService(db)
	require.NoError(t, err)
	_, err = store.BulkUpsertUsers(context.Background(), "acme", []okta.UserRecord{userRecord("u_stale", "stale@example.com")})
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), "acme")
	require.NoError(t, err)

	var stale models.OktaUser
	require.NoError(t, db.First(&stale, "tenant_id = ? AND okta_id = ?", "acme", "u_stale").Error)
	require.True(t, stale.IsDeleted)

	var current models.OktaUser
	require.NoError(t, db.First(&current, "tenant_id = ? AND okta_id = ?", "acme", "u1").Error)
	require.False(t, current.IsDeleted)
}

func TestCancellationBetweenEntityTypes(t *testing.T) {
	fake := &fakeClient{
		groups: [][]okta.GroupRecord{{{OktaID: "g1", Name: "Everyone"}}},
		users:  [][]okta.UserRecord{{userRecord("u1", "u1@example.com")}},
	}
	svc, history, db := newSyncHarness(t, fake, SyncOptions{})
	fake.afterGroups = svc.Cancel

	hist, err := svc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusCanceled, hist.Status)
	require.False(t, hist.Success)
	require.Equal(t, []string{"groups"}, fake.calls)

	// Work committed before cancellation stays committed.
	var groups int64
	require.NoError(t, db.Model(&models.OktaGroup{}).Where("tenant_id = ?", "acme").Count(&groups).Error)
	require.Equal(t, int64(1), groups)

	active, err := history.Active(context.Background(), "acme")
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestCancellationBetweenBatchesSkipsMissingPass(t *testing.T) {
	fake := &fakeClient{
		users: [][]okta.UserRecord{
			{userRecord("u1", "u1@example.com")},
			{userRecord("u2", "u2@example.com")},
		},
	}
	svc, _, db := newSyncHarness(t, fake, SyncOptions{})
	fake.afterUsersBatch = func(i int) {
		if i == 0 {
			svc.Cancel()
		}
	}

	// Stale row that must NOT be soft-deleted: cancellation means the
	// accumulated ID set is incomplete.
	store, err := NewStoreService(db)
	require.NoError(t, err)
	_, err = store.BulkUpsertUsers(context.Background(), "acme", []okta.UserRecord{userRecord("u_stale", "stale@example.com")})
	require.NoError(t, err)

	hist, err := svc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusCanceled, hist.Status)
	require.Equal(t, 1, hist.UsersCount)

	var stale models.OktaUser
	require.NoError(t, db.First(&stale, "tenant_id = ? AND okta_id = ?", "acme", "u_stale").Error)
	require.False(t, stale.IsDeleted)
}

func TestAuthErrorsFailRunAfterAllEntities(t *testing.T) {
	fake := &fakeClient{
		users:    [][]okta.UserRecord{{userRecord("u1", "u1@example.com")}},
		authErrs: []string{"GET /api/v1/groups: 403", "GET /api/v1/policies: 403"},
	}
	svc, history, db := newSyncHarness(t, fake, SyncOptions{})

	_, err := svc.Run(context.Background(), "acme")
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrAuthFailed)

	// Every entity type still ran, and its data persisted, before failing.
	require.Equal(t, []string{"groups", "applications", "users", "policies"}, fake.calls)
	var users int64
	require.NoError(t, db.Model(&models.OktaUser{}).Where("tenant_id = ?", "acme").Count(&users).Error)
	require.Equal(t, int64(1), users)

	runs, err := history.Recent(context.Background(), "acme", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.SyncStatusFailed, runs[0].Status)
	require.Contains(t, runs[0].ErrorDetails, "2 authentication failures")
}

func TestListErrorFailsRun(t *testing.T) {
	fake := &fakeClient{
		groups:   [][]okta.GroupRecord{{{OktaID: "g1", Name: "Everyone"}}},
		listErrs: map[string]error{"users": errors.New("connection reset")},
	}
	svc, history, _ := newSyncHarness(t, fake, SyncOptions{})

	_, err := svc.Run(context.Background(), "acme")
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrSyncFailed)

	runs, err := history.Recent(context.Background(), "acme", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.SyncStatusFailed, runs[0].Status)
	require.Contains(t, runs[0].ErrorDetails, "connection reset")
	// The groups counter survived the later failure.
	require.Equal(t, 1, runs[0].GroupsCount)
}

func TestConsolidateAuthErrorsTruncates(t *testing.T) {
	err := consolidateAuthErrors([]string{"a", "b", "c", "d", "e"})
	require.ErrorIs(t, err, apperrors.ErrAuthFailed)
	require.Contains(t, err.Error(), "5 authentication failures")
	require.Contains(t, err.Error(), "a; b; c")
	require.NotContains(t, err.Error(), "d")
}
