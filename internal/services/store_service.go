package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/internal/okta"
	"github.com/oktamirror/oktamirror/pkg/logger"
)

// StoreService owns the upsert and reconciliation algorithms for the mirror.
// Every operation is tenant-scoped: lookups always filter on tenant_id, so two
// tenants sharing an okta_id never touch each other's rows.
//
// Three reconciliation policies coexist deliberately:
//   - entity rows: upsert + soft-delete via MarkMissingDeleted
//   - user factors, user-device links, memberships, user-app assignments:
//     incremental soft-delete-and-revive per parent
//   - group<->app assignments: hard-delete-then-reinsert per parent, because the
//     API always supplies that set in full and the join key has no lifecycle.
type StoreService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStoreService constructs the persistence operations layer.
func NewStoreService(db *gorm.DB) (*StoreService, error) {
	if db == nil {
		return nil, errors.New("store service: db is required")
	}
	return &StoreService{db: db, log: logger.WithModule("store")}, nil
}

// BulkUpsertGroups persists one batch of groups and full-replaces each group's
// application assignments. Fail-fast: the first bad record aborts the batch.
func (s *StoreService) BulkUpsertGroups(ctx context.Context, tenantID string, batch []okta.GroupRecord) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, rec := range batch {
			if rec.OktaID == "" {
				return errors.New("store service: group record missing okta_id")
			}
			if err := upsertGroup(tx, tenantID, rec, now); err != nil {
				return fmt.Errorf("store service: group %s: %w", rec.OktaID, err)
			}
			if err := replaceGroupApps(tx, tenantID, rec.OktaID, rec.Applications, now); err != nil {
				return fmt.Errorf("store service: group %s assignments: %w", rec.OktaID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// BulkUpsertApplications persists one batch of applications and full-replaces
// each application's group assignments.
func (s *StoreService) BulkUpsertApplications(ctx context.Context, tenantID string, batch []okta.ApplicationRecord) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, rec := range batch {
			if rec.OktaID == "" {
				return errors.New("store service: application record missing okta_id")
			}
			if err := upsertApplication(tx, tenantID, rec, now); err != nil {
				return fmt.Errorf("store service: application %s: %w", rec.OktaID, err)
			}
			if err := replaceAppGroups(tx, tenantID, rec.OktaID, rec.GroupAssignments, now); err != nil {
				return fmt.Errorf("store service: application %s assignments: %w", rec.OktaID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// BulkUpsertUsers persists one batch of users and reconciles each user's
// factors, group memberships, and application links against the upserted row.
func (s *StoreService) BulkUpsertUsers(ctx context.Context, tenantID string, batch []okta.UserRecord) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, rec := range batch {
			if rec.OktaID == "" {
				return errors.New("store service: user record missing okta_id")
			}
			if err := upsertUser(tx, tenantID, rec, now); err != nil {
				return fmt.Errorf("store service: user %s: %w", rec.OktaID, err)
			}
			if err := syncUserFactors(tx, tenantID, rec.OktaID, rec.Factors, now); err != nil {
				return fmt.Errorf("store service: user %s factors: %w", rec.OktaID, err)
			}
			if err := syncUserGroupMemberships(tx, tenantID, rec.OktaID, rec.GroupMemberships, now); err != nil {
				return fmt.Errorf("store service: user %s memberships: %w", rec.OktaID, err)
			}
			if err := syncUserAppAssignments(tx, tenantID, rec.OktaID, rec.AppLinks, now); err != nil {
				return fmt.Errorf("store service: user %s app links: %w", rec.OktaID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// BulkUpsertPolicies persists one batch of policies.
func (s *StoreService) BulkUpsertPolicies(ctx context.Context, tenantID string, batch []okta.PolicyRecord) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, rec := range batch {
			if rec.OktaID == "" {
				return errors.New("store service: policy record missing okta_id")
			}
			if err := upsertPolicy(tx, tenantID, rec, now); err != nil {
				return fmt.Errorf("store service: policy %s: %w", rec.OktaID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// BulkUpsertDevices persists one batch of devices and reconciles each device's
// user links. Links referencing users that do not exist locally (or are soft
// deleted) are skipped with a warning rather than failing the batch.
func (s *StoreService) BulkUpsertDevices(ctx context.Context, tenantID string, batch []okta.DeviceRecord) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, rec := range batch {
			if rec.OktaID == "" {
				return errors.New("store service: device record missing okta_id")
			}
			if err := upsertDevice(tx, tenantID, rec, now); err != nil {
				return fmt.Errorf("store service: device %s: %w", rec.OktaID, err)
			}
			if err := s.syncDeviceUsers(tx, tenantID, rec.OktaID, rec.Users, now); err != nil {
				return fmt.Errorf("store service: device %s users: %w", rec.OktaID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// MarkMissingDeleted flags every non-deleted row of the entity type whose
// okta_id is absent from seenIDs. The caller must supply the complete ID set
// from a finished full sync pass; an empty set soft-deletes everything for
// that tenant and entity type.
func (s *StoreService) MarkMissingDeleted(ctx context.Context, tenantID string, entity models.EntityType, seenIDs []string) (int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}

	model, err := modelFor(entity)
	if err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).Model(model).
		Where("tenant_id = ?", tenantID).
		Where("is_deleted = ?", false)
	if len(seenIDs) > 0 {
		query = query.Where("okta_id NOT IN ?", seenIDs)
	}

	result := query.Updates(map[string]any{
		"is_deleted":     true,
		"last_synced_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("store service: mark deleted %s: %w", entity, result.Error)
	}
	return result.RowsAffected, nil
}

// ClearEntityData hard-deletes all rows for one tenant and entity type,
// including dependent relationship rows. Operational escape hatch for a full
// rebuild; the orchestrator reconciles with MarkMissingDeleted instead.
func (s *StoreService) ClearEntityData(ctx context.Context, tenantID string, entity models.EntityType) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := func(model any) error {
			return tx.Where("tenant_id = ?", tenantID).Delete(model).Error
		}

		switch entity {
		case models.EntityUsers:
			for _, model := range []any{&models.UserFactor{}, &models.UserDevice{}, &models.UserGroupMembership{}, &models.UserAppAssignment{}, &models.OktaUser{}} {
				if err := del(model); err != nil {
					return err
				}
			}
		case models.EntityGroups:
			for _, model := range []any{&models.UserGroupMembership{}, &models.GroupAppAssignment{}, &models.OktaGroup{}} {
				if err := del(model); err != nil {
					return err
				}
			}
		case models.EntityApplications:
			for _, model := range []any{&models.UserAppAssignment{}, &models.GroupAppAssignment{}, &models.OktaApplication{}} {
				if err := del(model); err != nil {
					return err
				}
			}
		case models.EntityPolicies:
			if err := del(&models.OktaPolicy{}); err != nil {
				return err
			}
		case models.EntityDevices:
			for _, model := range []any{&models.UserDevice{}, &models.OktaDevice{}} {
				if err := del(model); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("store service: unknown entity type %q", entity)
		}
		return nil
	})
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return errors.New("store service: tenant id is required")
	}
	return nil
}

func modelFor(entity models.EntityType) (any, error) {
	switch entity {
	case models.EntityUsers:
		return &models.OktaUser{}, nil
	case models.EntityGroups:
		return &models.OktaGroup{}, nil
	case models.EntityApplications:
		return &models.OktaApplication{}, nil
	case models.EntityPolicies:
		return &models.OktaPolicy{}, nil
	case models.EntityDevices:
		return &models.OktaDevice{}, nil
	}
	return nil, fmt.Errorf("store service: unknown entity type %q", entity)
}

// Entity upserts. Updates use column maps so zero values overwrite stored
// values: an incoming record replaces every field it carries.

func upsertUser(tx *gorm.DB, tenantID string, rec okta.UserRecord, now time.Time) error {
	attrs, err := encodeCustomAttributes(rec.CustomAttributes)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"email":               rec.Email,
		"login":               rec.Login,
		"first_name":          rec.FirstName,
		"last_name":           rec.LastName,
		"status":              rec.Status,
		"employee_number":     rec.EmployeeNumber,
		"department":          rec.Department,
		"manager":             rec.Manager,
		"title":               rec.Title,
		"organization":        rec.Organization,
		"country_code":        rec.CountryCode,
		"user_type":           rec.UserType,
		"custom_attributes":   attrs,
		"user_created_at":     rec.Created,
		"activated_at":        rec.Activated,
		"last_login_at":       rec.LastLogin,
		"password_changed_at": rec.PasswordChanged,
		"status_changed_at":   rec.StatusChanged,
		"is_deleted":          false,
		"last_synced_at":      now,
	}

	var existing models.OktaUser
	err = tx.Where("tenant_id = ? AND okta_id = ?", tenantID, rec.OktaID).First(&existing).Error
	switch {
	case err == nil:
		return tx.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.OktaUser{
			TenantID:          tenantID,
			OktaID:            rec.OktaID,
			Email:             rec.Email,
			Login:             rec.Login,
			FirstName:         rec.FirstName,
			LastName:          rec.LastName,
			Status:            rec.Status,
			EmployeeNumber:    rec.EmployeeNumber,
			Department:        rec.Department,
			Manager:           rec.Manager,
			Title:             rec.Title,
			Organization:      rec.Organization,
			CountryCode:       rec.CountryCode,
			UserType:          rec.UserType,
			CustomAttributes:  attrs,
			UserCreatedAt:     rec.Created,
			ActivatedAt:       rec.Activated,
			LastLoginAt:       rec.LastLogin,
			PasswordChangedAt: rec.PasswordChanged,
			StatusChangedAt:   rec.StatusChanged,
			LastSyncedAt:      now,
		}
		return tx.Create(&row).Error
	default:
		return err
	}
}

func upsertGroup(tx *gorm.DB, tenantID string, rec okta.GroupRecord, now time.Time) error {
	updates := map[string]any{
		"name":                  rec.Name,
		"description":           rec.Description,
		"group_type":            rec.GroupType,
		"group_created_at":      rec.Created,
		"membership_updated_at": rec.MembershipUpdated,
		"is_deleted":            false,
		"last_synced_at":        now,
	}

	var existing models.OktaGroup
	err := tx.Where("tenant_id = ? AND okta_id = ?", tenantID, rec.OktaID).First(&existing).Error
	switch {
	case err == nil:
		return tx.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.OktaGroup{
			TenantID:            tenantID,
			OktaID:              rec.OktaID,
			Name:                rec.Name,
			Description:         rec.Description,
			GroupType:           rec.GroupType,
			GroupCreatedAt:      rec.Created,
			MembershipUpdatedAt: rec.MembershipUpdated,
			LastSyncedAt:        now,
		}
		return tx.Create(&row).Error
	default:
		return err
	}
}

func upsertApplication(tx *gorm.DB, tenantID string, rec okta.ApplicationRecord, now time.Time) error {
	updates := map[string]any{
		"name":           rec.Name,
		"label":          rec.Label,
		"status":         rec.Status,
		"sign_on_mode":   rec.SignOnMode,
		"app_created_at": rec.Created,
		"is_deleted":     false,
		"last_synced_at": now,
	}

	var existing models.OktaApplication
	err := tx.Where("tenant_id = ? AND okta_id = ?", tenantID, rec.OktaID).First(&existing).Error
	switch {
	case err == nil:
		return tx.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.OktaApplication{
			TenantID:     tenantID,
			OktaID:       rec.OktaID,
			Name:         rec.Name,
			Label:        rec.Label,
			Status:       rec.Status,
			SignOnMode:   rec.SignOnMode,
			AppCreatedAt: rec.Created,
			LastSyncedAt: now,
		}
		return tx.Create(&row).Error
	default:
		return err
	}
}

func upsertPolicy(tx *gorm.DB, tenantID string, rec okta.PolicyRecord, now time.Time) error {
	updates := map[string]any{
		"name":           rec.Name,
		"description":    rec.Description,
		"policy_type":    rec.PolicyType,
		"status":         rec.Status,
		"priority":       rec.Priority,
		"is_deleted":     false,
		"last_synced_at": now,
	}

	var existing models.OktaPolicy
	err := tx.Where("tenant_id = ? AND okta_id = ?", tenantID, rec.OktaID).First(&existing).Error
	switch {
	case err == nil:
		return tx.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.OktaPolicy{
			TenantID:     tenantID,
			OktaID:       rec.OktaID,
			Name:         rec.Name,
			Description:  rec.Description,
			PolicyType:   rec.PolicyType,
			Status:       rec.Status,
			Priority:     rec.Priority,
			LastSyncedAt: now,
		}
		return tx.Create(&row).Error
	default:
		return err
	}
}

func upsertDevice(tx *gorm.DB, tenantID string, rec okta.DeviceRecord, now time.Time) error {
	updates := map[string]any{
		"display_name":            rec.DisplayName,
		"platform":                rec.Platform,
		"manufacturer":            rec.Manufacturer,
		"model":                   rec.Model,
		"os_version":              rec.OSVersion,
		"serial_number":           rec.SerialNumber,
		"ud_id":                   rec.UDID,
		"status":                  rec.Status,
		"registered":              rec.Registered,
		"secure_hardware_present": rec.SecureHardwarePresent,
		"device_created_at":       rec.Created,
		"is_deleted":              false,
		"last_synced_at":          now,
	}

	var existing models.OktaDevice
	err := tx.Where("tenant_id = ? AND okta_id = ?", tenantID, rec.OktaID).First(&existing).Error
	switch {
	case err == nil:
		return tx.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.OktaDevice{
			TenantID:              tenantID,
			OktaID:                rec.OktaID,
			DisplayName:           rec.DisplayName,
			Platform:              rec.Platform,
			Manufacturer:          rec.Manufacturer,
			Model:                 rec.Model,
			OSVersion:             rec.OSVersion,
			SerialNumber:          rec.SerialNumber,
			UDID:                  rec.UDID,
			Status:                rec.Status,
			Registered:            rec.Registered,
			SecureHardwarePresent: rec.SecureHardwarePresent,
			DeviceCreatedAt:       rec.Created,
			LastSyncedAt:          now,
		}
		return tx.Create(&row).Error
	default:
		return err
	}
}

func encodeCustomAttributes(attrs map[string]any) (datatypes.JSON, error) {
	if len(attrs) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode custom attributes: %w", err)
	}
	return datatypes.JSON(data), nil
}
