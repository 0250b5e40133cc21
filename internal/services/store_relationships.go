package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
	"github.com/oktamirror/oktamirror/internal/okta"
)

// Incremental reconciliation: upsert every incoming child keyed by its natural
// composite key, collect the touched set, then soft-delete that parent's rows
// not in the set. Rows belonging to other parents are never touched.

func syncUserFactors(tx *gorm.DB, tenantID, userOktaID string, factors []okta.FactorRecord, now time.Time) error {
	touched := make([]string, 0, len(factors))

	for _, factor := range factors {
		if factor.OktaID == "" {
			continue
		}

		updates := map[string]any{
			"factor_type":        factor.FactorType,
			"provider":           factor.Provider,
			"status":             factor.Status,
			"authenticator_name": models.AuthenticatorName(factor.FactorType, factor.Provider),
			"factor_created_at":  factor.Created,
			"is_deleted":         false,
			"last_synced_at":     now,
		}

		var existing models.UserFactor
		err := tx.Where("tenant_id = ? AND user_okta_id = ? AND okta_id = ?", tenantID, userOktaID, factor.OktaID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.UserFactor{
				TenantID:          tenantID,
				UserOktaID:        userOktaID,
				OktaID:            factor.OktaID,
				FactorType:        factor.FactorType,
				Provider:          factor.Provider,
				Status:            factor.Status,
				AuthenticatorName: models.AuthenticatorName(factor.FactorType, factor.Provider),
				FactorCreatedAt:   factor.Created,
				LastSyncedAt:      now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		touched = append(touched, factor.OktaID)
	}

	return softDeleteMissing(tx, &models.UserFactor{}, "user_okta_id", tenantID, userOktaID, "okta_id", touched, now)
}

func syncUserGroupMemberships(tx *gorm.DB, tenantID, userOktaID string, groupIDs []string, now time.Time) error {
	touched := make([]string, 0, len(groupIDs))

	for _, groupID := range dedupe(groupIDs) {
		var existing models.UserGroupMembership
		err := tx.Where("tenant_id = ? AND user_okta_id = ? AND group_okta_id = ?", tenantID, userOktaID, groupID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]any{
				"is_deleted":     false,
				"last_synced_at": now,
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.UserGroupMembership{
				TenantID:     tenantID,
				UserOktaID:   userOktaID,
				GroupOktaID:  groupID,
				LastSyncedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		touched = append(touched, groupID)
	}

	return softDeleteMissing(tx, &models.UserGroupMembership{}, "user_okta_id", tenantID, userOktaID, "group_okta_id", touched, now)
}

func syncUserAppAssignments(tx *gorm.DB, tenantID, userOktaID string, appIDs []string, now time.Time) error {
	touched := make([]string, 0, len(appIDs))

	for _, appID := range dedupe(appIDs) {
		var existing models.UserAppAssignment
		err := tx.Where("tenant_id = ? AND user_okta_id = ? AND application_okta_id = ?", tenantID, userOktaID, appID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]any{
				"is_deleted":     false,
				"last_synced_at": now,
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.UserAppAssignment{
				TenantID:          tenantID,
				UserOktaID:        userOktaID,
				ApplicationOktaID: appID,
				LastSyncedAt:      now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		touched = append(touched, appID)
	}

	return softDeleteMissing(tx, &models.UserAppAssignment{}, "user_okta_id", tenantID, userOktaID, "application_okta_id", touched, now)
}

// syncDeviceUsers reconciles a device's user links. Links naming users absent
// from the local mirror (or soft deleted) are skipped with a warning; skipped
// links do not enter the touched set, so a stale row for an invalid user is
// soft-deleted like any other disappearance.
func (s *StoreService) syncDeviceUsers(tx *gorm.DB, tenantID, deviceOktaID string, links []okta.DeviceUserRecord, now time.Time) error {
	touched := make([]string, 0, len(links))

	for _, link := range links {
		if link.UserOktaID == "" {
			continue
		}

		var count int64
		if err := tx.Model(&models.OktaUser{}).
			Where("tenant_id = ? AND okta_id = ? AND is_deleted = ?", tenantID, link.UserOktaID, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			s.log.Warn("skipping device user link for unknown user",
				zap.String("tenant_id", tenantID),
				zap.String("device_okta_id", deviceOktaID),
				zap.String("user_okta_id", link.UserOktaID))
			continue
		}

		updates := map[string]any{
			"management_status":      link.ManagementStatus,
			"screen_lock_type":       link.ScreenLockType,
			"user_device_created_at": link.Created,
			"is_deleted":             false,
			"last_synced_at":         now,
		}

		var existing models.UserDevice
		err := tx.Where("tenant_id = ? AND user_okta_id = ? AND device_okta_id = ?", tenantID, link.UserOktaID, deviceOktaID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.UserDevice{
				TenantID:            tenantID,
				UserOktaID:          link.UserOktaID,
				DeviceOktaID:        deviceOktaID,
				ManagementStatus:    link.ManagementStatus,
				ScreenLockType:      link.ScreenLockType,
				UserDeviceCreatedAt: link.Created,
				LastSyncedAt:        now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		touched = append(touched, link.UserOktaID)
	}

	return softDeleteMissing(tx, &models.UserDevice{}, "device_okta_id", tenantID, deviceOktaID, "user_okta_id", touched, now)
}

// Full-replace reconciliation for group<->app assignments: both sync directions
// delete the parent's rows and reinsert the current complete set.

func replaceGroupApps(tx *gorm.DB, tenantID, groupOktaID string, appIDs []string, now time.Time) error {
	if err := tx.Where("tenant_id = ? AND group_okta_id = ?", tenantID, groupOktaID).
		Delete(&models.GroupAppAssignment{}).Error; err != nil {
		return err
	}

	for _, appID := range dedupe(appIDs) {
		row := models.GroupAppAssignment{
			TenantID:          tenantID,
			GroupOktaID:       groupOktaID,
			ApplicationOktaID: appID,
			LastSyncedAt:      now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert assignment %s->%s: %w", groupOktaID, appID, err)
		}
	}
	return nil
}

func replaceAppGroups(tx *gorm.DB, tenantID, appOktaID string, groupIDs []string, now time.Time) error {
	if err := tx.Where("tenant_id = ? AND application_okta_id = ?", tenantID, appOktaID).
		Delete(&models.GroupAppAssignment{}).Error; err != nil {
		return err
	}

	for _, groupID := range dedupe(groupIDs) {
		row := models.GroupAppAssignment{
			TenantID:          tenantID,
			GroupOktaID:       groupID,
			ApplicationOktaID: appOktaID,
			LastSyncedAt:      now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert assignment %s->%s: %w", groupID, appOktaID, err)
		}
	}
	return nil
}

// softDeleteMissing flags the parent's rows whose child key is absent from the
// touched set. With an empty touched set every row for the parent is flagged.
func softDeleteMissing(tx *gorm.DB, model any, parentColumn, tenantID, parentID, childColumn string, touched []string, now time.Time) error {
	query := tx.Model(model).
		Where("tenant_id = ?", tenantID).
		Where(parentColumn+" = ?", parentID).
		Where("is_deleted = ?", false)
	if len(touched) > 0 {
		query = query.Where(childColumn+" NOT IN ?", touched)
	}

	return query.Updates(map[string]any{
		"is_deleted":     true,
		"last_synced_at": now,
	}).Error
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
