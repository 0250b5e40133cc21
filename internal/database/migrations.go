package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.OktaUser{},
		&models.OktaGroup{},
		&models.OktaApplication{},
		&models.OktaPolicy{},
		&models.OktaDevice{},
		&models.UserFactor{},
		&models.UserDevice{},
		&models.UserGroupMembership{},
		&models.UserAppAssignment{},
		&models.GroupAppAssignment{},
		&models.SyncHistory{},
		&models.AuthUser{},
		&models.QueryHistory{},
	)
}

// columnMigration adds one column that predates its model definition on
// long-lived databases. Each migration checks the live schema before acting,
// so the set is safe to run on every startup without a schema-version table.
type columnMigration struct {
	model    any
	table    string
	column   string
	ddl      string
	backfill string
	index    string
	indexDDL string
}

var columnMigrations = []columnMigration{
	{
		model:    &models.OktaUser{},
		table:    "okta_users",
		column:   "custom_attributes",
		ddl:      "ALTER TABLE okta_users ADD COLUMN custom_attributes json",
		backfill: "UPDATE okta_users SET custom_attributes = '{}' WHERE custom_attributes IS NULL",
	},
	{
		model:    &models.OktaUser{},
		table:    "okta_users",
		column:   "user_type",
		ddl:      "ALTER TABLE okta_users ADD COLUMN user_type text",
		backfill: "UPDATE okta_users SET user_type = '' WHERE user_type IS NULL",
	},
	{
		model:    &models.OktaDevice{},
		table:    "okta_devices",
		column:   "secure_hardware_present",
		ddl:      "ALTER TABLE okta_devices ADD COLUMN secure_hardware_present numeric DEFAULT false",
		backfill: "UPDATE okta_devices SET secure_hardware_present = false WHERE secure_hardware_present IS NULL",
	},
	{
		model:    &models.UserFactor{},
		table:    "user_factors",
		column:   "authenticator_name",
		ddl:      "ALTER TABLE user_factors ADD COLUMN authenticator_name text",
		backfill: "UPDATE user_factors SET authenticator_name = factor_type WHERE authenticator_name IS NULL OR authenticator_name = ''",
		index:    "idx_user_factors_authenticator_name",
		indexDDL: "CREATE INDEX IF NOT EXISTS idx_user_factors_authenticator_name ON user_factors(authenticator_name)",
	},
	{
		model:    &models.AuthUser{},
		table:    "auth_users",
		column:   "locked_until",
		ddl:      "ALTER TABLE auth_users ADD COLUMN locked_until datetime",
	},
}

// ApplyMigrations runs the forward-only additive migrations. AutoMigrate
// normally creates these columns already; the explicit pass covers databases
// created before a column existed and guarantees backfilled defaults.
func ApplyMigrations(db *gorm.DB) error {
	migrator := db.Migrator()

	for _, m := range columnMigrations {
		if !migrator.HasTable(m.model) {
			continue
		}

		if !migrator.HasColumn(m.model, m.column) {
			if err := db.Exec(m.ddl).Error; err != nil {
				return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
			}
		}

		if m.backfill != "" {
			if err := db.Exec(m.backfill).Error; err != nil {
				return fmt.Errorf("backfill %s.%s: %w", m.table, m.column, err)
			}
		}

		if m.indexDDL != "" && !migrator.HasIndex(m.model, m.index) {
			if err := db.Exec(m.indexDDL).Error; err != nil {
				return fmt.Errorf("create index %s: %w", m.index, err)
			}
		}
	}

	return nil
}
