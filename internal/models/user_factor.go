package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserFactor is an enrolled authentication factor belonging to one user.
// Identity is (tenant_id, user_okta_id, okta_id); factors are reconciled
// incrementally on every user upsert.
type UserFactor struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID   string `gorm:"not null;index;uniqueIndex:idx_user_factors_key" json:"tenant_id"`
	UserOktaID string `gorm:"not null;index;uniqueIndex:idx_user_factors_key" json:"user_okta_id"`
	OktaID     string `gorm:"not null;uniqueIndex:idx_user_factors_key" json:"okta_id"`

	FactorType        string `json:"factor_type"`
	Provider          string `json:"provider"`
	Status            string `json:"status"`
	AuthenticatorName string `gorm:"index" json:"authenticator_name"`

	FactorCreatedAt *time.Time `json:"factor_created_at"`

	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (f *UserFactor) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// authenticatorNames maps (factor_type, provider) pairs to the human readable
// authenticator shown in query results.
var authenticatorNames = map[[2]string]string{
	{"signed_nonce", "OKTA"}:          "Okta FastPass",
	{"push", "OKTA"}:                  "Okta Verify",
	{"token:software:totp", "OKTA"}:   "Okta Verify",
	{"token:software:totp", "GOOGLE"}: "Google Authenticator",
	{"sms", "OKTA"}:                   "Phone (SMS)",
	{"call", "OKTA"}:                  "Phone (Voice)",
	{"email", "OKTA"}:                 "Email",
	{"password", "OKTA"}:              "Password",
	{"question", "OKTA"}:              "Security Question",
	{"webauthn", "FIDO"}:              "FIDO2 (WebAuthn)",
	{"token", "SYMANTEC"}:             "Symantec VIP",
	{"token", "RSA"}:                  "RSA SecurID",
	{"token:hardware", "YUBICO"}:      "YubiKey OTP",
	{"web", "DUO"}:                    "Duo Security",
}

// AuthenticatorName resolves the display name for a factor type/provider pair,
// falling back to the raw factor type when the pair is unknown.
func AuthenticatorName(factorType, provider string) string {
	if name, ok := authenticatorNames[[2]string{factorType, provider}]; ok {
		return name
	}
	return factorType
}
