package okta

import "time"

// FactorRecord is one enrolled authentication factor on a user.
type FactorRecord struct {
	OktaID     string
	FactorType string
	Provider   string
	Status     string
	Created    *time.Time
}

// UserRecord is the typed shape the adapter produces for one Okta user,
// including embedded relationship data collected while paging.
type UserRecord struct {
	OktaID           string
	Email            string
	Login            string
	FirstName        string
	LastName         string
	Status           string
	EmployeeNumber   string
	Department       string
	Manager          string
	Title            string
	Organization     string
	CountryCode      string
	UserType         string
	CustomAttributes map[string]any

	Created         *time.Time
	Activated       *time.Time
	LastLogin       *time.Time
	PasswordChanged *time.Time
	StatusChanged   *time.Time

	Factors          []FactorRecord
	GroupMemberships []string
	AppLinks         []string
}

// GroupRecord is one Okta group plus its assigned application ids.
type GroupRecord struct {
	OktaID      string
	Name        string
	Description string
	GroupType   string

	Created           *time.Time
	MembershipUpdated *time.Time

	Applications []string
}

// ApplicationRecord is one Okta application plus its group assignment ids.
type ApplicationRecord struct {
	OktaID     string
	Name       string
	Label      string
	Status     string
	SignOnMode string

	Created *time.Time

	GroupAssignments []string
}

// PolicyRecord is one Okta policy.
type PolicyRecord struct {
	OktaID      string
	Name        string
	Description string
	PolicyType  string
	Status      string
	Priority    int
}

// DeviceUserRecord links a device to one of its users with relationship metadata.
type DeviceUserRecord struct {
	UserOktaID       string
	ManagementStatus string
	ScreenLockType   string
	Created          *time.Time
}

// DeviceRecord is one registered device plus its user links.
type DeviceRecord struct {
	OktaID                string
	DisplayName           string
	Platform              string
	Manufacturer          string
	Model                 string
	OSVersion             string
	SerialNumber          string
	UDID                  string
	Status                string
	Registered            bool
	SecureHardwarePresent bool

	Created *time.Time

	Users []DeviceUserRecord
}

// RecordID implementations let callers treat heterogeneous batches uniformly.

func (r UserRecord) RecordID() string        { return r.OktaID }
func (r GroupRecord) RecordID() string       { return r.OktaID }
func (r ApplicationRecord) RecordID() string { return r.OktaID }
func (r PolicyRecord) RecordID() string      { return r.OktaID }
func (r DeviceRecord) RecordID() string      { return r.OktaID }
