package models

// EntityType enumerates the Okta entity families mirrored locally.
type EntityType string

const (
	EntityUsers        EntityType = "users"
	EntityGroups       EntityType = "groups"
	EntityApplications EntityType = "applications"
	EntityPolicies     EntityType = "policies"
	EntityDevices      EntityType = "devices"
)

// SyncOrder is the fixed dependency order for one full synchronization run.
// Later entities carry relationship data that references earlier ones.
var SyncOrder = []EntityType{
	EntityGroups,
	EntityApplications,
	EntityUsers,
	EntityDevices,
	EntityPolicies,
}
