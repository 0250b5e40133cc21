package okta

import "time"

// Wire shapes for the Okta management API. Profile attributes outside the
// well-known set are preserved as custom attributes on the record.

type apiUser struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	Created         *time.Time     `json:"created"`
	Activated       *time.Time     `json:"activated"`
	StatusChanged   *time.Time     `json:"statusChanged"`
	LastLogin       *time.Time     `json:"lastLogin"`
	PasswordChanged *time.Time     `json:"passwordChanged"`
	Type            apiUserType    `json:"type"`
	Profile         map[string]any `json:"profile"`
}

type apiUserType struct {
	DisplayName string `json:"displayName"`
}

var knownUserProfileKeys = map[string]struct{}{
	"email":          {},
	"login":          {},
	"firstName":      {},
	"lastName":       {},
	"employeeNumber": {},
	"department":     {},
	"manager":        {},
	"title":          {},
	"organization":   {},
	"countryCode":    {},
	"userType":       {},
}

func (u apiUser) toRecord() UserRecord {
	rec := UserRecord{
		OktaID:          u.ID,
		Status:          u.Status,
		Email:           profileString(u.Profile, "email"),
		Login:           profileString(u.Profile, "login"),
		FirstName:       profileString(u.Profile, "firstName"),
		LastName:        profileString(u.Profile, "lastName"),
		EmployeeNumber:  profileString(u.Profile, "employeeNumber"),
		Department:      profileString(u.Profile, "department"),
		Manager:         profileString(u.Profile, "manager"),
		Title:           profileString(u.Profile, "title"),
		Organization:    profileString(u.Profile, "organization"),
		CountryCode:     profileString(u.Profile, "countryCode"),
		UserType:        profileString(u.Profile, "userType"),
		Created:         u.Created,
		Activated:       u.Activated,
		StatusChanged:   u.StatusChanged,
		LastLogin:       u.LastLogin,
		PasswordChanged: u.PasswordChanged,
	}
	if rec.UserType == "" {
		rec.UserType = u.Type.DisplayName
	}

	for key, value := range u.Profile {
		if _, known := knownUserProfileKeys[key]; known {
			continue
		}
		if value == nil {
			continue
		}
		if rec.CustomAttributes == nil {
			rec.CustomAttributes = make(map[string]any)
		}
		rec.CustomAttributes[key] = value
	}

	return rec
}

func profileString(profile map[string]any, key string) string {
	if value, ok := profile[key].(string); ok {
		return value
	}
	return ""
}

type apiFactor struct {
	ID         string     `json:"id"`
	FactorType string     `json:"factorType"`
	Provider   string     `json:"provider"`
	Status     string     `json:"status"`
	Created    *time.Time `json:"created"`
}

type apiGroup struct {
	ID                    string     `json:"id"`
	Type                  string     `json:"type"`
	Created               *time.Time `json:"created"`
	LastMembershipUpdated *time.Time `json:"lastMembershipUpdated"`
	Profile               struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"profile"`
}

type apiApp struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Status     string     `json:"status"`
	SignOnMode string     `json:"signOnMode"`
	Created    *time.Time `json:"created"`
}

type apiPolicy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
}

type apiDevice struct {
	ID      string     `json:"id"`
	Status  string     `json:"status"`
	Created *time.Time `json:"created"`
	Profile struct {
		DisplayName           string `json:"displayName"`
		Platform              string `json:"platform"`
		Manufacturer          string `json:"manufacturer"`
		Model                 string `json:"model"`
		OSVersion             string `json:"osVersion"`
		SerialNumber          string `json:"serialNumber"`
		UDID                  string `json:"udid"`
		Registered            bool   `json:"registered"`
		SecureHardwarePresent bool   `json:"secureHardwarePresent"`
	} `json:"profile"`
	Embedded struct {
		Users []apiDeviceUser `json:"users"`
	} `json:"_embedded"`
}

type apiDeviceUser struct {
	ManagementStatus string     `json:"managementStatus"`
	ScreenLockType   string     `json:"screenLockType"`
	Created          *time.Time `json:"created"`
	User             struct {
		ID string `json:"id"`
	} `json:"user"`
}
