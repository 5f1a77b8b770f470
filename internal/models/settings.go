package models

// ApplicationSettings holds the application-wide configuration persisted in
// the store. A single record exists; defaults are written on first read.
type ApplicationSettings struct {
	ID                  int64  `bson:"_id" json:"id"`
	RegistrationEnabled bool   `bson:"registration_enabled" json:"registration_enabled"`
	// DefaultHashMethod is the hash method applied to new and rehashed
	// passwords.
	DefaultHashMethod string `bson:"default_hash_method" json:"default_hash_method"`
	// UpdateInterval is the client refresh period in milliseconds.
	UpdateInterval int `bson:"update_interval" json:"update_interval"`
}

// DefaultApplicationSettings returns the settings persisted when none exist.
func DefaultApplicationSettings() ApplicationSettings {
	return ApplicationSettings{
		RegistrationEnabled: true,
		DefaultHashMethod:   "bcrypt",
		UpdateInterval:      15000,
	}
}
