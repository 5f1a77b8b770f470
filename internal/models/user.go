package models

// Role names accepted by the authorization guard.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// User represents an account in the system.
type User struct {
	ID         int64  `bson:"_id" json:"id"`
	Login      string `bson:"login" json:"login"`
	Email      string `bson:"email" json:"email"`
	Password   string `bson:"password" json:"-"`
	HashMethod string `bson:"hash_method" json:"-"`
	Admin      bool   `bson:"admin" json:"admin"`
	Manager    bool   `bson:"manager" json:"manager"`
	ReadOnly   bool   `bson:"read_only" json:"read_only"`
	// ManagedBy points at the managing user, 0 when unmanaged.
	ManagedBy          int64             `bson:"managed_by" json:"managed_by"`
	Settings           UserSettings      `bson:"settings" json:"settings"`
	NotificationEvents []DeviceEventKind `bson:"notification_events,omitempty" json:"notification_events,omitempty"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	switch role {
	case RoleAdmin:
		return u.Admin
	case RoleManager:
		return u.Manager
	default:
		return false
	}
}

// SpeedUnit is the unit a user entered the speed filter threshold in.
type SpeedUnit string

const (
	SpeedUnitKnots SpeedUnit = "kn"
	SpeedUnitKmh   SpeedUnit = "kmh"
	SpeedUnitMph   SpeedUnit = "mph"
)

// ToKnots converts a speed value in this unit to knots, the unit positions
// are stored in.
func (u SpeedUnit) ToKnots(speed float64) float64 {
	switch u {
	case SpeedUnitKmh:
		return speed / 1.852
	case SpeedUnitMph:
		return speed / 1.150779
	default:
		return speed
	}
}

// SpeedComparator selects how the speed filter compares samples against the
// configured threshold.
type SpeedComparator string

const (
	SpeedLess         SpeedComparator = "<"
	SpeedLessEqual    SpeedComparator = "<="
	SpeedEqual        SpeedComparator = "="
	SpeedGreaterEqual SpeedComparator = ">="
	SpeedGreater      SpeedComparator = ">"
)

// UserSettings holds per-user position filtering preferences.
type UserSettings struct {
	HideZeroCoordinates  bool            `bson:"hide_zero_coordinates" json:"hide_zero_coordinates"`
	HideInvalidLocations bool            `bson:"hide_invalid_locations" json:"hide_invalid_locations"`
	HideDuplicates       bool            `bson:"hide_duplicates" json:"hide_duplicates"`
	SpeedComparator      SpeedComparator `bson:"speed_comparator,omitempty" json:"speed_comparator,omitempty"`
	SpeedForFilter       *float64        `bson:"speed_for_filter,omitempty" json:"speed_for_filter,omitempty"`
	SpeedUnit            SpeedUnit       `bson:"speed_unit" json:"speed_unit"`
	MinDistance          *float64        `bson:"min_distance,omitempty" json:"min_distance,omitempty"`
}

// DefaultUserSettings returns the settings assigned to newly created users.
func DefaultUserSettings() UserSettings {
	return UserSettings{SpeedUnit: SpeedUnitKnots}
}

// UIState is a named per-user blob of interface state. Deleted together with
// the user.
type UIState struct {
	ID     int64  `bson:"_id" json:"id"`
	UserID int64  `bson:"user_id" json:"user_id"`
	Name   string `bson:"name" json:"name"`
	Value  string `bson:"value" json:"value"`
}

// DefaultArchiveGridStateName is the UI state entry created for every new
// account.
const DefaultArchiveGridStateName = "archiveGridStateId"
