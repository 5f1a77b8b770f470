package models

// Device represents a tracked unit. Ownership is shared: the device lives as
// long as at least one user remains in its owner set.
type Device struct {
	ID       int64  `bson:"_id" json:"id"`
	UniqueID string `bson:"unique_id" json:"unique_id"`
	Name     string `bson:"name" json:"name"`
	// Timeout is the number of seconds without a position after which the
	// device is considered offline.
	Timeout            int     `bson:"timeout" json:"timeout"`
	IdleSpeedThreshold float64 `bson:"idle_speed_threshold" json:"idle_speed_threshold"`
	IconType           string  `bson:"icon_type" json:"icon_type"`
	Odometer           float64 `bson:"odometer" json:"odometer"`
	AutoUpdateOdometer bool    `bson:"auto_update_odometer" json:"auto_update_odometer"`
	// LatestPositionID references the most recent position, 0 when the
	// device has never reported.
	LatestPositionID int64 `bson:"latest_position_id" json:"-"`
	// Maintenances is populated on load, ordered by IndexNo. Persisted
	// separately.
	Maintenances []Maintenance `bson:"-" json:"maintenances"`
}

// Maintenance is an odometer-interval service schedule belonging to exactly
// one device.
type Maintenance struct {
	ID       int64  `bson:"_id" json:"id"`
	DeviceID int64  `bson:"device_id" json:"device_id"`
	Name     string `bson:"name" json:"name"`
	// IndexNo orders maintenance records within a device, independent of
	// insertion order.
	IndexNo         int     `bson:"index_no" json:"index_no"`
	LastService     float64 `bson:"last_service" json:"last_service"`
	ServiceInterval float64 `bson:"service_interval" json:"service_interval"`
}

// ServiceThreshold is the odometer value at which this record makes a
// maintenance event due.
func (m *Maintenance) ServiceThreshold() float64 {
	return m.LastService + m.ServiceInterval
}

// CopyFrom overwrites the mutable fields from another record, preserving
// identity and device binding.
func (m *Maintenance) CopyFrom(other Maintenance) {
	m.Name = other.Name
	m.IndexNo = other.IndexNo
	m.LastService = other.LastService
	m.ServiceInterval = other.ServiceInterval
}
