package models

import "time"

// DeviceEventKind classifies a derived device occurrence.
type DeviceEventKind string

const (
	EventMaintenanceRequired DeviceEventKind = "maintenance_required"
	EventGeoFenceEnter       DeviceEventKind = "geo_fence_enter"
	EventGeoFenceExit        DeviceEventKind = "geo_fence_exit"
	EventOffline             DeviceEventKind = "offline"
)

// DeviceEvent is an immutable record of a derived occurrence. Position,
// maintenance and geo-fence references are optional (0 when absent).
type DeviceEvent struct {
	ID            int64           `bson:"_id" json:"id"`
	Time          time.Time       `bson:"time" json:"time"`
	DeviceID      int64           `bson:"device_id" json:"device_id"`
	Kind          DeviceEventKind `bson:"kind" json:"kind"`
	PositionID    int64           `bson:"position_id,omitempty" json:"position_id,omitempty"`
	MaintenanceID int64           `bson:"maintenance_id,omitempty" json:"maintenance_id,omitempty"`
	GeoFenceID    int64           `bson:"geo_fence_id,omitempty" json:"geo_fence_id,omitempty"`
}
