package models

import "time"

// Position is an immutable telemetry sample. Distance and GeoFenceIDs are
// derived per query and never persisted.
type Position struct {
	ID        int64     `bson:"_id" json:"id"`
	DeviceID  int64     `bson:"device_id" json:"device_id"`
	Time      time.Time `bson:"time" json:"time"`
	Latitude  float64   `bson:"latitude" json:"latitude"`
	Longitude float64   `bson:"longitude" json:"longitude"`
	Altitude  float64   `bson:"altitude" json:"altitude"`
	// Speed is stored in knots.
	Speed float64 `bson:"speed" json:"speed"`
	Valid bool    `bson:"valid" json:"valid"`

	// Distance in meters from the preceding sample of the same query, or
	// the device odometer on latest-position reads.
	Distance    float64 `bson:"-" json:"distance"`
	GeoFenceIDs []int64 `bson:"-" json:"geo_fence_ids,omitempty"`
}
