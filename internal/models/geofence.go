package models

// GeoFenceType selects the geometry of a fence region.
type GeoFenceType string

const (
	GeoFenceCircle  GeoFenceType = "circle"
	GeoFencePolygon GeoFenceType = "polygon"
	GeoFenceLine    GeoFenceType = "line"
)

// GeoFencePoint is one vertex of a fence geometry.
type GeoFencePoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// GeoFence is a named region shared between users. Devices are associated,
// not owned: unlinking a device never deletes it.
type GeoFence struct {
	ID          int64           `bson:"_id" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description" json:"description"`
	Color       string          `bson:"color" json:"color"`
	Type        GeoFenceType    `bson:"type" json:"type"`
	Points      []GeoFencePoint `bson:"points" json:"points"`
	// Radius is the circle radius, or the corridor width for line fences,
	// in meters.
	Radius float64 `bson:"radius" json:"radius"`
	// DeviceIDs is populated on load from the association index.
	DeviceIDs []int64 `bson:"-" json:"device_ids"`
}

// CopyFrom overwrites the definition fields from another fence, preserving
// identity and associations.
func (g *GeoFence) CopyFrom(other GeoFence) {
	g.Name = other.Name
	g.Description = other.Description
	g.Color = other.Color
	g.Type = other.Type
	g.Points = append([]GeoFencePoint(nil), other.Points...)
	g.Radius = other.Radius
}
