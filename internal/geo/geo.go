// Package geo provides the great-circle distance function used by the
// position pipeline and the geo-fence containment oracle.
package geo

import (
	"math"

	"github.com/trackfleet/trackd/internal/models"
)

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between two
// coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Contains reports whether a position lies within a geo-fence geometry.
func Contains(fence models.GeoFence, position models.Position) bool {
	switch fence.Type {
	case models.GeoFenceCircle:
		if len(fence.Points) == 0 {
			return false
		}
		center := fence.Points[0]
		return Distance(center.Latitude, center.Longitude, position.Latitude, position.Longitude) <= fence.Radius
	case models.GeoFencePolygon:
		return polygonContains(fence.Points, position.Latitude, position.Longitude)
	case models.GeoFenceLine:
		// A line fence is a corridor of the configured width around the
		// polyline.
		for i := 1; i < len(fence.Points); i++ {
			if segmentDistance(fence.Points[i-1], fence.Points[i], position.Latitude, position.Longitude) <= fence.Radius/2 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// polygonContains is a ray-casting test over the fence vertices.
func polygonContains(points []models.GeoFencePoint, lat, lon float64) bool {
	if len(points) < 3 {
		return false
	}
	inside := false
	j := len(points) - 1
	for i := 0; i < len(points); i++ {
		pi, pj := points[i], points[j]
		if (pi.Longitude > lon) != (pj.Longitude > lon) &&
			lat < (pj.Latitude-pi.Latitude)*(lon-pi.Longitude)/(pj.Longitude-pi.Longitude)+pi.Latitude {
			inside = !inside
		}
		j = i
	}
	return inside
}

// segmentDistance approximates the distance in meters from a point to a
// segment. Adequate for corridor-width tests at fence scale.
func segmentDistance(a, b models.GeoFencePoint, lat, lon float64) float64 {
	dLat := b.Latitude - a.Latitude
	dLon := b.Longitude - a.Longitude
	if dLat == 0 && dLon == 0 {
		return Distance(a.Latitude, a.Longitude, lat, lon)
	}
	t := ((lat-a.Latitude)*dLat + (lon-a.Longitude)*dLon) / (dLat*dLat + dLon*dLon)
	t = math.Max(0, math.Min(1, t))
	return Distance(a.Latitude+t*dLat, a.Longitude+t*dLon, lat, lon)
}
