package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaintenance_ServiceThreshold(t *testing.T) {
	m := Maintenance{LastService: 500, ServiceInterval: 1000}
	assert.Equal(t, 1500.0, m.ServiceThreshold())
}

func TestMaintenance_CopyFrom(t *testing.T) {
	m := Maintenance{ID: 7, DeviceID: 3, Name: "old", IndexNo: 0, LastService: 100, ServiceInterval: 1000}
	m.CopyFrom(Maintenance{ID: 99, DeviceID: 42, Name: "new", IndexNo: 2, LastService: 200, ServiceInterval: 2000})

	// Identity and device binding survive the copy.
	assert.Equal(t, int64(7), m.ID)
	assert.Equal(t, int64(3), m.DeviceID)
	assert.Equal(t, "new", m.Name)
	assert.Equal(t, 2, m.IndexNo)
	assert.Equal(t, 200.0, m.LastService)
	assert.Equal(t, 2000.0, m.ServiceInterval)
}

func TestGeoFence_CopyFrom(t *testing.T) {
	fence := GeoFence{ID: 5, Name: "old", DeviceIDs: []int64{1, 2}}
	fence.CopyFrom(GeoFence{
		ID:     99,
		Name:   "new",
		Type:   GeoFencePolygon,
		Points: []GeoFencePoint{{Latitude: 1, Longitude: 2}},
		Radius: 100,
	})

	assert.Equal(t, int64(5), fence.ID)
	assert.Equal(t, "new", fence.Name)
	assert.Equal(t, GeoFencePolygon, fence.Type)
	assert.Len(t, fence.Points, 1)
	// Associations are reconciled separately, never copied.
	assert.Equal(t, []int64{1, 2}, fence.DeviceIDs)
}
