package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackd/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func (f *fixture) seedTrack(t *testing.T, device *models.Device, positions ...models.Position) {
	t.Helper()
	for i := range positions {
		f.seedPosition(t, device, positions[i])
	}
}

func TestGetPositions_WindowOrderedWithDistance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 51.51, Longitude: -0.12, Valid: true},
	)

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), false)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 0.0, positions[0].Distance)
	// One hundredth of a degree of latitude is roughly 1.1 km.
	assert.InDelta(t, 1112, positions[1].Distance, 10)
}

func TestGetPositions_HideZeroCoordinates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 0, Longitude: 0, Valid: true},
		models.Position{Time: f.now.Add(2 * time.Minute), Latitude: 51.51, Longitude: -0.12, Valid: true},
	)
	f.plain.Settings.HideZeroCoordinates = true

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), true)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 51.5, positions[0].Latitude)
	assert.Equal(t, 51.51, positions[1].Latitude)
}

func TestGetPositions_HideInvalidLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 51.6, Longitude: -0.12, Valid: false},
	)
	f.plain.Settings.HideInvalidLocations = true

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), true)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestGetPositions_SpeedFilterConvertsUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Speed: 10, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 51.6, Longitude: -0.12, Speed: 40, Valid: true},
	)
	// Threshold 60 km/h is about 32.4 knots; only the 40 kn sample passes.
	f.plain.Settings.SpeedComparator = models.SpeedGreaterEqual
	f.plain.Settings.SpeedForFilter = floatPtr(60)
	f.plain.Settings.SpeedUnit = models.SpeedUnitKmh

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), true)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 40.0, positions[0].Speed)
}

func TestGetPositions_HideDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now, Latitude: 51.6, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 51.7, Longitude: -0.12, Valid: true},
	)
	f.plain.Settings.HideDuplicates = true

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), true)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 51.5, positions[0].Latitude)
	assert.Equal(t, 51.7, positions[1].Latitude)
}

func TestGetPositions_MinDistance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
		models.Position{Time: f.now.Add(time.Minute), Latitude: 51.5001, Longitude: -0.12, Valid: true},  // ~11 m
		models.Position{Time: f.now.Add(2 * time.Minute), Latitude: 51.51, Longitude: -0.12, Valid: true}, // ~1.1 km from its predecessor
	)
	f.plain.Settings.MinDistance = floatPtr(100)

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), true)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	// The first sample is always retained; the jitter sample is dropped but
	// still serves as the distance reference for its successor.
	assert.Equal(t, 51.5, positions[0].Latitude)
	assert.Equal(t, 51.51, positions[1].Latitude)
	assert.Less(t, positions[1].Distance, 1200.0)
}

func TestGetPositions_NoFilterIgnoresSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)
	f.seedTrack(t, device,
		models.Position{Time: f.now, Latitude: 0, Longitude: 0, Valid: false},
		models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12, Valid: true},
	)
	f.plain.Settings.HideZeroCoordinates = true
	f.plain.Settings.HideInvalidLocations = true
	f.plain.Settings.HideDuplicates = true

	positions, err := f.svc.GetPositions(ctx, f.plain, device.ID, f.now, f.now.Add(time.Hour), false)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestGetLatestPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1", Odometer: 12345}, f.plain.ID)
	f.seedPosition(t, device, models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12})
	f.seedDevice(t, models.Device{Name: "silent", UniqueID: "silent-1"}, f.plain.ID)

	fence, err := f.svc.AddGeoFence(ctx, f.plain, models.GeoFence{
		Name:   "depot",
		Type:   models.GeoFenceCircle,
		Radius: 1000,
		Points: []models.GeoFencePoint{{Latitude: 51.5, Longitude: -0.12}},
	})
	require.NoError(t, err)

	positions, err := f.svc.GetLatestPositions(ctx, f.plain)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, device.ID, positions[0].DeviceID)
	assert.Equal(t, 12345.0, positions[0].Distance)
	assert.Equal(t, []int64{fence.ID}, positions[0].GeoFenceIDs)
}

func TestGetLatestNonIdlePositions_FallsBackToEarliest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	moving := f.seedDevice(t, models.Device{Name: "moving", UniqueID: "m-1"}, f.plain.ID)
	f.seedTrack(t, moving,
		models.Position{Time: f.now, Speed: 10, Latitude: 51.5},
		models.Position{Time: f.now.Add(time.Minute), Speed: 0, Latitude: 51.6},
	)

	idle := f.seedDevice(t, models.Device{Name: "idle", UniqueID: "i-1"}, f.plain.ID)
	f.seedTrack(t, idle,
		models.Position{Time: f.now, Speed: 0, Latitude: 40.1},
		models.Position{Time: f.now.Add(time.Minute), Speed: 0, Latitude: 40.2},
	)

	f.seedDevice(t, models.Device{Name: "silent", UniqueID: "s-1"}, f.plain.ID)

	positions, err := f.svc.GetLatestNonIdlePositions(ctx, f.plain)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	byDevice := map[int64]models.Position{}
	for _, p := range positions {
		byDevice[p.DeviceID] = p
	}
	// Moving device: its last moving sample, not the idle one after it.
	assert.Equal(t, 51.5, byDevice[moving.ID].Latitude)
	// Never-moved device: its earliest sample.
	assert.Equal(t, 40.1, byDevice[idle.ID].Latitude)
}

func TestRecordPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, models.Device{Name: "truck", UniqueID: "truck-1"}, f.plain.ID)

	position, err := f.svc.RecordPosition(ctx, "truck-1", models.Position{
		Time: f.now, Latitude: 51.5, Longitude: -0.12, Speed: 12, Valid: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, position.ID)
	assert.Equal(t, device.ID, position.DeviceID)

	stored, err := f.deviceByID(t, device.ID)
	require.NoError(t, err)
	assert.Equal(t, position.ID, stored.LatestPositionID)
}

func TestRecordPosition_AutoOdometer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device, err := f.svc.AddDevice(ctx, f.plain, models.Device{
		Name: "truck", UniqueID: "truck-1", AutoUpdateOdometer: true,
		Maintenances: []models.Maintenance{
			{Name: "oil", LastService: 0, ServiceInterval: 1000},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.RecordPosition(ctx, "truck-1", models.Position{Time: f.now, Latitude: 51.5, Longitude: -0.12})
	require.NoError(t, err)

	// ~1.1 km step crosses the 1000 m service threshold.
	_, err = f.svc.RecordPosition(ctx, "truck-1", models.Position{Time: f.now.Add(time.Minute), Latitude: 51.51, Longitude: -0.12})
	require.NoError(t, err)

	stored, err := f.deviceByID(t, device.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1112, stored.Odometer, 10)

	events := f.deviceEvents(t, device.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMaintenanceRequired, events[0].Kind)
}

func TestRecordPosition_UnknownDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPosition(context.Background(), "ghost", models.Position{Time: f.now})
	assert.Error(t, err)
}
