// Package store defines the persistence contracts for the business core.
// Implementations must make every Transact call atomic: either all writes
// performed by fn become durable, or none do.
package store

import (
	"context"
	"time"

	"github.com/trackfleet/trackd/internal/models"
)

// Store aggregates the per-entity collections and the unit-of-work boundary.
type Store interface {
	Users() Users
	Devices() Devices
	Maintenances() Maintenances
	Positions() Positions
	Events() Events
	GeoFences() GeoFences
	Ownership() Ownership
	UIStates() UIStates
	Settings() Settings

	// Transact runs fn as a single atomic unit of work. The Store handed
	// to fn sees the transaction's own writes.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Users defines the interface for user records. Lookups return a not-found
// error when no record matches.
type Users interface {
	Insert(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	ByID(ctx context.Context, id int64) (*models.User, error)
	ByLogin(ctx context.Context, login string) (*models.User, error)
	All(ctx context.Context) ([]models.User, error)
	// ManagedBy returns users whose ManagedBy equals managerID.
	ManagedBy(ctx context.Context, managerID int64) ([]models.User, error)
}

// Devices defines the interface for device records.
type Devices interface {
	Insert(ctx context.Context, device *models.Device) error
	Update(ctx context.Context, device *models.Device) error
	Delete(ctx context.Context, id int64) error
	ByID(ctx context.Context, id int64) (*models.Device, error)
	ByUniqueID(ctx context.Context, uniqueID string) (*models.Device, error)
	All(ctx context.Context) ([]models.Device, error)
}

// Maintenances defines the interface for maintenance records.
type Maintenances interface {
	Insert(ctx context.Context, maintenance *models.Maintenance) error
	Update(ctx context.Context, maintenance *models.Maintenance) error
	Delete(ctx context.Context, id int64) error
	// ByDevice returns the device's records ordered by IndexNo.
	ByDevice(ctx context.Context, deviceID int64) ([]models.Maintenance, error)
	DeleteByDevice(ctx context.Context, deviceID int64) error
}

// Positions defines the interface for telemetry samples.
type Positions interface {
	Insert(ctx context.Context, position *models.Position) error
	ByID(ctx context.Context, id int64) (*models.Position, error)
	// Window returns the device's samples with from <= time <= to, ordered
	// by time ascending.
	Window(ctx context.Context, deviceID int64, from, to time.Time) ([]models.Position, error)
	// LatestMoving returns the most recent sample with speed > 0.
	LatestMoving(ctx context.Context, deviceID int64) (*models.Position, error)
	// Earliest returns the oldest sample of the device.
	Earliest(ctx context.Context, deviceID int64) (*models.Position, error)
	DeleteByDevice(ctx context.Context, deviceID int64) error
}

// Events defines the interface for derived device events.
type Events interface {
	Insert(ctx context.Context, event *models.DeviceEvent) error
	ByDevice(ctx context.Context, deviceID int64) ([]models.DeviceEvent, error)
	DeleteByDevice(ctx context.Context, deviceID int64) error
	DeleteByGeoFence(ctx context.Context, geoFenceID int64) error
}

// GeoFences defines the interface for geo-fence records.
type GeoFences interface {
	Insert(ctx context.Context, fence *models.GeoFence) error
	Update(ctx context.Context, fence *models.GeoFence) error
	Delete(ctx context.Context, id int64) error
	ByID(ctx context.Context, id int64) (*models.GeoFence, error)
	All(ctx context.Context) ([]models.GeoFence, error)
}

// Ownership maintains the sharing graph as index tables: device owners,
// geo-fence owners and geo-fence/device associations. Both directions of
// every relation are kept consistent by the implementation.
type Ownership interface {
	DeviceOwners(ctx context.Context, deviceID int64) ([]int64, error)
	DevicesOf(ctx context.Context, userID int64) ([]int64, error)
	AddDeviceOwner(ctx context.Context, deviceID, userID int64) error
	RemoveDeviceOwner(ctx context.Context, deviceID, userID int64) error

	GeoFenceOwners(ctx context.Context, geoFenceID int64) ([]int64, error)
	GeoFencesOf(ctx context.Context, userID int64) ([]int64, error)
	AddGeoFenceOwner(ctx context.Context, geoFenceID, userID int64) error
	RemoveGeoFenceOwner(ctx context.Context, geoFenceID, userID int64) error

	FenceDevices(ctx context.Context, geoFenceID int64) ([]int64, error)
	FencesWithDevice(ctx context.Context, deviceID int64) ([]int64, error)
	LinkFenceDevice(ctx context.Context, geoFenceID, deviceID int64) error
	UnlinkFenceDevice(ctx context.Context, geoFenceID, deviceID int64) error
}

// UIStates defines the interface for per-user interface state entries.
type UIStates interface {
	Insert(ctx context.Context, state *models.UIState) error
	ByUser(ctx context.Context, userID int64) ([]models.UIState, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

// Settings defines the interface for the application settings record.
type Settings interface {
	// Get returns a not-found error when no settings were persisted yet.
	Get(ctx context.Context) (*models.ApplicationSettings, error)
	Put(ctx context.Context, settings *models.ApplicationSettings) error
}
