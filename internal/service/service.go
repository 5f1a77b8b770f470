// Package service implements the business operations of the tracking
// platform: authentication, the role/ownership model over shared devices and
// geo-fences, position filtering and maintenance event derivation.
//
// Every operation takes the caller explicitly and runs as one store
// transaction; there is no ambient current user.
package service

import (
	"context"
	"time"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/geo"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// Oracle answers whether a position lies inside a geo-fence. The default
// implementation delegates to the geo package.
type Oracle interface {
	Contains(fence models.GeoFence, position models.Position) bool
}

type geoOracle struct{}

func (geoOracle) Contains(fence models.GeoFence, position models.Position) bool {
	return geo.Contains(fence, position)
}

// Service is the composition root for all business operations.
type Service struct {
	store  store.Store
	oracle Oracle
	logDir string
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithOracle replaces the geo-fence containment oracle.
func WithOracle(oracle Oracle) Option {
	return func(s *Service) { s.oracle = oracle }
}

// WithLogDir sets the directory probed for the tracker server log.
func WithLogDir(dir string) Option {
	return func(s *Service) { s.logDir = dir }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over the given store.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		oracle: geoOracle{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// appSettings loads the application settings, persisting defaults on first
// read.
func (s *Service) appSettings(ctx context.Context, tx store.Store) (*models.ApplicationSettings, error) {
	settings, err := tx.Settings().Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !trace.IsNotFound(err) {
		return nil, trace.Wrap(err)
	}
	defaults := models.DefaultApplicationSettings()
	if err := tx.Settings().Put(ctx, &defaults); err != nil {
		return nil, trace.Wrap(err)
	}
	return &defaults, nil
}

// accessibleDevices returns the devices the caller may see: all devices for
// admins, otherwise the caller's shared set. Maintenance lists are loaded
// when requested.
func (s *Service) accessibleDevices(ctx context.Context, tx store.Store, caller *models.User, loadMaintenances bool) ([]models.Device, error) {
	var devices []models.Device
	if caller.Admin {
		all, err := tx.Devices().All(ctx)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		devices = all
	} else {
		ids, err := tx.Ownership().DevicesOf(ctx, caller.ID)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		for _, id := range ids {
			device, err := tx.Devices().ByID(ctx, id)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			devices = append(devices, *device)
		}
	}
	if loadMaintenances {
		for i := range devices {
			maintenances, err := tx.Maintenances().ByDevice(ctx, devices[i].ID)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			devices[i].Maintenances = maintenances
		}
	}
	return devices, nil
}

// accessibleGeoFences returns the geo-fences the caller may see, with device
// associations loaded.
func (s *Service) accessibleGeoFences(ctx context.Context, tx store.Store, caller *models.User) ([]models.GeoFence, error) {
	var fences []models.GeoFence
	if caller.Admin {
		all, err := tx.GeoFences().All(ctx)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		fences = all
	} else {
		ids, err := tx.Ownership().GeoFencesOf(ctx, caller.ID)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		for _, id := range ids {
			fence, err := tx.GeoFences().ByID(ctx, id)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			fences = append(fences, *fence)
		}
	}
	for i := range fences {
		deviceIDs, err := tx.Ownership().FenceDevices(ctx, fences[i].ID)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		fences[i].DeviceIDs = deviceIDs
	}
	return fences, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
