package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
	"github.com/trackfleet/trackd/internal/store/memstore"
)

// fixture wires a service over an in-memory store with a fixed clock and a
// few seeded accounts.
type fixture struct {
	svc     *Service
	store   store.Store
	now     time.Time
	admin   *models.User
	manager *models.User
	plain   *models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st := memstore.New()
	f := &fixture{
		store: st,
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.svc = New(st, opts...)

	f.admin = f.seedUser(t, models.User{Login: "admin", Admin: true}, "adminpass")
	f.manager = f.seedUser(t, models.User{Login: "manager", Manager: true}, "managerpass")
	f.plain = f.seedUser(t, models.User{Login: "plain"}, "plainpass")
	return f
}

// seedUser inserts an account directly into the store, bcrypt-hashing the
// given password.
func (f *fixture) seedUser(t *testing.T, user models.User, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(auth.MethodBcrypt, password)
	require.NoError(t, err)
	user.Password = hash
	user.HashMethod = auth.MethodBcrypt
	if user.Settings == (models.UserSettings{}) {
		user.Settings = models.DefaultUserSettings()
	}
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		return tx.Users().Insert(ctx, &user)
	}))
	return &user
}

// seedDevice inserts a device owned by the given users.
func (f *fixture) seedDevice(t *testing.T, device models.Device, ownerIDs ...int64) *models.Device {
	t.Helper()
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		if err := tx.Devices().Insert(ctx, &device); err != nil {
			return err
		}
		for _, ownerID := range ownerIDs {
			if err := tx.Ownership().AddDeviceOwner(ctx, device.ID, ownerID); err != nil {
				return err
			}
		}
		return nil
	}))
	return &device
}

// seedPosition inserts a position and makes it the device's latest.
func (f *fixture) seedPosition(t *testing.T, device *models.Device, position models.Position) *models.Position {
	t.Helper()
	position.DeviceID = device.ID
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		if err := tx.Positions().Insert(ctx, &position); err != nil {
			return err
		}
		device.LatestPositionID = position.ID
		return tx.Devices().Update(ctx, device)
	}))
	return &position
}

func (f *fixture) deviceByID(t *testing.T, id int64) (*models.Device, error) {
	t.Helper()
	var device *models.Device
	err := f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		var err error
		device, err = tx.Devices().ByID(ctx, id)
		return err
	})
	return device, err
}

func (f *fixture) deviceOwners(t *testing.T, deviceID int64) []int64 {
	t.Helper()
	var owners []int64
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		var err error
		owners, err = tx.Ownership().DeviceOwners(ctx, deviceID)
		return err
	}))
	return owners
}

func (f *fixture) uiStates(t *testing.T, userID int64) []models.UIState {
	t.Helper()
	var states []models.UIState
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		var err error
		states, err = tx.UIStates().ByUser(ctx, userID)
		return err
	}))
	return states
}

func (f *fixture) deviceEvents(t *testing.T, deviceID int64) []models.DeviceEvent {
	t.Helper()
	var events []models.DeviceEvent
	require.NoError(t, f.store.Transact(context.Background(), func(ctx context.Context, tx store.Store) error {
		var err error
		events, err = tx.Events().ByDevice(ctx, deviceID)
		return err
	}))
	return events
}
