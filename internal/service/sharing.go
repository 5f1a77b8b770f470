package service

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// GetDeviceShare returns, for every user visible to the caller, whether that
// user is in the device's owner set.
func (s *Service) GetDeviceShare(ctx context.Context, caller *models.User, deviceID int64) (map[int64]bool, error) {
	var result map[int64]bool
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.Devices().ByID(ctx, deviceID); err != nil {
			return trace.Wrap(err)
		}
		owners, err := tx.Ownership().DeviceOwners(ctx, deviceID)
		if err != nil {
			return trace.Wrap(err)
		}
		visible, err := s.visibleUsers(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		result = make(map[int64]bool, len(visible))
		for _, user := range visible {
			result[user.ID] = containsID(owners, user.ID)
		}
		return nil
	})
	return result, err
}

// SaveDeviceShare adds or removes visible users from the device's owner set
// according to the share map. Users with no entry are left untouched.
func (s *Service) SaveDeviceShare(ctx context.Context, caller *models.User, deviceID int64, share map[int64]bool) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin, models.RoleManager},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.Devices().ByID(ctx, deviceID); err != nil {
			return trace.Wrap(err)
		}
		visible, err := s.visibleUsers(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, user := range visible {
			shared, ok := share[user.ID]
			if !ok {
				continue
			}
			if shared {
				err = tx.Ownership().AddDeviceOwner(ctx, deviceID, user.ID)
			} else {
				err = tx.Ownership().RemoveDeviceOwner(ctx, deviceID, user.ID)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		}
		// An empty owner set cannot persist.
		owners, err := tx.Ownership().DeviceOwners(ctx, deviceID)
		if err != nil {
			return trace.Wrap(err)
		}
		if len(owners) == 0 {
			device, err := tx.Devices().ByID(ctx, deviceID)
			if err != nil {
				return trace.Wrap(err)
			}
			return trace.Wrap(s.cascadeDeleteDevice(ctx, tx, device))
		}
		return nil
	})
}

// GetGeoFenceShare returns, for every user visible to the caller, whether
// that user is in the fence's owner set.
func (s *Service) GetGeoFenceShare(ctx context.Context, caller *models.User, geoFenceID int64) (map[int64]bool, error) {
	var result map[int64]bool
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.GeoFences().ByID(ctx, geoFenceID); err != nil {
			return trace.Wrap(err)
		}
		owners, err := tx.Ownership().GeoFenceOwners(ctx, geoFenceID)
		if err != nil {
			return trace.Wrap(err)
		}
		visible, err := s.visibleUsers(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		result = make(map[int64]bool, len(visible))
		for _, user := range visible {
			result[user.ID] = containsID(owners, user.ID)
		}
		return nil
	})
	return result, err
}

// SaveGeoFenceShare adds or removes visible users from the fence's owner set
// according to the share map. Users with no entry are left untouched.
func (s *Service) SaveGeoFenceShare(ctx context.Context, caller *models.User, geoFenceID int64, share map[int64]bool) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin, models.RoleManager},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.GeoFences().ByID(ctx, geoFenceID); err != nil {
			return trace.Wrap(err)
		}
		visible, err := s.visibleUsers(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, user := range visible {
			shared, ok := share[user.ID]
			if !ok {
				continue
			}
			if shared {
				err = tx.Ownership().AddGeoFenceOwner(ctx, geoFenceID, user.ID)
			} else {
				err = tx.Ownership().RemoveGeoFenceOwner(ctx, geoFenceID, user.ID)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		}
		// An empty owner set cannot persist.
		owners, err := tx.Ownership().GeoFenceOwners(ctx, geoFenceID)
		if err != nil {
			return trace.Wrap(err)
		}
		if len(owners) == 0 {
			return trace.Wrap(s.cascadeDeleteGeoFence(ctx, tx, geoFenceID))
		}
		return nil
	})
}
