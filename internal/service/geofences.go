package service

import (
	"context"
	"strings"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// GetGeoFences returns the geo-fences accessible to the caller, with device
// associations loaded.
func (s *Service) GetGeoFences(ctx context.Context, caller *models.User) ([]models.GeoFence, error) {
	var result []models.GeoFence
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		fences, err := s.accessibleGeoFences(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		result = fences
		return nil
	})
	return result, err
}

// AddGeoFence creates a fence owned solely by the caller. Only devices the
// caller can access may be associated.
func (s *Service) AddGeoFence(ctx context.Context, caller *models.User, fence models.GeoFence) (*models.GeoFence, error) {
	var result *models.GeoFence
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true}); err != nil {
			return trace.Wrap(err)
		}
		if strings.TrimSpace(fence.Name) == "" {
			return trace.BadParameter("geo-fence name is required")
		}

		requested := fence.DeviceIDs
		fence.ID = 0
		fence.DeviceIDs = nil
		if err := tx.GeoFences().Insert(ctx, &fence); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.Ownership().AddGeoFenceOwner(ctx, fence.ID, caller.ID); err != nil {
			return trace.Wrap(err)
		}

		accessible, err := s.accessibleDevices(ctx, tx, caller, false)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, deviceID := range requested {
			if !deviceInList(accessible, deviceID) {
				continue
			}
			if err := tx.Ownership().LinkFenceDevice(ctx, fence.ID, deviceID); err != nil {
				return trace.Wrap(err)
			}
			fence.DeviceIDs = append(fence.DeviceIDs, deviceID)
		}
		result = &fence
		return nil
	})
	return result, err
}

// UpdateGeoFence applies a fence update. Device associations are reconciled
// against the requested set, but only devices accessible to the caller are
// linked or unlinked; links to devices outside the caller's reach are
// preserved.
func (s *Service) UpdateGeoFence(ctx context.Context, caller *models.User, updated models.GeoFence) (*models.GeoFence, error) {
	var result *models.GeoFence
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true}); err != nil {
			return trace.Wrap(err)
		}
		if strings.TrimSpace(updated.Name) == "" {
			return trace.BadParameter("geo-fence name is required")
		}
		fence, err := tx.GeoFences().ByID(ctx, updated.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		fence.CopyFrom(updated)
		if err := tx.GeoFences().Update(ctx, fence); err != nil {
			return trace.Wrap(err)
		}

		accessible, err := s.accessibleDevices(ctx, tx, caller, false)
		if err != nil {
			return trace.Wrap(err)
		}
		linked, err := tx.Ownership().FenceDevices(ctx, fence.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, deviceID := range linked {
			if !containsID(updated.DeviceIDs, deviceID) && deviceInList(accessible, deviceID) {
				if err := tx.Ownership().UnlinkFenceDevice(ctx, fence.ID, deviceID); err != nil {
					return trace.Wrap(err)
				}
			}
		}
		for _, deviceID := range updated.DeviceIDs {
			if !deviceInList(accessible, deviceID) {
				continue
			}
			if err := tx.Ownership().LinkFenceDevice(ctx, fence.ID, deviceID); err != nil {
				return trace.Wrap(err)
			}
		}

		if fence.DeviceIDs, err = tx.Ownership().FenceDevices(ctx, fence.ID); err != nil {
			return trace.Wrap(err)
		}
		result = fence
		return nil
	})
	return result, err
}

// RemoveGeoFence removes the caller from the fence's owner set; admin and
// manager callers also strip every user visible to them. A fence left
// without owners is deleted after purging its dependent events. Associated
// devices are only unlinked, never deleted.
func (s *Service) RemoveGeoFence(ctx context.Context, caller *models.User, geoFenceID int64) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true}); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.GeoFences().ByID(ctx, geoFenceID); err != nil {
			return trace.Wrap(err)
		}

		if caller.Admin || caller.Manager {
			visible, err := s.visibleUsers(ctx, tx, caller)
			if err != nil {
				return trace.Wrap(err)
			}
			for _, user := range visible {
				if err := tx.Ownership().RemoveGeoFenceOwner(ctx, geoFenceID, user.ID); err != nil {
					return trace.Wrap(err)
				}
			}
		}
		if err := tx.Ownership().RemoveGeoFenceOwner(ctx, geoFenceID, caller.ID); err != nil {
			return trace.Wrap(err)
		}

		owners, err := tx.Ownership().GeoFenceOwners(ctx, geoFenceID)
		if err != nil {
			return trace.Wrap(err)
		}
		if len(owners) > 0 {
			return nil
		}
		return trace.Wrap(s.cascadeDeleteGeoFence(ctx, tx, geoFenceID))
	})
}

// cascadeDeleteGeoFence purges a fence that lost its last owner: dependent
// events first, then device links, then the fence itself.
func (s *Service) cascadeDeleteGeoFence(ctx context.Context, tx store.Store, geoFenceID int64) error {
	if err := tx.Events().DeleteByGeoFence(ctx, geoFenceID); err != nil {
		return trace.Wrap(err)
	}
	deviceIDs, err := tx.Ownership().FenceDevices(ctx, geoFenceID)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, deviceID := range deviceIDs {
		if err := tx.Ownership().UnlinkFenceDevice(ctx, geoFenceID, deviceID); err != nil {
			return trace.Wrap(err)
		}
	}
	return trace.Wrap(tx.GeoFences().Delete(ctx, geoFenceID))
}

func deviceInList(devices []models.Device, id int64) bool {
	for _, device := range devices {
		if device.ID == id {
			return true
		}
	}
	return false
}
