package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// odometerEpsilon is the minimum odometer change that triggers maintenance
// threshold evaluation.
const odometerEpsilon = 1e-6

// GetDevices returns the devices accessible to the caller with their
// maintenance lists loaded.
func (s *Service) GetDevices(ctx context.Context, caller *models.User) ([]models.Device, error) {
	var result []models.Device
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		devices, err := s.accessibleDevices(ctx, tx, caller, true)
		if err != nil {
			return trace.Wrap(err)
		}
		result = devices
		return nil
	})
	return result, err
}

// AddDevice registers a device owned solely by the caller. Attached
// maintenance records are persisted bound to the new device.
func (s *Service) AddDevice(ctx context.Context, caller *models.User, device models.Device) (*models.Device, error) {
	var result *models.Device
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true}); err != nil {
			return trace.Wrap(err)
		}
		if err := validateDevice(&device); err != nil {
			return trace.Wrap(err)
		}
		if _, err := tx.Devices().ByUniqueID(ctx, device.UniqueID); err == nil {
			return trace.AlreadyExists("device with unique id %q already exists", device.UniqueID)
		} else if !trace.IsNotFound(err) {
			return trace.Wrap(err)
		}

		device.ID = 0
		device.LatestPositionID = 0
		attached := device.Maintenances
		device.Maintenances = nil
		if err := tx.Devices().Insert(ctx, &device); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.Ownership().AddDeviceOwner(ctx, device.ID, caller.ID); err != nil {
			return trace.Wrap(err)
		}
		for _, maintenance := range attached {
			maintenance.ID = 0
			maintenance.DeviceID = device.ID
			if err := tx.Maintenances().Insert(ctx, &maintenance); err != nil {
				return trace.Wrap(err)
			}
			device.Maintenances = append(device.Maintenances, maintenance)
		}
		result = &device
		return nil
	})
	return result, err
}

// UpdateDevice applies a device update: field copy, maintenance list
// reconciliation and, when the odometer moved, maintenance threshold
// evaluation. Newly added maintenance records may trigger events on the same
// update.
func (s *Service) UpdateDevice(ctx context.Context, caller *models.User, device models.Device) (*models.Device, error) {
	var result *models.Device
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true, DeviceID: device.ID}); err != nil {
			return trace.Wrap(err)
		}
		if err := validateDevice(&device); err != nil {
			return trace.Wrap(err)
		}
		if existing, err := tx.Devices().ByUniqueID(ctx, device.UniqueID); err == nil {
			if existing.ID != device.ID {
				return trace.AlreadyExists("device with unique id %q already exists", device.UniqueID)
			}
		} else if !trace.IsNotFound(err) {
			return trace.Wrap(err)
		}

		current, err := tx.Devices().ByID(ctx, device.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		prevOdometer := current.Odometer

		current.Name = device.Name
		current.UniqueID = device.UniqueID
		current.Timeout = device.Timeout
		current.IdleSpeedThreshold = device.IdleSpeedThreshold
		current.IconType = device.IconType
		current.Odometer = device.Odometer
		current.AutoUpdateOdometer = device.AutoUpdateOdometer

		maintenances, err := s.reconcileMaintenances(ctx, tx, current.ID, device.Maintenances)
		if err != nil {
			return trace.Wrap(err)
		}
		if err := s.postMaintenanceEvents(ctx, tx, current, prevOdometer, current.Odometer, maintenances); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.Devices().Update(ctx, current); err != nil {
			return trace.Wrap(err)
		}
		current.Maintenances = maintenances
		result = current
		return nil
	})
	return result, err
}

// RemoveDevice removes the caller from the device's owner set. Admin and
// manager callers also strip every user visible to them. A device left
// without owners is deleted together with all dependent data.
func (s *Service) RemoveDevice(ctx context.Context, caller *models.User, deviceID int64) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true, DeviceID: deviceID}); err != nil {
			return trace.Wrap(err)
		}
		device, err := tx.Devices().ByID(ctx, deviceID)
		if err != nil {
			return trace.Wrap(err)
		}

		if caller.Admin || caller.Manager {
			visible, err := s.visibleUsers(ctx, tx, caller)
			if err != nil {
				return trace.Wrap(err)
			}
			for _, user := range visible {
				if err := tx.Ownership().RemoveDeviceOwner(ctx, device.ID, user.ID); err != nil {
					return trace.Wrap(err)
				}
			}
		}
		if err := tx.Ownership().RemoveDeviceOwner(ctx, device.ID, caller.ID); err != nil {
			return trace.Wrap(err)
		}

		owners, err := tx.Ownership().DeviceOwners(ctx, device.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		if len(owners) > 0 {
			return nil
		}
		return trace.Wrap(s.cascadeDeleteDevice(ctx, tx, device))
	})
}

// cascadeDeleteDevice purges a device that lost its last owner. The order is
// fixed: detach latest position, delete events, delete positions, unlink
// geo-fences, delete maintenance records, delete the device.
func (s *Service) cascadeDeleteDevice(ctx context.Context, tx store.Store, device *models.Device) error {
	device.LatestPositionID = 0
	if err := tx.Devices().Update(ctx, device); err != nil {
		return trace.Wrap(err)
	}
	if err := tx.Events().DeleteByDevice(ctx, device.ID); err != nil {
		return trace.Wrap(err)
	}
	if err := tx.Positions().DeleteByDevice(ctx, device.ID); err != nil {
		return trace.Wrap(err)
	}
	fenceIDs, err := tx.Ownership().FencesWithDevice(ctx, device.ID)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, fenceID := range fenceIDs {
		if err := tx.Ownership().UnlinkFenceDevice(ctx, fenceID, device.ID); err != nil {
			return trace.Wrap(err)
		}
	}
	if err := tx.Maintenances().DeleteByDevice(ctx, device.ID); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(tx.Devices().Delete(ctx, device.ID))
}

// reconcileMaintenances merges the desired maintenance list into the stored
// one, matching records by id: matched records are updated in place, absent
// ones deleted, unmatched incoming ones inserted as new. Returns the final
// list ordered by IndexNo.
func (s *Service) reconcileMaintenances(ctx context.Context, tx store.Store, deviceID int64, desired []models.Maintenance) ([]models.Maintenance, error) {
	current, err := tx.Maintenances().ByDevice(ctx, deviceID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	remaining := append([]models.Maintenance(nil), desired...)

	var result []models.Maintenance
	for _, existing := range current {
		matched := false
		for i, incoming := range remaining {
			if incoming.ID == existing.ID {
				existing.CopyFrom(incoming)
				existing.DeviceID = deviceID
				if err := tx.Maintenances().Update(ctx, &existing); err != nil {
					return nil, trace.Wrap(err)
				}
				result = append(result, existing)
				remaining = append(remaining[:i], remaining[i+1:]...)
				matched = true
				break
			}
		}
		if !matched {
			if err := tx.Maintenances().Delete(ctx, existing.ID); err != nil {
				return nil, trace.Wrap(err)
			}
		}
	}
	for _, incoming := range remaining {
		incoming.ID = 0
		incoming.DeviceID = deviceID
		if err := tx.Maintenances().Insert(ctx, &incoming); err != nil {
			return nil, trace.Wrap(err)
		}
		result = append(result, incoming)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IndexNo < result[j].IndexNo })
	return result, nil
}

// postMaintenanceEvents emits a maintenance-required event for every record
// whose service threshold was crossed by the odometer change. Thresholds
// already passed before the update do not fire again.
func (s *Service) postMaintenanceEvents(ctx context.Context, tx store.Store, device *models.Device, prevOdometer, newOdometer float64, maintenances []models.Maintenance) error {
	if math.Abs(prevOdometer-newOdometer) < odometerEpsilon {
		return nil
	}
	for _, maintenance := range maintenances {
		threshold := maintenance.ServiceThreshold()
		if prevOdometer < threshold && newOdometer >= threshold {
			event := &models.DeviceEvent{
				Time:          s.now(),
				DeviceID:      device.ID,
				Kind:          models.EventMaintenanceRequired,
				PositionID:    device.LatestPositionID,
				MaintenanceID: maintenance.ID,
			}
			if err := tx.Events().Insert(ctx, event); err != nil {
				return trace.Wrap(err)
			}
			maintenanceEventsEmitted.Inc()
		}
	}
	return nil
}

func validateDevice(device *models.Device) error {
	if strings.TrimSpace(device.Name) == "" || device.UniqueID == "" {
		return trace.BadParameter("device name and unique id are required")
	}
	return nil
}
