package service

import (
	"context"
	"time"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/geo"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// GetPositions returns the device's positions within the window, ordered by
// time, each annotated with the distance to its predecessor. When
// applyFilter is set the caller's filter preferences are applied.
//
// Filtering runs in two stages. Coordinate, validity and speed predicates
// exclude samples from the raw sequence entirely. The surviving sequence is
// then scanned once: each sample's distance is measured against its
// immediate raw predecessor (not the last retained sample) and the
// duplicate-timestamp and minimum-distance checks decide retention. The
// first sample is always retained.
func (s *Service) GetPositions(ctx context.Context, caller *models.User, deviceID int64, from, to time.Time, applyFilter bool) ([]models.Position, error) {
	var result []models.Position
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		window, err := tx.Positions().Window(ctx, deviceID, from, to)
		if err != nil {
			return trace.Wrap(err)
		}
		result = filterPositions(window, caller.Settings, applyFilter)
		return nil
	})
	return result, err
}

func filterPositions(window []models.Position, filters models.UserSettings, applyFilter bool) []models.Position {
	raw := window
	if applyFilter {
		raw = make([]models.Position, 0, len(window))
		for _, p := range window {
			if filters.HideZeroCoordinates && p.Latitude == 0 && p.Longitude == 0 {
				continue
			}
			if filters.HideInvalidLocations && !p.Valid {
				continue
			}
			if filters.SpeedComparator != "" && filters.SpeedForFilter != nil {
				threshold := filters.SpeedUnit.ToKnots(*filters.SpeedForFilter)
				if !compareSpeed(p.Speed, filters.SpeedComparator, threshold) {
					continue
				}
			}
			raw = append(raw, p)
		}
	}

	retained := make([]models.Position, 0, len(raw))
	for i := range raw {
		keep := true
		if i > 0 {
			prev := raw[i-1]
			raw[i].Distance = geo.Distance(prev.Latitude, prev.Longitude, raw[i].Latitude, raw[i].Longitude)

			if applyFilter && filters.HideDuplicates {
				keep = !prev.Time.Equal(raw[i].Time)
			}
			if keep && applyFilter && filters.MinDistance != nil {
				keep = raw[i].Distance >= *filters.MinDistance
			}
		}
		if keep {
			retained = append(retained, raw[i])
		}
	}
	return retained
}

func compareSpeed(speed float64, cmp models.SpeedComparator, threshold float64) bool {
	switch cmp {
	case models.SpeedLess:
		return speed < threshold
	case models.SpeedLessEqual:
		return speed <= threshold
	case models.SpeedEqual:
		return speed == threshold
	case models.SpeedGreaterEqual:
		return speed >= threshold
	case models.SpeedGreater:
		return speed > threshold
	default:
		return true
	}
}

// GetLatestPositions returns the last known position of every accessible
// device, annotated with the geo-fences containing it. The distance field
// carries the device odometer.
func (s *Service) GetLatestPositions(ctx context.Context, caller *models.User) ([]models.Position, error) {
	var result []models.Position
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		devices, err := s.accessibleDevices(ctx, tx, caller, false)
		if err != nil {
			return trace.Wrap(err)
		}
		fences, err := s.accessibleGeoFences(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, device := range devices {
			if device.LatestPositionID == 0 {
				continue
			}
			position, err := tx.Positions().ByID(ctx, device.LatestPositionID)
			if err != nil {
				return trace.Wrap(err)
			}
			for _, fence := range fences {
				if s.oracle.Contains(fence, *position) {
					position.GeoFenceIDs = append(position.GeoFenceIDs, fence.ID)
				}
			}
			position.Distance = device.Odometer
			result = append(result, *position)
		}
		return nil
	})
	return result, err
}

// GetLatestNonIdlePositions returns, per accessible device, the most recent
// moving position, falling back to the earliest sample for devices that
// never moved. Devices without positions are skipped.
func (s *Service) GetLatestNonIdlePositions(ctx context.Context, caller *models.User) ([]models.Position, error) {
	var result []models.Position
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{}); err != nil {
			return trace.Wrap(err)
		}
		devices, err := s.accessibleDevices(ctx, tx, caller, false)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, device := range devices {
			position, err := tx.Positions().LatestMoving(ctx, device.ID)
			if trace.IsNotFound(err) {
				position, err = tx.Positions().Earliest(ctx, device.ID)
				if trace.IsNotFound(err) {
					continue
				}
			}
			if err != nil {
				return trace.Wrap(err)
			}
			result = append(result, *position)
		}
		return nil
	})
	return result, err
}

// RecordPosition ingests a telemetry sample for the device with the given
// unique identifier: the sample is stored, becomes the device's latest
// position, and, when the device auto-updates its odometer, advances the
// odometer by the distance from the previous latest position, evaluating
// maintenance thresholds on the way.
func (s *Service) RecordPosition(ctx context.Context, uniqueID string, sample models.Position) (*models.Position, error) {
	var result *models.Position
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		device, err := tx.Devices().ByUniqueID(ctx, uniqueID)
		if err != nil {
			return trace.Wrap(err)
		}

		var previous *models.Position
		if device.LatestPositionID != 0 {
			if previous, err = tx.Positions().ByID(ctx, device.LatestPositionID); err != nil {
				return trace.Wrap(err)
			}
		}

		sample.ID = 0
		sample.DeviceID = device.ID
		if sample.Time.IsZero() {
			sample.Time = s.now()
		}
		if err := tx.Positions().Insert(ctx, &sample); err != nil {
			return trace.Wrap(err)
		}
		device.LatestPositionID = sample.ID

		if device.AutoUpdateOdometer && previous != nil {
			prevOdometer := device.Odometer
			device.Odometer += geo.Distance(previous.Latitude, previous.Longitude, sample.Latitude, sample.Longitude)
			maintenances, err := tx.Maintenances().ByDevice(ctx, device.ID)
			if err != nil {
				return trace.Wrap(err)
			}
			if err := s.postMaintenanceEvents(ctx, tx, device, prevOdometer, device.Odometer, maintenances); err != nil {
				return trace.Wrap(err)
			}
		}
		if err := tx.Devices().Update(ctx, device); err != nil {
			return trace.Wrap(err)
		}
		result = &sample
		return nil
	})
	return result, err
}
