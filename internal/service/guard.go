package service

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// Guard describes the authorization requirements of one operation: the roles
// that may invoke it, whether it writes, and an optional device the caller
// must manage.
type Guard struct {
	// Roles is an any-of set. Empty means any authenticated user.
	Roles []models.Role
	// Write marks mutating operations; read-only accounts are denied.
	Write bool
	// DeviceID, when non-zero, requires the device to be in the caller's
	// accessible set unless the caller is an admin.
	DeviceID int64
}

// authorize evaluates the guard against already loaded caller state. It has
// no side effects; a denied result must abort the operation.
func (s *Service) authorize(ctx context.Context, tx store.Store, caller *models.User, g Guard) error {
	if caller == nil {
		return trace.AccessDenied("not authenticated")
	}
	if len(g.Roles) > 0 {
		held := false
		for _, role := range g.Roles {
			if caller.HasRole(role) {
				held = true
				break
			}
		}
		if !held {
			return trace.AccessDenied("user %q lacks required role", caller.Login)
		}
	}
	if g.Write && caller.ReadOnly {
		return trace.AccessDenied("user %q is read-only", caller.Login)
	}
	if g.DeviceID != 0 && !caller.Admin {
		ids, err := tx.Ownership().DevicesOf(ctx, caller.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		if !containsID(ids, g.DeviceID) {
			return trace.AccessDenied("user %q does not manage device %d", caller.Login, g.DeviceID)
		}
	}
	return nil
}
