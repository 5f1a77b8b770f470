package service

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// Login verifies credentials and returns the account profile. When
// passwordHashed is set the client pre-hashed the credential and it is
// compared byte for byte. A successful plaintext login rehashes the stored
// credential if the application default hash method has changed.
func (s *Service) Login(ctx context.Context, login, password string, passwordHashed bool) (*models.User, error) {
	if login == "" || password == "" {
		return nil, trace.CompareFailed("invalid credentials")
	}
	var result *models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		user, err := tx.Users().ByLogin(ctx, login)
		if err != nil {
			if trace.IsNotFound(err) {
				return trace.CompareFailed("invalid credentials")
			}
			return trace.Wrap(err)
		}
		if !auth.VerifyPassword(user.HashMethod, user.Password, password, passwordHashed) {
			return trace.CompareFailed("invalid credentials")
		}

		settings, err := s.appSettings(ctx, tx)
		if err != nil {
			return trace.Wrap(err)
		}
		if auth.NeedsRehash(user.HashMethod, settings.DefaultHashMethod, passwordHashed) {
			user.HashMethod = settings.DefaultHashMethod
			if user.Password, err = auth.HashPassword(user.HashMethod, password); err != nil {
				return trace.Wrap(err)
			}
			if err := tx.Users().Update(ctx, user); err != nil {
				return trace.Wrap(err)
			}
		}
		result = user
		return nil
	})
	return result, err
}

// Register creates a self-service account. Registered users are managers of
// their own resources. Fails when registration is disabled or the login is
// taken.
func (s *Service) Register(ctx context.Context, login, password string) (*models.User, error) {
	if login == "" || password == "" {
		return nil, trace.BadParameter("login and password are required")
	}
	var result *models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		settings, err := s.appSettings(ctx, tx)
		if err != nil {
			return trace.Wrap(err)
		}
		if !settings.RegistrationEnabled {
			return trace.AccessDenied("registration is disabled")
		}
		if _, err := tx.Users().ByLogin(ctx, login); err == nil {
			return trace.AlreadyExists("login %q is taken", login)
		} else if !trace.IsNotFound(err) {
			return trace.Wrap(err)
		}

		user := &models.User{
			Login:      login,
			HashMethod: settings.DefaultHashMethod,
			Manager:    true,
			Settings:   models.DefaultUserSettings(),
		}
		if user.Password, err = auth.HashPassword(user.HashMethod, password); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.Users().Insert(ctx, user); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.UIStates().Insert(ctx, &models.UIState{
			UserID: user.ID,
			Name:   models.DefaultArchiveGridStateName,
		}); err != nil {
			return trace.Wrap(err)
		}
		result = user
		return nil
	})
	return result, err
}

// UserByID resolves an account by id. Used by the transport layer to turn a
// token subject back into a caller.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var result *models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		user, err := tx.Users().ByID(ctx, id)
		if err != nil {
			return trace.Wrap(err)
		}
		result = user
		return nil
	})
	return result, err
}

// ManagedUsersOf returns users whose ManagedBy points at the manager. Only
// the direct level is resolved; sub-managers' users are not included.
func (s *Service) ManagedUsersOf(ctx context.Context, manager *models.User) ([]models.User, error) {
	var result []models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		users, err := tx.Users().ManagedBy(ctx, manager.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		result = users
		return nil
	})
	return result, err
}

// visibleUsers resolves the user set a caller may see: admins see everyone,
// managers see their directly managed users, everyone else sees nothing.
func (s *Service) visibleUsers(ctx context.Context, tx store.Store, caller *models.User) ([]models.User, error) {
	if caller.Admin {
		return tx.Users().All(ctx)
	}
	if caller.Manager {
		return tx.Users().ManagedBy(ctx, caller.ID)
	}
	return nil, nil
}

// GetUsers returns the users visible to the caller.
func (s *Service) GetUsers(ctx context.Context, caller *models.User) ([]models.User, error) {
	var result []models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Roles: []models.Role{models.RoleAdmin, models.RoleManager}}); err != nil {
			return trace.Wrap(err)
		}
		users, err := s.visibleUsers(ctx, tx, caller)
		if err != nil {
			return trace.Wrap(err)
		}
		result = users
		return nil
	})
	return result, err
}

// AddUser creates an account managed by the caller. Only admins may grant
// the admin flag.
func (s *Service) AddUser(ctx context.Context, caller *models.User, user models.User) (*models.User, error) {
	var result *models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin, models.RoleManager},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		if user.Login == "" || user.Password == "" {
			return trace.BadParameter("login and password are required")
		}
		if _, err := tx.Users().ByLogin(ctx, user.Login); err == nil {
			return trace.AlreadyExists("login %q is taken", user.Login)
		} else if !trace.IsNotFound(err) {
			return trace.Wrap(err)
		}

		settings, err := s.appSettings(ctx, tx)
		if err != nil {
			return trace.Wrap(err)
		}
		if !caller.Admin {
			user.Admin = false
		}
		user.ID = 0
		user.ManagedBy = caller.ID
		user.HashMethod = settings.DefaultHashMethod
		if user.Password, err = auth.HashPassword(user.HashMethod, user.Password); err != nil {
			return trace.Wrap(err)
		}
		if user.Settings == (models.UserSettings{}) {
			user.Settings = models.DefaultUserSettings()
		}
		if err := tx.Users().Insert(ctx, &user); err != nil {
			return trace.Wrap(err)
		}
		if err := tx.UIStates().Insert(ctx, &models.UIState{
			UserID: user.ID,
			Name:   models.DefaultArchiveGridStateName,
		}); err != nil {
			return trace.Wrap(err)
		}
		result = &user
		return nil
	})
	return result, err
}

// UpdateUser applies a user update. A caller may update their own account
// but can never grant themself admin; admins may update anyone; managers may
// additionally reset another user's password. The stored credential is
// rehashed whenever the password changes or the stored hash method differs
// from the application default.
func (s *Service) UpdateUser(ctx context.Context, caller *models.User, updated models.User) (*models.User, error) {
	var result *models.User
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{Write: true}); err != nil {
			return trace.Wrap(err)
		}
		if updated.Login == "" || updated.Password == "" {
			return trace.BadParameter("login and password are required")
		}

		selfUpdate := caller.ID == updated.ID
		if !caller.Admin && !(selfUpdate && !updated.Admin) {
			return trace.AccessDenied("user %q may not update user %d", caller.Login, updated.ID)
		}

		settings, err := s.appSettings(ctx, tx)
		if err != nil {
			return trace.Wrap(err)
		}

		if selfUpdate {
			user, err := tx.Users().ByID(ctx, caller.ID)
			if err != nil {
				return trace.Wrap(err)
			}
			user.Login = updated.Login
			// Password changed, or the stored hash predates the current
			// default method.
			if user.Password != updated.Password ||
				auth.NeedsRehash(user.HashMethod, settings.DefaultHashMethod, false) {
				user.HashMethod = settings.DefaultHashMethod
				if user.Password, err = auth.HashPassword(user.HashMethod, updated.Password); err != nil {
					return trace.Wrap(err)
				}
			}
			user.Email = updated.Email
			user.Admin = updated.Admin
			user.Manager = updated.Manager
			user.Settings = updated.Settings
			user.NotificationEvents = updated.NotificationEvents
			if err := tx.Users().Update(ctx, user); err != nil {
				return trace.Wrap(err)
			}
			result = user
			return nil
		}

		if !caller.Admin && !caller.Manager {
			return trace.AccessDenied("user %q may not update other users", caller.Login)
		}
		user, err := tx.Users().ByID(ctx, updated.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		passwordChanged := user.Password != updated.Password &&
			!auth.VerifyPassword(user.HashMethod, user.Password, updated.Password, false)
		if passwordChanged || user.HashMethod != settings.DefaultHashMethod {
			user.HashMethod = settings.DefaultHashMethod
			if user.Password, err = auth.HashPassword(user.HashMethod, updated.Password); err != nil {
				return trace.Wrap(err)
			}
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return trace.Wrap(err)
		}
		result = user
		return nil
	})
	return result, err
}

// RemoveUser deletes an account. Self-deletion is always denied, and a
// manager may only remove users they manage. The user is detached from every
// device and geo-fence owner set first; resources left without owners are
// cascade-deleted, and the user's interface state is purged.
func (s *Service) RemoveUser(ctx context.Context, caller *models.User, userID int64) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin, models.RoleManager},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		user, err := tx.Users().ByID(ctx, userID)
		if err != nil {
			return trace.Wrap(err)
		}
		if user.ID == caller.ID {
			return trace.BadParameter("cannot remove own account")
		}
		if !caller.Admin && user.ManagedBy != caller.ID {
			return trace.AccessDenied("user %q does not manage user %q", caller.Login, user.Login)
		}

		if err := tx.UIStates().DeleteByUser(ctx, user.ID); err != nil {
			return trace.Wrap(err)
		}

		deviceIDs, err := tx.Ownership().DevicesOf(ctx, user.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, deviceID := range deviceIDs {
			if err := tx.Ownership().RemoveDeviceOwner(ctx, deviceID, user.ID); err != nil {
				return trace.Wrap(err)
			}
			owners, err := tx.Ownership().DeviceOwners(ctx, deviceID)
			if err != nil {
				return trace.Wrap(err)
			}
			if len(owners) == 0 {
				device, err := tx.Devices().ByID(ctx, deviceID)
				if err != nil {
					return trace.Wrap(err)
				}
				if err := s.cascadeDeleteDevice(ctx, tx, device); err != nil {
					return trace.Wrap(err)
				}
			}
		}

		fenceIDs, err := tx.Ownership().GeoFencesOf(ctx, user.ID)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, fenceID := range fenceIDs {
			if err := tx.Ownership().RemoveGeoFenceOwner(ctx, fenceID, user.ID); err != nil {
				return trace.Wrap(err)
			}
			owners, err := tx.Ownership().GeoFenceOwners(ctx, fenceID)
			if err != nil {
				return trace.Wrap(err)
			}
			if len(owners) == 0 {
				if err := s.cascadeDeleteGeoFence(ctx, tx, fenceID); err != nil {
					return trace.Wrap(err)
				}
			}
		}

		return trace.Wrap(tx.Users().Delete(ctx, user.ID))
	})
}

// SaveRoles applies role assignments to the given users. The admin flag may
// only be changed by an admin caller.
func (s *Service) SaveRoles(ctx context.Context, caller *models.User, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin, models.RoleManager},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		for _, assignment := range users {
			user, err := tx.Users().ByID(ctx, assignment.ID)
			if err != nil {
				return trace.Wrap(err)
			}
			if caller.Admin {
				user.Admin = assignment.Admin
			}
			user.Manager = assignment.Manager
			user.ReadOnly = assignment.ReadOnly
			if err := tx.Users().Update(ctx, user); err != nil {
				return trace.Wrap(err)
			}
		}
		return nil
	})
}
