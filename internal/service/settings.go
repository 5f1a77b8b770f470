package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

// GetApplicationSettings returns the application settings, persisting
// defaults on first read. Readable before authentication: the registration
// flag drives the login screen.
func (s *Service) GetApplicationSettings(ctx context.Context) (*models.ApplicationSettings, error) {
	var result *models.ApplicationSettings
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		settings, err := s.appSettings(ctx, tx)
		if err != nil {
			return trace.Wrap(err)
		}
		result = settings
		return nil
	})
	return result, err
}

// UpdateApplicationSettings replaces the application settings. Admin only.
func (s *Service) UpdateApplicationSettings(ctx context.Context, caller *models.User, settings models.ApplicationSettings) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.authorize(ctx, tx, caller, Guard{
			Roles: []models.Role{models.RoleAdmin},
			Write: true,
		}); err != nil {
			return trace.Wrap(err)
		}
		return trace.Wrap(tx.Settings().Put(ctx, &settings))
	})
}

// GetTrackerServerLog returns the last sizeKB kibibytes of the tracker
// server log. A missing log file is not an error: an explanatory message is
// returned instead.
func (s *Service) GetTrackerServerLog(ctx context.Context, caller *models.User, sizeKB int) (string, error) {
	err := s.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		return trace.Wrap(s.authorize(ctx, tx, caller, Guard{Roles: []models.Role{models.RoleAdmin}}))
	})
	if err != nil {
		return "", err
	}

	workDir := s.logDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return "", trace.Wrap(err)
		}
	}
	candidates := []string{
		filepath.Join(workDir, "logs", "tracker-server.log"),
		filepath.Join(filepath.Dir(workDir), "logs", "tracker-server.log"),
		filepath.Join(workDir, "tracker-server.log"),
	}
	for _, path := range candidates {
		tail, err := tailFile(path, int64(sizeKB)*1024)
		if err == nil {
			return tail, nil
		}
		if !os.IsNotExist(err) {
			return "", trace.Wrap(err)
		}
	}
	return fmt.Sprintf("Tracker server log is not available. Looked at %s",
		strings.Join(candidates, ", ")), nil
}

// tailFile reads up to maxBytes from the end of a file.
func tailFile(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	offset := size - maxBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", err
	}
	return string(buf), nil
}
