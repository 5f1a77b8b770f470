package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackd/internal/models"
)

func TestGetApplicationSettings_DefaultsPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, err := f.svc.GetApplicationSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.RegistrationEnabled)
	assert.Equal(t, "bcrypt", settings.DefaultHashMethod)
	assert.Equal(t, 15000, settings.UpdateInterval)

	// The defaults were written, not just returned.
	again, err := f.svc.GetApplicationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, again)
}

func TestUpdateApplicationSettings_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings := models.DefaultApplicationSettings()
	settings.UpdateInterval = 30000

	err := f.svc.UpdateApplicationSettings(ctx, f.manager, settings)
	assert.True(t, trace.IsAccessDenied(err))

	require.NoError(t, f.svc.UpdateApplicationSettings(ctx, f.admin, settings))
	stored, err := f.svc.GetApplicationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30000, stored.UpdateInterval)
}

func TestGetTrackerServerLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "tracker-server.log"),
		[]byte("line one\nline two\n"), 0o644))

	f := newFixture(t, WithLogDir(dir))

	tail, err := f.svc.GetTrackerServerLog(context.Background(), f.admin, 1)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", tail)
}

func TestGetTrackerServerLog_Truncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	content := strings.Repeat("x", 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "tracker-server.log"),
		[]byte(content), 0o644))

	f := newFixture(t, WithLogDir(dir))

	tail, err := f.svc.GetTrackerServerLog(context.Background(), f.admin, 1)
	require.NoError(t, err)
	assert.Len(t, tail, 1024)
}

func TestGetTrackerServerLog_Missing(t *testing.T) {
	f := newFixture(t, WithLogDir(t.TempDir()))

	tail, err := f.svc.GetTrackerServerLog(context.Background(), f.admin, 1)
	require.NoError(t, err)
	assert.Contains(t, tail, "Tracker server log is not available")
}

func TestGetTrackerServerLog_AdminOnly(t *testing.T) {
	f := newFixture(t, WithLogDir(t.TempDir()))

	_, err := f.svc.GetTrackerServerLog(context.Background(), f.plain, 1)
	assert.True(t, trace.IsAccessDenied(err))
}
