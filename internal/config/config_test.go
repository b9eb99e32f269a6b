package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/club-booking-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("CLUB_API_BASE_URL", "")
	t.Setenv("MIN_REFRESH_INTERVAL", "")
	t.Setenv("SESSION_BACKEND", "")

	c := config.New()
	require.Equal(t, "http://localhost:5000/api", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Minute, c.GetMinRefreshInterval())
	require.Equal(t, config.SessionBackendFile, c.GetSessionBackend())
	require.Equal(t, 8, c.GetStatusLookupConcurrency())
}

func TestOverrides(t *testing.T) {
	t.Setenv("CLUB_API_BASE_URL", "https://club.example.com/api/")
	t.Setenv("MIN_REFRESH_INTERVAL", "90s")
	t.Setenv("STATUS_LOOKUP_CONCURRENCY", "2")
	t.Setenv("PERIODIC_REFRESH_INTERVAL", "not-a-duration")

	c := config.New()
	require.Equal(t, "https://club.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 90*time.Second, c.GetMinRefreshInterval())
	require.Equal(t, 2, c.GetStatusLookupConcurrency())
	require.Equal(t, 30*time.Minute, c.GetPeriodicRefreshInterval())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=Street Dance Club\n"), 0o600))
	t.Setenv("APP_NAME", "")
	os.Unsetenv("APP_NAME")

	config.LoadDotEnv(path)
	require.Equal(t, "Street Dance Club", config.New().GetAppName())
}
