package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "rollcall", cfg.AppName)
	require.Equal(t, "http://127.0.0.1:8000/api", cfg.BaseURL)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	require.NotEmpty(t, cfg.CredentialsPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROLLCALL_API_BASE_URL", "https://attendance.example.edu/api/")
	t.Setenv("ROLLCALL_REQUEST_TIMEOUT", "30s")
	t.Setenv("ROLLCALL_CREDENTIALS_PATH", "/tmp/creds.json")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://attendance.example.edu/api/", cfg.BaseURL)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, "/tmp/creds.json", cfg.CredentialsPath)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("ROLLCALL_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestAPIURLJoins(t *testing.T) {
	cfg := Config{BaseURL: "https://example.edu/api/"}
	require.Equal(t, "https://example.edu/api/token/", cfg.APIURL("/token/"))
	require.Equal(t, "https://example.edu/api/attendance/", cfg.APIURL("attendance/"))
}
