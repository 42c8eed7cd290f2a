package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("API_PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEMETRY_SOURCE", "")
	t.Setenv("STATION_TIMEZONE", "")
	t.Setenv("THINGSPEAK_RETRY_COUNT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, SourceThingSpeak, cfg.TelemetrySource)
	assert.Equal(t, "https://api.thingspeak.com", cfg.ThingSpeakBaseURL)
	assert.Equal(t, 7*24*time.Hour, cfg.FetchWindow)
	assert.Zero(t, cfg.ThingSpeakRetries)
	assert.Equal(t, "Africa/Tunis", cfg.Location.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("API_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/telemetry")
	t.Setenv("TELEMETRY_SOURCE", "Archive")
	t.Setenv("THINGSPEAK_BASE_URL", "http://proxy.local/")
	t.Setenv("THINGSPEAK_RETRY_COUNT", "2")
	t.Setenv("FETCH_WINDOW", "24h")
	t.Setenv("STATION_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, SourceArchive, cfg.TelemetrySource)
	assert.Equal(t, "http://proxy.local", cfg.ThingSpeakBaseURL)
	assert.Equal(t, 2, cfg.ThingSpeakRetries)
	assert.Equal(t, 24*time.Hour, cfg.FetchWindow)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":          {"PORT": "abc"},
		"source":        {"TELEMETRY_SOURCE": "kafka"},
		"archive no db": {"TELEMETRY_SOURCE": "archive", "DATABASE_URL": ""},
		"window":        {"FETCH_WINDOW": "200h"},
		"timeout":       {"THINGSPEAK_TIMEOUT": "soon"},
		"retries":       {"THINGSPEAK_RETRY_COUNT": "-1"},
		"timezone":      {"STATION_TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
