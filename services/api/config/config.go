package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort              = 8080
	defaultThingSpeakBaseURL = "https://api.thingspeak.com"
	defaultThingSpeakTimeout = 30 * time.Second
	defaultTimezone          = "Africa/Tunis"
	defaultFetchWindow       = 7 * 24 * time.Hour
	defaultFetchConcurrency  = 4
	defaultDeriveCacheSize   = 128
	defaultAlertLimit        = 200

	SourceThingSpeak = "thingspeak"
	SourceArchive    = "archive"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	Port        int
	BearerToken string
	// DatabaseURL is optional; without it the alert log is unavailable and
	// telemetry can only come from ThingSpeak.
	DatabaseURL  string
	ChannelsFile string

	TelemetrySource   string
	ThingSpeakBaseURL string
	ThingSpeakAPIKey  string
	ThingSpeakTimeout time.Duration
	// ThingSpeakRetries stays 0 unless set: no retry policy is assumed.
	ThingSpeakRetries int

	Timezone         string
	Location         *time.Location
	FetchWindow      time.Duration
	FetchConcurrency int
	DeriveCacheSize  int
	DefaultLimit     int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:              defaultPort,
		TelemetrySource:   SourceThingSpeak,
		ThingSpeakBaseURL: defaultThingSpeakBaseURL,
		ThingSpeakTimeout: defaultThingSpeakTimeout,
		Timezone:          defaultTimezone,
		FetchWindow:       defaultFetchWindow,
		FetchConcurrency:  defaultFetchConcurrency,
		DeriveCacheSize:   defaultDeriveCacheSize,
		DefaultLimit:      defaultAlertLimit,
		LogLevel:          "info",
		LogFormat:         "json",
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ChannelsFile = strings.TrimSpace(os.Getenv("CHANNELS_FILE"))
	cfg.ThingSpeakAPIKey = os.Getenv("THINGSPEAK_API_KEY")

	if v := strings.TrimSpace(os.Getenv("TELEMETRY_SOURCE")); v != "" {
		switch strings.ToLower(v) {
		case SourceThingSpeak, SourceArchive:
			cfg.TelemetrySource = strings.ToLower(v)
		default:
			return cfg, fmt.Errorf("invalid TELEMETRY_SOURCE: %s", v)
		}
	}
	if cfg.TelemetrySource == SourceArchive && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("TELEMETRY_SOURCE=%s requires DATABASE_URL", SourceArchive)
	}

	if v := strings.TrimSpace(os.Getenv("THINGSPEAK_BASE_URL")); v != "" {
		cfg.ThingSpeakBaseURL = strings.TrimRight(v, "/")
	}

	var err error
	if cfg.ThingSpeakTimeout, err = durationEnv("THINGSPEAK_TIMEOUT", cfg.ThingSpeakTimeout); err != nil {
		return cfg, err
	}
	if cfg.ThingSpeakRetries, err = intEnv("THINGSPEAK_RETRY_COUNT", 0, 0); err != nil {
		return cfg, err
	}
	if cfg.FetchWindow, err = durationEnv("FETCH_WINDOW", cfg.FetchWindow); err != nil {
		return cfg, err
	}
	if cfg.FetchWindow > defaultFetchWindow {
		return cfg, fmt.Errorf("invalid FETCH_WINDOW: %s exceeds %s", cfg.FetchWindow, defaultFetchWindow)
	}
	if cfg.FetchConcurrency, err = intEnv("FETCH_CONCURRENCY", cfg.FetchConcurrency, 1); err != nil {
		return cfg, err
	}
	if cfg.DeriveCacheSize, err = intEnv("DERIVE_CACHE_SIZE", cfg.DeriveCacheSize, 1); err != nil {
		return cfg, err
	}
	if cfg.DefaultLimit, err = intEnv("API_DEFAULT_LIMIT", cfg.DefaultLimit, 1); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("STATION_TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid STATION_TIMEZONE: %w", err)
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def, floor int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return def, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}
