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
	defaultThingSpeakBaseURL = "https://api.thingspeak.com"
	defaultRequestTimeout    = 30 * time.Second
	defaultPollInterval      = 2 * time.Minute
	defaultRecentResults     = 10
	defaultConcurrency       = 4
	defaultTimezone          = "Africa/Tunis"
	defaultAlertStream       = "station:alerts"
	defaultMQTTTopicPrefix   = "stations/alerts"
	defaultSMTPPort          = 587

	SinkLog   = "log"
	SinkSMTP  = "smtp"
	SinkRedis = "redis"
	SinkMQTT  = "mqtt"
)

// Config holds runtime configuration for the watcher service.
type Config struct {
	// DatabaseURL is optional; without it nothing is archived.
	DatabaseURL  string
	ChannelsFile string

	ThingSpeakBaseURL string
	ThingSpeakAPIKey  string
	RequestTimeout    time.Duration
	RetryCount        int

	Timezone string
	Location *time.Location

	// PollInterval is also the overflow duration increment.
	PollInterval  time.Duration
	RecentResults int
	Concurrency   int
	MinInterval   time.Duration
	ValueEpsilon  float64
	DryRun        bool
	Once          bool

	Sinks []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AlertStream   string

	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		ThingSpeakBaseURL: defaultThingSpeakBaseURL,
		Timezone:          defaultTimezone,
		AlertStream:       defaultAlertStream,
		MQTTTopicPrefix:   defaultMQTTTopicPrefix,
		MQTTClientID:      "station-watcher",
		LogLevel:          "info",
		LogFormat:         "json",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ChannelsFile = strings.TrimSpace(os.Getenv("CHANNELS_FILE"))
	cfg.ThingSpeakAPIKey = os.Getenv("THINGSPEAK_API_KEY")

	if v := strings.TrimSpace(os.Getenv("THINGSPEAK_BASE_URL")); v != "" {
		cfg.ThingSpeakBaseURL = strings.TrimRight(v, "/")
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("THINGSPEAK_TIMEOUT", defaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.RetryCount, err = intEnv("THINGSPEAK_RETRY_COUNT", 0, 0); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = durationEnv("WATCHER_POLL_INTERVAL", defaultPollInterval); err != nil {
		return cfg, err
	}
	if cfg.RecentResults, err = intEnv("WATCHER_RECENT_RESULTS", defaultRecentResults, 1); err != nil {
		return cfg, err
	}
	if cfg.Concurrency, err = intEnv("WATCHER_CONCURRENCY", defaultConcurrency, 1); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_MIN_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_MIN_INTERVAL: %w", err)
		}
		cfg.MinInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_VALUE_EPSILON")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_VALUE_EPSILON: %w", err)
		}
		cfg.ValueEpsilon = f
	}

	if v := strings.TrimSpace(os.Getenv("STATION_TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid STATION_TIMEZONE: %w", err)
	}

	cfg.Sinks = []string{SinkLog}
	if v := strings.TrimSpace(os.Getenv("NOTIFY_SINKS")); v != "" {
		cfg.Sinks = nil
		for _, s := range strings.Split(v, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			switch s {
			case "":
				continue
			case SinkLog, SinkSMTP, SinkRedis, SinkMQTT:
				cfg.Sinks = append(cfg.Sinks, s)
			default:
				return cfg, fmt.Errorf("invalid NOTIFY_SINKS entry: %s", s)
			}
		}
	}

	cfg.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if cfg.SMTPPort, err = intEnv("SMTP_PORT", defaultSMTPPort, 1); err != nil {
		return cfg, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0, 0); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(os.Getenv("ALERT_STREAM")); v != "" {
		cfg.AlertStream = v
	}

	cfg.MQTTBroker = strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if v := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID")); v != "" {
		cfg.MQTTClientID = v
	}
	cfg.MQTTUsername = os.Getenv("MQTT_USERNAME")
	cfg.MQTTPassword = os.Getenv("MQTT_PASSWORD")
	if v := strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")); v != "" {
		cfg.MQTTTopicPrefix = v
	}

	for _, s := range cfg.Sinks {
		switch {
		case s == SinkSMTP && (cfg.SMTPHost == "" || cfg.SMTPFrom == ""):
			return cfg, fmt.Errorf("sink %s requires SMTP_HOST and SMTP_FROM", s)
		case s == SinkRedis && cfg.RedisAddr == "":
			return cfg, fmt.Errorf("sink %s requires REDIS_ADDR", s)
		case s == SinkMQTT && cfg.MQTTBroker == "":
			return cfg, fmt.Errorf("sink %s requires MQTT_BROKER", s)
		}
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")
	once := strings.TrimSpace(os.Getenv("WATCHER_ONCE"))
	cfg.Once = once == "1" || strings.EqualFold(once, "true")

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg, nil
}

// HasSink reports whether name is among the configured sinks.
func (c Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
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
