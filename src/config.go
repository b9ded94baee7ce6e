package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the daemon configuration, read from the environment (and .env)
type Config struct {
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	RedisURL       string
	BackupRedisURL string

	DongleID           string
	DiagnosticDongleID string

	MetricsAddr         string
	LongitudinalControl bool
	Debug               bool
	PollTimeout         time.Duration

	MapsDir         string
	ReachabilityURL string
	UpdaterPattern  string
	RebootCommand   []string
}

// Diagnostic devices run update checks every minute
func (c Config) Diagnostic() bool {
	return c.DongleID != "" && c.DongleID == c.DiagnosticDongleID
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

// loadConfig reads the configuration. MQTT credentials are required.
func loadConfig() (Config, error) {
	cfg := Config{
		MQTTBroker:         getenv("MQTT_BROKER", "localhost"),
		MQTTUsername:       os.Getenv("MQTT_USERNAME"),
		MQTTPassword:       os.Getenv("MQTT_PASSWORD"),
		MQTTClientID:       getenv("MQTT_CLIENT_ID", "drivectl"),
		RedisURL:           getenv("REDIS_URL", "redis://localhost:6379/0"),
		DongleID:           os.Getenv("DONGLE_ID"),
		DiagnosticDongleID: os.Getenv("DIAGNOSTIC_DONGLE_ID"),
		MetricsAddr:        getenv("METRICS_ADDR", ":9102"),
		MapsDir:            getenv("MAPS_DIR", "/data/media/0/osm/offline"),
		ReachabilityURL:    getenv("REACHABILITY_URL", "https://github.com"),
		UpdaterPattern:     getenv("UPDATER_PATTERN", "system.updated.updated"),
		RebootCommand:      strings.Fields(getenv("REBOOT_COMMAND", "reboot")),
	}
	cfg.BackupRedisURL = getenv("BACKUP_REDIS_URL", cfg.RedisURL)

	if cfg.MQTTUsername == "" || cfg.MQTTPassword == "" {
		return Config{}, errors.New("MQTT_USERNAME and MQTT_PASSWORD must be set")
	}

	var err error
	if cfg.LongitudinalControl, err = getenvBool("LONGITUDINAL_CONTROL", true); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = getenvBool("DEBUG", false); err != nil {
		return Config{}, err
	}
	if cfg.PollTimeout, err = getenvDuration("POLL_TIMEOUT", 100*time.Millisecond); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
