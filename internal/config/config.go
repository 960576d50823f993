package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the base server configuration.
type Config struct {
	Host                     string
	Port                     string
	SQLiteDBPath             string
	NodeEnv                  string
	AllowTestMode            bool
	JWTSecret                string
	JWTAccessTokenExpirySec  int
	JWTRefreshTokenExpirySec int
	PairingCodeTTLSec        int

	// DevicesFile is the YAML file listing the devices to connect to.
	DevicesFile string
	Devices     []DeviceConfig
	// PresetDir holds one preset file per device.
	PresetDir string

	SoundTouchWSPort   int
	ReconnectMinMs     int
	ReconnectMaxMs     int
	PollSchedule       string
	StateCacheTTLSec   int
	AuditRetentionDays int
	AuditPruneSchedule string

	MQTT MQTTConfig

	LogLevel  string
	LogFormat string
}

// MQTTConfig configures the optional property mirror.
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

// IsDevelopment reports whether the server runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.NodeEnv == "development"
}

// Load reads configuration from environment variables with defaults, then
// the device list from DevicesFile when it exists.
func Load() (Config, error) {
	cfg := Config{
		Host:                     envString("HOST", "0.0.0.0"),
		Port:                     envString("PORT", "9000"),
		SQLiteDBPath:             envString("SQLITE_DB_PATH", "./data/soundtouch-hub.db"),
		NodeEnv:                  envString("NODE_ENV", "development"),
		AllowTestMode:            envBool("ALLOW_TEST_MODE", false),
		JWTSecret:                envString("JWT_SECRET", ""),
		JWTAccessTokenExpirySec:  envInt("JWT_ACCESS_TOKEN_EXPIRY", 3600),
		JWTRefreshTokenExpirySec: envInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000),
		PairingCodeTTLSec:        envInt("PAIRING_CODE_TTL_SECONDS", 300),
		DevicesFile:              envString("DEVICES_FILE", "./data/devices.yaml"),
		PresetDir:                envString("PRESET_DIR", "./data/presets"),
		SoundTouchWSPort:         envInt("SOUNDTOUCH_WS_PORT", 8080),
		ReconnectMinMs:           envInt("RECONNECT_MIN_MS", 1000),
		ReconnectMaxMs:           envInt("RECONNECT_MAX_MS", 60000),
		PollSchedule:             envString("POLL_SCHEDULE", "@every 5m"),
		StateCacheTTLSec:         envInt("STATE_CACHE_TTL_SECONDS", 0),
		AuditRetentionDays:       envInt("AUDIT_RETENTION_DAYS", 30),
		AuditPruneSchedule:       envString("AUDIT_PRUNE_SCHEDULE", "@daily"),
		MQTT: MQTTConfig{
			Enabled:     envBool("MQTT_ENABLED", false),
			Broker:      envString("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID:    envString("MQTT_CLIENT_ID", "soundtouch-hub"),
			Username:    envString("MQTT_USERNAME", ""),
			Password:    envString("MQTT_PASSWORD", ""),
			TopicPrefix: envString("MQTT_TOPIC_PREFIX", "soundtouch"),
			QoS:         envInt("MQTT_QOS", 1),
		},
		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", ""),
	}

	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.ReconnectMinMs <= 0 || cfg.ReconnectMaxMs < cfg.ReconnectMinMs {
		return Config{}, fmt.Errorf("RECONNECT_MIN_MS must be positive and not above RECONNECT_MAX_MS")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return Config{}, fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}

	devices, err := LoadDevices(cfg.DevicesFile)
	if err != nil {
		return Config{}, err
	}
	extra, err := ParseDeviceList(envCSV("DEVICES"))
	if err != nil {
		return Config{}, err
	}
	cfg.Devices = MergeDevices(devices, extra)
	return cfg, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
