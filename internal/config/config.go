package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Device source kinds
const (
	SourceMock  = "mock"
	SourceMQTT  = "mqtt"
	SourceCloud = "cloud"
)

// Preference backends
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DatabaseConfig PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig broker settings
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// DeviceConfig selects and tunes the telemetry source.
type DeviceConfig struct {
	Source   string // mock, mqtt, cloud
	ID       string
	Platform string // auto, ios, android

	// SyncMode is "accumulate" or "replace"; empty picks the source default.
	SyncMode string

	ConnectTimeout time.Duration
	SyncTimeout    time.Duration
	QueueTimeout   time.Duration

	MockConnectDelay time.Duration
	MockSyncDelay    time.Duration

	MQTTTopicPrefix   string
	MQTTReadingMaxAge time.Duration

	CloudAPIURL   string
	CloudAPIToken string
}

// Config wearable-sync service configuration
type Config struct {
	ServiceName string

	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	Device DeviceConfig

	Events struct {
		Enabled bool
		Stream  string
		Source  string
	}

	Preferences struct {
		Backend string
	}

	Activity struct {
		StepsGoal        int
		BaselineSteps    int
		BaselineCalories int
	}

	Nutrition struct {
		CalorieGoal int
		ProteinGoal int
		CarbsGoal   int
		FatGoal     int
	}

	Progress struct {
		// InitialWeights earlier weekly weigh-ins, oldest first
		InitialWeights []float64
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServiceName = getEnv("SERVICE_NAME", "wearable-sync")
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wearable")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 5)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 2)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wearable-sync")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Device.Source = getEnv("DEVICE_SOURCE", SourceMock)
	cfg.Device.ID = getEnv("DEVICE_ID", "watch-1")
	cfg.Device.Platform = getEnv("DEVICE_PLATFORM", "auto")
	cfg.Device.SyncMode = getEnv("SYNC_MODE", "")
	cfg.Device.ConnectTimeout = getEnvDuration("CONNECT_TIMEOUT", 10*time.Second)
	cfg.Device.SyncTimeout = getEnvDuration("SYNC_TIMEOUT", 10*time.Second)
	cfg.Device.QueueTimeout = getEnvDuration("QUEUE_TIMEOUT", 30*time.Second)
	cfg.Device.MockConnectDelay = getEnvDuration("MOCK_CONNECT_DELAY", 1500*time.Millisecond)
	cfg.Device.MockSyncDelay = getEnvDuration("MOCK_SYNC_DELAY", time.Second)
	cfg.Device.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "wearable")
	cfg.Device.MQTTReadingMaxAge = getEnvDuration("MQTT_READING_MAX_AGE", 30*time.Second)
	cfg.Device.CloudAPIURL = getEnv("CLOUD_API_URL", "")
	cfg.Device.CloudAPIToken = getEnv("CLOUD_API_TOKEN", "")

	cfg.Events.Enabled = getEnv("EVENTS_ENABLED", "false") == "true"
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "wearable:telemetry:stream")
	cfg.Events.Source = getEnv("EVENTS_SOURCE", "wearable-sync")

	cfg.Preferences.Backend = getEnv("PREFERENCES_BACKEND", BackendMemory)

	cfg.Activity.StepsGoal = getEnvInt("ACTIVITY_STEPS_GOAL", 10000)
	cfg.Activity.BaselineSteps = getEnvInt("ACTIVITY_BASELINE_STEPS", 8547)
	cfg.Activity.BaselineCalories = getEnvInt("ACTIVITY_BASELINE_CALORIES", 430)

	cfg.Nutrition.CalorieGoal = getEnvInt("NUTRITION_CALORIE_GOAL", 2000)
	cfg.Nutrition.ProteinGoal = getEnvInt("NUTRITION_PROTEIN_GOAL", 150)
	cfg.Nutrition.CarbsGoal = getEnvInt("NUTRITION_CARBS_GOAL", 250)
	cfg.Nutrition.FatGoal = getEnvInt("NUTRITION_FAT_GOAL", 65)

	weights, err := getEnvFloats("WEIGHT_HISTORY")
	if err != nil {
		return nil, err
	}
	cfg.Progress.InitialWeights = weights

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Device.Source {
	case SourceMock, SourceMQTT, SourceCloud:
	default:
		return fmt.Errorf("unknown DEVICE_SOURCE %q", c.Device.Source)
	}
	switch c.Device.Platform {
	case "auto", "ios", "android":
	default:
		return fmt.Errorf("unknown DEVICE_PLATFORM %q", c.Device.Platform)
	}
	switch c.Device.SyncMode {
	case "", "accumulate", "replace":
	default:
		return fmt.Errorf("unknown SYNC_MODE %q", c.Device.SyncMode)
	}
	switch c.Preferences.Backend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown PREFERENCES_BACKEND %q", c.Preferences.Backend)
	}
	if c.Device.Source == SourceCloud && c.Device.CloudAPIURL == "" {
		return fmt.Errorf("CLOUD_API_URL is required for the cloud source")
	}
	if c.Activity.StepsGoal <= 0 {
		return fmt.Errorf("ACTIVITY_STEPS_GOAL must be positive")
	}
	if c.Activity.BaselineSteps < 0 || c.Activity.BaselineCalories < 0 {
		return fmt.Errorf("activity baseline must not be negative")
	}
	if c.Nutrition.CalorieGoal <= 0 || c.Nutrition.ProteinGoal <= 0 || c.Nutrition.CarbsGoal <= 0 || c.Nutrition.FatGoal <= 0 {
		return fmt.Errorf("nutrition goals must be positive")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Events.Enabled || c.Preferences.Backend == BackendRedis
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("1500ms") or bare milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvFloats parses a comma-separated list such as "180,178.5".
func getEnvFloats(key string) ([]float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, p, err)
		}
		out = append(out, f)
	}
	return out, nil
}
