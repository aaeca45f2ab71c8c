package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string `validate:"oneof=development production"`
	Port int    `validate:"min=1,max=65535"`

	Log          LogConfig
	CORS         CORSConfig
	Telegram     TelegramConfig
	Capture      CaptureConfig
	Location     LocationConfig
	Connectivity ConnectivityConfig
	Sync         SyncConfig
	Journal      JournalConfig
	Identity     IdentityConfig
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

type CORSConfig struct {
	AllowedOrigins []string
}

// TelegramConfig carries the bot credentials for the delivery channel.
type TelegramConfig struct {
	Token string
}

// CaptureConfig governs the startup capture burst and the camera helper.
type CaptureConfig struct {
	Dir           string `validate:"required"`
	BurstCount    int    `validate:"min=1,max=20"`
	WarmupDelay   time.Duration
	CameraCommand []string `validate:"min=1"`
	CameraTimeout time.Duration
}

// LocationConfig configures the ordered location strategies.
type LocationConfig struct {
	DeviceCommand   []string
	DeviceTimeout   time.Duration
	WifiScanCommand []string
	WifiGeolocate   string `validate:"omitempty,url"`
	WifiTimeout     time.Duration
	IPLookupURL     string `validate:"omitempty,url"`
	IPTimeout       time.Duration
}

// ConnectivityConfig configures the reachability probe and the startup wait.
type ConnectivityConfig struct {
	ProbeURL        string `validate:"required,url"`
	ProbeTimeout    time.Duration
	StartupAttempts int `validate:"min=1"`
	StartupInterval time.Duration
}

// SyncConfig tunes the drain engine.
type SyncConfig struct {
	DeliveryTimeout  time.Duration
	PeriodicInterval time.Duration
}

// JournalConfig controls the SQLite delivery journal.
type JournalConfig struct {
	Enabled bool
	Path    string
}

// IdentityConfig locates the persisted recipient record. AdminChatID, when
// non-zero, pre-seeds the recipient without the registration flow.
type IdentityConfig struct {
	File        string
	AdminChatID int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Telegram = TelegramConfig{Token: v.GetString("TELEGRAM_BOT_TOKEN")}

	cfg.Capture = CaptureConfig{
		Dir:           v.GetString("CAPTURE_DIR"),
		BurstCount:    v.GetInt("CAPTURE_BURST_COUNT"),
		WarmupDelay:   parseDuration(v.GetString("CAPTURE_WARMUP_DELAY"), 2*time.Second),
		CameraCommand: splitCommand(v.GetString("CAMERA_COMMAND")),
		CameraTimeout: parseDuration(v.GetString("CAMERA_TIMEOUT"), 15*time.Second),
	}

	cfg.Location = LocationConfig{
		DeviceCommand:   splitCommand(v.GetString("LOCATION_DEVICE_COMMAND")),
		DeviceTimeout:   parseDuration(v.GetString("LOCATION_DEVICE_TIMEOUT"), 40*time.Second),
		WifiScanCommand: splitCommand(v.GetString("LOCATION_WIFI_SCAN_COMMAND")),
		WifiGeolocate:   v.GetString("LOCATION_WIFI_GEOLOCATE_URL"),
		WifiTimeout:     parseDuration(v.GetString("LOCATION_WIFI_TIMEOUT"), 10*time.Second),
		IPLookupURL:     v.GetString("LOCATION_IP_LOOKUP_URL"),
		IPTimeout:       parseDuration(v.GetString("LOCATION_IP_TIMEOUT"), 10*time.Second),
	}

	cfg.Connectivity = ConnectivityConfig{
		ProbeURL:        v.GetString("CONNECTIVITY_PROBE_URL"),
		ProbeTimeout:    parseDuration(v.GetString("CONNECTIVITY_PROBE_TIMEOUT"), 5*time.Second),
		StartupAttempts: v.GetInt("CONNECTIVITY_STARTUP_ATTEMPTS"),
		StartupInterval: parseDuration(v.GetString("CONNECTIVITY_STARTUP_INTERVAL"), 2*time.Second),
	}

	cfg.Sync = SyncConfig{
		DeliveryTimeout:  parseDuration(v.GetString("SYNC_DELIVERY_TIMEOUT"), 30*time.Second),
		PeriodicInterval: parseDuration(v.GetString("SYNC_PERIODIC_INTERVAL"), 5*time.Minute),
	}

	cfg.Journal = JournalConfig{
		Enabled: v.GetBool("JOURNAL_ENABLED"),
		Path:    v.GetString("JOURNAL_PATH"),
	}

	cfg.Identity = IdentityConfig{
		File:        v.GetString("IDENTITY_FILE"),
		AdminChatID: v.GetInt64("ADMIN_CHAT_ID"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8750)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")

	v.SetDefault("CAPTURE_DIR", "./captures")
	v.SetDefault("CAPTURE_BURST_COUNT", 3)
	v.SetDefault("CAPTURE_WARMUP_DELAY", "2s")
	v.SetDefault("CAMERA_COMMAND", "fswebcam --no-banner -r 1280x720 --jpeg 90 -")
	v.SetDefault("CAMERA_TIMEOUT", "15s")

	v.SetDefault("LOCATION_DEVICE_COMMAND", "")
	v.SetDefault("LOCATION_DEVICE_TIMEOUT", "40s")
	v.SetDefault("LOCATION_WIFI_SCAN_COMMAND", "")
	v.SetDefault("LOCATION_WIFI_GEOLOCATE_URL", "")
	v.SetDefault("LOCATION_WIFI_TIMEOUT", "10s")
	v.SetDefault("LOCATION_IP_LOOKUP_URL", "http://ip-api.com/json/")
	v.SetDefault("LOCATION_IP_TIMEOUT", "10s")

	v.SetDefault("CONNECTIVITY_PROBE_URL", "https://api.telegram.org")
	v.SetDefault("CONNECTIVITY_PROBE_TIMEOUT", "5s")
	v.SetDefault("CONNECTIVITY_STARTUP_ATTEMPTS", 30)
	v.SetDefault("CONNECTIVITY_STARTUP_INTERVAL", "2s")

	v.SetDefault("SYNC_DELIVERY_TIMEOUT", "30s")
	v.SetDefault("SYNC_PERIODIC_INTERVAL", "5m")

	v.SetDefault("JOURNAL_ENABLED", true)
	v.SetDefault("JOURNAL_PATH", "./deliveries.db")

	v.SetDefault("IDENTITY_FILE", "./admin.json")
	v.SetDefault("ADMIN_CHAT_ID", 0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// splitCommand breaks a helper command line into argv. Whitespace splitting
// only; helper commands needing shell quoting should be wrapped in a script.
func splitCommand(raw string) []string {
	return strings.Fields(raw)
}
