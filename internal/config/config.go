package config

import (
	"fmt"
	"strings"
	"time"
	// zone database for hosts without one
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultYieldServiceURL = "https://yield-1.onrender.com/predict/field-analysis"
	defaultTimezone        = "Asia/Kolkata"

	// YieldDisabled as YIELD_SERVICE_URL turns yield predictions off.
	YieldDisabled = "off"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type StorageConfig struct {
	KeyPrefix string
}

type YieldConfig struct {
	ServiceURL string
	// Timeout of zero leaves the transport default in place.
	Timeout time.Duration
}

type ShareConfig struct {
	Secret string
	TTL    time.Duration
}

type WalkConfig struct {
	// SessionTTL is how long a walk session may go without samples before
	// it is discarded.
	SessionTTL  time.Duration
	MaxSessions int
}

type Config struct {
	Environment string
	LogLevel    string
	Timezone    string
	// Location is Timezone resolved by Load.
	Location *time.Location
	HTTP        HTTPConfig
	DB          DBConfig
	Storage     StorageConfig
	Yield       YieldConfig
	Share       ShareConfig
	Walk        WalkConfig
}

func Load() (*Config, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Timezone:    v.GetString("APP_TIMEZONE"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Storage: StorageConfig{
			KeyPrefix: v.GetString("STORAGE_KEY_PREFIX"),
		},
		Yield: YieldConfig{
			ServiceURL: v.GetString("YIELD_SERVICE_URL"),
			Timeout:    v.GetDuration("YIELD_TIMEOUT"),
		},
		Share: ShareConfig{
			Secret: v.GetString("SHARE_SECRET"),
			TTL:    v.GetDuration("SHARE_TTL"),
		},
		Walk: WalkConfig{
			SessionTTL:  v.GetDuration("WALK_SESSION_TTL"),
			MaxSessions: v.GetInt("WALK_MAX_SESSIONS"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverSQLite
	}
	if cfg.DB.DSN == "" && cfg.DB.Driver == DriverSQLite {
		cfg.DB.DSN = "field-service.db"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "soilsaathi_"
	}
	switch {
	case cfg.Yield.ServiceURL == "":
		cfg.Yield.ServiceURL = defaultYieldServiceURL
	case strings.EqualFold(cfg.Yield.ServiceURL, YieldDisabled):
		cfg.Yield.ServiceURL = ""
	}
	if cfg.Share.TTL == 0 {
		cfg.Share.TTL = 7 * 24 * time.Hour
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.Walk.SessionTTL == 0 {
		cfg.Walk.SessionTTL = 30 * time.Minute
	}
	if cfg.Walk.MaxSessions == 0 {
		cfg.Walk.MaxSessions = 1000
	}
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Share.TTL < 0 {
		return fmt.Errorf("SHARE_TTL must be positive")
	}
	if cfg.Walk.SessionTTL < 0 {
		return fmt.Errorf("WALK_SESSION_TTL must be positive")
	}
	if cfg.Walk.MaxSessions < 0 {
		return fmt.Errorf("WALK_MAX_SESSIONS must be positive")
	}
	return nil
}
