package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "REGISTER"
	defaultHTTPAddress      = "127.0.0.1:8080"
	defaultDatabasePath     = "register.db"
	defaultDatabaseName     = "appointmentsDB"
	defaultDatabaseVersion  = 1
	defaultLogLevel         = "info"
	defaultBulkMaxParallel  = 4
	defaultHeartbeatSeconds = 15
	maxBulkParallel         = 64
)

// AppConfig captures runtime configuration for the register.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	DatabaseName      string
	DatabaseVersion   int
	LogLevel          string
	BulkMaxParallel   int
	HeartbeatInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.name", defaultDatabaseName)
	configViper.SetDefault("database.version", defaultDatabaseVersion)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("bulk.max_parallel", defaultBulkMaxParallel)
	configViper.SetDefault("stream.heartbeat_seconds", defaultHeartbeatSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseName:      configViper.GetString("database.name"),
		DatabaseVersion:   configViper.GetInt("database.version"),
		LogLevel:          configViper.GetString("log.level"),
		BulkMaxParallel:   configViper.GetInt("bulk.max_parallel"),
		HeartbeatInterval: time.Duration(configViper.GetInt("stream.heartbeat_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.DatabaseVersion <= 0 {
		return fmt.Errorf("database.version must be positive, got %d", c.DatabaseVersion)
	}
	if c.BulkMaxParallel <= 0 || c.BulkMaxParallel > maxBulkParallel {
		return fmt.Errorf("bulk.max_parallel must be between 1 and %d, got %d", maxBulkParallel, c.BulkMaxParallel)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_seconds must be positive")
	}
	return nil
}
