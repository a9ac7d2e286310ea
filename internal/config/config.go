// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Poller        PollerConfig       `mapstructure:"poller"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

// PollerConfig contains SNMP polling configuration
type PollerConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	MaxConcurrentPolls int           `mapstructure:"max_concurrent_polls"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	Retries            int           `mapstructure:"retries"`
}

// EngineConfig contains alert evaluation configuration
type EngineConfig struct {
	MaxConcurrentEvaluations int           `mapstructure:"max_concurrent_evaluations"`
	EvaluationTimeout        time.Duration `mapstructure:"evaluation_timeout"`
}

// NotificationConfig contains notification system configuration
type NotificationConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay       time.Duration `mapstructure:"max_retry_delay"`
	SMTP                SMTPConfig    `mapstructure:"smtp"`
}

// SMTPConfig contains the shared SMTP relay used by email channels
type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	UseTLS    bool   `mapstructure:"use_tls"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
	}

	viper.SetEnvPrefix("AUSPEX")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("AUSPEX_DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}
	if smtpPass := os.Getenv("AUSPEX_SMTP_PASSWORD"); smtpPass != "" {
		config.Notifications.SMTP.Password = smtpPass
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "auspex")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/auspex.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")
	viper.SetDefault("storage.retention_days", 30)

	// Poller defaults
	viper.SetDefault("poller.interval", "60s")
	viper.SetDefault("poller.max_concurrent_polls", 10)
	viper.SetDefault("poller.request_timeout", "2s")
	viper.SetDefault("poller.retries", 1)

	// Engine defaults
	viper.SetDefault("engine.max_concurrent_evaluations", 5)
	viper.SetDefault("engine.evaluation_timeout", "30s")

	// Notification defaults
	viper.SetDefault("notifications.enabled", true)
	viper.SetDefault("notifications.notification_timeout", "30s")
	viper.SetDefault("notifications.retry_attempts", 3)
	viper.SetDefault("notifications.retry_delay", "5s")
	viper.SetDefault("notifications.max_retry_delay", "30s")
	viper.SetDefault("notifications.smtp.host", "")
	viper.SetDefault("notifications.smtp.port", 587)
	viper.SetDefault("notifications.smtp.from_email", "auspex-alerts@localhost")
	viper.SetDefault("notifications.smtp.from_name", "Auspex Monitor")
	viper.SetDefault("notifications.smtp.use_tls", true)

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive")
	}
	if c.Poller.MaxConcurrentPolls <= 0 {
		return fmt.Errorf("poller max concurrent polls must be positive")
	}
	if c.Engine.MaxConcurrentEvaluations <= 0 {
		return fmt.Errorf("engine max concurrent evaluations must be positive")
	}
	if c.Notifications.RetryAttempts <= 0 {
		return fmt.Errorf("notification retry attempts must be positive")
	}
	return nil
}
