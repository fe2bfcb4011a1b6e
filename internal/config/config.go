// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPaths are searched in order for config.yaml
var DefaultConfigPaths = []string{"./config", ".", "/etc/adcp-service"}

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Projector  ProjectorConfig  `mapstructure:"projector"`
	SNMP       SNMPConfig       `mapstructure:"snmp"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Operations OperationsConfig `mapstructure:"operations"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	App        AppConfig        `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ProjectorConfig is the ADCP session to the projector
type ProjectorConfig struct {
	Name           string        `mapstructure:"name"`
	Model          string        `mapstructure:"model"`
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	UseAuth        bool          `mapstructure:"use_auth"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
	Markers        MarkersConfig `mapstructure:"markers"`
}

// MarkersConfig overrides the login banner substrings. Empty values keep
// the firmware defaults.
type MarkersConfig struct {
	PasswordPrompt string `mapstructure:"password_prompt"`
	Success        string `mapstructure:"success"`
	Failure        string `mapstructure:"failure"`
	Prompt         string `mapstructure:"prompt"`
}

// SNMPConfig represents the read-only status poller
type SNMPConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Host      string            `mapstructure:"host"`
	Port      int               `mapstructure:"port"`
	Community string            `mapstructure:"community"`
	Version   string            `mapstructure:"version"`
	Interval  time.Duration     `mapstructure:"interval"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Retries   int               `mapstructure:"retries"`
	OIDs      map[string]string `mapstructure:"oids"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

// OperationsConfig controls the operation history
type OperationsConfig struct {
	HistorySize     int           `mapstructure:"history_size"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from config.yaml and ADCP_SERVICE_* environment
// variables. paths replaces the default search path when given. A missing
// config file is not an error; defaults and the environment still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = DefaultConfigPaths
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	// Environment variable support
	v.SetEnvPrefix("ADCP_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.SNMP.Host == "" {
		config.SNMP.Host = config.Projector.Host
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Projector defaults
	v.SetDefault("projector.name", "Sony Projector")
	v.SetDefault("projector.model", "VPL-XW5000ES")
	v.SetDefault("projector.host", "")
	v.SetDefault("projector.port", 53484)
	v.SetDefault("projector.username", "")
	v.SetDefault("projector.password", "")
	v.SetDefault("projector.use_auth", true)
	v.SetDefault("projector.connect_timeout", "5s")
	v.SetDefault("projector.command_timeout", "5s")
	v.SetDefault("projector.write_timeout", "5s")
	v.SetDefault("projector.keep_alive", true)
	v.SetDefault("projector.markers.password_prompt", "")
	v.SetDefault("projector.markers.success", "")
	v.SetDefault("projector.markers.failure", "")
	v.SetDefault("projector.markers.prompt", "")

	// SNMP defaults
	v.SetDefault("snmp.enabled", false)
	v.SetDefault("snmp.host", "")
	v.SetDefault("snmp.port", 161)
	v.SetDefault("snmp.community", "public")
	v.SetDefault("snmp.version", "2c")
	v.SetDefault("snmp.interval", "60s")
	v.SetDefault("snmp.timeout", "5s")
	v.SetDefault("snmp.retries", 1)
	v.SetDefault("snmp.oids", map[string]string{
		"sys_descr":  "1.3.6.1.2.1.1.1.0",
		"sys_uptime": "1.3.6.1.2.1.1.3.0",
		"sys_name":   "1.3.6.1.2.1.1.5.0",
	})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "adcp_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", true)

	// Operation history defaults
	v.SetDefault("operations.history_size", 500)
	v.SetDefault("operations.retention", "720h")
	v.SetDefault("operations.cleanup_interval", "1h")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "adcp-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Basic validation
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Projector.Host == "" {
		return fmt.Errorf("projector.host is required")
	}
	if config.Projector.Port <= 0 || config.Projector.Port > 65535 {
		return fmt.Errorf("projector.port must be between 1 and 65535")
	}
	if config.Projector.UseAuth && config.Projector.Username == "" {
		return fmt.Errorf("projector.username is required when projector.use_auth is set")
	}
	for _, markerValue := range []string{
		config.Projector.Markers.PasswordPrompt,
		config.Projector.Markers.Success,
		config.Projector.Markers.Failure,
		config.Projector.Markers.Prompt,
	} {
		if strings.TrimSpace(markerValue) == "" && markerValue != "" {
			return fmt.Errorf("projector.markers must not be blank")
		}
	}
	if config.Projector.ConnectTimeout <= 0 || config.Projector.CommandTimeout <= 0 {
		return fmt.Errorf("projector timeouts must be positive")
	}

	if config.SNMP.Enabled {
		if config.SNMP.Version != "1" && config.SNMP.Version != "2c" {
			return fmt.Errorf("snmp.version must be one of: [1 2c]")
		}
		if len(config.SNMP.OIDs) == 0 {
			return fmt.Errorf("snmp.oids must not be empty")
		}
		if config.SNMP.Interval <= 0 {
			return fmt.Errorf("snmp.interval must be positive")
		}
		if config.SNMP.Port <= 0 || config.SNMP.Port > 65535 {
			return fmt.Errorf("snmp.port must be between 1 and 65535")
		}
	}

	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Operations.HistorySize <= 0 {
		return fmt.Errorf("operations.history_size must be positive")
	}
	if config.Operations.CleanupInterval <= 0 {
		return fmt.Errorf("operations.cleanup_interval must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns the lib/pq connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
