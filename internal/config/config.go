// Package config provides configuration management for the arXiv collector.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the collector reads.
const EnvPrefix = "ARXIVCOL"

// appName names the per-user config and data directories.
const appName = "arxiv-collector"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// DefaultCategories is the taxonomy slice collected when none is configured.
var DefaultCategories = []string{"math.DG", "math.SG", "math-ph", "math.AG", "math.QA", "math.RT"}

// Config holds all configuration for the collector.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database selects and configures the record store.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// ArXiv contains remote API settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// Collector contains harvesting settings.
	Collector CollectorConfig `mapstructure:"collector"`
	// Query contains read-side limits.
	Query QueryConfig `mapstructure:"query"`
	// Kafka contains fetch event publishing settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds store configuration for both drivers.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `mapstructure:"driver"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is loaded from ARXIVCOL_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationAutoRun applies the embedded schema on startup (default: true).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// ArXivConfig holds remote API settings.
type ArXivConfig struct {
	// BaseURL is the export API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds one request attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// MinInterval is the token-bucket spacing between requests.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// MaxRetries is the number of retries on 429 and 5xx. Zero issues
	// exactly one request per page.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the delay between retries without Retry-After.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
}

// CollectorConfig holds harvesting settings.
type CollectorConfig struct {
	// Categories is the ordered taxonomy slice to collect.
	Categories []string `mapstructure:"categories"`
	// UpdateDays is the default incremental look-back.
	UpdateDays int `mapstructure:"update_days"`
	// UpdatePageSize bounds the single page requested per category on update.
	UpdatePageSize int `mapstructure:"update_page_size"`
	// BackfillStartYear is the default first year of a backfill.
	BackfillStartYear int `mapstructure:"backfill_start_year"`
	// BackfillPageSize bounds the page requested per category and year.
	BackfillPageSize int `mapstructure:"backfill_page_size"`
	// CategoryDelay follows every category request, failed or not.
	CategoryDelay time.Duration `mapstructure:"category_delay"`
	// YearDelay follows every backfill year.
	YearDelay time.Duration `mapstructure:"year_delay"`
}

// QueryConfig holds read-side limits.
type QueryConfig struct {
	// DefaultLimit applies when a query sets no limit.
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit is the largest limit a query may request.
	MaxLimit int `mapstructure:"max_limit"`
}

// KafkaConfig holds fetch event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives one message per category fetch.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// DefaultDatabasePath is the SQLite file used when database.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, "articles.db")
}

// Load loads configuration from defaults, an optional config.yaml and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// ., ./config and the user config directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment only.
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("database.busy_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "arxiv")
	v.SetDefault("database.name", "arxiv_collector")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_auto_run", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "arxiv_collector")
	v.SetDefault("metrics.path", "/metrics")

	// arXiv defaults
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("arxiv.timeout", "60s")
	v.SetDefault("arxiv.min_interval", "3s")
	v.SetDefault("arxiv.max_retries", 2)
	v.SetDefault("arxiv.retry_delay", "5s")
	v.SetDefault("arxiv.user_agent", "arxiv-collector/1.0")

	// Collector defaults
	v.SetDefault("collector.categories", DefaultCategories)
	v.SetDefault("collector.update_days", 2)
	v.SetDefault("collector.update_page_size", 1000)
	v.SetDefault("collector.backfill_start_year", 2000)
	v.SetDefault("collector.backfill_page_size", 2000)
	v.SetDefault("collector.category_delay", "3s")
	v.SetDefault("collector.year_delay", "5s")

	// Query defaults
	v.SetDefault("query.default_limit", 100)
	v.SetDefault("query.max_limit", 1000)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "arxiv.fetches")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.ArXiv.BaseURL == "" {
		return fmt.Errorf("arxiv base_url is required")
	}
	if c.ArXiv.MaxRetries < 0 {
		return fmt.Errorf("arxiv max_retries must not be negative")
	}

	if len(c.Collector.Categories) == 0 {
		return fmt.Errorf("at least one collector category is required")
	}
	for _, cat := range c.Collector.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("collector categories must not be blank")
		}
	}
	if c.Collector.UpdateDays <= 0 {
		return fmt.Errorf("collector update_days must be positive")
	}
	if c.Collector.UpdatePageSize <= 0 || c.Collector.BackfillPageSize <= 0 {
		return fmt.Errorf("collector page sizes must be positive")
	}
	if c.Collector.CategoryDelay < 0 || c.Collector.YearDelay < 0 {
		return fmt.Errorf("collector delays must not be negative")
	}
	if c.Collector.YearDelay < c.Collector.CategoryDelay {
		return fmt.Errorf("collector year_delay (%s) must be >= category_delay (%s)",
			c.Collector.YearDelay, c.Collector.CategoryDelay)
	}

	if c.Query.DefaultLimit <= 0 || c.Query.MaxLimit <= 0 {
		return fmt.Errorf("query limits must be positive")
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query default_limit (%d) must be <= max_limit (%d)", c.Query.DefaultLimit, c.Query.MaxLimit)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	return nil
}
