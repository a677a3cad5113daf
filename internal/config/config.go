package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// CORS policies. Exactly one of them is mounted per deployment.
const (
	CorsModeAllowList = "allowlist"
	CorsModeWildcard  = "wildcard"
)

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	_loaded = cloneDefault()

	configFile := os.Getenv("USERDIR_CONFIG_FILE")
	if configFile == "" {
		configFile = "userdir.yaml"
	}

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Loaded config from file: %s", configFile)
	}

	// Environment variables win over the file
	ApplyEnvOverrides()
}

func LoadDefault() {
	_loaded = cloneDefault()
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := cloneDefault()

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = cfg
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:           "0.0.0.0",
			Port:           50000,
			MaxRequestSize: 1048576,
			RequestTimeout: 15,
		},
		Database: databaseConfig{
			Driver: DriverPostgres,
			Postgres: postgresConfig{
				User:     "postgres",
				Password: "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "userdir",
			},
			SQLite: sqliteConfig{
				Path: "userdir.db",
			},
			MaxOpenConnections: 10,
			QueryTimeout:       10,
		},
		Cors: corsConfig{
			Mode:           CorsModeAllowList,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Pagination: paginationConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
	},
}

func cloneDefault() *Config {
	cfg := defaultConfig
	cfg.Common.Cors.AllowedOrigins = append([]string(nil), defaultConfig.Common.Cors.AllowedOrigins...)
	return &cfg
}

type Common struct {
	Log        logConfig        `yaml:"log"`
	Http       httpConfig       `yaml:"http"`
	Database   databaseConfig   `yaml:"database"`
	Cors       corsConfig       `yaml:"cors"`
	Pagination paginationConfig `yaml:"pagination"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds, 0 disables
}

func (c httpConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c httpConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

type databaseConfig struct {
	Driver             string         `yaml:"driver"` // "postgres" or "sqlite"
	Postgres           postgresConfig `yaml:"postgres"`
	SQLite             sqliteConfig   `yaml:"sqlite"`
	MaxOpenConnections int            `yaml:"max_open_connections"`
	QueryTimeout       int            `yaml:"query_timeout"` // seconds, 0 disables
}

func (c databaseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Second
}

type postgresConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type sqliteConfig struct {
	Path string `yaml:"path"`
}

type corsConfig struct {
	Mode           string   `yaml:"mode"`            // "allowlist" or "wildcard"
	AllowedOrigins []string `yaml:"allowed_origins"` // only used by allowlist mode
}

type paginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	common := c.Common

	switch common.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %q", common.Database.Driver)
	}

	switch common.Cors.Mode {
	case CorsModeAllowList:
		if len(common.Cors.AllowedOrigins) == 0 {
			return fmt.Errorf("cors allowlist mode requires at least one allowed origin")
		}
	case CorsModeWildcard:
	default:
		return fmt.Errorf("unsupported cors mode: %q", common.Cors.Mode)
	}

	if common.Http.Port <= 0 {
		return fmt.Errorf("http port must be positive, got %d", common.Http.Port)
	}
	if common.Pagination.DefaultPageSize <= 0 || common.Pagination.MaxPageSize <= 0 {
		return fmt.Errorf("pagination sizes must be positive")
	}
	if common.Pagination.DefaultPageSize > common.Pagination.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d",
			common.Pagination.DefaultPageSize, common.Pagination.MaxPageSize)
	}
	if common.Http.RequestTimeout < 0 || common.Database.QueryTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	return nil
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func Database() databaseConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Database
}

func Cors() corsConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Cors
}

func Pagination() paginationConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Pagination
}

// Get returns the full configuration
func Get() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}

func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}

	if level := os.Getenv("USERDIR_LOG_LEVEL"); level != "" {
		_loaded.Common.Log.Level = level
	}
	if format := os.Getenv("USERDIR_LOG_FORMAT"); format != "" {
		_loaded.Common.Log.Format = format
	}

	if httpHost := os.Getenv("USERDIR_HTTP_HOST"); httpHost != "" {
		_loaded.Common.Http.Host = httpHost
	}
	if httpPort := os.Getenv("USERDIR_HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			_loaded.Common.Http.Port = port
		}
	}
	if timeout := os.Getenv("USERDIR_HTTP_REQUEST_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			_loaded.Common.Http.RequestTimeout = seconds
		}
	}

	if driver := os.Getenv("USERDIR_DB_DRIVER"); driver != "" {
		_loaded.Common.Database.Driver = driver
	}
	if dbHost := os.Getenv("USERDIR_DB_HOST"); dbHost != "" {
		_loaded.Common.Database.Postgres.Host = dbHost
	}
	if dbPort := os.Getenv("USERDIR_DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			_loaded.Common.Database.Postgres.Port = port
		}
	}
	if dbUser := os.Getenv("USERDIR_DB_USER"); dbUser != "" {
		_loaded.Common.Database.Postgres.User = dbUser
	}
	if dbPassword := os.Getenv("USERDIR_DB_PASSWORD"); dbPassword != "" {
		_loaded.Common.Database.Postgres.Password = dbPassword
	}
	if dbName := os.Getenv("USERDIR_DB_NAME"); dbName != "" {
		_loaded.Common.Database.Postgres.Database = dbName
	}
	if sqlitePath := os.Getenv("USERDIR_SQLITE_PATH"); sqlitePath != "" {
		_loaded.Common.Database.SQLite.Path = sqlitePath
	}
	if timeout := os.Getenv("USERDIR_DB_QUERY_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			_loaded.Common.Database.QueryTimeout = seconds
		}
	}

	if mode := os.Getenv("USERDIR_CORS_MODE"); mode != "" {
		_loaded.Common.Cors.Mode = mode
	}
	if origins := os.Getenv("USERDIR_CORS_ALLOWED_ORIGINS"); origins != "" {
		_loaded.Common.Cors.AllowedOrigins = splitList(origins)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
