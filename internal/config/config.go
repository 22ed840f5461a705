package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Change notifiers
const (
	NotifierLocal = "local"
	NotifierPQ    = "pq"
	NotifierNATS  = "nats"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Store   StoreConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Host string
	Env  string // "development" or "production"

	AllowedOrigins []string
}

// GameConfig holds reel and workflow parameters
type GameConfig struct {
	SpinInterval         time.Duration
	SpinMinTicks         int
	SpinTickSpread       int
	ScrollDelay          time.Duration
	ResetPassword        string
	WordBankFile         string
	ReconnectGracePeriod time.Duration
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	Driver   string
	Notifier string

	SQLitePath string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	NATSURL     string
	NATSSubject string

	ResyncInterval time.Duration
	Timeout        time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),

			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Game: GameConfig{
			SpinInterval:         time.Duration(getEnvInt("SPIN_INTERVAL_MS", 50)) * time.Millisecond,
			SpinMinTicks:         getEnvInt("SPIN_MIN_TICKS", 30),
			SpinTickSpread:       getEnvInt("SPIN_TICK_SPREAD", 20),
			ScrollDelay:          time.Duration(getEnvInt("SCROLL_DELAY_MS", 100)) * time.Millisecond,
			ResetPassword:        getEnv("RESET_PASSWORD", "1515"),
			WordBankFile:         getEnv("WORD_BANK_FILE", ""),
			ReconnectGracePeriod: time.Duration(getEnvInt("RECONNECT_GRACE_PERIOD_SECONDS", 120)) * time.Second,
		},
		Store: StoreConfig{
			Driver:         getEnv("STORE_DRIVER", DriverSQLite),
			Notifier:       getEnv("STORE_NOTIFIER", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "data/roulette.db"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Database:       getEnv("DB_NAME", "roulette"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			NATSURL:        getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			NATSSubject:    getEnv("NATS_SUBJECT", "roulette.records.changed"),
			ResyncInterval: time.Duration(getEnvInt("STORE_RESYNC_SECONDS", 30)) * time.Second,
			Timeout:        time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if cfg.Store.Notifier == "" {
		cfg.Store.Notifier = cfg.Store.DefaultNotifier()
	}

	return cfg
}

// Validate checks values that would otherwise fail deep inside the server
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Store.Notifier {
	case NotifierLocal, NotifierNATS:
	case NotifierPQ:
		if c.Store.Driver != DriverPostgres {
			return fmt.Errorf("STORE_NOTIFIER=pq requires STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_NOTIFIER %q", c.Store.Notifier)
	}

	if c.Game.SpinInterval <= 0 {
		return fmt.Errorf("SPIN_INTERVAL_MS must be positive")
	}
	if c.Game.SpinMinTicks < 1 || c.Game.SpinTickSpread < 1 {
		return fmt.Errorf("SPIN_MIN_TICKS and SPIN_TICK_SPREAD must be at least 1")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_SECONDS must be positive")
	}
	if c.Game.ResetPassword == "" {
		return fmt.Errorf("RESET_PASSWORD cannot be empty")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// DefaultNotifier picks the change notifier matching the driver
func (s StoreConfig) DefaultNotifier() string {
	if s.Driver == DriverPostgres {
		return NotifierPQ
	}
	return NotifierLocal
}

// DSN returns the Postgres connection URL.
func (s StoreConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode,
	)
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice or a default value
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
