package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database    DatabaseConfig
	Fixtures    FixturesConfig
	Maintenance MaintenanceConfig
	Logging     LoggingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// FixturesConfig controls where fixtures are read from and how often the
// directory is rescanned.
type FixturesConfig struct {
	Dir           string
	URLs          []string
	ScanInterval  time.Duration
	CIDescriptor  string
	DebounceDelay time.Duration
}

type MaintenanceConfig struct {
	CleanupInterval      time.Duration
	KeepInactiveVersions int
}

type LoggingConfig struct {
	Level      string
	FilePath   string
	DiscordURL string
}

func Load() (*Config, error) {
	keep, err := getIntEnv("KEEP_INACTIVE_VERSIONS", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "cfixtures"),
		},
		Fixtures: FixturesConfig{
			Dir:           getEnv("FIXTURE_DIR", "fixtures"),
			URLs:          getListEnv("FIXTURE_URLS"),
			ScanInterval:  getDurationEnv("SCAN_INTERVAL", 5*time.Minute),
			CIDescriptor:  getEnv("CI_DESCRIPTOR", ""),
			DebounceDelay: getDurationEnv("SCAN_DEBOUNCE", 500*time.Millisecond),
		},
		Maintenance: MaintenanceConfig{
			CleanupInterval:      getDurationEnv("CLEANUP_INTERVAL", 24*time.Hour),
			KeepInactiveVersions: keep,
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", ""),
			DiscordURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

func (c *DatabaseConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if strings.TrimSpace(c.User) == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if strings.TrimSpace(c.DBName) == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	return errors.Join(errs...)
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv falls back to the default for unparsable or non-positive
// values.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
