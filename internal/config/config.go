package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"fitstudio/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Booking    BookingConfig    `yaml:"booking"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

// APIRateLimitConfig limits requests per client IP. RPS <= 0 disables it.
type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// BookingConfig controls the seed catalog and the per-email attempt throttle.
// AttemptLimit 0 disables the throttle.
type BookingConfig struct {
	ClassesPath   string        `yaml:"classes_path"`
	AttemptLimit  int           `yaml:"attempt_limit"`
	AttemptWindow time.Duration `yaml:"attempt_window"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := validatePort("api.http.port", c.API.HTTP.Port); err != nil {
		return err
	}
	if c.API.GRPC.Enabled {
		if err := validatePort("api.grpc.port", c.API.GRPC.Port); err != nil {
			return err
		}
	}
	if c.Monitoring.PrometheusEnabled {
		if err := validatePort("monitoring.prometheus_port", c.Monitoring.PrometheusPort); err != nil {
			return err
		}
	}
	if c.API.RateLimit.RPS < 0 {
		return errors.New("api.rate_limit.rps must not be negative")
	}
	if c.Booking.AttemptLimit < 0 {
		return errors.New("booking.attempt_limit must not be negative")
	}
	if c.Booking.AttemptLimit > 0 && c.Booking.AttemptWindow <= 0 {
		return errors.New("booking.attempt_window must be positive when attempt_limit is set")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", name, port)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fitstudio"
	}
	if c.App.Environment == "" {
		c.App.Environment = "dev"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8000
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst <= 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.AttemptWindow == 0 {
		c.Booking.AttemptWindow = models.DefaultAttemptWindow * time.Second
	}
}
