package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Event drivers
const (
	DriverNone   = "none"
	DriverKafka  = "kafka"
	DriverSarama = "sarama"
)

// EnvPrefix prefixes every environment override, e.g. ORDERCACHE_EVENTS_DRIVER
const EnvPrefix = "ORDERCACHE"

// Config represents the application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	Events struct {
		Driver   string   `mapstructure:"driver"`
		Brokers  []string `mapstructure:"brokers"`
		Topic    string   `mapstructure:"topic"`
		PoolSize int      `mapstructure:"pool_size"`
	} `mapstructure:"events"`

	Telemetry struct {
		Enabled        bool          `mapstructure:"enabled"`
		Endpoint       string        `mapstructure:"endpoint"`
		ServiceName    string        `mapstructure:"service_name"`
		MetricInterval time.Duration `mapstructure:"metric_interval"`
	} `mapstructure:"telemetry"`

	Harness struct {
		FixtureFile string `mapstructure:"fixture_file"`
	} `mapstructure:"harness"`

	LoadTest struct {
		Workers         int     `mapstructure:"workers"`
		OrdersPerWorker int     `mapstructure:"orders_per_worker"`
		Rate            float64 `mapstructure:"rate"`
		Securities      int     `mapstructure:"securities"`
		Users           int     `mapstructure:"users"`
		Companies       int     `mapstructure:"companies"`
	} `mapstructure:"loadtest"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("events.driver", DriverNone)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "ordercache-events")
	v.SetDefault("events.pool_size", 8)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "ordercache")
	v.SetDefault("telemetry.metric_interval", 15*time.Second)

	v.SetDefault("harness.fixture_file", "")

	v.SetDefault("loadtest.workers", 8)
	v.SetDefault("loadtest.orders_per_worker", 10000)
	v.SetDefault("loadtest.rate", 0)
	v.SetDefault("loadtest.securities", 20)
	v.SetDefault("loadtest.users", 200)
	v.SetDefault("loadtest.companies", 10)
}

// LoadConfig loads the configuration from command line flags, an optional
// .env file, an optional YAML config file and ORDERCACHE_* environment variables,
// in increasing order of precedence for the last three. The -config, -env and
// -log_level flags are registered on fs, which may already carry the
// command's own flags; a nil fs gets a fresh set.
func LoadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("ordercache", flag.ContinueOnError)
	}
	configFile := fs.String("config", "", "Path to config file (YAML)")
	envFile := fs.String("env", "", "Path to .env file (defaults to ./.env when present)")
	logLevel := fs.String("log_level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *logLevel != "" {
		v.Set("log.level", *logLevel)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads path into the process environment. Variables already set
// win over the file. An explicit path must exist; the default ./.env is optional.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Events.Driver {
	case DriverNone:
	case DriverKafka, DriverSarama:
		if len(cfg.Events.Brokers) == 0 {
			return errors.New("events.brokers must not be empty")
		}
		if cfg.Events.Topic == "" {
			return errors.New("events.topic must not be empty")
		}
	default:
		return fmt.Errorf("unknown events.driver %q", cfg.Events.Driver)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint must not be empty")
	}
	if cfg.LoadTest.Workers <= 0 {
		return errors.New("loadtest.workers must be positive")
	}
	if cfg.LoadTest.Securities <= 0 || cfg.LoadTest.Users <= 0 || cfg.LoadTest.Companies <= 0 {
		return errors.New("loadtest securities, users and companies must be positive")
	}
	if cfg.LoadTest.Rate < 0 {
		return errors.New("loadtest.rate must not be negative")
	}
	return nil
}
