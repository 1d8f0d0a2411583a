package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"classgroups-server-go/grouping"
)

// EnvPrefix prefixes every environment override, e.g. CLASSGROUPS_REDIS_ADDR.
const EnvPrefix = "CLASSGROUPS"

// Config is the resolved server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Grouping GroupingConfig `mapstructure:"grouping"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // redis or postgres
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// GroupingConfig holds the defaults applied when a request leaves them out.
type GroupingConfig struct {
	DefaultSize     int    `mapstructure:"defaultSize"`
	DefaultStrategy string `mapstructure:"defaultStrategy"`
	MaxSize         int    `mapstructure:"maxSize"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SeedConfig struct {
	Demo bool `mapstructure:"demo"`
}

// New returns a viper instance with defaults and environment overrides set up.
func New() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 8)
	v.SetDefault("postgres.dsn", "postgres://localhost:5432/classgroups?sslmode=disable")
	v.SetDefault("grouping.defaultSize", 3)
	v.SetDefault("grouping.defaultStrategy", string(grouping.AllowSmaller))
	v.SetDefault("grouping.maxSize", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("seed.demo", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads an optional .env file, an optional config file named by
// CLASSGROUPS_CONFIG and the environment, then validates the result.
func Load(dotEnvPath string) (Config, error) {
	// load .env if it exists (ignore if it does not)
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return Config{}, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config.os.Stat(%s): %w", dotEnvPath, err)
		}
	}

	v := New()
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config.ReadInConfig(%s): %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "redis", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Grouping.MaxSize < 1 {
		return fmt.Errorf("config: grouping.maxSize must be at least 1, got %d", c.Grouping.MaxSize)
	}
	if c.Grouping.DefaultSize < 1 || c.Grouping.DefaultSize > c.Grouping.MaxSize {
		return fmt.Errorf("config: grouping.defaultSize must be between 1 and %d, got %d",
			c.Grouping.MaxSize, c.Grouping.DefaultSize)
	}
	if _, err := grouping.ParseStrategy(c.Grouping.DefaultStrategy); err != nil {
		return fmt.Errorf("config: grouping.defaultStrategy: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// DefaultOptions returns the grouping options used when a request sets none.
func (c GroupingConfig) DefaultOptions() grouping.Options {
	strategy, err := grouping.ParseStrategy(c.DefaultStrategy)
	if err != nil {
		strategy = grouping.AllowSmaller
	}
	return grouping.Options{GroupSize: c.DefaultSize, Strategy: strategy}
}

// SetupLogging applies the log level and format to the global logrus logger.
func SetupLogging(c LogConfig) {
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
