// Package config provides a reusable loader for container-system
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/kcenon/container-system-sub003/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified tunable surface for a process embedding the
// container library. Load decodes it from YAML files found under
// cmd/config or config; none ship with this module.
type Config struct {
	Pool struct {
		SmallClassCapacity  int `mapstructure:"small_class_capacity" json:"small_class_capacity"`
		LargeClassCapacity  int `mapstructure:"large_class_capacity" json:"large_class_capacity"`
	} `mapstructure:"pool" json:"pool"`

	Cache struct {
		RecentSize int `mapstructure:"recent_size" json:"recent_size"`
		BloomBits  int `mapstructure:"bloom_bits" json:"bloom_bits"`
	} `mapstructure:"cache" json:"cache"`

	Async struct {
		ChunkSizeBytes int `mapstructure:"chunk_size_bytes" json:"chunk_size_bytes"`
		WorkerCount    int `mapstructure:"worker_count" json:"worker_count"`
	} `mapstructure:"async" json:"async"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"metrics" json:"metrics"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CONTAINER_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CONTAINER_ENV", ""))
}

// Defaults returns a Config populated with the library's built-in
// defaults, for callers that don't need a config file at all.
func Defaults() Config {
	var c Config
	c.Pool.SmallClassCapacity = 4096
	c.Pool.LargeClassCapacity = 4096
	c.Cache.RecentSize = 128
	c.Cache.BloomBits = 1024
	c.Async.ChunkSizeBytes = 64 * 1024
	c.Async.WorkerCount = 0 // 0 means "size from GOMAXPROCS"
	c.Metrics.Enabled = false
	c.Logging.Level = "info"
	return c
}
