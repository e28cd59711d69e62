// Package config loads runcell configuration from environment
// variables and an optional YAML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/runcell/runcell/language"
)

// Config is the application configuration.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	BindAddress string `mapstructure:"bind_address"`

	// RuntimeDir holds the downloaded runtime WASM bundles.
	RuntimeDir string `mapstructure:"runtime_dir"`

	RunTimeout  time.Duration `mapstructure:"run_timeout"`
	InitTimeout time.Duration `mapstructure:"init_timeout"`

	HistoryCapacity  int      `mapstructure:"history_capacity"`
	Preload          []string `mapstructure:"preload"`
	RecycleOnTimeout bool     `mapstructure:"recycle_on_timeout"`

	PollInterval     time.Duration `mapstructure:"poll_interval"`
	DiskCache        bool          `mapstructure:"disk_cache"`
	MemoryLimitPages uint32        `mapstructure:"memory_limit_pages"`
}

// Load reads configuration with env prefix RUNCELL and an optional
// config.yaml in ., /etc/runcell/ or ~/.runcell/.
func Load() (*Config, error) {
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("bind_address", ":8090")
	viper.SetDefault("runtime_dir", defaultRuntimeDir())
	viper.SetDefault("run_timeout", "30s")
	viper.SetDefault("init_timeout", "30s")
	viper.SetDefault("history_capacity", 100)
	viper.SetDefault("preload", []string{})
	viper.SetDefault("recycle_on_timeout", true)
	viper.SetDefault("poll_interval", "500ms")
	viper.SetDefault("disk_cache", true)
	viper.SetDefault("memory_limit_pages", 4096)

	viper.SetEnvPrefix("RUNCELL")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/runcell/")
	viper.AddConfigPath("$HOME/.runcell/")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetLogLevel parses the configured log level, defaulting to info.
func (c *Config) GetLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// PreloadLanguages resolves the configured preload list, dropping
// unknown names with a warning.
func (c *Config) PreloadLanguages() []language.Language {
	var out []language.Language
	for _, name := range c.Preload {
		lang, err := language.Parse(name)
		if err != nil {
			logrus.WithField("component", "config").Warnf("ignoring preload entry: %v", err)
			continue
		}
		out = append(out, lang)
	}
	return out
}

func defaultRuntimeDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "runcell", "runtimes")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "runcell", "runtimes")
	}
	return filepath.Join(os.TempDir(), "runcell-runtimes")
}
