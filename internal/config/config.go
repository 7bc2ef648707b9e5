package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Install InstallConfig `mapstructure:"install"`
	Region  RegionConfig  `mapstructure:"region"`
	Package PackageConfig `mapstructure:"package"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig contains path-related configuration
type PathsConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	DBFile        string `mapstructure:"db_file"`
	LogFile       string `mapstructure:"log_file"`
	PackageSource string `mapstructure:"package_source"`
	ManifestFile  string `mapstructure:"manifest_file"`
}

// InstallConfig contains timeouts and limits for dependency and package installs
type InstallConfig struct {
	CheckTimeout   time.Duration `mapstructure:"check_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	MinFreeMB      uint64        `mapstructure:"min_free_mb"`
}

// RegionConfig controls region detection
type RegionConfig struct {
	Override string        `mapstructure:"override"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// PackageConfig names the entry points expected inside an application package
type PackageConfig struct {
	Launcher string `mapstructure:"launcher"`
	Binary   string `mapstructure:"binary"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "depctl"))
	}
	viper.AddConfigPath(".")

	setDefaults()

	// Environment variable overrides
	viper.SetEnvPrefix("DEPCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.DataDir = expandPath(cfg.Paths.DataDir)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	cfg.Paths.PackageSource = expandPath(cfg.Paths.PackageSource)
	cfg.Paths.ManifestFile = expandPath(cfg.Paths.ManifestFile)

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "depctl")
	viper.SetDefault("paths.data_dir", dataDir)
	viper.SetDefault("paths.db_file", filepath.Join(dataDir, "depctl.db"))
	viper.SetDefault("paths.log_file", filepath.Join(dataDir, "depctl.log"))
	viper.SetDefault("paths.package_source", filepath.Join(dataDir, "release-packages"))
	viper.SetDefault("paths.manifest_file", filepath.Join(homeDir, ".config", "depctl", "manifest.yaml"))

	viper.SetDefault("install.check_timeout", 10*time.Second)
	viper.SetDefault("install.command_timeout", 300*time.Second)
	viper.SetDefault("install.min_free_mb", 500)

	viper.SetDefault("region.override", "")
	viper.SetDefault("region.cache_ttl", 7*24*time.Hour)

	viper.SetDefault("package.launcher", "start.sh")
	viper.SetDefault("package.binary", "webservice")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.color", "auto")
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
