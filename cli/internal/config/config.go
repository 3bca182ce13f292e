// Package config loads the CLI configuration from the config file, .env
// files, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/salesreport/query/cache"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// AppFs is the filesystem configuration is read from and written to.
var AppFs = afero.NewOsFs()

const (
	// FileName is the config file name without extension.
	FileName = ".salesreport"
	// EnvPrefix prefixes the environment variables that override keys.
	EnvPrefix = "SALESREPORT"
)

// CacheConfig is the result cache section.
type CacheConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	TTL            time.Duration `mapstructure:"ttl"`
	MaxEntries     int           `mapstructure:"max_entries"`
	ComputeTimeout time.Duration `mapstructure:"compute_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	// PersistDir enables the on-disk tier when set.
	PersistDir string `mapstructure:"persist_dir"`
}

// Cache converts the section to the cache package configuration.
func (c CacheConfig) Cache() cache.Config {
	return cache.Config{
		MaxEntries:     c.MaxEntries,
		TTL:            c.TTL,
		ComputeTimeout: c.ComputeTimeout,
		SweepInterval:  c.SweepInterval,
		Disabled:       !c.Enabled,
	}
}

// Config holds the application configuration
type Config struct {
	Dialect     string      `mapstructure:"dialect"`
	DatabaseURL string      `mapstructure:"database_url"`
	LogLevel    string      `mapstructure:"log_level"`
	LogJSON     bool        `mapstructure:"log_json"`
	Output      string      `mapstructure:"output"`
	Workers     int         `mapstructure:"workers"`
	MetricsAddr string      `mapstructure:"metrics_addr"`
	Cache       CacheConfig `mapstructure:"cache"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Output formats.
var OutputFormats = []string{"table", "json", "csv", "yaml", "markdown"}

// New returns a viper instance with the defaults, search paths and
// environment binding in place, reading through AppFs.
func New() *viper.Viper {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "salesreport"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := cache.DefaultConfig()
	v.SetDefault("dialect", string(sqlgen.SQLite))
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_json", false)
	v.SetDefault("output", "table")
	v.SetDefault("workers", 4)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("cache.enabled", !defaults.Disabled)
	v.SetDefault("cache.ttl", defaults.TTL)
	v.SetDefault("cache.max_entries", defaults.MaxEntries)
	v.SetDefault("cache.compute_timeout", defaults.ComputeTimeout)
	v.SetDefault("cache.sweep_interval", defaults.SweepInterval)
	v.SetDefault("cache.persist_dir", "")
	return v
}

// Load reads configuration into v. An explicit file must exist; otherwise a
// missing config file is not an error. DATABASE_URL is honoured when no
// database_url is configured.
func Load(v *viper.Viper, file string) (*Config, error) {
	loadEnvFiles()

	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

// loadEnvFiles applies .env, then .env.local over it. Variables already in
// the environment win over .env but not over .env.local.
func loadEnvFiles() {
	apply := func(name string, override bool) {
		f, err := AppFs.Open(name)
		if err != nil {
			return
		}
		defer f.Close()
		vars, err := godotenv.Parse(f)
		if err != nil {
			return
		}
		for k, val := range vars {
			if _, set := os.LookupEnv(k); set && !override {
				continue
			}
			_ = os.Setenv(k, val)
		}
	}
	apply(".env", false)
	apply(".env.local", true)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := sqlgen.ParseDialect(c.Dialect); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if !validOutput(c.Output) {
		return fmt.Errorf("unsupported output format %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	if err := c.Cache.Cache().Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func validOutput(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Save writes the settings worth persisting to path.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")

	v.Set("dialect", cfg.Dialect)
	if cfg.DatabaseURL != "" {
		v.Set("database_url", cfg.DatabaseURL)
	}
	v.Set("log_level", cfg.LogLevel)
	v.Set("output", cfg.Output)
	v.Set("workers", cfg.Workers)
	v.Set("cache.enabled", cfg.Cache.Enabled)
	v.Set("cache.ttl", cfg.Cache.TTL.String())
	v.Set("cache.max_entries", cfg.Cache.MaxEntries)
	if cfg.Cache.PersistDir != "" {
		v.Set("cache.persist_dir", cfg.Cache.PersistDir)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := AppFs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(path)
}

// DefaultPath returns where init writes the config file.
func DefaultPath(global bool) (string, error) {
	if !global {
		return FileName + ".yaml", nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "salesreport", FileName+".yaml"), nil
}
