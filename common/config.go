package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPrefix        = "n!"
	DefaultPromptTimeout = 30 * time.Second
)

// CoreConfig is the process wide configuration, read from an optional yaml
// file and then overridden by NARC_* environment variables.
type CoreConfig struct {
	DiscordToken string `yaml:"discord_token"`

	DatabaseDialect string `yaml:"database_dialect"`
	DatabaseURL     string `yaml:"database_url"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`
	MetricsAddr string `yaml:"metrics_addr"`

	DefaultPrefix   string        `yaml:"default_prefix"`
	PromptTimeout   time.Duration `yaml:"prompt_timeout"`
	ConfigCacheSize int64         `yaml:"config_cache_size"`
	ConfigCacheTTL  time.Duration `yaml:"config_cache_ttl"`
}

func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		DatabaseDialect: "postgres",
		LogLevel:        "info",
		Environment:     "production",
		DefaultPrefix:   DefaultPrefix,
		PromptTimeout:   DefaultPromptTimeout,
		ConfigCacheSize: 5000,
		ConfigCacheTTL:  time.Hour,
	}
}

// LoadCoreConfig reads the config file at path (skipped if path is empty) and
// applies environment overrides on top of it.
func LoadCoreConfig(path string) (*CoreConfig, error) {
	conf := DefaultCoreConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapIf(err, "read config file")
		}

		if err = yaml.Unmarshal(raw, conf); err != nil {
			return nil, errors.WrapIf(err, "parse config file")
		}
	}

	if err := conf.loadEnv(); err != nil {
		return nil, err
	}

	return conf, conf.Validate()
}

func (c *CoreConfig) loadEnv() error {
	envString("NARC_DISCORD_TOKEN", &c.DiscordToken)
	envString("NARC_DATABASE_DIALECT", &c.DatabaseDialect)
	envString("NARC_DATABASE_URL", &c.DatabaseURL)
	envString("NARC_LOG_LEVEL", &c.LogLevel)
	envString("NARC_LOG_FILE", &c.LogFile)
	envString("NARC_SENTRY_DSN", &c.SentryDSN)
	envString("NARC_ENVIRONMENT", &c.Environment)
	envString("NARC_METRICS_ADDR", &c.MetricsAddr)
	envString("NARC_DEFAULT_PREFIX", &c.DefaultPrefix)

	if err := envDuration("NARC_PROMPT_TIMEOUT", &c.PromptTimeout); err != nil {
		return err
	}

	if err := envDuration("NARC_CONFIG_CACHE_TTL", &c.ConfigCacheTTL); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("NARC_CONFIG_CACHE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.WrapIf(err, "NARC_CONFIG_CACHE_SIZE")
		}
		c.ConfigCacheSize = n
	}

	return nil
}

// Validate checks the fields needed to start the bot
func (c *CoreConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.NewPlain("no database url configured (NARC_DATABASE_URL)")
	}

	switch c.DatabaseDialect {
	case "postgres", "sqlite3":
	default:
		return errors.Errorf("unsupported database dialect %q", c.DatabaseDialect)
	}

	if c.PromptTimeout <= 0 {
		return errors.NewPlain("prompt timeout must be positive")
	}

	if strings.TrimSpace(c.DefaultPrefix) == "" {
		c.DefaultPrefix = DefaultPrefix
	}

	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.WrapIf(err, key)
	}

	*dst = d
	return nil
}
