// Package config loads haggle's settings from defaults, an optional config
// file, a .env file and HAGGLE_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HAGGLE_SERVER_ADDR.
const EnvPrefix = "HAGGLE"

type Config struct {
	Server  Server  `mapstructure:"server"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Sources Sources `mapstructure:"sources"`
	Matcher Matcher `mapstructure:"matcher"`
	Pricing Pricing `mapstructure:"pricing"`
	Storage Storage `mapstructure:"storage"`
	Log     Log     `mapstructure:"log"`
}

type Server struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Fetch struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	DelayMin         time.Duration `mapstructure:"delay_min"`
	DelayMax         time.Duration `mapstructure:"delay_max"`
	RPS              float64       `mapstructure:"rps"`
	Jitter           float64       `mapstructure:"jitter"`
	Fingerprint      string        `mapstructure:"fingerprint"`
	UserAgents       []string      `mapstructure:"user_agents"`
	AcceptLanguage   string        `mapstructure:"accept_language"`
	Referer          string        `mapstructure:"referer"`
	ProxyFile        string        `mapstructure:"proxy_file"`
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown"`
	CookieJar        bool          `mapstructure:"cookie_jar"`
}

type Sources struct {
	Feed             FeedSource   `mapstructure:"feed"`
	Markup           MarkupSource `mapstructure:"markup"`
	Mock             MockSource   `mapstructure:"mock"`
	MaxItems         int          `mapstructure:"max_items"`
	FallbackLocation string       `mapstructure:"fallback_location"`
}

type FeedSource struct {
	Enabled   bool   `mapstructure:"enabled"`
	Name      string `mapstructure:"name"`
	Endpoint  string `mapstructure:"endpoint"`
	ItemsPath string `mapstructure:"items_path"`
}

type MarkupSource struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

type MockSource struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

type Matcher struct {
	Threshold  float64  `mapstructure:"threshold"`
	MinOverlap float64  `mapstructure:"min_overlap"`
	Stopwords  []string `mapstructure:"stopwords"`
}

type Pricing struct {
	SuggestedMinRatio float64 `mapstructure:"suggested_min_ratio"`
	SuggestedMaxRatio float64 `mapstructure:"suggested_max_ratio"`
}

type Storage struct {
	// Backend is one of none, sqlite, postgres, json or csv.
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.delay_min", 500*time.Millisecond)
	v.SetDefault("fetch.delay_max", 1500*time.Millisecond)
	v.SetDefault("fetch.rps", 0.0)
	v.SetDefault("fetch.jitter", 0.0)
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.accept_language", "en-US,en;q=0.9")
	v.SetDefault("fetch.referer", "https://www.google.com/")
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.proxy_max_failures", 3)
	v.SetDefault("fetch.proxy_cooldown", 5*time.Minute)
	v.SetDefault("fetch.cookie_jar", false)

	v.SetDefault("sources.feed.enabled", true)
	v.SetDefault("sources.feed.name", "Daraz")
	v.SetDefault("sources.feed.endpoint", "https://www.daraz.pk/catalog/")
	v.SetDefault("sources.feed.items_path", "mods.listItems")
	v.SetDefault("sources.markup.enabled", true)
	v.SetDefault("sources.markup.name", "OLX")
	v.SetDefault("sources.markup.base_url", "https://www.olx.com.pk")
	v.SetDefault("sources.mock.enabled", false)
	v.SetDefault("sources.mock.name", "Mock")
	v.SetDefault("sources.max_items", 10)
	v.SetDefault("sources.fallback_location", "unknown region")

	v.SetDefault("matcher.threshold", 0.4)
	v.SetDefault("matcher.min_overlap", 0.5)
	v.SetDefault("matcher.stopwords", []string{})

	v.SetDefault("pricing.suggested_min_ratio", 0.9)
	v.SetDefault("pricing.suggested_max_ratio", 1.05)

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. path names an optional config file (yaml, toml
// or json); empty means defaults and environment only. A .env file in the
// working directory is loaded into the environment first when present;
// variables already set are not overridden.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make a comparison meaningless.
func (c *Config) Validate() error {
	var errs []error

	if c.Pricing.SuggestedMinRatio <= 0 || c.Pricing.SuggestedMaxRatio <= 0 {
		errs = append(errs, errors.New("pricing ratios must be positive"))
	}
	if c.Fetch.DelayMin < 0 || c.Fetch.DelayMin > c.Fetch.DelayMax {
		errs = append(errs, fmt.Errorf("fetch.delay_min (%s) must be between 0 and fetch.delay_max (%s)", c.Fetch.DelayMin, c.Fetch.DelayMax))
	}
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matcher.threshold %v must be within [0, 1]", c.Matcher.Threshold))
	}
	if c.Matcher.MinOverlap < 0 || c.Matcher.MinOverlap > 1 {
		errs = append(errs, fmt.Errorf("matcher.min_overlap %v must be within [0, 1]", c.Matcher.MinOverlap))
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "", "none", "sqlite", "postgres", "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of none, sqlite, postgres, json, csv", c.Storage.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
