// Package config loads the domain finder configuration.
//
// Priority (highest to lowest):
//  1. command-line flags that were set explicitly
//  2. environment variables (APP_ENV, LISTEN_ADDR, DATABASE_URL, SCAN_WORKERS,
//     REGISTRY_BASE_URL, REDIS_URL, LOG_LEVEL, or any key upper-cased with
//     "." replaced by "_", e.g. DISCOVERY_WORKERS)
//  3. config.toml in the working directory, or the file named by CONFIG_FILE
//  4. built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	ScanWorkers int
	RedisURL    string
	CacheTTL    time.Duration

	Log       LogConfig
	Registry  RegistryConfig
	Verifier  VerifierConfig
	Discovery DiscoveryConfig
	Pipeline  PipelineConfig
	Output    OutputConfig
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type RegistryConfig struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	PageSize          int
	RequestsPerSecond float64
}

type VerifierConfig struct {
	DNSTimeout   time.Duration
	ProbeTimeout time.Duration
	UserAgent    string
}

type DiscoveryConfig struct {
	Workers      int
	HarvestLinks bool
	HarvestPages int
}

type PipelineConfig struct {
	EntityWorkers int
	MaxCompanies  int
	MinEmployees  int

	// IncludeDeleted lists the register with deleted entities included
	// instead of searching active ones only.
	IncludeDeleted bool
}

type OutputConfig struct {
	Format string
	File   string // local path or s3://bucket/key

	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// ErrInvalid is the root of validation failures.
var ErrInvalid = errors.New("invalid configuration")

var envAliases = map[string]string{
	"env":               "APP_ENV",
	"listen_addr":       "LISTEN_ADDR",
	"database_url":      "DATABASE_URL",
	"scan_workers":      "SCAN_WORKERS",
	"redis_url":         "REDIS_URL",
	"log.level":         "LOG_LEVEL",
	"registry.base_url": "REGISTRY_BASE_URL",
}

// flag name -> config key
var flagKeys = map[string]string{
	"max-companies":   "pipeline.max_companies",
	"min-employees":   "pipeline.min_employees",
	"output-format":   "output.format",
	"output-file":     "output.file",
	"log-level":       "log.level",
	"harvest-links":   "discovery.harvest_links",
	"include-deleted": "pipeline.include_deleted",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("scan_workers", 0)
	v.SetDefault("cache_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("registry.base_url", "https://data.brreg.no/enhetsregisteret/api")
	v.SetDefault("registry.user_agent", "Norwegian-Companies-Crawler/1.0")
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("registry.page_size", 20)
	v.SetDefault("registry.requests_per_second", 10.0)

	v.SetDefault("verifier.dns_timeout", 5*time.Second)
	v.SetDefault("verifier.probe_timeout", 5*time.Second)
	v.SetDefault("verifier.user_agent", "Norwegian-Companies-Domain-Finder/1.0")

	v.SetDefault("discovery.workers", 8)
	v.SetDefault("discovery.harvest_links", false)
	v.SetDefault("discovery.harvest_pages", 2)

	v.SetDefault("pipeline.entity_workers", 4)
	v.SetDefault("pipeline.max_companies", 1000)
	v.SetDefault("pipeline.min_employees", 10)
	v.SetDefault("pipeline.include_deleted", false)

	v.SetDefault("output.format", "json")
	v.SetDefault("output.file", "norwegian_companies_domains.json")
	v.SetDefault("output.s3_region", "")
	v.SetDefault("output.s3_endpoint", "")
	v.SetDefault("output.s3_path_style", false)
}

// RegisterFlags adds the CLI flags that override configuration keys.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("max-companies", 1000, "Maximum number of companies to process")
	fs.Int("min-employees", 10, "Minimum number of employees to filter companies")
	fs.String("output-format", "json", "Output format: json, csv or xlsx")
	fs.String("output-file", "norwegian_companies_domains.json", "Output file or s3://bucket/key")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.Bool("harvest-links", false, "Also follow links on verified home pages")
	fs.Bool("include-deleted", false, "List every registered entity, deleted ones included")
}

// Load reads the configuration. flags may be nil; only flags registered by
// RegisterFlags are bound.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	cfg := Config{
		Env:         v.GetString("env"),
		ListenAddr:  v.GetString("listen_addr"),
		DatabaseURL: v.GetString("database_url"),
		ScanWorkers: v.GetInt("scan_workers"),
		RedisURL:    v.GetString("redis_url"),
		CacheTTL:    v.GetDuration("cache_ttl"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Registry: RegistryConfig{
			BaseURL:           v.GetString("registry.base_url"),
			UserAgent:         v.GetString("registry.user_agent"),
			Timeout:           v.GetDuration("registry.timeout"),
			PageSize:          v.GetInt("registry.page_size"),
			RequestsPerSecond: v.GetFloat64("registry.requests_per_second"),
		},
		Verifier: VerifierConfig{
			DNSTimeout:   v.GetDuration("verifier.dns_timeout"),
			ProbeTimeout: v.GetDuration("verifier.probe_timeout"),
			UserAgent:    v.GetString("verifier.user_agent"),
		},
		Discovery: DiscoveryConfig{
			Workers:      v.GetInt("discovery.workers"),
			HarvestLinks: v.GetBool("discovery.harvest_links"),
			HarvestPages: v.GetInt("discovery.harvest_pages"),
		},
		Pipeline: PipelineConfig{
			EntityWorkers:  v.GetInt("pipeline.entity_workers"),
			MaxCompanies:   v.GetInt("pipeline.max_companies"),
			MinEmployees:   v.GetInt("pipeline.min_employees"),
			IncludeDeleted: v.GetBool("pipeline.include_deleted"),
		},
		Output: OutputConfig{
			Format: strings.ToLower(v.GetString("output.format")),
			File:   v.GetString("output.file"),

			S3Region:    v.GetString("output.s3_region"),
			S3Endpoint:  v.GetString("output.s3_endpoint"),
			S3PathStyle: v.GetBool("output.s3_path_style"),
		},
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Format == "" {
		if cfg.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
}

func (c Config) validate() error {
	var errs []error
	if c.ScanWorkers < 0 {
		errs = append(errs, errors.New("scan_workers must not be negative"))
	}
	if c.Registry.PageSize < 1 || c.Registry.PageSize > 100 {
		errs = append(errs, errors.New("registry.page_size must be between 1 and 100"))
	}
	if c.Registry.Timeout <= 0 {
		errs = append(errs, errors.New("registry.timeout must be positive"))
	}
	if c.Verifier.DNSTimeout <= 0 || c.Verifier.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("verifier timeouts must be positive"))
	}
	if c.Discovery.Workers < 1 {
		errs = append(errs, errors.New("discovery.workers must be positive"))
	}
	if c.Pipeline.EntityWorkers < 1 {
		errs = append(errs, errors.New("pipeline.entity_workers must be positive"))
	}
	if c.Pipeline.MaxCompanies < 1 {
		errs = append(errs, errors.New("pipeline.max_companies must be positive"))
	}
	if c.Pipeline.MinEmployees < 0 {
		errs = append(errs, errors.New("pipeline.min_employees must not be negative"))
	}
	switch c.Output.Format {
	case "json", "csv", "xlsx":
	default:
		errs = append(errs, fmt.Errorf("unknown output.format %q", c.Output.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
