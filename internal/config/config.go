// Package config provides configuration loading for the atref resolver and server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/orchestrator"
	"github.com/atref/atref/internal/resolver"
	"github.com/atref/atref/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables overriding file values,
	// for example ATREF_RESOLVER_SERVICEURL or ATREF_CACHE_CAPACITY
	EnvPrefix = "ATREF"

	// DefaultAddress is the listen address of `atref serve`
	DefaultAddress = ":8080"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	env  *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnvOverrides applies ATREF_* environment variables on top of the file
func WithEnvOverrides() Option {
	return func(cfg *loaderConfig) error {
		v := viper.New()
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
		cfg.env = v
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`

	// Degrade returns partial records when a lookup fails. Defaults to true.
	Degrade *bool `yaml:"degrade,omitempty"`

	// Concurrency bounds parallel resolutions in batch mode
	Concurrency int `yaml:"concurrency,omitempty"`

	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ResolverConfig defines the handle resolution service and retry settings
type ResolverConfig struct {
	// ServiceURL is the XRPC service answering com.atproto.identity.resolveHandle
	ServiceURL string `yaml:"serviceURL,omitempty"`

	// RequestTimeout bounds a single attempt, e.g. "5s"
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	// MaxRetries is the number of retries after a transport failure
	MaxRetries *uint `yaml:"maxRetries,omitempty"`

	// BaseDelay is the first backoff delay, e.g. "100ms"
	BaseDelay string `yaml:"baseDelay,omitempty"`

	// ReverseFailurePolicy is "fail" or "fallback"
	ReverseFailurePolicy string `yaml:"reverseFailurePolicy,omitempty"`
}

// CacheConfig defines the mapping cache settings
type CacheConfig struct {
	Capacity int    `yaml:"capacity,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`

	// SnapshotPath is where mappings are persisted.
	// Defaults to $XDG_CACHE_HOME/atref/mappings.json.
	SnapshotPath string `yaml:"snapshotPath,omitempty"`

	// Persist enables the snapshot file. Defaults to true.
	Persist *bool `yaml:"persist,omitempty"`
}

// ServerConfig defines the HTTP API settings
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and optional environment overrides, then validates it
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.env != nil {
		if err := config.applyEnv(loaderCfg.env); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnv overrides the fields set in the environment
func (c *Config) applyEnv(v *viper.Viper) error {
	setString := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	setString("resolver.serviceURL", &c.Resolver.ServiceURL)
	setString("resolver.requestTimeout", &c.Resolver.RequestTimeout)
	setString("resolver.baseDelay", &c.Resolver.BaseDelay)
	setString("resolver.reverseFailurePolicy", &c.Resolver.ReverseFailurePolicy)
	setString("cache.ttl", &c.Cache.TTL)
	setString("cache.snapshotPath", &c.Cache.SnapshotPath)
	setString("server.address", &c.Server.Address)

	var errs []error
	if s := v.GetString("resolver.maxRetries"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s_RESOLVER_MAXRETRIES: %w", EnvPrefix, err))
		} else {
			retries := uint(n)
			c.Resolver.MaxRetries = &retries
		}
	}
	for key, dst := range map[string]*int{"cache.capacity": &c.Cache.Capacity, "concurrency": &c.Concurrency} {
		if s := v.GetString(key); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err))
				continue
			}
			*dst = n
		}
	}
	for key, dst := range map[string]**bool{"degrade": &c.Degrade, "cache.persist": &c.Cache.Persist} {
		if s := v.GetString(key); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err))
				continue
			}
			*dst = &b
		}
	}
	return errors.Join(errs...)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if c.Resolver.ServiceURL != "" {
		u, err := url.Parse(c.Resolver.ServiceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("resolver.serviceURL must be an absolute http(s) URL, got %q", c.Resolver.ServiceURL))
		}
	}
	errs = append(errs,
		validateDuration("resolver.requestTimeout", c.Resolver.RequestTimeout),
		validateDuration("resolver.baseDelay", c.Resolver.BaseDelay),
		validateDuration("cache.ttl", c.Cache.TTL),
	)
	if _, err := resolver.ParseReverseFailurePolicy(c.Resolver.ReverseFailurePolicy); err != nil {
		errs = append(errs, fmt.Errorf("resolver.reverseFailurePolicy: %w", err))
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// validateDuration accepts an empty value or a positive duration
func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '5s', '1h'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

// parseDuration returns the parsed value or def; values are validated on load
func parseDuration(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return def
}

// GetServiceURL returns the resolution service, using the public AppView if not specified
func (c *Config) GetServiceURL() string {
	if c.Resolver.ServiceURL == "" {
		return resolver.DefaultServiceURL
	}
	return c.Resolver.ServiceURL
}

// GetRequestTimeout returns the per-attempt timeout
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Resolver.RequestTimeout, resolver.DefaultRequestTimeout)
}

// GetMaxRetries returns the retry budget
func (c *Config) GetMaxRetries() uint {
	if c.Resolver.MaxRetries == nil {
		return resolver.DefaultMaxRetries
	}
	return *c.Resolver.MaxRetries
}

// GetBaseDelay returns the first backoff delay
func (c *Config) GetBaseDelay() time.Duration {
	return parseDuration(c.Resolver.BaseDelay, resolver.DefaultBaseDelay)
}

// GetReverseFailurePolicy returns the parsed reverse failure policy
func (c *Config) GetReverseFailurePolicy() resolver.ReverseFailurePolicy {
	policy, err := resolver.ParseReverseFailurePolicy(c.Resolver.ReverseFailurePolicy)
	if err != nil {
		return resolver.ReverseFail
	}
	return policy
}

// GetCacheCapacity returns the cache capacity
func (c *Config) GetCacheCapacity() int {
	if c.Cache.Capacity == 0 {
		return cache.DefaultCapacity
	}
	return c.Cache.Capacity
}

// GetCacheTTL returns the mapping time-to-live
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, cache.DefaultTTL)
}

// PersistEnabled reports whether the cache is persisted to a snapshot file
func (c *Config) PersistEnabled() bool {
	return c.Cache.Persist == nil || *c.Cache.Persist
}

// GetAddress returns the server listen address
func (c *Config) GetAddress() string {
	if c.Server.Address == "" {
		return DefaultAddress
	}
	return c.Server.Address
}

// OrchestratorConfig returns the orchestrator settings
func (c *Config) OrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if c.Degrade != nil {
		cfg.Degrade = *c.Degrade
	}
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	return cfg
}
