package lancar

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds process defaults that can be loaded from the environment or a
// YAML file and applied to a Settings layer.
type Config struct {
	Timeout           time.Duration `envconfig:"TIMEOUT" yaml:"timeout" default:"100s"`
	CookiesEnabled    bool          `envconfig:"COOKIES_ENABLED" yaml:"cookies_enabled" default:"true"`
	AllowedHTTPStatus string        `envconfig:"ALLOWED_HTTP_STATUS" yaml:"allowed_http_status"`

	// LogLevel is a zap level name; "off" keeps the no-op logger.
	LogLevel       string `envconfig:"LOG_LEVEL" yaml:"log_level" default:"off"`
	LogDevelopment bool   `envconfig:"LOG_DEV" yaml:"log_development" default:"false"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" yaml:"rate_limit_rps" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" yaml:"rate_limit_burst" default:"1"`

	// CircuitBreakerThreshold enables a breaker per client when positive.
	CircuitBreakerThreshold int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" yaml:"circuit_breaker_threshold" default:"0"`
	CircuitBreakerRecovery  time.Duration `envconfig:"CIRCUIT_BREAKER_RECOVERY" yaml:"circuit_breaker_recovery" default:"60s"`

	// Deduplicate coalesces concurrent identical GET, HEAD and OPTIONS calls.
	Deduplicate bool `envconfig:"DEDUPLICATE" yaml:"deduplicate" default:"false"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        DefaultTimeout,
		CookiesEnabled: true,
		LogLevel:       "off",
		RateLimitBurst: 1,

		CircuitBreakerRecovery: 60 * time.Second,
	}
}

// LoadConfig reads LANCAR_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("lancar", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile reads a YAML file. Keys missing from the file keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Timeout < 0 {
		errors = append(errors, "timeout must be non-negative")
	}
	if c.AllowedHTTPStatus != "" && !validStatusExpr(c.AllowedHTTPStatus) {
		errors = append(errors, fmt.Sprintf("allowed status expression %q is malformed", c.AllowedHTTPStatus))
	}
	if c.RateLimitRPS < 0 {
		errors = append(errors, "rate limit rps must be non-negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errors = append(errors, "rate limit burst must be at least 1")
	}
	if c.CircuitBreakerThreshold < 0 {
		errors = append(errors, "circuit breaker threshold must be non-negative")
	}

	if len(errors) > 0 {
		return &CallError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}
	return nil
}

// Apply writes the configuration into s.
func (c *Config) Apply(s *Settings) error {
	s.SetTimeout(c.Timeout)
	s.SetCookiesEnabled(c.CookiesEnabled)
	if c.AllowedHTTPStatus != "" {
		s.SetAllowedHTTPStatus(c.AllowedHTTPStatus)
	}

	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level != "" && level != "off" {
		logger, err := NewLeveledLogger(level, c.LogDevelopment)
		if err != nil {
			return err
		}
		s.SetLogger(logger)
	}
	return nil
}

// ClientOptions returns the options that cannot live in Settings.
func (c *Config) ClientOptions() []Option {
	var options []Option
	if c.RateLimitRPS > 0 {
		options = append(options, WithRateLimit(c.RateLimitRPS, c.RateLimitBurst))
	}
	if c.CircuitBreakerThreshold > 0 {
		options = append(options, WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreakerThreshold,
			RecoveryTimeout:  c.CircuitBreakerRecovery,
		}))
	}
	if c.Deduplicate {
		options = append(options, WithDeduplication())
	}
	return options
}
