// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Settle() SettleConfig
	Assert() AssertConfig
	Suite() SuiteConfig
	Report() ReportConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	SettleCfg  SettleConfig  `mapstructure:"settle" yaml:"settle"`
	AssertCfg  AssertConfig  `mapstructure:"assert" yaml:"assert"`
	SuiteCfg   SuiteConfig   `mapstructure:"suite" yaml:"suite"`
	ReportCfg  ReportConfig  `mapstructure:"report" yaml:"report"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Settle() SettleConfig   { return c.SettleCfg }
func (c *Config) Assert() AssertConfig   { return c.AssertCfg }
func (c *Config) Suite() SuiteConfig     { return c.SuiteCfg }
func (c *Config) Report() ReportConfig   { return c.ReportCfg }

// LoggerConfig holds all the configuration for the zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how pages are loaded.
type BrowserConfig struct {
	// Driver is "chrome" (headless Chrome over CDP) or "static" (HTTP fetch, no JavaScript).
	Driver            string        `mapstructure:"driver" yaml:"driver"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	FailOnServerError bool          `mapstructure:"fail_on_server_error" yaml:"fail_on_server_error"`
	ToleratedStatus   []int         `mapstructure:"tolerated_status" yaml:"tolerated_status"`
}

// SettleConfig controls the wait for asynchronous page work.
type SettleConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Recheck  bool          `mapstructure:"recheck" yaml:"recheck"`
	// Probe is "script" (evaluate PendingExpression) or "network" (in-flight requests).
	Probe             string `mapstructure:"probe" yaml:"probe"`
	PendingExpression string `mapstructure:"pending_expression" yaml:"pending_expression"`
}

// AssertConfig controls expectation evaluation.
type AssertConfig struct {
	Wait                time.Duration `mapstructure:"wait" yaml:"wait"`
	LookupTimeout       time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
	NormalizeWhitespace bool          `mapstructure:"normalize_whitespace" yaml:"normalize_whitespace"`
	StrictOrdering      bool          `mapstructure:"strict_ordering" yaml:"strict_ordering"`
}

// SuiteConfig controls which scenarios run and how.
type SuiteConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`
	Filter          string        `mapstructure:"filter" yaml:"filter"`
	LaunchRate      float64       `mapstructure:"launch_rate" yaml:"launch_rate"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	FailFast        bool          `mapstructure:"fail_fast" yaml:"fail_fast"`
}

// ReportConfig controls result output.
type ReportConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`
	Output      string `mapstructure:"output" yaml:"output"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rehydrate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.driver", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1024)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.fail_on_server_error", true)

	// -- Settle --
	v.SetDefault("settle.timeout", "2s")
	v.SetDefault("settle.interval", "50ms")
	v.SetDefault("settle.recheck", true)
	v.SetDefault("settle.probe", "script")

	// -- Assert --
	v.SetDefault("assert.wait", "2s")
	v.SetDefault("assert.lookup_timeout", "2s")
	v.SetDefault("assert.normalize_whitespace", true)
	v.SetDefault("assert.strict_ordering", false)

	// -- Suite --
	v.SetDefault("suite.base_url", "http://localhost:3000")
	v.SetDefault("suite.concurrency", 2)
	v.SetDefault("suite.launch_rate", 2.0)
	v.SetDefault("suite.scenario_timeout", "2m")
	v.SetDefault("suite.fail_fast", false)

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every file path setting.
func (c *Config) expandPaths() error {
	paths := map[string]*string{
		"logger.log_file":     &c.LoggerCfg.LogFile,
		"browser.exec_path":   &c.BrowserCfg.ExecPath,
		"report.output":       &c.ReportCfg.Output,
		"report.metrics_file": &c.ReportCfg.MetricsFile,
	}
	for key, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %s %q: %w", key, *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"chrome", "static"}, c.BrowserCfg.Driver) {
		return fmt.Errorf("browser.driver must be one of chrome, static (got %q)", c.BrowserCfg.Driver)
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if err := c.SettleCfg.Validate(); err != nil {
		return fmt.Errorf("settle configuration invalid: %w", err)
	}
	if c.AssertCfg.Wait < 0 || c.AssertCfg.LookupTimeout < 0 {
		return fmt.Errorf("assert.wait and assert.lookup_timeout must not be negative")
	}
	if err := c.SuiteCfg.Validate(); err != nil {
		return fmt.Errorf("suite configuration invalid: %w", err)
	}
	if !slices.Contains([]string{"text", "json", "junit"}, c.ReportCfg.Format) {
		return fmt.Errorf("report.format must be one of text, json, junit (got %q)", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks the settle section.
func (s *SettleConfig) Validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be a positive duration")
	}
	if s.Probe != "script" && s.Probe != "network" {
		return fmt.Errorf("probe must be one of script, network (got %q)", s.Probe)
	}
	return nil
}

// Validate checks the suite section.
func (s *SuiteConfig) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL (got %q)", s.BaseURL)
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	if s.LaunchRate < 0 {
		return fmt.Errorf("launch_rate must not be negative")
	}
	if s.ScenarioTimeout <= 0 {
		return fmt.Errorf("scenario_timeout must be a positive duration")
	}
	return nil
}
