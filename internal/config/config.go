package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/remit"
)

// Config holds all runtime configuration for an eraload process. Values come
// from flags and ERALOAD_* environment variables via viper; matching policy
// may additionally come from a YAML file.
type Config struct {
	DSN        string `mapstructure:"dsn"`
	LogFormat  string `mapstructure:"log-format"` // "text" or "json"
	LogLevel   string `mapstructure:"log-level"`
	ConfigFile string `mapstructure:"config"`

	ListenAddr     string `mapstructure:"listen"`
	MaxUploadBytes int64  `mapstructure:"max-upload-bytes"`

	OracleURL       string        `mapstructure:"oracle-url"`
	OracleTimeout   time.Duration `mapstructure:"oracle-timeout"`
	FeeSchedulePath string        `mapstructure:"fee-schedule"`
	EncountersPath  string        `mapstructure:"encounters"`
	RedisAddr       string        `mapstructure:"redis-addr"`
	RateCacheTTL    time.Duration `mapstructure:"rate-cache-ttl"`

	ProcessTimeout    time.Duration `mapstructure:"process-timeout"`
	ClaimlessPolicy   string        `mapstructure:"claimless-policy"`
	ProgramTypes      []string      `mapstructure:"program-types"` // subset of model.AllProgramTypes
	EnvelopeScanBytes int           `mapstructure:"envelope-scan-bytes"`

	FilePath   string `mapstructure:"file"`
	PracticeID string `mapstructure:"practice"`
	Month      string `mapstructure:"month"`
	Year       int    `mapstructure:"year"`
	DryRun     bool   `mapstructure:"dry-run"`

	RetryOlderThan time.Duration `mapstructure:"older-than"`

	ExportFormat string `mapstructure:"format"` // "xlsx" or "parquet"
	OutPath      string `mapstructure:"out"`
}

// Defaults applied before flags and environment.
var defaults = map[string]any{
	"log-format":          "text",
	"log-level":           "info",
	"listen":              ":8080",
	"max-upload-bytes":    int64(20 << 20),
	"oracle-timeout":      5 * time.Second,
	"rate-cache-ttl":      15 * time.Minute,
	"process-timeout":     2 * time.Minute,
	"claimless-policy":    string(remit.ClaimlessSurface),
	"envelope-scan-bytes": 4096,
	"older-than":          time.Duration(0),
	"format":              "xlsx",
}

var envKeys = []string{
	"config", "oracle-url", "fee-schedule", "encounters", "redis-addr",
	"program-types", "file", "practice", "month", "year", "dry-run",
}

// NewViper returns a viper instance with defaults and ERALOAD_* environment
// binding. DATABASE_URL is honored for the DSN.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ERALOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Unmarshal only sees keys viper already knows about.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	_ = v.BindEnv("dsn", "ERALOAD_DSN", "DATABASE_URL")
	return v
}

// Load builds a Config from v and, when a config file is named, merges the
// YAML policy file on top.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.ConfigFile != "" {
		if err := c.LoadFromFile(c.ConfigFile); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.validatePolicy(); err != nil {
		return nil, err
	}
	return c, nil
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	ProgramTypes      []string `yaml:"program_types"`
	ClaimlessPolicy   string   `yaml:"claimless_policy"`
	EnvelopeScanBytes int      `yaml:"envelope_scan_bytes"`
	RateCacheTTL      string   `yaml:"rate_cache_ttl"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Keys absent from the file leave the current values in place, except
// program_types which defaults to every program.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.ProgramTypes = yc.ProgramTypes
	if yc.ClaimlessPolicy != "" {
		c.ClaimlessPolicy = yc.ClaimlessPolicy
	}
	if yc.EnvelopeScanBytes != 0 {
		c.EnvelopeScanBytes = yc.EnvelopeScanBytes
	}
	if yc.RateCacheTTL != "" {
		ttl, err := time.ParseDuration(yc.RateCacheTTL)
		if err != nil {
			return fmt.Errorf("rate_cache_ttl: %w", err)
		}
		c.RateCacheTTL = ttl
	}
	return c.validatePolicy()
}

// validatePolicy checks the matching and decoding policy. An empty
// ProgramTypes defaults to all program names.
func (c *Config) validatePolicy() error {
	if len(c.ProgramTypes) == 0 {
		c.ProgramTypes = model.ProgramTypeNames()
	}
	for _, name := range c.ProgramTypes {
		if _, ok := model.ProgramTypeByName(name); !ok {
			return fmt.Errorf("unknown program type %q in config", name)
		}
	}
	if c.ClaimlessPolicy == "" {
		c.ClaimlessPolicy = string(remit.ClaimlessSurface)
	}
	if _, err := remit.ParseClaimlessPolicy(c.ClaimlessPolicy); err != nil {
		return err
	}
	if c.EnvelopeScanBytes < 0 {
		return fmt.Errorf("envelope_scan_bytes must be positive, got %d", c.EnvelopeScanBytes)
	}
	return nil
}

// Programs returns the configured program types.
func (c *Config) Programs() []model.ProgramType {
	out := make([]model.ProgramType, 0, len(c.ProgramTypes))
	for _, name := range c.ProgramTypes {
		if p, ok := model.ProgramTypeByName(name); ok {
			out = append(out, p.Type)
		}
	}
	return out
}

// Claimless returns the parsed claim-less line policy.
func (c *Config) Claimless() remit.ClaimlessPolicy {
	p, err := remit.ParseClaimlessPolicy(c.ClaimlessPolicy)
	if err != nil {
		return remit.ClaimlessSurface
	}
	return p
}

// Period returns the billing period given by --month and --year.
func (c *Config) Period() (model.Period, error) {
	return model.NewPeriod(c.Month, c.Year)
}

// Validate checks the fields required to ingest a single file.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if strings.TrimSpace(c.PracticeID) == "" {
		return fmt.Errorf("--practice is required")
	}
	if _, err := c.Period(); err != nil {
		return err
	}
	return nil
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.ValidateDSN()
}

// ValidateDSN checks that a database is configured.
func (c *Config) ValidateDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// ValidateExport checks the export format and destination.
func (c *Config) ValidateExport() error {
	if c.ExportFormat != "xlsx" && c.ExportFormat != "parquet" {
		return fmt.Errorf("--format must be xlsx or parquet, got %q", c.ExportFormat)
	}
	if c.OutPath == "" {
		return fmt.Errorf("--out is required")
	}
	return nil
}

// ValidateOracle checks that exactly one fee schedule source is configured.
func (c *Config) ValidateOracle() error {
	switch {
	case c.OracleURL == "" && c.FeeSchedulePath == "":
		return fmt.Errorf("one of --oracle-url or --fee-schedule is required")
	case c.OracleURL != "" && c.FeeSchedulePath != "":
		return fmt.Errorf("--oracle-url and --fee-schedule are mutually exclusive")
	}
	if c.FeeSchedulePath != "" {
		if _, err := os.Stat(c.FeeSchedulePath); err != nil {
			return fmt.Errorf("fee schedule not accessible: %w", err)
		}
	}
	return nil
}
