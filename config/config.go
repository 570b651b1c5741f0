// Package config loads and validates queryguard's daemon
// configuration: a YAML file with a three-level override cascade
// (global, per-instance, per-database), snapshotted once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ftahirops/queryguard/collect"
	"github.com/ftahirops/queryguard/detect"
	"github.com/ftahirops/queryguard/internal/errs"
	"github.com/ftahirops/queryguard/model"
	"github.com/ftahirops/queryguard/remediate"
)

// Cascade is one level of the three-level (global -> instance ->
// database) override cascade. Durations are given in seconds
// in the YAML file for readability.
type Cascade struct {
	TopN              int `yaml:"top_n,omitempty"`
	LookbackSeconds   int `yaml:"lookback_seconds,omitempty"`
	CollectionTimeout int `yaml:"collection_timeout_seconds,omitempty"`
}

func (c Cascade) toLevel() collect.CascadeLevel {
	return collect.CascadeLevel{
		TopN:              c.TopN,
		Lookback:          time.Duration(c.LookbackSeconds) * time.Second,
		CollectionTimeout: time.Duration(c.CollectionTimeout) * time.Second,
	}
}

// DatabaseConfig is one monitored database within an instance.
type DatabaseConfig struct {
	Name    string   `yaml:"name"`
	Enabled bool     `yaml:"enabled"`
	Tags    []string `yaml:"tags,omitempty"`
	Cascade `yaml:",inline"`
}

// InstanceConfig is one monitored SQL Server-family instance. DSN may
// be left empty when the connection string is supplied through the
// environment instead (see SecretResolver).
type InstanceConfig struct {
	Name      string           `yaml:"name"`
	DSN       string           `yaml:"dsn,omitempty"`
	Databases []DatabaseConfig `yaml:"databases"`
	Cascade   `yaml:",inline"`
}

// RegressionRuleConfig mirrors detect.Rules for the YAML file.
type RegressionRuleConfig struct {
	DurationThresholdPercent     float64 `yaml:"duration_threshold_percent"`
	CPUThresholdPercent          float64 `yaml:"cpu_threshold_percent"`
	LogicalReadsThresholdPercent float64 `yaml:"logical_reads_threshold_percent"`
	MinimumExecutions            int64   `yaml:"minimum_executions"`
	MinimumBaselineSamples       int     `yaml:"minimum_baseline_samples"`
}

// ToRules converts the YAML-bound config into detect.Rules.
func (r RegressionRuleConfig) ToRules() detect.Rules {
	return detect.Rules{
		DurationThresholdPercent:     r.DurationThresholdPercent,
		CPUThresholdPercent:          r.CPUThresholdPercent,
		LogicalReadsThresholdPercent: r.LogicalReadsThresholdPercent,
		MinimumExecutions:            r.MinimumExecutions,
		MinimumBaselineSamples:       r.MinimumBaselineSamples,
	}
}

// SlackChannelConfig configures the Slack alert channel.
type SlackChannelConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// SMTPChannelConfig configures an email alert channel.
type SMTPChannelConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// WebhookChannelConfig configures the generic JSON webhook channel.
type WebhookChannelConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// AlertConfig holds per-channel configuration plus the gateway's
// cooldown/rate-cap policy.
type AlertConfig struct {
	CooldownMinutes  int                  `yaml:"cooldown_minutes"`
	MaxAlertsPerHour int                  `yaml:"max_alerts_per_hour"`
	Slack            SlackChannelConfig   `yaml:"slack"`
	SMTP             SMTPChannelConfig    `yaml:"smtp"`
	Webhook          WebhookChannelConfig `yaml:"webhook"`
	RedisCooldownURL string               `yaml:"redis_cooldown_url,omitempty"`
}

// RemediationConfig holds the Executor's gate-sequence policy.
type RemediationConfig struct {
	EnableRemediation          bool     `yaml:"enable_remediation"`
	AllowProductionRemediation bool     `yaml:"allow_production_remediation"`
	DryRun                     bool     `yaml:"dry_run"`
	AutoExecuteTypes           []string `yaml:"auto_execute_types"`
	CommandTimeoutSeconds      int      `yaml:"command_timeout_seconds"`
}

// ToExecutorConfig builds the remediate.ExecutorConfig snapshot the
// Remediation Executor needs, translating the YAML type-name allowlist
// into the model.RemediationType-keyed map it expects.
func (r RemediationConfig) ToExecutorConfig() remediate.ExecutorConfig {
	allow := make(map[model.RemediationType]bool, len(r.AutoExecuteTypes))
	for _, t := range r.AutoExecuteTypes {
		allow[model.RemediationType(t)] = true
	}
	return remediate.ExecutorConfig{
		EnableRemediation:          r.EnableRemediation,
		AllowProductionRemediation: r.AllowProductionRemediation,
		AutoExecuteTypes:           allow,
		CommandTimeout:             time.Duration(r.CommandTimeoutSeconds) * time.Second,
	}
}

// StorageConfig selects the backing store implementation: the
// embedded single-file store (sqlite, the default) or Postgres for
// deployments wanting a shared server-side store.
type StorageConfig struct {
	Driver string `yaml:"driver"`          // "sqlite" (default) or "postgres"
	DSN    string `yaml:"dsn,omitempty"`   // postgres connection string
	Path   string `yaml:"path,omitempty"`  // sqlite file path; defaults under data_dir
}

// ScheduleConfig holds the Scheduler's cadences.
type ScheduleConfig struct {
	CollectionIntervalSeconds int `yaml:"collection_interval_seconds"`
	AnalysisIntervalSeconds   int `yaml:"analysis_interval_seconds"`
	BaselineRebuildHour       int `yaml:"baseline_rebuild_hour"`
	DailySummaryHour          int `yaml:"daily_summary_hour"`
}

// Config is the full, immutable daemon configuration loaded once at
// startup.
type Config struct {
	DataDir               string               `yaml:"data_dir"`
	MinimumExecutionCount int                  `yaml:"minimum_execution_count"`
	Parallelism           int                  `yaml:"parallelism"`
	Storage               StorageConfig        `yaml:"storage"`
	Global                Cascade              `yaml:"global"`
	Instances             []InstanceConfig     `yaml:"instances"`
	RegressionRules       RegressionRuleConfig `yaml:"regression_rules"`
	Alerts                AlertConfig          `yaml:"alerts"`
	Remediation           RemediationConfig    `yaml:"remediation"`
	Schedule              ScheduleConfig       `yaml:"schedule"`
}

// Default returns a config with the built-in defaults.
func Default() Config {
	return Config{
		DataDir:               defaultDataDir(),
		MinimumExecutionCount: 1,
		Parallelism:           4,
		Storage:               StorageConfig{Driver: "sqlite"},
		Global: Cascade{
			TopN:              50,
			LookbackSeconds:   3600,
			CollectionTimeout: 30,
		},
		RegressionRules: RegressionRuleConfig{
			DurationThresholdPercent:     50,
			CPUThresholdPercent:          50,
			LogicalReadsThresholdPercent: 100,
			MinimumExecutions:            5,
			MinimumBaselineSamples:       10,
		},
		Alerts: AlertConfig{
			CooldownMinutes:  15,
			MaxAlertsPerHour: 10,
		},
		Remediation: RemediationConfig{
			CommandTimeoutSeconds: 60,
		},
		Schedule: ScheduleConfig{
			CollectionIntervalSeconds: 300,
			AnalysisIntervalSeconds:   300,
			BaselineRebuildHour:       3,
			DailySummaryHour:          7,
		},
	}
}

// defaultDataDir returns ~/.local/share/queryguard (or
// XDG_DATA_HOME), the home for the embedded store and incident log.
func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "queryguard")
}

// Path returns ~/.config/queryguard/config.yaml (or XDG_CONFIG_HOME).
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "queryguard", "config.yaml")
}

// Load reads and validates the config at path (or the default Path()
// when path is empty), returning a ConfigError on any problem. A
// ConfigError is fatal at startup; no job runs with a bad config.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}
	if path == "" {
		return cfg, &errs.ConfigError{Detail: "cannot determine config path"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &errs.ConfigError{Detail: fmt.Sprintf("read %s", path), Cause: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &errs.ConfigError{Detail: "parse config", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &errs.ConfigError{Detail: "validate config", Cause: err}
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as
// needed.
func Save(cfg Config, path string) error {
	if path == "" {
		path = Path()
	}
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports the first structural problem found, if any — no
// instances, a non-positive parallelism, an unknown storage driver, an
// out-of-range daily hour, or a missing instance/database name.
func (c Config) Validate() error {
	if len(c.Instances) == 0 {
		return fmt.Errorf("no instances configured")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	switch c.Storage.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Storage.DSN == "" && os.Getenv("QUERYGUARD_STORE_DSN") == "" {
			return fmt.Errorf("storage driver postgres requires a dsn (or QUERYGUARD_STORE_DSN)")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	for _, h := range []int{c.Schedule.BaselineRebuildHour, c.Schedule.DailySummaryHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("schedule hour %d out of range [0,23]", h)
		}
	}
	for _, inst := range c.Instances {
		if inst.Name == "" {
			return fmt.Errorf("instance missing name")
		}
		for _, db := range inst.Databases {
			if db.Name == "" {
				return fmt.Errorf("database missing name under instance %s", inst.Name)
			}
		}
	}
	return nil
}

// ResolveTargets expands every enabled database into a
// collect.CollectTarget with its cascade-resolved effective settings.
func (c Config) ResolveTargets() []collect.CollectTarget {
	var out []collect.CollectTarget
	globalLevel := c.Global.toLevel()
	for _, inst := range c.Instances {
		instanceLevel := inst.Cascade.toLevel()
		for _, db := range inst.Databases {
			if !db.Enabled {
				continue
			}
			dbLevel := db.Cascade.toLevel()
			settings := collect.ResolveCascade(globalLevel, instanceLevel, dbLevel)
			out = append(out, collect.CollectTarget{
				Target: model.Target{
					InstanceName: inst.Name,
					DatabaseName: db.Name,
					Enabled:      db.Enabled,
					Tags:         db.Tags,
				},
				Settings: settings,
			})
		}
	}
	return out
}
