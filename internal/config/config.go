// Package config loads the gateway's immutable-after-startup configuration:
// a YAML base file overridable by GATEWAY_* environment variables, matching
// the teacher's config-file-plus-env-override convention.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// RiskTier is the registered protocol's declared risk level, which governs
// which threshold row from Config.RiskTiers applies to an agent.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Valid reports whether t is one of the four recognized risk tiers.
func (t RiskTier) Valid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// TierThreshold is one row of the risk-tier override table (spec.md §6/§4.7).
type TierThreshold struct {
	ReportIntervalSec   int  `yaml:"report_interval_sec"`
	ReportEveryNMessage int  `yaml:"report_every_n_messages"`
	EvaluatorRequired   bool `yaml:"evaluator_required"`
}

// Config is the gateway's full set of tunables. Immutable once Load returns.
type Config struct {
	ReportIntervalSec    int                        `yaml:"report_interval_sec"`
	ReportEveryNMessages int                        `yaml:"report_every_n_messages"`
	MinCoverage          float64                    `yaml:"min_coverage"`
	MinSummaryLength     int                        `yaml:"min_summary_length"`
	ViolationCooldown    time.Duration              `yaml:"-"`
	ViolationCooldownHrs float64                    `yaml:"violation_cooldown_hours"`
	MaxViolations        int                        `yaml:"max_violations"`
	SkewToleranceSec     int                        `yaml:"skew_tolerance_sec"`
	ThrottleRate         int                        `yaml:"throttle_rate"`
	ThrottleWindowSec    int                        `yaml:"throttle_window_sec"`
	RetentionDays        int                        `yaml:"retention_days"`
	RequestTimeoutSec    int                        `yaml:"request_timeout_sec"`
	RiskTiers            map[RiskTier]TierThreshold `yaml:"risk_tiers"`
}

// Default returns the configuration with every default from spec.md §6.
func Default() *Config {
	cfg := &Config{
		ReportIntervalSec:    60,
		ReportEveryNMessages: 25,
		MinCoverage:          0.95,
		MinSummaryLength:     30,
		ViolationCooldownHrs: 24,
		MaxViolations:        3,
		SkewToleranceSec:     5,
		ThrottleRate:         1,
		ThrottleWindowSec:    5,
		RetentionDays:        30,
		RequestTimeoutSec:    5,
		RiskTiers: map[RiskTier]TierThreshold{
			RiskLow:      {ReportIntervalSec: 120, ReportEveryNMessage: 50, EvaluatorRequired: false},
			RiskMedium:   {ReportIntervalSec: 60, ReportEveryNMessage: 25, EvaluatorRequired: false},
			RiskHigh:     {ReportIntervalSec: 15, ReportEveryNMessage: 10, EvaluatorRequired: true},
			RiskCritical: {ReportIntervalSec: 5, ReportEveryNMessage: 5, EvaluatorRequired: true},
		},
	}
	cfg.ViolationCooldown = time.Duration(cfg.ViolationCooldownHrs * float64(time.Hour))
	return cfg
}

// Load reads a YAML config file at path (if non-empty) over the defaults,
// then applies GATEWAY_* environment variable overrides. A missing path is
// not an error; defaults-plus-env-overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.ViolationCooldown = time.Duration(cfg.ViolationCooldownHrs * float64(time.Hour))
	return cfg, nil
}

// applyEnvOverrides mirrors the teacher's ContinuousAccessEvaluator pattern
// of letting a single env var override one tunable, generalized to every
// scalar field in Config. The risk_tiers table has no env override; it is
// set only from defaults or the YAML file.
func applyEnvOverrides(cfg *Config) {
	overrideInt("GATEWAY_REPORT_INTERVAL_SEC", &cfg.ReportIntervalSec)
	overrideInt("GATEWAY_REPORT_EVERY_N_MESSAGES", &cfg.ReportEveryNMessages)
	overrideFloat("GATEWAY_MIN_COVERAGE", &cfg.MinCoverage)
	overrideInt("GATEWAY_MIN_SUMMARY_LENGTH", &cfg.MinSummaryLength)
	overrideFloat("GATEWAY_VIOLATION_COOLDOWN_HOURS", &cfg.ViolationCooldownHrs)
	overrideInt("GATEWAY_MAX_VIOLATIONS", &cfg.MaxViolations)
	overrideInt("GATEWAY_SKEW_TOLERANCE_SEC", &cfg.SkewToleranceSec)
	overrideInt("GATEWAY_THROTTLE_RATE", &cfg.ThrottleRate)
	overrideInt("GATEWAY_THROTTLE_WINDOW_SEC", &cfg.ThrottleWindowSec)
	overrideInt("GATEWAY_RETENTION_DAYS", &cfg.RetentionDays)
	overrideInt("GATEWAY_REQUEST_TIMEOUT_SEC", &cfg.RequestTimeoutSec)
}

func overrideInt(envVar string, dest *int) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("ignoring malformed env override", "var", envVar, "value", raw)
		return
	}
	*dest = parsed
}

func overrideFloat(envVar string, dest *float64) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("ignoring malformed env override", "var", envVar, "value", raw)
		return
	}
	*dest = parsed
}

// Thresholds resolves the (report_interval, report_every_n_messages) pair
// that applies for the given risk tier, falling back to the base config
// when tier is empty/unrecognized (no protocol registered yet).
func (c *Config) Thresholds(tier RiskTier) (reportInterval time.Duration, reportEveryN int) {
	if row, ok := c.RiskTiers[tier]; ok {
		return time.Duration(row.ReportIntervalSec) * time.Second, row.ReportEveryNMessage
	}
	return time.Duration(c.ReportIntervalSec) * time.Second, c.ReportEveryNMessages
}
