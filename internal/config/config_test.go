package config

import (
	"os"
	"testing"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ReportIntervalSec != 60 {
		t.Errorf("ReportIntervalSec = %d, want 60", cfg.ReportIntervalSec)
	}
	if cfg.ReportEveryNMessages != 25 {
		t.Errorf("ReportEveryNMessages = %d, want 25", cfg.ReportEveryNMessages)
	}
	if cfg.MinCoverage != 0.95 {
		t.Errorf("MinCoverage = %v, want 0.95", cfg.MinCoverage)
	}
	if cfg.MaxViolations != 3 {
		t.Errorf("MaxViolations = %d, want 3", cfg.MaxViolations)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	os.Setenv("GATEWAY_MIN_COVERAGE", "0.5")
	defer os.Unsetenv("GATEWAY_MIN_COVERAGE")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinCoverage != 0.5 {
		t.Errorf("MinCoverage = %v, want 0.5 from env override", cfg.MinCoverage)
	}
}

func TestLoadIgnoresMalformedEnvOverride(t *testing.T) {
	os.Setenv("GATEWAY_MAX_VIOLATIONS", "not-a-number")
	defer os.Unsetenv("GATEWAY_MAX_VIOLATIONS")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxViolations != 3 {
		t.Errorf("expected default MaxViolations to survive malformed override, got %d", cfg.MaxViolations)
	}
}

func TestThresholdsRiskTierOverride(t *testing.T) {
	cfg := Default()

	interval, everyN := cfg.Thresholds(RiskCritical)
	if everyN != 5 || interval.Seconds() != 5 {
		t.Errorf("critical tier = (%v, %d), want (5s, 5)", interval, everyN)
	}

	interval, everyN = cfg.Thresholds(RiskLow)
	if everyN != 50 || interval.Seconds() != 120 {
		t.Errorf("low tier = (%v, %d), want (120s, 50)", interval, everyN)
	}

	interval, everyN = cfg.Thresholds("")
	if everyN != cfg.ReportEveryNMessages || interval.Seconds() != float64(cfg.ReportIntervalSec) {
		t.Errorf("unregistered tier should fall back to base config, got (%v, %d)", interval, everyN)
	}
}
