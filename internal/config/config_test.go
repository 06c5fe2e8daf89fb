package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		Mining: MiningConfig{MaxCPUPercentage: 80},
		Pools:  PoolsConfig{MaxPools: 5},
		Monitor: MonitorConfig{
			MaxSamples: 60,
		},
		Reward: RewardConfig{Method: "pplns"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsOutOfRangeCPUPercentage(t *testing.T) {
	c := validConfig()
	c.Mining.MaxCPUPercentage = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate should reject max_cpu_percentage = 0")
	}

	c.Mining.MaxCPUPercentage = 101
	if err := c.Validate(); err == nil {
		t.Error("Validate should reject max_cpu_percentage = 101")
	}
}

func TestValidateRejectsNonPositiveMaxPools(t *testing.T) {
	c := validConfig()
	c.Pools.MaxPools = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate should reject pools.max_pools = 0")
	}
}

func TestValidateRejectsZeroMaxSamples(t *testing.T) {
	c := validConfig()
	c.Monitor.MaxSamples = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate should reject monitor.max_samples = 0")
	}
}

func TestValidateRejectsUnknownRewardMethod(t *testing.T) {
	c := validConfig()
	c.Reward.Method = "bogus"
	if err := c.Validate(); err == nil {
		t.Error("Validate should reject an unrecognized reward.method")
	}
}

func TestLoadAppliesDefaultsWithoutAConfigFile(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	defer os.Chdir(old)
	os.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mining.MaxCPUPercentage != 80.0 {
		t.Errorf("default mining.max_cpu_percentage = %v, want 80", cfg.Mining.MaxCPUPercentage)
	}
	if cfg.Reward.Method != "pplns" {
		t.Errorf("default reward.method = %q, want pplns", cfg.Reward.Method)
	}
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coinshaft.yaml")
	contents := "mining:\n  max_cpu_percentage: 50\nreward:\n  method: solo\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mining.MaxCPUPercentage != 50 {
		t.Errorf("mining.max_cpu_percentage = %v, want 50", cfg.Mining.MaxCPUPercentage)
	}
	if cfg.Reward.Method != "solo" {
		t.Errorf("reward.method = %q, want solo", cfg.Reward.Method)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coinshaft.yaml")
	contents := "mining:\n  max_cpu_percentage: 500\n"
	os.WriteFile(path, []byte(contents), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("Load should fail validation for an out-of-range value")
	}
}
