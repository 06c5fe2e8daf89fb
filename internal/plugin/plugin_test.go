package plugin

import (
	"context"
	"testing"
	"time"

	"coinshaft/internal/hardware"
)

func TestNewRejectsOutOfRangeCPUPercentage(t *testing.T) {
	profile := hardware.Profile{PhysicalCores: 4}

	if _, err := New(MiningConfig{MaxCPUPercentage: 0}, profile, nil); err == nil {
		t.Error("0%% CPU should be rejected")
	}
	if _, err := New(MiningConfig{MaxCPUPercentage: 101}, profile, nil); err == nil {
		t.Error("101%% CPU should be rejected")
	}
	if _, err := New(MiningConfig{MaxCPUPercentage: 50}, profile, nil); err != nil {
		t.Errorf("50%% CPU should be accepted, got error: %v", err)
	}
}

func TestStartBackgroundMiningRejectsDoubleStart(t *testing.T) {
	profile := hardware.Profile{PhysicalCores: 2}
	p, err := New(MiningConfig{MaxCPUPercentage: 100, ThreadCount: 1}, profile, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.StartBackgroundMining(nil); err != nil {
		t.Fatalf("first StartBackgroundMining failed: %v", err)
	}
	defer p.StopBackgroundMining()

	if err := p.StartBackgroundMining(nil); err == nil {
		t.Error("second StartBackgroundMining should fail while already running")
	}
}

func TestStopBackgroundMiningIsIdempotent(t *testing.T) {
	profile := hardware.Profile{PhysicalCores: 2}
	p, _ := New(MiningConfig{MaxCPUPercentage: 100, ThreadCount: 1}, profile, nil)

	p.StartBackgroundMining(nil)
	p.StopBackgroundMining()
	p.StopBackgroundMining() // should not panic

	if p.Stats().Running {
		t.Error("Stats should report not running after Stop")
	}
}

func TestCloseStopsMining(t *testing.T) {
	profile := hardware.Profile{PhysicalCores: 2}
	p, _ := New(MiningConfig{MaxCPUPercentage: 100, ThreadCount: 1}, profile, nil)
	p.StartBackgroundMining(nil)

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if p.Stats().Running {
		t.Error("Close should stop background mining")
	}
}
