// Package plugin wires the mining configuration, detected hardware profile,
// an optional pool client, and an optional coordinator behind a single
// start/stop surface.
package plugin

import (
	"context"
	"sync"

	"coinshaft/internal/errs"
	"coinshaft/internal/hardware"
	"coinshaft/internal/poolclient"
	"coinshaft/internal/powcore"
)

// MiningConfig is the subset of configuration the plugin validates and acts
// on directly.
type MiningConfig struct {
	MaxCPUPercentage  float64
	BackgroundPriority bool
	ThreadCount       int // 0 = auto
	PoolURL           string
	WorkerName        string
	GPUEnabled        bool
	MinHashrate       float64
	AutoPauseOnLoad   bool
	ThermalThrottleTemp *uint8
}

// Plugin composes the mining subsystems behind a single lifecycle.
type Plugin struct {
	mu sync.Mutex

	cfg     MiningConfig
	profile hardware.Profile
	pool    *poolclient.Client

	coordinator *powcore.Coordinator
}

// New validates cfg and builds a Plugin bound to the detected hardware
// profile and an optional pool client.
func New(cfg MiningConfig, profile hardware.Profile, pool *poolclient.Client) (*Plugin, error) {
	if err := validateCPUPercentage(cfg.MaxCPUPercentage); err != nil {
		return nil, err
	}
	return &Plugin{cfg: cfg, profile: profile, pool: pool}, nil
}

func validateCPUPercentage(pct float64) error {
	if pct < 1 || pct > 100 {
		return errs.New(errs.Configuration, "max_cpu_percentage must be in [1, 100], got %v", pct)
	}
	return nil
}

// UpdateConfig replaces the plugin's configuration after re-validating it.
func (p *Plugin) UpdateConfig(cfg MiningConfig) error {
	if err := validateCPUPercentage(cfg.MaxCPUPercentage); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// StartBackgroundMining requires no active coordinator, builds one sized by
// the effective thread count, pulls the current job from the pool client if
// connected, and starts the search.
func (p *Plugin) StartBackgroundMining(onShare func(nonce uint32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.coordinator != nil && p.coordinator.IsRunning() {
		return errs.New(errs.Coordinator, "mining already running")
	}

	var explicit *int
	if p.cfg.ThreadCount > 0 {
		explicit = &p.cfg.ThreadCount
	}
	threads := powcore.EffectiveThreadCount(p.profile.PhysicalCores, explicit, p.cfg.MaxCPUPercentage)
	coordinator := powcore.NewCoordinator(threads)

	header := powcore.BlockHeader{}
	target := powcore.HashTarget{}
	if p.pool != nil {
		if job, err := p.pool.GetJob(); err == nil && job != nil {
			header = job.Header
			target = job.Target
		}
	}

	if err := coordinator.Start(header, target, onShare); err != nil {
		return err
	}
	p.coordinator = coordinator
	return nil
}

// StopBackgroundMining stops and releases the active coordinator, if any.
func (p *Plugin) StopBackgroundMining() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.coordinator != nil {
		p.coordinator.Stop()
		p.coordinator = nil
	}
}

// Stats returns the active coordinator's stats, or a zero value if mining
// is not running.
func (p *Plugin) Stats() powcore.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coordinator == nil {
		return powcore.Stats{}
	}
	return p.coordinator.Stats()
}

// Close stops mining and disconnects the pool client, mirroring the
// teardown a Drop implementation would perform.
func (p *Plugin) Close(ctx context.Context) error {
	p.StopBackgroundMining()

	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()

	if pool != nil {
		return pool.Close()
	}
	return nil
}
