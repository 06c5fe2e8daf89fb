// Command coinshaft runs a standalone CPU mining coordinator: hardware
// detection, a pool session, the hash-rate monitor, the reward
// distributor, and a read-only status API, wired together and driven
// until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinshaft/internal/api"
	"coinshaft/internal/config"
	"coinshaft/internal/hardware"
	"coinshaft/internal/hashrate"
	"coinshaft/internal/logging"
	"coinshaft/internal/notify"
	"coinshaft/internal/persistence"
	"coinshaft/internal/plugin"
	"coinshaft/internal/poolclient"
	"coinshaft/internal/poolmanager"
	"coinshaft/internal/profiling"
	"coinshaft/internal/reward"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	redisAddr := flag.String("redis", "", "Redis address for snapshot persistence (disabled if empty)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("coinshaft v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logging.Infof("coinshaft v%s starting", version)

	profile := hardware.Detect()
	if !profile.IsSuitableForMining() {
		logging.Warn("detected hardware profile falls below the recommended mining minimums")
	}

	pools := poolmanager.New(cfg.Pools.MaxPools)
	distributor := reward.New(reward.Config{
		Method:                parsePolicy(cfg.Reward.Method),
		PPLNSWindow:           cfg.Reward.PPLNSWindow,
		MaturityConfirmations: cfg.Reward.MaturityConfirmations,
		MinPayoutSats:         cfg.Reward.MinPayoutSats,
		FeePercent:            cfg.Reward.FeePercent,
		ScoreDecay:            cfg.Reward.ScoreDecay,
	})
	monitor := hashrate.New(hashrate.Config{
		MaxSamples:         cfg.Monitor.MaxSamples,
		SampleInterval:     cfg.Monitor.SampleInterval,
		MinSamplesForStats: cfg.Monitor.MinSamplesForStats,
		AlertThreshold:     cfg.Monitor.AlertThreshold,
	})
	monitor.Start(time.Now())

	var store *persistence.Store
	if *redisAddr != "" {
		store, err = persistence.NewStore(*redisAddr, "", 0)
		if err != nil {
			logging.Errorf("failed to connect to redis, continuing without persistence: %v", err)
		} else {
			if err := store.RestoreDistributor(distributor); err != nil {
				logging.Errorf("failed to restore distributor snapshot: %v", err)
			}
			defer store.Close()
		}
	}

	notifier := notify.NewNotifier(&notify.WebhookConfig{Enabled: false})

	var pool *poolclient.Client
	if cfg.Mining.PoolURL != "" {
		addr, err := poolclient.ParsePoolURL(cfg.Mining.PoolURL)
		if err != nil {
			logging.Fatalf("invalid pool_url %q: %v", cfg.Mining.PoolURL, err)
		}
		pool = poolclient.New(nil)
		dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Pools.HealthCheckPeriod)
		if err := pool.Connect(dialCtx, addr.String(), 10*time.Second); err != nil {
			logging.Errorf("failed to connect to pool: %v", err)
		} else {
			if err := pool.Subscribe(dialCtx); err != nil {
				logging.Errorf("failed to subscribe to pool: %v", err)
			} else if err := pool.Authorize(dialCtx, cfg.Mining.WorkerName, ""); err != nil {
				logging.Errorf("failed to authorize with pool: %v", err)
			}
		}
		cancel()
	}

	p, err := plugin.New(toPluginConfig(cfg.Mining), profile, pool)
	if err != nil {
		logging.Fatalf("invalid mining configuration: %v", err)
	}

	onShare := func(nonce uint32) {
		monitor.Record(time.Now(), 0)
		distributor.RecordShare(cfg.Mining.WorkerName, 1.0, true, 0)
	}
	if err := p.StartBackgroundMining(onShare); err != nil {
		logging.Fatalf("failed to start mining: %v", err)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Bind, p.Stats, monitor, pools, distributor)
		if err := apiServer.Start(); err != nil {
			logging.Errorf("failed to start api server: %v", err)
		}
	}

	var pprofServer *profiling.Server
	if cfg.Profiling.Enabled {
		pprofServer = profiling.NewServer(cfg.Profiling)
		if err := pprofServer.Start(); err != nil {
			logging.Errorf("failed to start profiling server: %v", err)
		}
	}

	go watchForAlerts(monitor, notifier)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logging.Info("coinshaft started, press Ctrl+C to stop")
	<-sigChan
	logging.Info("shutting down")

	if err := p.Close(context.Background()); err != nil {
		logging.Errorf("error stopping mining: %v", err)
	}
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		apiServer.Stop(shutdownCtx)
		cancel()
	}
	if pprofServer != nil {
		pprofServer.Stop()
	}
	if store != nil {
		if err := store.SnapshotDistributor(distributor); err != nil {
			logging.Errorf("failed to snapshot distributor on shutdown: %v", err)
		}
	}

	logging.Info("coinshaft stopped")
}

// watchForAlerts polls the monitor for newly recorded alerts and relays
// them through the notifier, clearing the log as it drains it.
func watchForAlerts(monitor *hashrate.Monitor, notifier *notify.Notifier) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		alerts := monitor.Alerts()
		if len(alerts) == 0 {
			continue
		}
		for _, a := range alerts {
			if a.Kind == hashrate.HashRateDrop {
				notifier.NotifyHashRateDrop(a)
			}
		}
		monitor.ClearAlerts()
	}
}

func parsePolicy(method string) reward.Policy {
	switch method {
	case "pps":
		return reward.PPS
	case "pplns":
		return reward.PPLNS
	case "proportional":
		return reward.Proportional
	case "score":
		return reward.Score
	case "solo":
		return reward.Solo
	default:
		return reward.PPLNS
	}
}

func toPluginConfig(m config.MiningConfig) plugin.MiningConfig {
	pc := plugin.MiningConfig{
		MaxCPUPercentage:   m.MaxCPUPercentage,
		BackgroundPriority: m.BackgroundPriority,
		ThreadCount:        m.ThreadCount,
		PoolURL:            m.PoolURL,
		WorkerName:         m.WorkerName,
		GPUEnabled:         m.GPUEnabled,
		MinHashrate:        m.MinHashrate,
		AutoPauseOnLoad:    m.AutoPauseOnLoad,
	}
	if m.ThermalThrottleTemp > 0 {
		t := uint8(m.ThermalThrottleTemp)
		pc.ThermalThrottleTemp = &t
	}
	return pc
}
