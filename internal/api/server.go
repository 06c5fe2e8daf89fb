// Package api exposes a thin, read-only gin HTTP surface over the
// coordinator, hash-rate monitor, pool manager, and reward distributor. It
// never mutates any of them; it is a reporting shell, not a control plane.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"coinshaft/internal/hashrate"
	"coinshaft/internal/logging"
	"coinshaft/internal/poolmanager"
	"coinshaft/internal/powcore"
	"coinshaft/internal/reward"
)

// CoordinatorStatsFunc reports the active coordinator's stats.
type CoordinatorStatsFunc func() powcore.Stats

// Server is the read-only status HTTP server.
type Server struct {
	router *gin.Engine
	server *http.Server

	bind string

	coordinatorStats CoordinatorStatsFunc
	monitor          *hashrate.Monitor
	pools            *poolmanager.Manager
	distributor      *reward.Distributor
}

// NewServer builds a Server bound to the given subsystems. Any of monitor,
// pools, or distributor may be nil, in which case the corresponding
// endpoint reports empty lists or zero-valued fields rather than erroring.
func NewServer(bind string, coordinatorStats CoordinatorStatsFunc, monitor *hashrate.Monitor, pools *poolmanager.Manager, distributor *reward.Distributor) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:           router,
		bind:             bind,
		coordinatorStats: coordinatorStats,
		monitor:          monitor,
		pools:            pools,
		distributor:      distributor,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/stats", s.handleStats)
	s.router.GET("/pools", s.handlePools)
	s.router.GET("/workers", s.handleWorkers)
	s.router.GET("/payouts", s.handlePayouts)
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// StatsResponse is the GET /stats body: coordinator plus hash-rate
// monitor state.
type StatsResponse struct {
	Coordinator powcore.Stats        `json:"coordinator"`
	HashRate    hashrate.Statistics  `json:"hash_rate"`
	Alerts      []hashrate.Alert     `json:"alerts"`
}

func (s *Server) handleStats(c *gin.Context) {
	resp := StatsResponse{}
	if s.coordinatorStats != nil {
		resp.Coordinator = s.coordinatorStats()
	}
	if s.monitor != nil {
		resp.HashRate = s.monitor.Statistics()
		resp.Alerts = s.monitor.Alerts()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePools(c *gin.Context) {
	if s.pools == nil {
		c.JSON(http.StatusOK, gin.H{"pools": []poolmanager.State{}, "active": nil})
		return
	}

	var states []poolmanager.State
	for _, id := range s.pools.IDs() {
		if st, ok := s.pools.Pool(id); ok {
			states = append(states, st)
		}
	}
	active, _ := s.pools.ActivePool()

	c.JSON(http.StatusOK, gin.H{
		"pools":     states,
		"active":    active,
		"aggregate": s.pools.AggregateStats(),
		"failovers": s.pools.FailoverHistory(),
	})
}

func (s *Server) handleWorkers(c *gin.Context) {
	if s.distributor == nil {
		c.JSON(http.StatusOK, gin.H{"workers": []reward.WorkerStats{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": s.distributor.Workers()})
}

func (s *Server) handlePayouts(c *gin.Context) {
	if s.distributor == nil {
		c.JSON(http.StatusOK, gin.H{"payouts": []reward.Payout{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": s.distributor.Payouts()})
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.bind,
		Handler: s.router,
	}

	logging.Infof("api server listening on %s", s.bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("api server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to the given context's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
