// Package poolmanager tracks a registry of mining pools, selects the best
// candidate by priority and acceptance rate, and runs the failover state
// transitions when the active pool degrades.
package poolmanager

import (
	"sort"
	"sync"
	"time"

	"coinshaft/internal/errs"
	"coinshaft/internal/logging"
)

// Priority orders pool preference; lower values are preferred.
type Priority int

const (
	Primary Priority = iota
	Backup
	Emergency
)

// Status is a pool connection's lifecycle stage.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Subscribed
	Authorized
	Failed
	Disabled
)

// Config is the static description of a pool.
type Config struct {
	ID                string
	URL               string
	Worker            string
	Password          string
	Priority          Priority
	ConnectTimeout    time.Duration
	KeepaliveInterval time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	FeePercent        float64
}

// State is a pool's mutable runtime record.
type State struct {
	Config               Config
	Status               Status
	FailReason           string
	ConnectionAttempts   int
	SuccessfulConnections int
	SharesSubmitted      uint64
	SharesAccepted       uint64
	SharesRejected       uint64
	LastConnected        *time.Time
	LastShare            *time.Time
	LatencyMs            *int64
}

// AcceptanceRate is accepted/submitted, defined as 1.0 when nothing has
// been submitted yet (an untested pool is optimistically assumed good).
func (s State) AcceptanceRate() float64 {
	if s.SharesSubmitted == 0 {
		return 1.0
	}
	return float64(s.SharesAccepted) / float64(s.SharesSubmitted)
}

// FailoverEvent records one transition of the active pool.
type FailoverEvent struct {
	Timestamp time.Time
	From      string
	To        string
	Reason    string
}

// AggregateStats summarizes the whole registry.
type AggregateStats struct {
	Submitted      uint64
	Accepted       uint64
	Rejected       uint64
	ConnectedPools int
	Acceptance     float64
}

// Manager is the mutex-guarded pool registry. All public methods acquire mu
// for the smallest critical section the operation needs.
type Manager struct {
	maxPools int

	mu       sync.Mutex
	pools    map[string]*State
	order    []string // insertion order, for deterministic iteration
	activeID string
	hasActive bool
	failovers []FailoverEvent
}

// New builds a Manager that rejects AddPool once it holds maxPools entries.
func New(maxPools int) *Manager {
	return &Manager{
		maxPools: maxPools,
		pools:    make(map[string]*State),
	}
}

// AddPool registers a new pool. Fails once the registry already holds
// maxPools entries.
func (m *Manager) AddPool(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pools) >= m.maxPools {
		return errs.New(errs.Configuration, "pool registry full (max %d)", m.maxPools)
	}
	if _, exists := m.pools[cfg.ID]; exists {
		return errs.New(errs.Configuration, "pool %s already registered", cfg.ID)
	}

	m.pools[cfg.ID] = &State{Config: cfg, Status: Disconnected}
	m.order = append(m.order, cfg.ID)
	return nil
}

// RemovePool deletes a pool, clearing the active selection if it was active.
func (m *Manager) RemovePool(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[id]; !exists {
		return
	}
	delete(m.pools, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.hasActive && m.activeID == id {
		m.hasActive = false
		m.activeID = ""
	}
}

// UpdateStatus transitions a pool's status in place.
func (m *Manager) UpdateStatus(id string, status Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[id]
	if !ok {
		return errs.New(errs.Configuration, "unknown pool %s", id)
	}
	p.Status = status
	p.FailReason = reason
	if status == Connected || status == Subscribed || status == Authorized {
		now := time.Now()
		p.LastConnected = &now
		p.SuccessfulConnections++
	}
	p.ConnectionAttempts++
	return nil
}

// RecordShare updates a pool's submission counters.
func (m *Manager) RecordShare(id string, accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[id]
	if !ok {
		return errs.New(errs.Configuration, "unknown pool %s", id)
	}
	p.SharesSubmitted++
	if accepted {
		p.SharesAccepted++
	} else {
		p.SharesRejected++
	}
	now := time.Now()
	p.LastShare = &now
	return nil
}

// SetActivePool sets the active pool, verifying it exists first.
func (m *Manager) SetActivePool(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[id]; !ok {
		return errs.New(errs.Configuration, "unknown pool %s", id)
	}
	m.activeID = id
	m.hasActive = true
	return nil
}

// ActivePool returns the id of the currently active pool, if any.
func (m *Manager) ActivePool() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.hasActive
}

// candidateIDsLocked returns pool ids eligible for selection (not Failed or
// Disabled), sorted by priority ascending then acceptance rate descending.
// Callers must hold mu.
func (m *Manager) candidateIDsLocked() []string {
	var candidates []string
	for _, id := range m.order {
		p := m.pools[id]
		if p.Status != Failed && p.Status != Disabled {
			candidates = append(candidates, id)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := m.pools[candidates[i]], m.pools[candidates[j]]
		if pi.Config.Priority != pj.Config.Priority {
			return pi.Config.Priority < pj.Config.Priority
		}
		return pi.AcceptanceRate() > pj.AcceptanceRate()
	})
	return candidates
}

// SelectBestPool returns the best candidate id under the priority then
// acceptance-rate ordering, or false if no candidate remains.
func (m *Manager) SelectBestPool() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.candidateIDsLocked()
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// Failover marks the current active pool Failed(reason), selects a
// replacement, and records the transition. If no candidate remains the
// active selection is cleared and no event is recorded.
func (m *Manager) Failover(reason string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.activeID
	if m.hasActive {
		if p, ok := m.pools[from]; ok {
			p.Status = Failed
			p.FailReason = reason
		}
	}

	candidates := m.candidateIDsLocked()
	if len(candidates) == 0 {
		m.hasActive = false
		m.activeID = ""
		logging.Warnf("poolmanager: failover from %q found no healthy candidate", from)
		return "", false
	}

	to := candidates[0]
	m.activeID = to
	m.hasActive = true
	m.failovers = append(m.failovers, FailoverEvent{
		Timestamp: time.Now(),
		From:      from,
		To:        to,
		Reason:    reason,
	})
	logging.Infof("poolmanager: failed over from %q to %q (%s)", from, to, reason)
	return to, true
}

// FailoverHistory returns the append-only failover event log.
func (m *Manager) FailoverHistory() []FailoverEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FailoverEvent, len(m.failovers))
	copy(out, m.failovers)
	return out
}

// HealthCheck partitions all registered pools into healthy/unhealthy ids. A
// pool is healthy iff its acceptance rate meets minAcceptanceRate and its
// status is neither Failed nor Disabled.
func (m *Manager) HealthCheck(minAcceptanceRate float64) (healthy, unhealthy []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		p := m.pools[id]
		if p.Status != Failed && p.Status != Disabled && p.AcceptanceRate() >= minAcceptanceRate {
			healthy = append(healthy, id)
		} else {
			unhealthy = append(unhealthy, id)
		}
	}
	return healthy, unhealthy
}

// AggregateStats sums submitted/accepted/rejected across all registered
// pools.
func (m *Manager) AggregateStats() AggregateStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats AggregateStats
	for _, id := range m.order {
		p := m.pools[id]
		stats.Submitted += p.SharesSubmitted
		stats.Accepted += p.SharesAccepted
		stats.Rejected += p.SharesRejected
		if p.Status == Connected || p.Status == Subscribed || p.Status == Authorized {
			stats.ConnectedPools++
		}
	}
	if stats.Submitted > 0 {
		stats.Acceptance = float64(stats.Accepted) / float64(stats.Submitted)
	}
	return stats
}

// Pool returns a copy of a single pool's state.
func (m *Manager) Pool(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return State{}, false
	}
	return *p, true
}

// IDs returns every registered pool id in registration order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
