// Package hashrate tracks a bounded window of hash-count samples and turns
// them into rolling rate statistics, moving averages, and threshold alerts.
package hashrate

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// AlertKind classifies a recorded alert.
type AlertKind int

const (
	// HashRateDrop fires internally when a fresh rate falls well below the
	// running average. HashRateSpike, TemperatureWarning, and HardwareError
	// are reserved variants: the monitor never generates them itself, but
	// callers may append them via RecordAlert.
	HashRateDrop AlertKind = iota
	HashRateSpike
	TemperatureWarning
	HardwareError
)

// Alert is a stored notice, not raised synchronously to any listener.
type Alert struct {
	Kind      AlertKind
	Timestamp time.Time
	Value     float64
	Threshold float64
}

// Sample is one retained observation: a hash-count delta over a time delta.
type Sample struct {
	Timestamp time.Time
	Hashes    uint64
	Duration  time.Duration
}

// Rate returns hashes/second for this sample, 0 if Duration is zero.
func (s Sample) Rate() float64 {
	secs := s.Duration.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.Hashes) / secs
}

// Statistics is a point-in-time rollup of the sample window.
type Statistics struct {
	Current            float64
	Average            float64
	StdDev             float64
	Peak               float64
	Min                float64
	MonitoringDuration time.Duration
	TotalHashes        uint64
	SampleCount        int
}

// Monitor is a bounded sample window driven concurrently by mining-worker
// callbacks, an alert-draining goroutine, and HTTP status handlers; mu
// guards every field below.
type Monitor struct {
	mu sync.Mutex

	maxSamples        int
	sampleInterval    time.Duration
	minSamplesForStats int
	alertThreshold    float64

	samples []Sample

	origin       time.Time
	hasOrigin    bool
	lastSampleAt time.Time
	hasLast      bool
	lastHashes   uint64

	peak      float64
	hasPeak   bool
	min       float64
	hasMin    bool

	alerts []Alert
}

// Config holds the monitor's tunables.
type Config struct {
	MaxSamples         int
	SampleInterval     time.Duration
	MinSamplesForStats int
	AlertThreshold     float64 // e.g. 0.2 for a 20% drop trigger
}

// New builds a Monitor from cfg.
func New(cfg Config) *Monitor {
	return &Monitor{
		maxSamples:         cfg.MaxSamples,
		sampleInterval:     cfg.SampleInterval,
		minSamplesForStats: cfg.MinSamplesForStats,
		alertThreshold:     cfg.AlertThreshold,
	}
}

// Start sets the monitoring origin, used by EffectiveHashRate's duration
// denominator.
func (m *Monitor) Start(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.origin = now
	m.hasOrigin = true
}

// Record ingests a fresh cumulative hash count at time now. It is ignored
// (returns false) if less than sampleInterval has elapsed since the last
// recorded sample.
func (m *Monitor) Record(now time.Time, currentHashCount uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasLast && now.Sub(m.lastSampleAt) < m.sampleInterval {
		return false
	}

	var delta uint64
	var dt time.Duration
	if m.hasLast {
		if currentHashCount > m.lastHashes {
			delta = currentHashCount - m.lastHashes
		}
		dt = now.Sub(m.lastSampleAt)
	}

	sample := Sample{Timestamp: now, Hashes: delta, Duration: dt}
	m.samples = append(m.samples, sample)
	if len(m.samples) > m.maxSamples {
		m.samples = m.samples[len(m.samples)-m.maxSamples:]
	}

	m.lastSampleAt = now
	m.lastHashes = currentHashCount
	m.hasLast = true

	rate := sample.Rate()
	if !m.hasPeak || rate > m.peak {
		m.peak = rate
		m.hasPeak = true
	}
	if rate > 0 && (!m.hasMin || rate < m.min) {
		m.min = rate
		m.hasMin = true
	}

	m.checkAlerts(now, rate)
	return true
}

func (m *Monitor) checkAlerts(now time.Time, rate float64) {
	if len(m.samples) < m.minSamplesForStats || rate <= 0 {
		return
	}
	avg := m.averageRate()
	threshold := avg * (1 - m.alertThreshold)
	if rate < threshold {
		m.alerts = append(m.alerts, Alert{
			Kind:      HashRateDrop,
			Timestamp: now,
			Value:     rate,
			Threshold: threshold,
		})
	}
}

// RecordAlert appends a caller-supplied alert of any kind (used for
// HashRateSpike, TemperatureWarning, HardwareError, which the monitor never
// triggers on its own).
func (m *Monitor) RecordAlert(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

func (m *Monitor) averageRate() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s.Rate()
	}
	return sum / float64(len(m.samples))
}

// Statistics computes the full rollup over the retained sample window.
func (m *Monitor) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{SampleCount: len(m.samples)}
	if m.hasPeak {
		stats.Peak = m.peak
	}
	if m.hasMin {
		stats.Min = m.min
	}
	if len(m.samples) == 0 {
		return stats
	}

	stats.Current = m.samples[len(m.samples)-1].Rate()
	stats.Average = m.averageRate()

	var variance float64
	for _, s := range m.samples {
		d := s.Rate() - stats.Average
		variance += d * d
	}
	variance /= float64(len(m.samples))
	stats.StdDev = math.Sqrt(variance)

	first, last := m.samples[0], m.samples[len(m.samples)-1]
	stats.MonitoringDuration = last.Timestamp.Sub(first.Timestamp)

	for _, s := range m.samples {
		stats.TotalHashes += s.Hashes
	}
	return stats
}

// MovingAverage returns the mean rate of the last min(window, |samples|)
// samples, 0 on an empty window.
func (m *Monitor) MovingAverage(window int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) == 0 {
		return 0
	}
	n := window
	if n > len(m.samples) {
		n = len(m.samples)
	}
	if n <= 0 {
		return 0
	}
	tail := m.samples[len(m.samples)-n:]
	var sum float64
	for _, s := range tail {
		sum += s.Rate()
	}
	return sum / float64(n)
}

// EffectiveHashRate derives the rate implied by accepted shares rather than
// raw hash counts: (acceptedShares * shareDifficulty * 2^32) / duration.
func (m *Monitor) EffectiveHashRate(acceptedShares uint64, shareDifficulty float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasOrigin || len(m.samples) == 0 {
		return 0
	}
	duration := m.samples[len(m.samples)-1].Timestamp.Sub(m.origin).Seconds()
	if duration == 0 {
		return 0
	}
	return float64(acceptedShares) * shareDifficulty * math.Pow(2, 32) / duration
}

// RecentSamples returns a copy of the last k retained samples (or fewer).
func (m *Monitor) RecentSamples(k int) []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k > len(m.samples) {
		k = len(m.samples)
	}
	if k <= 0 {
		return nil
	}
	out := make([]Sample, k)
	copy(out, m.samples[len(m.samples)-k:])
	return out
}

// Alerts returns a copy of the stored alert log.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// ClearAlerts empties the alert log.
func (m *Monitor) ClearAlerts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}

// Reset clears all samples, extremes, and origin state, leaving
// configuration untouched.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = nil
	m.hasOrigin = false
	m.hasLast = false
	m.hasPeak = false
	m.hasMin = false
	m.lastHashes = 0
	m.alerts = nil
}

// FormatHashRate renders a rate in H/s with the appropriate K/M/G/T prefix,
// auto-selected at the 10^3/10^6/10^9/10^12 thresholds.
func FormatHashRate(hashesPerSec float64) string {
	units := []struct {
		threshold float64
		suffix    string
	}{
		{1e12, "TH/s"},
		{1e9, "GH/s"},
		{1e6, "MH/s"},
		{1e3, "KH/s"},
	}
	for _, u := range units {
		if hashesPerSec >= u.threshold {
			return trimTrailingZeros(hashesPerSec/u.threshold) + " " + u.suffix
		}
	}
	return trimTrailingZeros(hashesPerSec) + " H/s"
}

func trimTrailingZeros(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}
