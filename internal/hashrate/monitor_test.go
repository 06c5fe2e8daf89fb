package hashrate

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxSamples:         5,
		SampleInterval:     time.Second,
		MinSamplesForStats: 2,
		AlertThreshold:     0.2,
	}
}

func TestRecordIgnoresWithinSampleInterval(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)

	if !m.Record(base, 1000) {
		t.Fatal("first Record should always be accepted")
	}
	if m.Record(base.Add(100*time.Millisecond), 2000) {
		t.Error("Record within sample_interval should be ignored")
	}
	if m.Statistics().SampleCount != 1 {
		t.Error("ignored Record should not mutate sample count")
	}
}

func TestRecordComputesDeltaAndRate(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)

	m.Record(base, 0)
	m.Record(base.Add(time.Second), 1000)

	stats := m.Statistics()
	if stats.Current != 1000 {
		t.Errorf("Current = %v, want 1000", stats.Current)
	}
}

func TestEmptyStatisticsAllZero(t *testing.T) {
	m := New(testConfig())
	stats := m.Statistics()
	if stats.SampleCount != 0 || stats.Current != 0 || stats.Average != 0 || stats.Peak != 0 || stats.Min != 0 {
		t.Errorf("empty Statistics should be all zero, got %+v", stats)
	}
}

func TestSamplesFrontTrimAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSamples = 3
	m := New(cfg)

	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		m.Record(base.Add(time.Duration(i)*time.Second), uint64(i)*1000)
	}

	if m.Statistics().SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3 (trimmed to capacity)", m.Statistics().SampleCount)
	}
}

func TestMovingAverageOnEmptyIsZero(t *testing.T) {
	m := New(testConfig())
	if avg := m.MovingAverage(5); avg != 0 {
		t.Errorf("MovingAverage on empty window = %v, want 0", avg)
	}
}

func TestMinOnlyUpdatedByPositiveRates(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)

	m.Record(base, 1000) // first sample has no rate (no prior point)
	m.Record(base.Add(time.Second), 1000) // delta 0, rate 0, should not set min
	m.Record(base.Add(2*time.Second), 1500) // delta 500, rate 500

	stats := m.Statistics()
	if stats.Min != 500 {
		t.Errorf("Min = %v, want 500 (zero-rate samples must not set min)", stats.Min)
	}
}

func TestHashRateDropAlertFires(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)

	m.Record(base, 0)
	m.Record(base.Add(time.Second), 1000)  // rate 1000
	m.Record(base.Add(2*time.Second), 2000) // rate 1000
	m.Record(base.Add(3*time.Second), 2100) // rate 100, well below 80% of average

	alerts := m.Alerts()
	if len(alerts) == 0 {
		t.Fatal("expected a HashRateDrop alert")
	}
	if alerts[len(alerts)-1].Kind != HashRateDrop {
		t.Errorf("alert kind = %v, want HashRateDrop", alerts[len(alerts)-1].Kind)
	}
}

func TestClearAlertsEmptiesLog(t *testing.T) {
	m := New(testConfig())
	m.RecordAlert(Alert{Kind: HashRateSpike})
	if len(m.Alerts()) != 1 {
		t.Fatal("expected one alert")
	}
	m.ClearAlerts()
	if len(m.Alerts()) != 0 {
		t.Error("ClearAlerts should empty the alert log")
	}
}

func TestEffectiveHashRateZeroWithoutOrigin(t *testing.T) {
	m := New(testConfig())
	if rate := m.EffectiveHashRate(10, 1.0); rate != 0 {
		t.Errorf("EffectiveHashRate without Start() = %v, want 0", rate)
	}
}

func TestEffectiveHashRateFormula(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)
	m.Start(base)
	m.Record(base.Add(10*time.Second), 1000)

	rate := m.EffectiveHashRate(5, 2.0)
	want := 5.0 * 2.0 * 4294967296.0 / 10.0
	if rate != want {
		t.Errorf("EffectiveHashRate = %v, want %v", rate, want)
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := New(testConfig())
	base := time.Unix(1000, 0)
	m.Start(base)
	m.Record(base, 1000)
	m.Record(base.Add(time.Second), 2000)
	m.RecordAlert(Alert{Kind: HardwareError})

	m.Reset()

	stats := m.Statistics()
	if stats.SampleCount != 0 {
		t.Error("Reset should clear samples")
	}
	if len(m.Alerts()) != 0 {
		t.Error("Reset should clear alerts")
	}
	if rate := m.EffectiveHashRate(1, 1); rate != 0 {
		t.Error("Reset should clear the origin")
	}
}

func TestFormatHashRateUnitSelection(t *testing.T) {
	cases := []struct {
		rate float64
		want string
	}{
		{500, "500 H/s"},
		{1500, "1.5 KH/s"},
		{2_500_000, "2.5 MH/s"},
		{3_000_000_000, "3 GH/s"},
		{4_000_000_000_000, "4 TH/s"},
	}
	for _, c := range cases {
		if got := FormatHashRate(c.rate); got != c.want {
			t.Errorf("FormatHashRate(%v) = %q, want %q", c.rate, got, c.want)
		}
	}
}
