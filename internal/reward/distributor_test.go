package reward

import (
	"testing"
	"time"
)

func baseConfig(method Policy) Config {
	return Config{
		Method:                method,
		PPLNSWindow:           100,
		MaturityConfirmations: 100,
		MinPayoutSats:         10000,
		FeePercent:            1,
		ScoreDecay:            0.999,
	}
}

func TestRecordShareAssignsMonotonicIDs(t *testing.T) {
	d := New(baseConfig(Proportional))

	s1 := d.RecordShare("alice", 1.0, true, 100)
	s2 := d.RecordShare("bob", 1.0, true, 100)

	if s2.ID <= s1.ID {
		t.Errorf("share ids should be strictly increasing: %d then %d", s1.ID, s2.ID)
	}
}

func TestRecordSharePPLNSTrimsWindow(t *testing.T) {
	cfg := baseConfig(PPLNS)
	cfg.PPLNSWindow = 3
	d := New(cfg)

	for i := 0; i < 5; i++ {
		d.RecordShare("alice", 1.0, true, 1)
	}

	d.logMu.Lock()
	got := len(d.shares)
	d.logMu.Unlock()
	if got != 3 {
		t.Errorf("share log length = %d, want 3 (trimmed to PPLNSWindow)", got)
	}
}

func TestRecordShareNonPPLNSDoesNotTrim(t *testing.T) {
	cfg := baseConfig(Proportional)
	cfg.PPLNSWindow = 2
	d := New(cfg)

	for i := 0; i < 5; i++ {
		d.RecordShare("alice", 1.0, true, 1)
	}

	d.logMu.Lock()
	got := len(d.shares)
	d.logMu.Unlock()
	if got != 5 {
		t.Errorf("share log length = %d, want 5 (no trim outside PPLNS)", got)
	}
}

func TestWorkerAcceptanceRateDefinedAsOne(t *testing.T) {
	w := WorkerStats{}
	if w.AcceptanceRate() != 1.0 {
		t.Errorf("AcceptanceRate of untested worker = %v, want 1.0", w.AcceptanceRate())
	}
}

func TestBlockIsMatureMatchesConfirmations(t *testing.T) {
	b := BlockReward{MaturityConfirmations: 100, Confirmations: 99}
	if b.IsMature() {
		t.Error("block with 99/100 confirmations should not be mature")
	}
	b.Confirmations = 100
	if !b.IsMature() {
		t.Error("block with 100/100 confirmations should be mature")
	}
}

func TestBlockStatusTransitions(t *testing.T) {
	b := BlockReward{MaturityConfirmations: 100}
	if b.Status() != BlockCandidate {
		t.Errorf("fresh block status = %v, want BlockCandidate", b.Status())
	}

	b.Confirmations = 1
	if b.Status() != BlockImmature {
		t.Errorf("partially confirmed block status = %v, want BlockImmature", b.Status())
	}

	b.Confirmations = 100
	if b.Status() != BlockMatured {
		t.Errorf("fully confirmed block status = %v, want BlockMatured", b.Status())
	}

	b.Orphaned = true
	if b.Status() != BlockOrphan {
		t.Errorf("orphaned block status = %v, want BlockOrphan even once mature", b.Status())
	}
}

func TestMarkOrphanUpdatesPoolStats(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordBlock(100, "a", 1000, 0, time.Now())
	d.UpdateConfirmations(100, 100)

	if err := d.MarkOrphan(100); err != nil {
		t.Fatalf("MarkOrphan failed: %v", err)
	}

	stats := d.PoolStats()
	if stats.OrphanBlocks != 1 {
		t.Errorf("OrphanBlocks = %d, want 1", stats.OrphanBlocks)
	}
	if stats.MatureBlocks != 0 {
		t.Errorf("MatureBlocks = %d, want 0 once orphaned", stats.MatureBlocks)
	}
}

func TestMarkOrphanUnknownBlockFails(t *testing.T) {
	d := New(baseConfig(Proportional))
	if err := d.MarkOrphan(999); err == nil {
		t.Error("MarkOrphan should fail for an unrecorded height")
	}
}

func TestCalculateRewardsPPSReturnsEmpty(t *testing.T) {
	d := New(baseConfig(PPS))
	d.RecordBlock(100, "hash", 5_000_000_000, 0, time.Now())
	d.RecordShare("alice", 1.0, true, 100)

	rewards, err := d.CalculateRewards(100)
	if err != nil {
		t.Fatalf("CalculateRewards failed: %v", err)
	}
	if len(rewards) != 0 {
		t.Errorf("PPS CalculateRewards = %v, want empty map", rewards)
	}
}

func TestCalculateRewardsProportionalSplitsByDifficulty(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordBlock(100, "hash", 1_000_000, 0, time.Now())

	d.RecordShare("alice", 3.0, true, 100)
	d.RecordShare("bob", 1.0, true, 100)
	d.RecordShare("carol", 1.0, false, 100) // rejected, excluded

	rewards, err := d.CalculateRewards(100)
	if err != nil {
		t.Fatalf("CalculateRewards failed: %v", err)
	}

	distributable := uint64(float64(1_000_000) * 0.99)
	wantAlice := uint64(float64(distributable) * 0.75)
	wantBob := uint64(float64(distributable) * 0.25)

	if rewards["alice"] != wantAlice {
		t.Errorf("alice reward = %d, want %d", rewards["alice"], wantAlice)
	}
	if rewards["bob"] != wantBob {
		t.Errorf("bob reward = %d, want %d", rewards["bob"], wantBob)
	}
	if _, ok := rewards["carol"]; ok {
		t.Error("carol had no accepted shares and should not appear")
	}
}

func TestCalculateRewardsSoloAwardsLastAcceptedShare(t *testing.T) {
	d := New(baseConfig(Solo))
	d.RecordBlock(100, "hash", 1_000_000, 0, time.Now())

	d.RecordShare("alice", 1.0, true, 100)
	d.RecordShare("bob", 1.0, false, 100)
	d.RecordShare("carol", 1.0, true, 100)

	rewards, err := d.CalculateRewards(100)
	if err != nil {
		t.Fatalf("CalculateRewards failed: %v", err)
	}
	distributable := uint64(float64(1_000_000) * 0.99)
	if rewards["carol"] != distributable {
		t.Errorf("solo reward should go entirely to the last accepted share's worker, got %v", rewards)
	}
	if len(rewards) != 1 {
		t.Errorf("solo rewards should have exactly one entry, got %v", rewards)
	}
}

func TestCalculateRewardsUnknownBlockFails(t *testing.T) {
	d := New(baseConfig(Proportional))
	if _, err := d.CalculateRewards(999); err == nil {
		t.Error("CalculateRewards should fail for an unrecorded height")
	}
}

func TestDistributeRewardsCreditsPendingBalance(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordShare("alice", 1.0, true, 100) // ensures the worker exists

	d.DistributeRewards(map[string]uint64{"alice": 500})

	w, _ := d.Worker("alice")
	if w.PendingRewardSats != 500 {
		t.Errorf("PendingRewardSats = %d, want 500", w.PendingRewardSats)
	}
}

func TestCreatePayoutZeroesPendingAndAppendsEntry(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordShare("alice", 1.0, true, 100)
	d.DistributeRewards(map[string]uint64{"alice": 20000})

	payout, err := d.CreatePayout("alice", "addr1")
	if err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}
	if payout == nil {
		t.Fatal("CreatePayout should succeed once pending exceeds the minimum")
	}
	if payout.AmountSats != 20000 {
		t.Errorf("payout amount = %d, want 20000", payout.AmountSats)
	}

	w, _ := d.Worker("alice")
	if w.PendingRewardSats != 0 {
		t.Errorf("pending balance after payout = %d, want 0", w.PendingRewardSats)
	}

	payouts := d.Payouts()
	if len(payouts) != 1 || payouts[0].Status != Pending {
		t.Errorf("payouts = %+v, want exactly one Pending entry", payouts)
	}
}

func TestCreatePayoutBelowThresholdReturnsNil(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordShare("alice", 1.0, true, 100)
	d.DistributeRewards(map[string]uint64{"alice": 100})

	payout, err := d.CreatePayout("alice", "addr1")
	if err != nil {
		t.Fatalf("CreatePayout returned error: %v", err)
	}
	if payout != nil {
		t.Errorf("CreatePayout below threshold should return nil, got %+v", payout)
	}
}

func TestCreatePayoutUnknownWorkerFails(t *testing.T) {
	d := New(baseConfig(Proportional))
	if _, err := d.CreatePayout("ghost", "addr1"); err == nil {
		t.Error("CreatePayout should fail for an unknown worker")
	}
}

func TestCompletePayoutTransitionsAndCreditsPaid(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordShare("alice", 1.0, true, 100)
	d.DistributeRewards(map[string]uint64{"alice": 20000})
	payout, _ := d.CreatePayout("alice", "addr1")

	if err := d.CompletePayout(payout.ID, "txid123"); err != nil {
		t.Fatalf("CompletePayout failed: %v", err)
	}

	payouts := d.Payouts()
	if payouts[0].Status != Completed || payouts[0].CompletedAt == nil {
		t.Errorf("payout after completion = %+v", payouts[0])
	}

	w, _ := d.Worker("alice")
	if w.PaidRewardSats != 20000 {
		t.Errorf("PaidRewardSats = %d, want 20000", w.PaidRewardSats)
	}
}

func TestPayoutIDsStrictlyIncreasing(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordShare("alice", 1.0, true, 100)
	d.RecordShare("bob", 1.0, true, 100)
	d.DistributeRewards(map[string]uint64{"alice": 20000, "bob": 20000})

	p1, _ := d.CreatePayout("alice", "addr1")
	p2, _ := d.CreatePayout("bob", "addr2")

	if p2.ID <= p1.ID {
		t.Errorf("payout ids should strictly increase: %d then %d", p1.ID, p2.ID)
	}
}

func TestPoolStatsCountsMatureBlocks(t *testing.T) {
	d := New(baseConfig(Proportional))
	d.RecordBlock(100, "a", 1000, 0, time.Now())
	d.RecordBlock(101, "b", 1000, 0, time.Now())
	d.UpdateConfirmations(100, 100) // matures (MaturityConfirmations = 100)
	d.UpdateConfirmations(101, 1)   // stays immature

	stats := d.PoolStats()
	if stats.TotalBlocks != 2 {
		t.Errorf("TotalBlocks = %d, want 2", stats.TotalBlocks)
	}
	if stats.MatureBlocks != 1 {
		t.Errorf("MatureBlocks = %d, want 1", stats.MatureBlocks)
	}
}
