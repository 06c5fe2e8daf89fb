// Package reward implements share accounting, block-reward calculation
// under five accounting policies, and the payout lifecycle.
package reward

import (
	"math"
	"sync"
	"time"

	"coinshaft/internal/errs"
)

// Policy selects a reward-accounting method.
type Policy int

const (
	PPS Policy = iota
	PPLNS
	Proportional
	Score
	Solo
)

// PayoutStatus is a payout's lifecycle stage.
type PayoutStatus int

const (
	Pending PayoutStatus = iota
	Processing
	Completed
	PayoutFailed
)

// Share is one append-only accepted-or-rejected submission.
type Share struct {
	ID                  uint64
	WorkerID            string
	Difficulty          float64
	Timestamp           time.Time
	Accepted            bool
	BlockHeightAtSubmit uint64
}

// BlockStatus tracks a found block's progress toward maturity.
type BlockStatus int

const (
	BlockCandidate BlockStatus = iota
	BlockImmature
	BlockMatured
	BlockOrphan
)

// BlockReward is one found block and its maturity state.
type BlockReward struct {
	Height                uint64
	Hash                  string
	RewardSats            uint64
	FeesSats              uint64
	FoundAt               time.Time
	Confirmations         uint64
	MaturityConfirmations uint64
	Orphaned              bool
}

// TotalSats is the reward plus fees.
func (b BlockReward) TotalSats() uint64 {
	return b.RewardSats + b.FeesSats
}

// IsMature holds exactly when confirmations have reached the maturity bar.
func (b BlockReward) IsMature() bool {
	return b.Confirmations >= b.MaturityConfirmations
}

// Status derives the block's lifecycle stage from Orphaned/Confirmations,
// mirroring the candidate/immature/matured/orphan states a chain reorg
// can put a found block into.
func (b BlockReward) Status() BlockStatus {
	if b.Orphaned {
		return BlockOrphan
	}
	if b.IsMature() {
		return BlockMatured
	}
	if b.Confirmations > 0 {
		return BlockImmature
	}
	return BlockCandidate
}

// WorkerStats tracks one worker's cumulative share and balance history.
type WorkerStats struct {
	WorkerID          string
	SharesSubmitted   uint64
	SharesAccepted    uint64
	SharesRejected    uint64
	TotalDifficulty   float64
	PendingRewardSats uint64
	PaidRewardSats    uint64
	LastShare         *time.Time
	ActiveSince       *time.Time
}

// AcceptanceRate is accepted/submitted, 1.0 when nothing has been submitted.
func (w WorkerStats) AcceptanceRate() float64 {
	if w.SharesSubmitted == 0 {
		return 1.0
	}
	return float64(w.SharesAccepted) / float64(w.SharesSubmitted)
}

// Payout is one payment unit moving through Pending -> Processing ->
// Completed (or Failed).
type Payout struct {
	ID          uint64
	WorkerID    string
	AmountSats  uint64
	Address     string
	Txid        *string
	Status      PayoutStatus
	FailReason  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// PoolStats aggregates across all workers and blocks.
type PoolStats struct {
	TotalWorkers int
	TotalPending uint64
	TotalPaid    uint64
	TotalBlocks  int
	MatureBlocks int
	OrphanBlocks int
}

// Config holds the distributor's policy parameters.
type Config struct {
	Method                Policy
	PPLNSWindow           int
	MaturityConfirmations uint64
	MinPayoutSats         uint64
	FeePercent            float64
	ScoreDecay            float64 // per-second decay applied to share age
}

// Distributor maintains workers, the append-only share/block/payout logs,
// and the monotonic id counters. The worker table, share/block log, and
// payout log are guarded by separate mutexes so CreatePayout can drop the
// worker lock before acquiring the payout lock, avoiding a lock-order
// inversion against any caller that acquires them in the opposite order.
type Distributor struct {
	cfg Config

	workersMu sync.Mutex
	workers   map[string]*WorkerStats

	logMu         sync.Mutex
	shares        []Share
	blocks        []*BlockReward
	nextShareID   uint64
	currentHeight uint64

	payoutsMu     sync.Mutex
	payouts       []*Payout
	nextPayoutID  uint64
}

// New builds a Distributor from cfg.
func New(cfg Config) *Distributor {
	return &Distributor{
		cfg:     cfg,
		workers: make(map[string]*WorkerStats),
	}
}

func (d *Distributor) worker(id string) *WorkerStats {
	w, ok := d.workers[id]
	if !ok {
		w = &WorkerStats{WorkerID: id}
		d.workers[id] = w
	}
	return w
}

// RecordShare appends a new share, assigns it the next monotonic id, and
// updates the submitting worker's counters. When the configured method is
// PPLNS and the share log exceeds PPLNSWindow, the excess is front-trimmed.
func (d *Distributor) RecordShare(workerID string, difficulty float64, accepted bool, blockHeight uint64) Share {
	now := time.Now()

	d.logMu.Lock()
	d.nextShareID++
	share := Share{
		ID:                  d.nextShareID,
		WorkerID:            workerID,
		Difficulty:          difficulty,
		Timestamp:           now,
		Accepted:            accepted,
		BlockHeightAtSubmit: blockHeight,
	}
	d.shares = append(d.shares, share)
	if d.cfg.Method == PPLNS && len(d.shares) > d.cfg.PPLNSWindow {
		d.shares = d.shares[len(d.shares)-d.cfg.PPLNSWindow:]
	}
	d.currentHeight = blockHeight
	d.logMu.Unlock()

	d.workersMu.Lock()
	w := d.worker(workerID)
	w.SharesSubmitted++
	if accepted {
		w.SharesAccepted++
		w.TotalDifficulty += difficulty
	} else {
		w.SharesRejected++
	}
	w.LastShare = &now
	if w.ActiveSince == nil {
		w.ActiveSince = &now
	}
	d.workersMu.Unlock()

	return share
}

// RecordBlock appends a new block to the log.
func (d *Distributor) RecordBlock(height uint64, hash string, rewardSats, feesSats uint64, foundAt time.Time) *BlockReward {
	b := &BlockReward{
		Height:                height,
		Hash:                  hash,
		RewardSats:            rewardSats,
		FeesSats:              feesSats,
		FoundAt:               foundAt,
		MaturityConfirmations: d.cfg.MaturityConfirmations,
	}
	d.logMu.Lock()
	d.blocks = append(d.blocks, b)
	d.logMu.Unlock()
	return b
}

// UpdateConfirmations mutates a block's confirmation count in place.
func (d *Distributor) UpdateConfirmations(height uint64, confirmations uint64) error {
	d.logMu.Lock()
	defer d.logMu.Unlock()

	for _, b := range d.blocks {
		if b.Height == height {
			b.Confirmations = confirmations
			return nil
		}
	}
	return errs.New(errs.Configuration, "unknown block at height %d", height)
}

// MarkOrphan flags a block as orphaned by a chain reorg, overriding its
// maturity state.
func (d *Distributor) MarkOrphan(height uint64) error {
	d.logMu.Lock()
	defer d.logMu.Unlock()

	for _, b := range d.blocks {
		if b.Height == height {
			b.Orphaned = true
			return nil
		}
	}
	return errs.New(errs.Configuration, "unknown block at height %d", height)
}

// CalculateRewards dispatches to the configured policy and returns the
// distributable amount split per worker, floored, with no residue
// redistribution.
func (d *Distributor) CalculateRewards(height uint64) (map[string]uint64, error) {
	d.logMu.Lock()
	var block *BlockReward
	for _, b := range d.blocks {
		if b.Height == height {
			block = b
			break
		}
	}
	if block == nil {
		d.logMu.Unlock()
		return nil, errs.New(errs.Configuration, "unknown block at height %d", height)
	}
	distributable := uint64(float64(block.TotalSats()) * (1 - d.cfg.FeePercent/100))
	shares := make([]Share, len(d.shares))
	copy(shares, d.shares)
	d.logMu.Unlock()

	switch d.cfg.Method {
	case PPS:
		return map[string]uint64{}, nil
	case PPLNS:
		return pplnsRewards(shares, height, d.cfg.PPLNSWindow, distributable), nil
	case Proportional:
		return proportionalRewards(shares, height, distributable), nil
	case Score:
		return scoreRewards(shares, d.cfg.ScoreDecay, distributable), nil
	case Solo:
		return soloRewards(shares, distributable), nil
	default:
		return nil, errs.New(errs.Configuration, "unknown reward policy %d", d.cfg.Method)
	}
}

func pplnsRewards(shares []Share, height uint64, window int, distributable uint64) map[string]uint64 {
	var eligible []Share
	for _, s := range shares {
		if s.Accepted && s.BlockHeightAtSubmit <= height {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) > window {
		eligible = eligible[:window]
	}
	return proportionalByDifficulty(eligible, distributable)
}

func proportionalRewards(shares []Share, height uint64, distributable uint64) map[string]uint64 {
	var eligible []Share
	for _, s := range shares {
		if s.Accepted && s.BlockHeightAtSubmit == height {
			eligible = append(eligible, s)
		}
	}
	return proportionalByDifficulty(eligible, distributable)
}

func proportionalByDifficulty(shares []Share, distributable uint64) map[string]uint64 {
	out := make(map[string]uint64)
	var total float64
	perWorker := make(map[string]float64)
	for _, s := range shares {
		perWorker[s.WorkerID] += s.Difficulty
		total += s.Difficulty
	}
	if total == 0 {
		return out
	}
	for worker, diff := range perWorker {
		out[worker] = uint64(float64(distributable) * diff / total)
	}
	return out
}

func scoreRewards(shares []Share, decay float64, distributable uint64) map[string]uint64 {
	out := make(map[string]uint64)
	if len(shares) == 0 {
		return out
	}
	now := shares[len(shares)-1].Timestamp
	perWorker := make(map[string]float64)
	var total float64
	for _, s := range shares {
		if !s.Accepted {
			continue
		}
		ageSecs := now.Sub(s.Timestamp).Seconds()
		score := s.Difficulty * math.Pow(decay, ageSecs)
		perWorker[s.WorkerID] += score
		total += score
	}
	if total == 0 {
		return out
	}
	for worker, score := range perWorker {
		out[worker] = uint64(float64(distributable) * score / total)
	}
	return out
}

func soloRewards(shares []Share, distributable uint64) map[string]uint64 {
	out := make(map[string]uint64)
	for i := len(shares) - 1; i >= 0; i-- {
		if shares[i].Accepted {
			out[shares[i].WorkerID] = distributable
			return out
		}
	}
	return out
}

// DistributeRewards adds each worker's computed share to their pending
// balance.
func (d *Distributor) DistributeRewards(rewards map[string]uint64) {
	d.workersMu.Lock()
	defer d.workersMu.Unlock()

	for id, amount := range rewards {
		w := d.worker(id)
		w.PendingRewardSats += amount
	}
}

// CreatePayout allocates a new Pending payout for worker, zeroing their
// pending balance. It fails if the worker is unknown and returns (nil, nil)
// when the worker's pending balance is below MinPayoutSats. The worker-table
// lock is dropped before the payout-log lock is acquired.
func (d *Distributor) CreatePayout(workerID, address string) (*Payout, error) {
	d.workersMu.Lock()
	w, ok := d.workers[workerID]
	if !ok {
		d.workersMu.Unlock()
		return nil, errs.New(errs.Configuration, "unknown worker %s", workerID)
	}
	if w.PendingRewardSats < d.cfg.MinPayoutSats {
		d.workersMu.Unlock()
		return nil, nil
	}
	amount := w.PendingRewardSats
	w.PendingRewardSats = 0
	d.workersMu.Unlock()

	d.payoutsMu.Lock()
	d.nextPayoutID++
	p := &Payout{
		ID:         d.nextPayoutID,
		WorkerID:   workerID,
		AmountSats: amount,
		Address:    address,
		Status:     Pending,
		CreatedAt:  time.Now(),
	}
	d.payouts = append(d.payouts, p)
	d.payoutsMu.Unlock()

	return p, nil
}

// CompletePayout transitions a Pending/Processing payout to Completed,
// stamping completed_at and crediting the worker's paid balance.
func (d *Distributor) CompletePayout(id uint64, txid string) error {
	d.payoutsMu.Lock()
	var payout *Payout
	for _, p := range d.payouts {
		if p.ID == id {
			payout = p
			break
		}
	}
	if payout == nil {
		d.payoutsMu.Unlock()
		return errs.New(errs.Configuration, "unknown payout %d", id)
	}
	if payout.Status != Pending && payout.Status != Processing {
		d.payoutsMu.Unlock()
		return errs.New(errs.Configuration, "payout %d is not pending or processing", id)
	}
	now := time.Now()
	payout.Status = Completed
	payout.Txid = &txid
	payout.CompletedAt = &now
	workerID, amount := payout.WorkerID, payout.AmountSats
	d.payoutsMu.Unlock()

	d.workersMu.Lock()
	w := d.worker(workerID)
	w.PaidRewardSats += amount
	d.workersMu.Unlock()

	return nil
}

// Shares returns a copy of the append-only share log, oldest first.
func (d *Distributor) Shares() []Share {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	out := make([]Share, len(d.shares))
	copy(out, d.shares)
	return out
}

// Blocks returns a copy of the recorded blocks, oldest first.
func (d *Distributor) Blocks() []BlockReward {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	out := make([]BlockReward, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = *b
	}
	return out
}

// Workers returns a copy of every tracked worker's stats.
func (d *Distributor) Workers() []WorkerStats {
	d.workersMu.Lock()
	defer d.workersMu.Unlock()
	out := make([]WorkerStats, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, *w)
	}
	return out
}

// Restore repopulates the distributor from a prior snapshot, overwriting any
// in-memory state. It is meant to run once at startup, before any mining or
// API traffic is flowing.
func (d *Distributor) Restore(shares []Share, blocks []BlockReward, workers []WorkerStats, payouts []Payout) {
	d.logMu.Lock()
	d.shares = append([]Share(nil), shares...)
	d.blocks = make([]*BlockReward, len(blocks))
	for i := range blocks {
		b := blocks[i]
		d.blocks[i] = &b
		if b.Height > d.currentHeight {
			d.currentHeight = b.Height
		}
	}
	for _, s := range shares {
		if s.ID > d.nextShareID {
			d.nextShareID = s.ID
		}
	}
	d.logMu.Unlock()

	d.workersMu.Lock()
	d.workers = make(map[string]*WorkerStats, len(workers))
	for i := range workers {
		w := workers[i]
		d.workers[w.WorkerID] = &w
	}
	d.workersMu.Unlock()

	d.payoutsMu.Lock()
	d.payouts = make([]*Payout, len(payouts))
	for i := range payouts {
		p := payouts[i]
		d.payouts[i] = &p
		if p.ID > d.nextPayoutID {
			d.nextPayoutID = p.ID
		}
	}
	d.payoutsMu.Unlock()
}

// Worker returns a copy of a worker's stats.
func (d *Distributor) Worker(id string) (WorkerStats, bool) {
	d.workersMu.Lock()
	defer d.workersMu.Unlock()
	w, ok := d.workers[id]
	if !ok {
		return WorkerStats{}, false
	}
	return *w, true
}

// Payouts returns a copy of the payout log, oldest first.
func (d *Distributor) Payouts() []Payout {
	d.payoutsMu.Lock()
	defer d.payoutsMu.Unlock()
	out := make([]Payout, len(d.payouts))
	for i, p := range d.payouts {
		out[i] = *p
	}
	return out
}

// PoolStats sums across workers and counts blocks/mature blocks.
func (d *Distributor) PoolStats() PoolStats {
	var stats PoolStats

	d.workersMu.Lock()
	stats.TotalWorkers = len(d.workers)
	for _, w := range d.workers {
		stats.TotalPending += w.PendingRewardSats
		stats.TotalPaid += w.PaidRewardSats
	}
	d.workersMu.Unlock()

	d.logMu.Lock()
	stats.TotalBlocks = len(d.blocks)
	for _, b := range d.blocks {
		switch b.Status() {
		case BlockMatured:
			stats.MatureBlocks++
		case BlockOrphan:
			stats.OrphanBlocks++
		}
	}
	d.logMu.Unlock()

	return stats
}
