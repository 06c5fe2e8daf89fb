// Package persistence snapshots and restores a reward.Distributor's
// in-memory state to Redis. It is an optional, external collaborator: the
// reward package never imports it, only the other direction.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"coinshaft/internal/reward"
)

const (
	keyPrefix = "coinshaft:"

	keyShares  = keyPrefix + "shares"
	keyBlocks  = keyPrefix + "blocks"
	keyWorkers = keyPrefix + "workers"
	keyPayouts = keyPrefix + "payouts"
)

// Store wraps a Redis client used to persist distributor snapshots.
type Store struct {
	client *redis.Client
	ctx    context.Context
}

// NewStore connects to Redis at addr and verifies it with a ping.
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &Store{client: client, ctx: ctx}, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// SnapshotDistributor serializes the distributor's shares, blocks, workers,
// and payouts into Redis hashes keyed by id, in a single pipeline.
func (s *Store) SnapshotDistributor(d *reward.Distributor) error {
	pipe := s.client.Pipeline()

	pipe.Del(s.ctx, keyShares, keyBlocks, keyWorkers, keyPayouts)

	for _, share := range d.Shares() {
		data, err := json.Marshal(share)
		if err != nil {
			return fmt.Errorf("marshal share %d: %w", share.ID, err)
		}
		pipe.HSet(s.ctx, keyShares, fmt.Sprintf("%d", share.ID), data)
	}

	for _, block := range d.Blocks() {
		data, err := json.Marshal(block)
		if err != nil {
			return fmt.Errorf("marshal block %d: %w", block.Height, err)
		}
		pipe.HSet(s.ctx, keyBlocks, fmt.Sprintf("%d", block.Height), data)
	}

	for _, w := range d.Workers() {
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshal worker %s: %w", w.WorkerID, err)
		}
		pipe.HSet(s.ctx, keyWorkers, w.WorkerID, data)
	}

	for _, payout := range d.Payouts() {
		data, err := json.Marshal(payout)
		if err != nil {
			return fmt.Errorf("marshal payout %d: %w", payout.ID, err)
		}
		pipe.HSet(s.ctx, keyPayouts, fmt.Sprintf("%d", payout.ID), data)
	}

	_, err := pipe.Exec(s.ctx)
	return err
}

// RestoreDistributor reads a prior snapshot back and loads it into d. It is
// meant to run once at startup before any mining or API traffic is flowing.
func (s *Store) RestoreDistributor(d *reward.Distributor) error {
	shares, err := s.readShares()
	if err != nil {
		return err
	}
	blocks, err := s.readBlocks()
	if err != nil {
		return err
	}
	workers, err := s.readWorkers()
	if err != nil {
		return err
	}
	payouts, err := s.readPayouts()
	if err != nil {
		return err
	}

	d.Restore(shares, blocks, workers, payouts)
	return nil
}

func (s *Store) readShares() ([]reward.Share, error) {
	raw, err := s.client.HGetAll(s.ctx, keyShares).Result()
	if err != nil {
		return nil, fmt.Errorf("read shares: %w", err)
	}
	out := make([]reward.Share, 0, len(raw))
	for _, v := range raw {
		var share reward.Share
		if err := json.Unmarshal([]byte(v), &share); err != nil {
			return nil, fmt.Errorf("unmarshal share: %w", err)
		}
		out = append(out, share)
	}
	return out, nil
}

func (s *Store) readBlocks() ([]reward.BlockReward, error) {
	raw, err := s.client.HGetAll(s.ctx, keyBlocks).Result()
	if err != nil {
		return nil, fmt.Errorf("read blocks: %w", err)
	}
	out := make([]reward.BlockReward, 0, len(raw))
	for _, v := range raw {
		var block reward.BlockReward
		if err := json.Unmarshal([]byte(v), &block); err != nil {
			return nil, fmt.Errorf("unmarshal block: %w", err)
		}
		out = append(out, block)
	}
	return out, nil
}

func (s *Store) readWorkers() ([]reward.WorkerStats, error) {
	raw, err := s.client.HGetAll(s.ctx, keyWorkers).Result()
	if err != nil {
		return nil, fmt.Errorf("read workers: %w", err)
	}
	out := make([]reward.WorkerStats, 0, len(raw))
	for _, v := range raw {
		var w reward.WorkerStats
		if err := json.Unmarshal([]byte(v), &w); err != nil {
			return nil, fmt.Errorf("unmarshal worker: %w", err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) readPayouts() ([]reward.Payout, error) {
	raw, err := s.client.HGetAll(s.ctx, keyPayouts).Result()
	if err != nil {
		return nil, fmt.Errorf("read payouts: %w", err)
	}
	out := make([]reward.Payout, 0, len(raw))
	for _, v := range raw {
		var p reward.Payout
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("unmarshal payout: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
