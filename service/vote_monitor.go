// Package service wires the pipeline stages into startable units: the vote
// monitor connects the on-chain listener to the aggregator and the journal.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/arbo/memdb"

	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/storage"
	"github.com/chainplays/chainplays/types"
)

// ChainService defines the interface for the on-chain vote source. It is
// implemented by web3.MoveListener and mocked in tests.
type ChainService interface {
	MonitorMoves(ctx context.Context, interval time.Duration) (<-chan *types.VoteEvent, error)
	Cursor() uint64
}

// VoteMonitor represents a service that monitors new on-chain votes,
// journals them and forwards them to the aggregation stage.
type VoteMonitor struct {
	chain    ChainService
	storage  *storage.Storage
	interval time.Duration
	out      chan<- *types.VoteEvent
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewVoteMonitor creates a new VoteMonitor service forwarding votes to out.
// If stg is nil, it uses an in-memory journal.
func NewVoteMonitor(chain ChainService, stg *storage.Storage, interval time.Duration, out chan<- *types.VoteEvent) *VoteMonitor {
	if stg == nil {
		kv := memdb.New()
		stg = storage.New(kv)
	}
	return &VoteMonitor{
		chain:    chain,
		storage:  stg,
		interval: interval,
		out:      out,
	}
}

// Storage returns the journal backing the monitor.
func (vm *VoteMonitor) Storage() *storage.Storage {
	return vm.storage
}

// Cursor returns the poll cursor of the underlying chain source.
func (vm *VoteMonitor) Cursor() uint64 {
	return vm.chain.Cursor()
}

// Start begins monitoring for new votes. It returns an error if the service
// is already running or if it fails to start monitoring.
func (vm *VoteMonitor) Start(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	vm.cancel = cancel

	voteChan, err := vm.chain.MonitorMoves(ctx, vm.interval)
	if err != nil {
		vm.cancel = nil
		cancel()
		return fmt.Errorf("failed to start vote monitoring: %w", err)
	}

	go vm.monitorVotes(ctx, voteChan)
	return nil
}

// Stop halts the monitoring service.
func (vm *VoteMonitor) Stop() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		vm.cancel()
		vm.cancel = nil
	}
}

func (vm *VoteMonitor) monitorVotes(ctx context.Context, voteChan <-chan *types.VoteEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-voteChan:
			if !ok {
				return
			}
			if err := vm.storage.RecordVote(v); err != nil {
				log.Warnw("failed to journal vote", "vote", v.String(), "error", err.Error())
			}
			select {
			case vm.out <- v:
			case <-ctx.Done():
				return
			}
		}
	}
}
