package service

import (
	"context"
	"sync"
	"time"

	"github.com/chainplays/chainplays/types"
)

// MockChain implements a mock version of web3.MoveListener for testing.
type MockChain struct {
	mu      sync.Mutex
	head    uint64
	pending []*types.VoteEvent
}

func NewMockChain() *MockChain {
	return &MockChain{head: 1}
}

// EmitVote queues a vote to be delivered on the next monitor tick, as if a
// Move event had landed in a new block.
func (m *MockChain) EmitVote(v *types.VoteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head++
	v.BlockNumber = m.head
	m.pending = append(m.pending, v)
}

func (m *MockChain) Cursor() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head
}

func (m *MockChain) MonitorMoves(ctx context.Context, interval time.Duration) (<-chan *types.VoteEvent, error) {
	ch := make(chan *types.VoteEvent)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				pending := m.pending
				m.pending = nil
				m.mu.Unlock()
				for _, v := range pending {
					select {
					case ch <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}
