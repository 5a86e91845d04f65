package vote

import (
	"sync"

	"github.com/chainplays/chainplays/types"
)

// ActionQueue is an unbounded multi-producer, single-consumer FIFO of
// console buttons. The poller (chaos mode) or the aggregator (democracy
// mode) push into it, and the applicator drains it with TryPop, which never
// blocks so real-time emulator ticking is never stalled waiting for input.
// No backpressure is applied: a burst of votes accumulates and is drained
// serially, each action consuming a fixed number of emulator steps.
type ActionQueue struct {
	mu    sync.Mutex
	items []types.Button
}

// NewActionQueue returns an empty action queue.
func NewActionQueue() *ActionQueue {
	return &ActionQueue{}
}

// Push appends a button to the back of the queue.
func (q *ActionQueue) Push(b types.Button) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, b)
}

// TryPop removes and returns the button at the front of the queue. It
// returns false immediately when the queue is empty.
func (q *ActionQueue) TryPop() (types.Button, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	b := q.items[0]
	q.items = q.items[1:]
	return b, true
}

// Len returns the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
