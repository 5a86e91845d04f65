package vote

import (
	"sync"

	"github.com/chainplays/chainplays/types"
)

// Tally counts votes per command index within one aggregation window. The
// aggregator goroutine owns it exclusively for increments and drains; the
// mutex exists because the status API snapshots it concurrently.
type Tally struct {
	mu     sync.Mutex
	counts map[types.Command]uint64
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[types.Command]uint64)}
}

// Add increments the count for the given command.
func (t *Tally) Add(cmd types.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[cmd]++
}

// Len returns the number of distinct commands with at least one vote.
func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// Snapshot returns a copy of the current counts.
func (t *Tally) Snapshot() map[types.Command]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := make(map[types.Command]uint64, len(t.counts))
	for cmd, n := range t.counts {
		snap[cmd] = n
	}
	return snap
}

// Drain atomically selects the winning command and clears the tally. The
// winner is the command with the highest count; on a tie the lowest command
// index wins, which keeps the outcome deterministic and testable. It returns
// false when the tally is empty, in which case nothing is cleared and the
// aggregation tick is a no-op.
func (t *Tally) Drain() (types.Command, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.counts) == 0 {
		return 0, 0, false
	}
	var winner types.Command
	var best uint64
	first := true
	for cmd, n := range t.counts {
		switch {
		case first, n > best:
			winner, best = cmd, n
			first = false
		case n == best && cmd < winner:
			winner = cmd
		}
	}
	t.counts = make(map[types.Command]uint64)
	return winner, best, true
}
