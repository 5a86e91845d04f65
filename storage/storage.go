// Package storage journals the pipeline activity in a prefixed key-value
// store: every observed vote and every applied action gets an append-only
// record. The journal only backs the status API; the poll cursor and the
// window tally are deliberately not persisted, both reset on every process
// start. The following prefixes are used:
//   - 'v/' for observed votes
//   - 'a/' for applied actions
package storage

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/chainplays/chainplays/types"
)

var (
	// Prefixes for the keys in the database.
	votePrefix   = []byte("v/")
	actionPrefix = []byte("a/")
)

// VoteRecord is the journaled form of an observed vote event.
type VoteRecord struct {
	Sender  string `json:"sender"  cbor:"0,keyasint,omitempty"`
	Command uint8  `json:"command" cbor:"1,keyasint,omitempty"`
	Button  string `json:"button"  cbor:"2,keyasint,omitempty"`
	Weight  []byte `json:"weight"  cbor:"3,keyasint,omitempty"`
	Memo    string `json:"memo"    cbor:"4,keyasint,omitempty"`
	Block   uint64 `json:"block"   cbor:"5,keyasint,omitempty"`
	Time    int64  `json:"time"    cbor:"6,keyasint,omitempty"`
}

// ActionRecord is the journaled form of an applied action.
type ActionRecord struct {
	Button string `json:"button" cbor:"0,keyasint,omitempty"`
	Time   int64  `json:"time"   cbor:"1,keyasint,omitempty"`
}

// Storage wraps the journal database. Safe for concurrent use.
type Storage struct {
	db        db.Database
	lock      sync.Mutex
	voteSeq   uint64
	actionSeq uint64
}

// New creates a new Storage instance on the given database, resuming the
// journal sequences from what is already stored.
func New(database db.Database) *Storage {
	return &Storage{
		db:        database,
		voteSeq:   lastSeq(database, votePrefix),
		actionSeq: lastSeq(database, actionPrefix),
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	s.db.Close()
}

// RecordVote appends an observed vote to the journal.
func (s *Storage) RecordVote(v *types.VoteEvent) error {
	rec := &VoteRecord{
		Sender:  v.Sender.Hex(),
		Command: uint8(v.Command),
		Memo:    v.Memo,
		Block:   v.BlockNumber,
		Time:    time.Now().Unix(),
	}
	if btn, ok := v.Command.Button(); ok {
		rec.Button = string(btn)
	}
	if v.Weight != nil {
		rec.Weight = v.Weight.Bytes()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.append(votePrefix, s.voteSeq+1, rec); err != nil {
		return fmt.Errorf("journal vote: %w", err)
	}
	s.voteSeq++
	return nil
}

// RecordAction appends an applied action to the journal. It satisfies the
// applicator's ActionRecorder interface.
func (s *Storage) RecordAction(b types.Button) error {
	rec := &ActionRecord{
		Button: string(b),
		Time:   time.Now().Unix(),
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.append(actionPrefix, s.actionSeq+1, rec); err != nil {
		return fmt.Errorf("journal action: %w", err)
	}
	s.actionSeq++
	return nil
}

// TotalVotes returns the number of votes journaled so far.
func (s *Storage) TotalVotes() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.voteSeq
}

// TotalActions returns the number of actions journaled so far.
func (s *Storage) TotalActions() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.actionSeq
}

// RecentVotes returns up to n of the most recent vote records, oldest first.
func (s *Storage) RecentVotes(n int) ([]*VoteRecord, error) {
	var out []*VoteRecord
	err := iterateTail(s.db, votePrefix, n, func(v []byte) error {
		rec := &VoteRecord{}
		if err := decodeArtifact(v, rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return out, nil
}

// RecentActions returns up to n of the most recent action records, oldest
// first.
func (s *Storage) RecentActions(n int) ([]*ActionRecord, error) {
	var out []*ActionRecord
	err := iterateTail(s.db, actionPrefix, n, func(v []byte) error {
		rec := &ActionRecord{}
		if err := decodeArtifact(v, rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

// append stores an encoded record under a big-endian sequence key, which
// keeps the journal iterable in insertion order.
func (s *Storage) append(prefix []byte, seq uint64, rec any) error {
	val, err := encodeArtifact(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(seqKey(seq), val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// iterateTail walks a prefix in key order keeping only the last n values and
// calls fn for each of them, oldest first.
func iterateTail(database db.Database, prefix []byte, n int, fn func([]byte) error) error {
	if n <= 0 {
		return nil
	}
	rd := prefixeddb.NewPrefixedReader(database, prefix)
	var tail [][]byte
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		val := make([]byte, len(v))
		copy(val, v)
		tail = append(tail, val)
		if len(tail) > n {
			tail = tail[1:]
		}
		return true
	}); err != nil {
		return err
	}
	for _, v := range tail {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// lastSeq returns the highest sequence number stored under a prefix.
func lastSeq(database db.Database, prefix []byte) uint64 {
	rd := prefixeddb.NewPrefixedReader(database, prefix)
	var last uint64
	_ = rd.Iterate(nil, func(k, _ []byte) bool {
		if len(k) == 8 {
			if seq := binary.BigEndian.Uint64(k); seq > last {
				last = seq
			}
		}
		return true
	})
	return last
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
