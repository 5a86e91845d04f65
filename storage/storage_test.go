package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/chainplays/chainplays/types"
)

func testVote(cmd uint8, block uint64) *types.VoteEvent {
	return &types.VoteEvent{
		Sender:      common.HexToAddress("0x7c8A35C98Bf46a67324Af3F54aD027DBE2138E98"),
		Command:     types.Command(cmd),
		Weight:      big.NewInt(1),
		Memo:        "gg",
		BlockNumber: block,
	}
}

func TestJournalVotesAndActions(t *testing.T) {
	c := qt.New(t)

	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	c.Assert(err, qt.IsNil)
	s := New(database)
	defer s.Close()

	c.Assert(s.TotalVotes(), qt.Equals, uint64(0))
	c.Assert(s.RecordVote(testVote(2, 100)), qt.IsNil)
	c.Assert(s.RecordVote(testVote(5, 100)), qt.IsNil)
	c.Assert(s.RecordVote(testVote(12, 101)), qt.IsNil) // unmapped command
	c.Assert(s.TotalVotes(), qt.Equals, uint64(3))

	votes, err := s.RecentVotes(10)
	c.Assert(err, qt.IsNil)
	c.Assert(len(votes), qt.Equals, 3)
	c.Assert(votes[0].Command, qt.Equals, uint8(2))
	c.Assert(votes[0].Button, qt.Equals, "left")
	c.Assert(votes[1].Button, qt.Equals, "b")
	c.Assert(votes[2].Button, qt.Equals, "") // unmapped, no button
	c.Assert(votes[2].Block, qt.Equals, uint64(101))

	c.Assert(s.RecordAction(types.ButtonLeft), qt.IsNil)
	c.Assert(s.RecordAction(types.ButtonA), qt.IsNil)
	c.Assert(s.TotalActions(), qt.Equals, uint64(2))

	actions, err := s.RecentActions(10)
	c.Assert(err, qt.IsNil)
	c.Assert(len(actions), qt.Equals, 2)
	c.Assert(actions[0].Button, qt.Equals, "left")
	c.Assert(actions[1].Button, qt.Equals, "a")
}

func TestJournalTailLimit(t *testing.T) {
	c := qt.New(t)

	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	c.Assert(err, qt.IsNil)
	s := New(database)
	defer s.Close()

	for i := 0; i < 30; i++ {
		c.Assert(s.RecordVote(testVote(uint8(i%8), uint64(i))), qt.IsNil)
	}
	votes, err := s.RecentVotes(5)
	c.Assert(err, qt.IsNil)
	c.Assert(len(votes), qt.Equals, 5)
	// oldest first within the tail
	c.Assert(votes[0].Block, qt.Equals, uint64(25))
	c.Assert(votes[4].Block, qt.Equals, uint64(29))
}

func TestJournalResumesSequences(t *testing.T) {
	c := qt.New(t)

	dir := filepath.Join(t.TempDir(), "db")
	database, err := metadb.New(db.TypePebble, dir)
	c.Assert(err, qt.IsNil)

	s := New(database)
	c.Assert(s.RecordVote(testVote(0, 1)), qt.IsNil)
	c.Assert(s.RecordVote(testVote(1, 2)), qt.IsNil)
	s.Close()

	database, err = metadb.New(db.TypePebble, dir)
	c.Assert(err, qt.IsNil)
	s = New(database)
	defer s.Close()

	c.Assert(s.TotalVotes(), qt.Equals, uint64(2))
	c.Assert(s.RecordVote(testVote(2, 3)), qt.IsNil)
	votes, err := s.RecentVotes(10)
	c.Assert(err, qt.IsNil)
	c.Assert(len(votes), qt.Equals, 3)
	c.Assert(votes[2].Block, qt.Equals, uint64(3))
}
