package web3

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	qt "github.com/frankban/quicktest"

	"github.com/chainplays/chainplays/types"
)

var (
	testContract = common.HexToAddress("0x7c8A35C98Bf46a67324Af3F54aD027DBE2138E98")
	testSender   = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
)

// fakeChain is a scripted ChainReader.
type fakeChain struct {
	mu        sync.Mutex
	head      uint64
	headErr   error
	filterErr error
	logs      []ethtypes.Log
	queries   []ethereum.FilterQuery
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []ethtypes.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (f *fakeChain) set(fn func(*fakeChain)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeChain) lastQuery() (ethereum.FilterQuery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ethereum.FilterQuery{}, false
	}
	return f.queries[len(f.queries)-1], true
}

// moveLog builds a raw Move log the way the contract emits it.
func moveLog(t *testing.T, block uint64, cmd uint8, weight int64, memo string) ethtypes.Log {
	t.Helper()
	eventABI, err := abi.JSON(strings.NewReader(moveEventABI))
	if err != nil {
		t.Fatal(err)
	}
	data, err := eventABI.Events["Move"].Inputs.NonIndexed().Pack(cmd, big.NewInt(weight), memo)
	if err != nil {
		t.Fatal(err)
	}
	return ethtypes.Log{
		Address:     testContract,
		Topics:      []common.Hash{MoveTopic(), common.BytesToHash(testSender.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func TestMoveTopicNormalization(t *testing.T) {
	c := qt.New(t)

	topic := MoveTopicHex()
	// keccak256("Move(address,uint8,uint256,string)")
	c.Assert(topic, qt.Equals, "0xf8146bf3a90eddcb999cd82b99f3a422b6a2c8c3cc3ed84416442b77e25bc6ab")
	c.Assert(strings.HasPrefix(topic, "0x"), qt.IsTrue)
	c.Assert(topic, qt.Equals, strings.ToLower(topic))
	c.Assert(MoveTopic(), qt.Equals, common.HexToHash(topic))
}

func TestDecodeMove(t *testing.T) {
	c := qt.New(t)

	l, err := NewMoveListener(&fakeChain{}, testContract, 0)
	c.Assert(err, qt.IsNil)

	lg := moveLog(t, 42, 4, 7, "press a!")
	v, err := l.decodeMove(&lg)
	c.Assert(err, qt.IsNil)
	c.Assert(v.Sender, qt.Equals, testSender)
	c.Assert(v.Command, qt.Equals, types.Command(4))
	c.Assert(v.Weight.Int64(), qt.Equals, int64(7))
	c.Assert(v.Memo, qt.Equals, "press a!")
	c.Assert(v.BlockNumber, qt.Equals, uint64(42))

	b, ok := v.Command.Button()
	c.Assert(ok, qt.IsTrue)
	c.Assert(b, qt.Equals, types.ButtonA)
}

func TestDecodeMoveInvalid(t *testing.T) {
	c := qt.New(t)

	l, err := NewMoveListener(&fakeChain{}, testContract, 0)
	c.Assert(err, qt.IsNil)

	// missing indexed sender topic
	_, err = l.decodeMove(&ethtypes.Log{Topics: []common.Hash{MoveTopic()}})
	c.Assert(err, qt.Not(qt.IsNil))

	// undecodable data section
	_, err = l.decodeMove(&ethtypes.Log{
		Topics: []common.Hash{MoveTopic(), common.BytesToHash(testSender.Bytes())},
		Data:   []byte{0x01, 0x02},
	})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestMonitorMovesStartupError(t *testing.T) {
	c := qt.New(t)

	chain := &fakeChain{headErr: context.DeadlineExceeded}
	l, err := NewMoveListener(chain, testContract, 0)
	c.Assert(err, qt.IsNil)

	_, err = l.MonitorMoves(context.Background(), 10*time.Millisecond)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestMonitorMovesDeliversVotes(t *testing.T) {
	c := qt.New(t)

	chain := &fakeChain{head: 100}
	l, err := NewMoveListener(chain, testContract, 10*time.Millisecond)
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.MonitorMoves(ctx, 10*time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(l.Cursor(), qt.Equals, uint64(100))

	// three votes land in blocks 101-102, plus a garbage log that must be
	// skipped without aborting the batch
	chain.set(func(f *fakeChain) {
		f.logs = []ethtypes.Log{
			moveLog(t, 101, 2, 1, "left!"),
			moveLog(t, 101, 2, 1, "left again"),
			{Address: testContract, Topics: []common.Hash{MoveTopic()}, BlockNumber: 101},
			moveLog(t, 102, 5, 1, "b"),
		}
		f.head = 102
	})

	var got []types.Command
	for len(got) < 3 {
		select {
		case v := <-ch:
			got = append(got, v.Command)
		case <-time.After(2 * time.Second):
			c.Fatalf("timed out waiting for votes, got %v", got)
		}
	}
	c.Assert(got, qt.DeepEquals, []types.Command{2, 2, 5})

	// cursor advanced past the head after the successful cycle
	deadline := time.Now().Add(2 * time.Second)
	for l.Cursor() != 103 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Assert(l.Cursor(), qt.Equals, uint64(103))

	q, ok := chain.lastQuery()
	c.Assert(ok, qt.IsTrue)
	c.Assert(q.Addresses, qt.DeepEquals, []common.Address{testContract})
	c.Assert(q.Topics, qt.DeepEquals, [][]common.Hash{{MoveTopic()}})
}

func TestMonitorMovesCursorUnchangedOnError(t *testing.T) {
	c := qt.New(t)

	// transport failures from the very first cycle: the cursor must not move
	chain := &fakeChain{head: 55, filterErr: context.DeadlineExceeded}
	l, err := NewMoveListener(chain, testContract, time.Millisecond)
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.MonitorMoves(ctx, 5*time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(l.Cursor(), qt.Equals, uint64(55))

	chain.set(func(f *fakeChain) { f.head = 60 })
	time.Sleep(50 * time.Millisecond)
	c.Assert(l.Cursor(), qt.Equals, uint64(55))

	// recovery: the next successful cycle re-fetches from the same cursor,
	// so a vote in block 56 is not skipped
	chain.set(func(f *fakeChain) {
		f.filterErr = nil
		f.logs = []ethtypes.Log{moveLog(t, 56, 0, 1, "up")}
	})

	select {
	case v := <-ch:
		c.Assert(v.Command, qt.Equals, types.Command(0))
		c.Assert(v.BlockNumber, qt.Equals, uint64(56))
	case <-time.After(2 * time.Second):
		c.Fatal("timed out waiting for recovered vote")
	}

	deadline := time.Now().Add(2 * time.Second)
	for l.Cursor() != 61 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Assert(l.Cursor(), qt.Equals, uint64(61))

	q, ok := chain.lastQuery()
	c.Assert(ok, qt.IsTrue)
	c.Assert(q.FromBlock.Uint64(), qt.Equals, uint64(55))
}
