// Package web3 implements the on-chain side of the pipeline: the Move event
// schema, its topic hash, and a polling listener that turns raw contract
// logs into decoded vote events.
package web3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/types"
)

// web3QueryTimeout is the timeout for a single web3 query.
const web3QueryTimeout = 10 * time.Second

// DefaultBackoff is the delay before retrying after a failed poll cycle.
const DefaultBackoff = 2 * time.Second

// moveEventSignature is the canonical signature of the Move event emitted by
// the voting contract. Its keccak256 hash is the topic used to filter logs.
const moveEventSignature = "Move(address,uint8,uint256,string)"

// moveEventABI describes the Move event: an indexed sender address plus the
// command index, vote weight and memo in the data section.
const moveEventABI = `[{
  "anonymous": false,
  "inputs": [
    {"indexed": true,  "internalType": "address", "name": "sender", "type": "address"},
    {"indexed": false, "internalType": "uint8",   "name": "cmd",    "type": "uint8"},
    {"indexed": false, "internalType": "uint256", "name": "weight", "type": "uint256"},
    {"indexed": false, "internalType": "string",  "name": "memo",   "type": "string"}
  ],
  "name": "Move",
  "type": "event"
}]`

// MoveTopicHex returns the Move event topic as a lowercase, 0x-prefixed
// hexadecimal string, the normalized form used as a log filter.
func MoveTopicHex() string {
	topic := crypto.Keccak256Hash([]byte(moveEventSignature)).Hex()
	if !strings.HasPrefix(topic, "0x") {
		topic = "0x" + topic
	}
	return strings.ToLower(topic)
}

// MoveTopic returns the Move event topic hash.
func MoveTopic() common.Hash {
	return common.HexToHash(MoveTopicHex())
}

// ChainReader defines the two chain operations the poller depends on. It is
// implemented by rpc.Client and mocked in tests.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// MoveListener polls a chain for Move events of a single contract and
// decodes them into vote events. It owns the poll cursor: the cursor only
// advances after a fully successful cycle, so a failed fetch is retried
// wholesale from the same block and no votes are permanently lost.
type MoveListener struct {
	client   ChainReader
	address  common.Address
	topic    common.Hash
	eventABI abi.ABI
	backoff  time.Duration
	cursor   atomic.Uint64
}

// NewMoveListener creates a listener for the Move events of the contract at
// the given address. backoff is the delay before retrying a failed poll
// cycle; zero means DefaultBackoff.
func NewMoveListener(client ChainReader, contract common.Address, backoff time.Duration) (*MoveListener, error) {
	if client == nil {
		return nil, fmt.Errorf("chain reader cannot be nil")
	}
	eventABI, err := abi.JSON(strings.NewReader(moveEventABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Move event ABI: %w", err)
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &MoveListener{
		client:   client,
		address:  contract,
		topic:    MoveTopic(),
		eventABI: eventABI,
		backoff:  backoff,
	}, nil
}

// Cursor returns the next block the poller will fetch from.
func (l *MoveListener) Cursor() uint64 {
	return l.cursor.Load()
}

// MonitorMoves starts polling for Move events every interval and returns the
// channel where decoded votes are published. The cursor starts at the
// current chain head; if the head cannot be fetched the error is returned
// immediately so the caller can treat an unreachable RPC at startup as
// fatal. The polling goroutine itself never terminates on errors: a failed
// cycle is logged and retried after the configured backoff.
func (l *MoveListener) MonitorMoves(ctx context.Context, interval time.Duration) (<-chan *types.VoteEvent, error) {
	ctxHead, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	head, err := l.client.BlockNumber(ctxHead)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to get current block number: %w", err)
	}
	l.cursor.Store(head)
	log.Infow("listening for Move events", "contract", l.address.Hex(), "topic", MoveTopicHex(), "fromBlock", head)

	ch := make(chan *types.VoteEvent)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Warnw("exiting move event monitor")
				return
			case <-ticker.C:
				if err := l.poll(ctx, ch); err != nil {
					if ctx.Err() != nil {
						log.Warnw("exiting move event monitor")
						return
					}
					log.Warnw("failed to poll move events, retrying", "err", err, "cursor", l.Cursor())
					select {
					case <-time.After(l.backoff):
					case <-ctx.Done():
						log.Warnw("exiting move event monitor")
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

// poll runs one cycle: fetch the head, fetch the logs in [cursor, head],
// decode and publish them, then advance the cursor to head+1. Any transport
// error aborts the cycle with the cursor unchanged. A log that fails to
// decode is skipped without aborting the batch.
func (l *MoveListener) poll(ctx context.Context, ch chan<- *types.VoteEvent) error {
	ctxQuery, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()

	head, err := l.client.BlockNumber(ctxQuery)
	if err != nil {
		return fmt.Errorf("failed to get current block number: %w", err)
	}
	cursor := l.cursor.Load()
	if head < cursor {
		return nil
	}
	logs, err := l.client.FilterLogs(ctxQuery, ethereum.FilterQuery{
		Addresses: []common.Address{l.address},
		Topics:    [][]common.Hash{{l.topic}},
		FromBlock: new(big.Int).SetUint64(cursor),
		ToBlock:   new(big.Int).SetUint64(head),
	})
	if err != nil {
		return fmt.Errorf("failed to filter logs in range [%d, %d]: %w", cursor, head, err)
	}
	for i := range logs {
		v, err := l.decodeMove(&logs[i])
		if err != nil {
			log.Warnw("failed to decode move log, skipping",
				"block", logs[i].BlockNumber,
				"txHash", logs[i].TxHash.Hex(),
				"error", err.Error(),
			)
			continue
		}
		log.Debugw("vote observed", "vote", v.String(), "block", v.BlockNumber)
		select {
		case ch <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.cursor.Store(head + 1)
	return nil
}

// decodeMove turns a raw log into a vote event. The sender comes from the
// indexed topic, the rest from the ABI-encoded data section.
func (l *MoveListener) decodeMove(lg *ethtypes.Log) (*types.VoteEvent, error) {
	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("log has %d topics, expected 2", len(lg.Topics))
	}
	vals, err := l.eventABI.Unpack("Move", lg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack log data: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("unexpected number of decoded fields: %d", len(vals))
	}
	cmd, ok := vals[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected type for cmd field: %T", vals[0])
	}
	weight, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type for weight field: %T", vals[1])
	}
	memo, ok := vals[2].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type for memo field: %T", vals[2])
	}
	return &types.VoteEvent{
		Sender:      common.BytesToAddress(lg.Topics[1].Bytes()),
		Command:     types.Command(cmd),
		Weight:      weight,
		Memo:        memo,
		BlockNumber: lg.BlockNumber,
	}, nil
}
