package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Command is the command index carried by an on-chain Move event. The
// contract emits it as an enum encoded as uint8. Only values 0-7 map to a
// console button; any other value is valid but unmapped and gets dropped
// before reaching the action queue.
type Command uint8

// Button identifies one of the eight Game Boy inputs.
type Button string

const (
	ButtonUp     Button = "up"
	ButtonDown   Button = "down"
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonA      Button = "a"
	ButtonB      Button = "b"
	ButtonStart  Button = "start"
	ButtonSelect Button = "select"
)

// commandButtons is the fixed command-to-button table shared with the
// event-emitting contract. The order is part of the external contract and
// must never change.
var commandButtons = [8]Button{
	ButtonUp,
	ButtonDown,
	ButtonLeft,
	ButtonRight,
	ButtonA,
	ButtonB,
	ButtonStart,
	ButtonSelect,
}

// Button returns the console button mapped to the command. The second return
// value is false for commands outside the 8-entry table.
func (c Command) Button() (Button, bool) {
	if int(c) >= len(commandButtons) {
		return "", false
	}
	return commandButtons[c], true
}

// String returns the mapped button name, or a numeric placeholder for
// unmapped commands.
func (c Command) String() string {
	if b, ok := c.Button(); ok {
		return string(b)
	}
	return fmt.Sprintf("unmapped(%d)", uint8(c))
}

// VoteEvent is a decoded Move event. It is immutable once decoded from a raw
// log: the poller creates it, the aggregator consumes it and discards it
// after tallying.
type VoteEvent struct {
	Sender      common.Address
	Command     Command
	Weight      *big.Int
	Memo        string
	BlockNumber uint64
}

// String returns a short human-readable form used in diagnostics.
func (v *VoteEvent) String() string {
	return fmt.Sprintf("%s -> %s (%s)", v.Sender.Hex(), v.Command, v.Memo)
}
