package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/chainplays/chainplays/log"
)

// Client struct implements the read operations the log poller depends on
// for a web3 pool with a specific chainID. Every call is retried over the
// available endpoints of the pool, disabling the ones that fail so the next
// call skips them.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chainID this client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// BlockNumber method wraps the BlockNumber method from the ethclient.Client
// for the chainID of the Client instance. It returns the current chain head
// number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return 0, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	blockNumber, err := endpoint.client.BlockNumber(ctx)
	if err != nil {
		log.Warnw("disabling failing web3 endpoint", "chainID", c.chainID, "uri", endpoint.URI, "error", err.Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		return 0, fmt.Errorf("error getting block number: %w", err)
	}
	return blockNumber, nil
}

// FilterLogs method wraps the FilterLogs method from the ethclient.Client
// for the chainID of the Client instance.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	logs, err := endpoint.client.FilterLogs(ctx, q)
	if err != nil {
		log.Warnw("disabling failing web3 endpoint", "chainID", c.chainID, "uri", endpoint.URI, "error", err.Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		return nil, fmt.Errorf("error filtering logs: %w", err)
	}
	return logs, nil
}
