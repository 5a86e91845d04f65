package rpc

// This package contains the Web3Pool struct, which is a pool of Web3Endpoint
// instances. It allows to add, remove and get endpoints, and provides a
// Client that balances the read operations the poller depends on (current
// block number and log filtering) between the available endpoints for a
// chainID. Endpoints that fail are flagged as unavailable; if every endpoint
// of a chainID fails, the pool resets the flags and starts again.

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	// DefaultMaxWeb3ClientRetries is the default number of retries to connect
	// to a web3 provider.
	DefaultMaxWeb3ClientRetries = 5
	// checkWeb3EndpointsTimeout is the timeout to check the web3 endpoints.
	checkWeb3EndpointsTimeout = time.Second * 10
)

// Web3Endpoint struct contains all the required information about a web3
// provider based on its URI. It includes its chain ID and the connected
// client.
type Web3Endpoint struct {
	ChainID uint64 `json:"chainId"`
	URI     string `json:"uri"`
	client  *ethclient.Client
}

// Web3Pool struct contains a map of chainID-[]*Web3Endpoint, where the key
// is the chainID and the value is a list of Web3Endpoint. It allows to
// support multiple endpoints for the same chainID and switch between them
// looking for the available one.
type Web3Pool struct {
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool method returns a new *Web3Pool instance.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{
		endpoints: make(map[uint64]*Web3Iterator),
	}
}

// AddEndpoint method adds a new web3 provider URI to the Web3Pool. It dials
// the provider with retries and returns the chainID of the endpoint added to
// the pool.
func (nm *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), checkWeb3EndpointsTimeout)
	defer cancel()
	// init the web3 client
	client, err := connect(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
	}
	// get the chainID from the web3 endpoint
	bChainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("error getting the chainID from the web3 provider '%s': %w", uri, err)
	}
	chainID := bChainID.Uint64()
	// add the endpoint to the pool
	endpoint := &Web3Endpoint{
		ChainID: chainID,
		URI:     uri,
		client:  client,
	}
	if _, ok := nm.endpoints[chainID]; !ok {
		nm.endpoints[chainID] = NewWeb3Iterator(endpoint)
	} else {
		nm.endpoints[chainID].Add(endpoint)
	}
	return chainID, nil
}

// DelEndpoint method removes a web3 provider URI from the *Web3Pool
// instance, removing it from the list of endpoints for the chainID where it
// was found.
func (nm *Web3Pool) DelEndpoint(uri string) {
	for _, endpoints := range nm.endpoints {
		endpoints.Disable(uri)
	}
}

// Endpoint method returns the first available Web3Endpoint configured for
// the chainID provided. If no available endpoint is found, returns an error.
func (nm *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	if endpoints, ok := nm.endpoints[chainID]; ok {
		return endpoints.Next()
	}
	return nil, fmt.Errorf("no endpoint found for chainID %d", chainID)
}

// DisableEndpoint method sets the available flag to false for the URI
// provided in the chainID provided.
func (nm *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	if endpoints, ok := nm.endpoints[chainID]; ok {
		endpoints.Disable(uri)
	}
}

// NumberOfEndpoints method returns the total number (or just the available
// ones) of endpoints for the chainID provided.
func (nm *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	if endpoints, ok := nm.endpoints[chainID]; ok {
		n := endpoints.Available()
		if !onlyAvailable {
			n += endpoints.Disabled()
		}
		return n
	}
	return 0
}

// Client method returns a new *Client instance for the chainID provided.
// It returns an error if no endpoint is registered for that chainID.
func (nm *Web3Pool) Client(chainID uint64) (*Client, error) {
	if _, err := nm.Endpoint(chainID); err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", chainID, err)
	}
	return &Client{w3p: nm, chainID: chainID}, nil
}

// CurrentBlockNumbers method returns a map of uint64-uint64, where the key
// is the chainID and the value is the current block number of the network.
func (nm *Web3Pool) CurrentBlockNumbers(ctx context.Context) (map[uint64]uint64, error) {
	blockNumbers := make(map[uint64]uint64)
	for chainID := range nm.endpoints {
		cli, err := nm.Endpoint(chainID)
		if err != nil {
			return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", chainID, err)
		}
		blockNumber, err := cli.client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting block number for chainID %d: %w", chainID, err)
		}
		blockNumbers[chainID] = blockNumber
	}
	return blockNumbers, nil
}

// connect method returns a new *ethclient.Client instance for the URI
// provided. It retries to connect to the web3 provider if it fails, up to
// the DefaultMaxWeb3ClientRetries times.
func connect(ctx context.Context, uri string) (client *ethclient.Client, err error) {
	for i := 0; i < DefaultMaxWeb3ClientRetries; i++ {
		if client, err = ethclient.DialContext(ctx, uri); err != nil {
			continue
		}
		return
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}
