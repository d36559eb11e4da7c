// Package chainManager keeps the node connections used by the market tooling.
// Chains are registered by chain ID and reached through the NodeClient
// interface so tests can substitute MockNodeClient.
package chainManager

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChainNotFound is returned when a requested chain ID is not found in the manager
	ErrChainNotFound = errors.New("chain not found")
	// ErrChainIDMismatch is returned when the node reports a different chain ID than configured
	ErrChainIDMismatch = errors.New("chain id mismatch")
)

// IChainManager defines the interface for managing node connections.
type IChainManager interface {
	AddChain(ctx context.Context, cfg *ChainConfig) (*Chain, error)
	GetChainForId(chainId uint64) (*Chain, error)
}

// ChainConfig holds the configuration for connecting to a node.
type ChainConfig struct {
	// ChainID is the expected chain ID. Zero accepts whatever the node reports.
	ChainID uint64
	// RPCUrl is the URL endpoint for connecting to the node RPC
	RPCUrl string
}

// Chain is a registered, connected chain.
type Chain struct {
	config *ChainConfig
	// ChainID as reported by the node
	ChainID uint64
	// RPCClient is the active client connection for this chain
	RPCClient NodeClient
}

// Dialer opens a NodeClient for an RPC URL.
type Dialer func(ctx context.Context, url string) (NodeClient, error)

// ChainManager implements IChainManager. It is safe for concurrent use.
type ChainManager struct {
	Chains sync.Map // map[uint64]*Chain
	dial   Dialer
}

// NewChainManager creates a ChainManager that dials real nodes.
func NewChainManager() *ChainManager {
	return NewChainManagerWithDialer(DialNodeClient)
}

// NewChainManagerWithDialer creates a ChainManager using dial to open connections.
func NewChainManagerWithDialer(dial Dialer) *ChainManager {
	return &ChainManager{dial: dial}
}

// AddChain connects to cfg.RPCUrl, checks the node's chain ID against
// cfg.ChainID (when non-zero) and registers the chain under the reported ID.
func (cm *ChainManager) AddChain(ctx context.Context, cfg *ChainConfig) (*Chain, error) {
	if cfg.ChainID != 0 {
		if _, exists := cm.Chains.Load(cfg.ChainID); exists {
			return nil, fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
		}
	}
	client, err := cm.dial(ctx, cfg.RPCUrl)
	if err != nil {
		return nil, err
	}
	reported, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id from %s: %w", cfg.RPCUrl, err)
	}
	if !reported.IsUint64() {
		return nil, fmt.Errorf("chain id %s does not fit in uint64", reported)
	}
	chainID := reported.Uint64()
	if cfg.ChainID != 0 && cfg.ChainID != chainID {
		return nil, fmt.Errorf("%w: configured %d, node reports %d", ErrChainIDMismatch, cfg.ChainID, chainID)
	}

	chain := &Chain{
		config:    cfg,
		ChainID:   chainID,
		RPCClient: client,
	}
	if _, loaded := cm.Chains.LoadOrStore(chainID, chain); loaded {
		return nil, fmt.Errorf("chain with ID %d already exists", chainID)
	}
	return chain, nil
}

// GetChainForId retrieves a registered chain by its chain ID.
func (cm *ChainManager) GetChainForId(chainId uint64) (*Chain, error) {
	value, exists := cm.Chains.Load(chainId)
	if !exists {
		return nil, ErrChainNotFound
	}
	chain, ok := value.(*Chain)
	if !ok {
		return nil, fmt.Errorf("invalid chain type stored for ID %d", chainId)
	}
	return chain, nil
}
