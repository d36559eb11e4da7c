package market

import (
	"context"
	"fmt"

	"github.com/energyweb/market-contracts-go/pkg/contracts"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MarketContractLookup binds the market registry contract.
type MarketContractLookup struct {
	contract *contracts.BoundContract
}

// NewMarketContractLookup binds the registry at address.
func NewMarketContractLookup(address common.Address, backend contracts.Backend) (*MarketContractLookup, error) {
	parsed, err := contracts.ParseABI(MarketContractLookupABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MarketContractLookup ABI: %w", err)
	}
	return &MarketContractLookup{
		contract: contracts.NewBoundContract("MarketContractLookup", address, parsed, backend),
	}, nil
}

func (m *MarketContractLookup) Address() common.Address { return m.contract.Address() }

// Init links the registry to the asset registry, the logic and the database.
// The registry in turn hands the database to the logic.
func (m *MarketContractLookup) Init(ctx context.Context, params *executor.TxParams, assetRegistry, marketLogic, marketDB common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "init", assetRegistry, marketLogic, marketDB)
}

// Update points the registry at a new logic contract.
func (m *MarketContractLookup) Update(ctx context.Context, params *executor.TxParams, marketLogic common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "update", marketLogic)
}

func (m *MarketContractLookup) ChangeOwner(ctx context.Context, params *executor.TxParams, newOwner common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "changeOwner", newOwner)
}

func (m *MarketContractLookup) Owner(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "owner")
}

func (m *MarketContractLookup) AssetContractLookup(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "assetContractLookup")
}

func (m *MarketContractLookup) MarketLogicRegistry(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "marketLogicRegistry")
}

func (m *MarketContractLookup) MarketDB(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "marketDB")
}

func (m *MarketContractLookup) ChangeOwnerEvents(ctx context.Context, filter *executor.EventFilter) ([]*ChangeOwner, error) {
	return filterEvents[ChangeOwner](ctx, m.contract, EventLogChangeOwner, filter)
}

// AllEvents returns every log emitted by the registry.
func (m *MarketContractLookup) AllEvents(ctx context.Context, filter *executor.EventFilter) ([]types.Log, error) {
	return m.contract.AllEvents(ctx, filter)
}

func callAddress(ctx context.Context, c *contracts.BoundContract, params *executor.TxParams, method string) (common.Address, error) {
	var out common.Address
	if err := c.Call(ctx, params, &out, method); err != nil {
		return common.Address{}, err
	}
	return out, nil
}
