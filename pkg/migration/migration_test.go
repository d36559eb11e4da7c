package migration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/energyweb/market-contracts-go/internal/testchain"
	"github.com/energyweb/market-contracts-go/pkg/artifact"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/energyweb/market-contracts-go/pkg/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const deployKey = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

var (
	deployer    = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	nodeAccount = common.HexToAddress("0x00a329c0648769A73afAc7F9381E08FB43dBEA72")
	assetLookup = common.HexToAddress("0x00000000000000000000000000000000000a55e7")
	otherLookup = common.HexToAddress("0x00000000000000000000000000000000000b55e7")
	testChainID = int64(9191)
)

func newTestMigrator(t *testing.T, store Store) (*testchain.Chain, *executor.Executor, *Migrator) {
	t.Helper()
	chain := testchain.New(testChainID, nodeAccount)
	chain.InstallMarket()
	exec := executor.New(chain, zap.NewNop())
	return chain, exec, NewMigrator(exec, testchain.MarketArtifacts(), store, zap.NewNop())
}

func Test_MigrateMarketRegistryContracts(t *testing.T) {
	tests := []struct {
		name   string
		params *executor.TxParams
		from   common.Address
	}{
		{name: "raw key", params: &executor.TxParams{PrivateKey: deployKey}, from: deployer},
		{name: "node managed", params: nil, from: nodeAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			chain, exec, m := newTestMigrator(t, nil)

			result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, tt.params)
			require.NoError(t, err)
			require.Len(t, result, 3)

			// one transaction per step, deployments first and in order
			assert.Equal(t, crypto.CreateAddress(tt.from, 0), result[artifact.MarketContractLookup])
			assert.Equal(t, crypto.CreateAddress(tt.from, 1), result[artifact.MarketLogic])
			assert.Equal(t, crypto.CreateAddress(tt.from, 2), result[artifact.MarketDB])
			nonce, err := chain.PendingNonceAt(ctx, tt.from)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), nonce)

			lookup, err := market.NewMarketContractLookup(result[artifact.MarketContractLookup], exec)
			require.NoError(t, err)
			got, err := lookup.AssetContractLookup(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, assetLookup, got)
			got, err = lookup.MarketLogicRegistry(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, result[artifact.MarketLogic], got)
			got, err = lookup.MarketDB(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, result[artifact.MarketDB], got)

			logic, err := market.NewMarketLogic(result[artifact.MarketLogic], exec)
			require.NoError(t, err)
			got, err = logic.DB(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, result[artifact.MarketDB], got)
			got, err = logic.Owner(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, result[artifact.MarketContractLookup], got)
			got, err = logic.UserContractLookup(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, chain.UserRegistry(), got)

			require.NoError(t, m.Verify(ctx, assetLookup, result))
		})
	}
}

func Test_MigrateIgnoresNonceAndGasOverrides(t *testing.T) {
	ctx := context.Background()
	_, _, m := newTestMigrator(t, nil)

	nonce, gas := uint64(42), uint64(1)
	result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, &executor.TxParams{
		PrivateKey: deployKey,
		Nonce:      &nonce,
		Gas:        &gas,
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(deployer, 0), result[artifact.MarketContractLookup])
}

func Test_MigrateResumesAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	chain, _, m := newTestMigrator(t, store)
	params := &executor.TxParams{PrivateKey: deployKey}

	dbCode := testchain.CreationCode(artifact.MarketDB)
	chain.SetSendHook(func(from common.Address, to *common.Address, data []byte) error {
		if to == nil && bytes.HasPrefix(data, dbCode) {
			return errors.New("connection reset")
		}
		return nil
	})

	result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	require.Error(t, err)
	assert.Nil(t, result)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, artifact.MarketDB, stepErr.Step)

	state, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, []string{artifact.MarketContractLookup, artifact.MarketLogic}, state.CompletedSteps)
	assert.NotEmpty(t, state.RunID)

	chain.SetSendHook(nil)
	result, err = m.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	require.NoError(t, err)
	assert.Equal(t, state.Addresses[artifact.MarketContractLookup], result[artifact.MarketContractLookup])
	assert.Equal(t, state.Addresses[artifact.MarketLogic], result[artifact.MarketLogic])
	assert.Equal(t, crypto.CreateAddress(deployer, 2), result[artifact.MarketDB])
	require.NoError(t, m.Verify(ctx, assetLookup, result))

	final, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.RunID, final.RunID)
	assert.Equal(t, Steps, final.CompletedSteps)

	// a completed run is a no-op
	again, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	require.NoError(t, err)
	assert.Equal(t, result, again)
	nonce, err := chain.PendingNonceAt(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), nonce)
}

func Test_MigrateRejectsMismatchedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, _, m := newTestMigrator(t, store)
	params := &executor.TxParams{PrivateKey: deployKey}

	_, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	require.NoError(t, err)

	_, err = m.MigrateMarketRegistryContracts(ctx, otherLookup, params)
	assert.ErrorIs(t, err, ErrStateMismatch)

	// progress recorded against another chain
	_, _, other := newTestMigrator(t, store)
	state, err := store.Load(ctx)
	require.NoError(t, err)
	state.ChainID = "1"
	require.NoError(t, store.Save(ctx, state))
	_, err = other.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func Test_MigrateRejectsRecordedAddressWithoutCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	state := newState("9191", assetLookup)
	missing := common.HexToAddress("0x00000000000000000000000000000000000dead1")
	state.complete(artifact.MarketContractLookup, &missing)
	require.NoError(t, store.Save(ctx, state))

	_, _, m := newTestMigrator(t, store)
	_, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, &executor.TxParams{PrivateKey: deployKey})
	assert.ErrorIs(t, err, ErrStateMismatch)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, artifact.MarketContractLookup, stepErr.Step)
}

func Test_MigrateStopsAtRejectedInit(t *testing.T) {
	ctx := context.Background()
	chain, _, m := newTestMigrator(t, nil)
	params := &executor.TxParams{PrivateKey: deployKey}

	chain.SetSendHook(func(from common.Address, to *common.Address, data []byte) error {
		if to != nil {
			return errors.New("rejected")
		}
		return nil
	})
	_, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, params)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepInit, stepErr.Step)
}

func Test_Verify(t *testing.T) {
	ctx := context.Background()
	_, _, m := newTestMigrator(t, nil)
	result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, &executor.TxParams{PrivateKey: deployKey})
	require.NoError(t, err)

	t.Run("wrong asset registry", func(t *testing.T) {
		err := m.Verify(ctx, otherLookup, result)
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.Contains(t, err.Error(), "lookup asset registry")
	})
	t.Run("swapped addresses", func(t *testing.T) {
		swapped := DeploymentResult{
			artifact.MarketContractLookup: result[artifact.MarketContractLookup],
			artifact.MarketLogic:          result[artifact.MarketDB],
			artifact.MarketDB:             result[artifact.MarketLogic],
		}
		assert.ErrorIs(t, m.Verify(ctx, assetLookup, swapped), ErrVerificationFailed)
	})
	t.Run("missing contract", func(t *testing.T) {
		partial := DeploymentResult{artifact.MarketContractLookup: result[artifact.MarketContractLookup]}
		assert.ErrorIs(t, m.Verify(ctx, assetLookup, partial), ErrVerificationFailed)
	})
	t.Run("addresses from artifact networks", func(t *testing.T) {
		artifacts := testchain.MarketArtifacts()
		for _, name := range []string{artifact.MarketLogic, artifact.MarketDB} {
			a, err := artifacts.Get(name)
			require.NoError(t, err)
			a.Networks = map[string]artifact.NetworkEntry{
				"9191": {Address: result[name]},
				"1":    {Address: common.HexToAddress("0x01")},
			}
		}
		withNetworks := NewMigrator(m.exec, artifacts, nil, zap.NewNop())

		partial := DeploymentResult{artifact.MarketContractLookup: result[artifact.MarketContractLookup]}
		assert.NoError(t, withNetworks.Verify(ctx, assetLookup, partial))
		assert.Len(t, partial, 1)
	})
	t.Run("supplied addresses win over artifact networks", func(t *testing.T) {
		artifacts := testchain.MarketArtifacts()
		artifacts.MarketDB.Networks = map[string]artifact.NetworkEntry{
			"9191": {Address: result[artifact.MarketLogic]},
		}
		withNetworks := NewMigrator(m.exec, artifacts, nil, zap.NewNop())
		assert.NoError(t, withNetworks.Verify(ctx, assetLookup, result))
	})
}

func Test_MigrateEncodesConstructorFromArtifact(t *testing.T) {
	ctx := context.Background()
	chain := testchain.New(testChainID, nodeAccount)
	chain.InstallMarket()
	exec := executor.New(chain, zap.NewNop())

	artifacts := testchain.MarketArtifacts()
	artifacts.MarketLogic.ABI = []byte(`[{"type":"constructor","inputs":[{"name":"_assetContractLookup","type":"address"}],"stateMutability":"nonpayable"}]`)
	m := NewMigrator(exec, artifacts, nil, zap.NewNop())

	_, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, &executor.TxParams{PrivateKey: deployKey})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, artifact.MarketLogic, stepErr.Step)
	assert.Contains(t, err.Error(), "constructor arguments of MarketLogic")

	nonce, err := chain.PendingNonceAt(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func Test_FileStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "migration.json"))

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	_, _, m := newTestMigrator(t, store)
	result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, &executor.TxParams{PrivateKey: deployKey})
	require.NoError(t, err)

	state, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "9191", state.ChainID)
	assert.Equal(t, assetLookup, state.AssetContractLookup)
	assert.Equal(t, Steps, state.CompletedSteps)
	assert.Equal(t, map[string]common.Address(result), state.Addresses)
	assert.False(t, state.UpdatedAt.IsZero())
}
