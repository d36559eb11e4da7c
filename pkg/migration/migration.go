// Package migration deploys and links the market registry contracts:
// MarketContractLookup, then MarketLogic, then MarketDB, then lookup.init.
//
// Each confirmed step is recorded in a Store. A failed run can be repeated
// with the same Store and resumes after the last confirmed step.
package migration

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/energyweb/market-contracts-go/pkg/artifact"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/energyweb/market-contracts-go/pkg/market"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// StepInit is the lookup.init step. Deployment steps are named after their contract.
const StepInit = "init"

// Steps in execution order.
var Steps = []string{artifact.MarketContractLookup, artifact.MarketLogic, artifact.MarketDB, StepInit}

var (
	// ErrStateMismatch is returned when recorded progress belongs to another
	// chain or asset registry, or a recorded contract has no code.
	ErrStateMismatch = errors.New("recorded migration state does not match")
	// ErrVerificationFailed is wrapped by every Verify mismatch.
	ErrVerificationFailed = errors.New("deployment verification failed")
)

// StepError names the step a migration stopped at.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// DeploymentResult maps contract names to deployed addresses.
type DeploymentResult map[string]common.Address

type Migrator struct {
	exec      *executor.Executor
	artifacts *artifact.Set
	store     Store
	logger    *zap.Logger
}

// NewMigrator creates a Migrator. A nil store keeps progress in memory.
func NewMigrator(exec *executor.Executor, artifacts *artifact.Set, store Store, logger *zap.Logger) *Migrator {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Migrator{
		exec:      exec,
		artifacts: artifacts,
		store:     store,
		logger:    logger,
	}
}

// MigrateMarketRegistryContracts runs the remaining steps for
// assetContractLookup and returns all three addresses once init is confirmed.
// params apply to every step except Nonce, Gas and Data, which are resolved per transaction.
func (m *Migrator) MigrateMarketRegistryContracts(ctx context.Context, assetContractLookup common.Address, params *executor.TxParams) (DeploymentResult, error) {
	state, err := m.loadState(ctx, assetContractLookup)
	if err != nil {
		return nil, err
	}
	params = stepParams(params)

	m.logger.Sugar().Infow("Migrating market registry contracts",
		zap.String("runId", state.RunID),
		zap.String("assetContractLookup", assetContractLookup.Hex()),
		zap.Strings("completedSteps", state.CompletedSteps),
	)

	lookup, err := m.deploy(ctx, state, artifact.MarketContractLookup, nil, params)
	if err != nil {
		return nil, err
	}
	logic, err := m.deploy(ctx, state, artifact.MarketLogic, []interface{}{assetContractLookup, lookup}, params)
	if err != nil {
		return nil, err
	}
	db, err := m.deploy(ctx, state, artifact.MarketDB, []interface{}{logic}, params)
	if err != nil {
		return nil, err
	}

	if !state.Completed(StepInit) {
		binding, err := market.NewMarketContractLookup(lookup, m.exec)
		if err != nil {
			return nil, &StepError{Step: StepInit, Err: err}
		}
		if _, err := binding.Init(ctx, params, assetContractLookup, logic, db); err != nil {
			return nil, &StepError{Step: StepInit, Err: err}
		}
		state.complete(StepInit, nil)
		if err := m.store.Save(ctx, state); err != nil {
			return nil, &StepError{Step: StepInit, Err: err}
		}
	}

	m.logger.Sugar().Infow("Market registry contracts migrated",
		zap.String("runId", state.RunID),
		zap.String(artifact.MarketContractLookup, lookup.Hex()),
		zap.String(artifact.MarketLogic, logic.Hex()),
		zap.String(artifact.MarketDB, db.Hex()),
	)
	return DeploymentResult{
		artifact.MarketContractLookup: lookup,
		artifact.MarketLogic:          logic,
		artifact.MarketDB:             db,
	}, nil
}

func (m *Migrator) loadState(ctx context.Context, assetContractLookup common.Address) (*State, error) {
	chainID, err := m.exec.Client().ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	state, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return newState(chainID.String(), assetContractLookup), nil
	}
	if state.ChainID != chainID.String() {
		return nil, fmt.Errorf("%w: run %s was recorded on chain %s, connected to %s", ErrStateMismatch, state.RunID, state.ChainID, chainID)
	}
	if state.AssetContractLookup != assetContractLookup {
		return nil, fmt.Errorf("%w: run %s targets asset registry %s", ErrStateMismatch, state.RunID, state.AssetContractLookup.Hex())
	}
	return state, nil
}

// deploy creates name with ctorArgs encoded by the artifact's constructor,
// unless an earlier run already did.
func (m *Migrator) deploy(ctx context.Context, state *State, name string, ctorArgs []interface{}, params *executor.TxParams) (common.Address, error) {
	if state.Completed(name) {
		address := state.Addresses[name]
		code, err := m.exec.CodeAt(ctx, address)
		if err != nil {
			return common.Address{}, &StepError{Step: name, Err: err}
		}
		if len(code) == 0 {
			return common.Address{}, &StepError{Step: name, Err: fmt.Errorf("%w: no code at recorded address %s", ErrStateMismatch, address.Hex())}
		}
		m.logger.Sugar().Infow("Skipping deployed contract",
			zap.String("contract", name),
			zap.String("address", address.Hex()),
		)
		return address, nil
	}

	a, err := m.artifacts.Get(name)
	if err != nil {
		return common.Address{}, &StepError{Step: name, Err: err}
	}
	code, err := a.CreationCode()
	if err != nil {
		return common.Address{}, &StepError{Step: name, Err: err}
	}
	encoded, err := encodeConstructor(a, ctorArgs)
	if err != nil {
		return common.Address{}, &StepError{Step: name, Err: err}
	}
	bytecode := append(bytes.Clone(code), encoded...)

	address, _, err := m.exec.Deploy(ctx, bytecode, params)
	if err != nil {
		return common.Address{}, &StepError{Step: name, Err: err}
	}
	state.complete(name, &address)
	if err := m.store.Save(ctx, state); err != nil {
		return common.Address{}, &StepError{Step: name, Err: err}
	}
	return address, nil
}

func encodeConstructor(a *artifact.ContractArtifact, args []interface{}) ([]byte, error) {
	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, err
	}
	encoded, err := parsed.Constructor.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments of %s: %w", a.ContractName, err)
	}
	return encoded, nil
}

func stepParams(params *executor.TxParams) *executor.TxParams {
	if params == nil {
		return &executor.TxParams{}
	}
	p := *params
	p.Nonce = nil
	p.Gas = nil
	p.Data = nil
	return &p
}
