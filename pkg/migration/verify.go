package migration

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/energyweb/market-contracts-go/pkg/artifact"
	"github.com/energyweb/market-contracts-go/pkg/market"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Verify checks a finished deployment: the runtime code at each address
// matches its artifact's deployedBytecode, the lookup points at
// assetContractLookup, the logic and the db, the logic's owner is the lookup
// and the db's owner is the logic. All mismatches are reported together.
// A contract missing from result is looked up in its artifact's networks
// entry for the connected chain.
func (m *Migrator) Verify(ctx context.Context, assetContractLookup common.Address, result DeploymentResult) error {
	var errs []error
	mismatch := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrVerificationFailed, fmt.Sprintf(format, args...)))
	}

	result, err := m.withNetworkAddresses(ctx, result)
	if err != nil {
		return err
	}
	for _, name := range []string{artifact.MarketContractLookup, artifact.MarketLogic, artifact.MarketDB} {
		address, ok := result[name]
		if !ok {
			mismatch("no address for %s", name)
			continue
		}
		if err := m.verifyCode(ctx, name, address); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	lookupAddr, logicAddr, dbAddr := result[artifact.MarketContractLookup], result[artifact.MarketLogic], result[artifact.MarketDB]
	lookup, err := market.NewMarketContractLookup(lookupAddr, m.exec)
	if err != nil {
		return err
	}
	logic, err := market.NewMarketLogic(logicAddr, m.exec)
	if err != nil {
		return err
	}
	db, err := market.NewMarketDB(dbAddr, m.exec)
	if err != nil {
		return err
	}

	checks := []struct {
		what     string
		read     func(context.Context) (common.Address, error)
		expected common.Address
	}{
		{"lookup asset registry", func(ctx context.Context) (common.Address, error) { return lookup.AssetContractLookup(ctx, nil) }, assetContractLookup},
		{"lookup market logic", func(ctx context.Context) (common.Address, error) { return lookup.MarketLogicRegistry(ctx, nil) }, logicAddr},
		{"lookup market db", func(ctx context.Context) (common.Address, error) { return lookup.MarketDB(ctx, nil) }, dbAddr},
		{"logic db", func(ctx context.Context) (common.Address, error) { return logic.DB(ctx, nil) }, dbAddr},
		{"logic owner", func(ctx context.Context) (common.Address, error) { return logic.Owner(ctx, nil) }, lookupAddr},
		{"db owner", func(ctx context.Context) (common.Address, error) { return db.Owner(ctx, nil) }, logicAddr},
	}
	for _, c := range checks {
		got, err := c.read(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", c.what, err))
			continue
		}
		if got != c.expected {
			mismatch("%s is %s, expected %s", c.what, got.Hex(), c.expected.Hex())
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.logger.Sugar().Infow("Deployment verified",
		zap.String(artifact.MarketContractLookup, lookupAddr.Hex()),
	)
	return nil
}

func (m *Migrator) verifyCode(ctx context.Context, name string, address common.Address) error {
	code, err := m.exec.CodeAt(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to read code of %s at %s: %w", name, address.Hex(), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: no code for %s at %s", ErrVerificationFailed, name, address.Hex())
	}
	a, err := m.artifacts.Get(name)
	if err != nil {
		return err
	}
	expected, err := a.RuntimeCode()
	if err != nil {
		return err
	}
	if len(expected) > 0 && !bytes.Equal(code, expected) {
		return fmt.Errorf("%w: code of %s at %s does not match its artifact", ErrVerificationFailed, name, address.Hex())
	}
	return nil
}

// withNetworkAddresses copies result and fills in the registry contracts it
// lacks from the artifacts' networks entries.
func (m *Migrator) withNetworkAddresses(ctx context.Context, result DeploymentResult) (DeploymentResult, error) {
	chainID, err := m.exec.Client().ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	out := DeploymentResult{}
	for name, address := range result {
		out[name] = address
	}
	for _, name := range []string{artifact.MarketContractLookup, artifact.MarketLogic, artifact.MarketDB} {
		if _, ok := out[name]; ok {
			continue
		}
		a, err := m.artifacts.Get(name)
		if err != nil {
			continue
		}
		if address, ok := a.NetworkAddress(chainID); ok {
			m.logger.Sugar().Debugw("Using artifact network address",
				zap.String("contract", name),
				zap.String("address", address.Hex()),
			)
			out[name] = address
		}
	}
	return out, nil
}
