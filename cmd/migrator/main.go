package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/energyweb/market-contracts-go/pkg/artifact"
	"github.com/energyweb/market-contracts-go/pkg/chainManager"
	"github.com/energyweb/market-contracts-go/pkg/document"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/energyweb/market-contracts-go/pkg/logger"
	"github.com/energyweb/market-contracts-go/pkg/market"
	"github.com/energyweb/market-contracts-go/pkg/migration"
	"github.com/energyweb/market-contracts-go/pkg/txSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "migrator",
		Usage: "Energy market registry deployment and inspection",
		Description: `The migrator deploys the market registry contracts (MarketContractLookup,
MarketLogic and MarketDB), links them to an asset registry and inspects the
demands, supplies and agreements held by a deployed market.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Connection config file with per-network 'web3' and 'deployKey' entries",
				EnvVars: []string{"CONNECTION_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network entry of the connection config file",
				Value:   "develop",
				EnvVars: []string{"NETWORK"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Node RPC URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{"RPC_URL"},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Usage:   "Expected chain ID (defaults to whatever the node reports)",
				EnvVars: []string{"CHAIN_ID"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Overall deadline for the command",
				EnvVars: []string{"TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write executor metrics in the prometheus text format to this file on exit",
				EnvVars: []string{"METRICS_FILE"},
			},
			// Transaction signing options. Without any, the node's first account sends.
			&cli.StringFlag{
				Name:    "deploy-key",
				Usage:   "Private key for transaction signing (hex format, with or without 0x prefix)",
				EnvVars: []string{"DEPLOY_KEY", "TX_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "tx-aws-kms-key-id",
				Usage:   "AWS KMS key ID for transaction signing",
				EnvVars: []string{"TX_AWS_KMS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "tx-aws-secret-name",
				Usage:   "AWS Secrets Manager secret holding the private key",
				EnvVars: []string{"TX_AWS_SECRET_NAME"},
			},
			&cli.StringFlag{
				Name:    "tx-aws-region",
				Usage:   "AWS region of the KMS key or secret",
				Value:   "us-east-1",
				EnvVars: []string{"TX_AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "gas-price",
				Usage:   "Gas price in wei (defaults to 0)",
				EnvVars: []string{"GAS_PRICE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "migrate",
				Aliases: []string{"m"},
				Usage:   "Deploy and link the market registry contracts",
				Description: `Deploys MarketContractLookup, MarketLogic and MarketDB, then initializes the
lookup. With --state-file, progress is recorded after every confirmed step and
a failed run resumes where it stopped.`,
				Flags: []cli.Flag{
					assetLookupFlag(),
					artifactsFlag(),
					stateFileFlag(),
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the deployment after migrating",
					},
				},
				Action: migrateAction,
			},
			{
				Name:  "verify",
				Usage: "Check a deployment's code and links",
				Description: `Addresses come from --state-file, then --lookup, --logic and --db. A
contract given by neither is taken from its artifact's networks entry for the
connected chain.`,
				Flags: []cli.Flag{
					assetLookupFlag(),
					artifactsFlag(),
					stateFileFlag(),
					&cli.StringFlag{Name: "lookup", Usage: "MarketContractLookup address"},
					&cli.StringFlag{Name: "logic", Usage: "MarketLogic address"},
					&cli.StringFlag{Name: "db", Usage: "MarketDB address"},
				},
				Action: verifyAction,
			},
			{
				Name:  "demands",
				Usage: "List the demands of a market",
				Flags: []cli.Flag{
					logicFlag(),
					&cli.Uint64Flag{Name: "start", Usage: "First demand ID"},
					&cli.Uint64Flag{Name: "limit", Usage: "Maximum number of demands", Value: market.DefaultPageSize},
				},
				Action: demandsAction,
			},
			{
				Name:  "create-demand",
				Usage: "Create a demand from a properties document",
				Flags: []cli.Flag{
					logicFlag(),
					&cli.StringSliceFlag{
						Name:     "property",
						Aliases:  []string{"p"},
						Usage:    "Document property as key=value",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "document-db-url",
						Usage:    "URL of the off-chain document database",
						Required: true,
					},
				},
				Action: createDemandAction,
			},
		},
		Before: validateFlags,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func assetLookupFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "asset-contract-lookup",
		Aliases:  []string{"acl"},
		Usage:    "Asset registry (AssetContractLookup) address",
		Required: true,
		EnvVars:  []string{"ASSET_CONTRACT_LOOKUP"},
	}
}

func artifactsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Directory holding MarketContractLookup.json, MarketLogic.json and MarketDB.json",
		Value:   "build/contracts",
		EnvVars: []string{"ARTIFACTS_DIR"},
	}
}

func stateFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "state-file",
		Usage:   "Migration manifest used to record and resume progress",
		EnvVars: []string{"MIGRATION_STATE_FILE"},
	}
}

func logicFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "logic",
		Usage:    "MarketLogic address",
		Required: true,
		EnvVars:  []string{"MARKET_LOGIC"},
	}
}

func validateFlags(c *cli.Context) error {
	signers := 0
	for _, name := range []string{"deploy-key", "tx-aws-kms-key-id", "tx-aws-secret-name"} {
		if c.String(name) != "" {
			signers++
		}
	}
	if signers > 1 {
		return fmt.Errorf("can only specify one of --deploy-key, --tx-aws-kms-key-id or --tx-aws-secret-name")
	}
	if gp := c.String("gas-price"); gp != "" {
		if _, ok := new(big.Int).SetString(gp, 10); !ok {
			return fmt.Errorf("invalid gas price: %s", gp)
		}
	}
	return nil
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid --%s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func setupLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("debug"),
	})
}

func setupChainManager(ctx context.Context, c *cli.Context, conn *connectionConfig) (*chainManager.Chain, error) {
	cm := chainManager.NewChainManager()
	chain, err := cm.AddChain(ctx, &chainManager.ChainConfig{
		ChainID: c.Uint64("chain-id"),
		RPCUrl:  conn.Web3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add chain: %w", err)
	}
	return chain, nil
}

type signerKind int

const (
	nodeSigner signerKind = iota
	keySigner
	kmsSigner
	secretSigner
)

// selectSigner picks the transaction signer. AWS flags win over a deployKey
// from the config file. validateFlags rejects them next to --deploy-key.
func selectSigner(c *cli.Context, conn *connectionConfig) signerKind {
	switch {
	case c.String("tx-aws-kms-key-id") != "":
		return kmsSigner
	case c.String("tx-aws-secret-name") != "":
		return secretSigner
	case conn.DeployKey != "":
		return keySigner
	default:
		return nodeSigner
	}
}

// setupTransactionSigner returns nil when the node's accounts should sign.
func setupTransactionSigner(ctx context.Context, c *cli.Context, conn *connectionConfig) (txSigner.ITransactionSigner, error) {
	region := c.String("tx-aws-region")
	switch selectSigner(c, conn) {
	case keySigner:
		return txSigner.NewPrivateKeySigner(conn.DeployKey)
	case kmsSigner:
		return txSigner.NewAWSKMSSigner(ctx, c.String("tx-aws-kms-key-id"), region)
	case secretSigner:
		return txSigner.NewPrivateKeySignerFromSecretsManager(ctx, &txSigner.SecretsManagerKeyConfig{
			Region:     region,
			SecretName: c.String("tx-aws-secret-name"),
		})
	default:
		return nil, nil
	}
}

// environment is what every command needs: a logger, an executor on the
// configured chain and the transaction parameters.
type environment struct {
	logger   *zap.Logger
	chain    *chainManager.Chain
	exec     *executor.Executor
	params   *executor.TxParams
	registry *prometheus.Registry
}

func setupEnvironment(ctx context.Context, c *cli.Context) (*environment, error) {
	l, err := setupLogger(c)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	conn, err := resolveConnection(c)
	if err != nil {
		return nil, err
	}
	chain, err := setupChainManager(ctx, c, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to setup chain manager: %w", err)
	}
	signer, err := setupTransactionSigner(ctx, c, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transaction signer: %w", err)
	}

	params := &executor.TxParams{}
	if signer != nil {
		params.Signer = signer
	}
	if gp := c.String("gas-price"); gp != "" {
		params.GasPrice, _ = new(big.Int).SetString(gp, 10)
	}

	reg := prometheus.NewRegistry()
	exec := executor.New(chain.RPCClient, l, executor.WithMetrics(executor.NewMetrics(reg)))

	l.Sugar().Infow("Connected to chain",
		zap.Uint64("chainId", chain.ChainID),
		zap.String("rpcUrl", conn.Web3),
	)
	return &environment{logger: l, chain: chain, exec: exec, params: params, registry: reg}, nil
}

func (env *environment) writeMetrics(c *cli.Context) {
	path := c.String("metrics-file")
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, env.registry); err != nil {
		env.logger.Sugar().Warnw("Failed to write metrics", zap.String("path", path), zap.Error(err))
	}
}

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	if timeout := c.Duration("timeout"); timeout > 0 {
		return context.WithTimeout(c.Context, timeout)
	}
	return context.WithCancel(c.Context)
}

func newStore(c *cli.Context) migration.Store {
	if path := c.String("state-file"); path != "" {
		return migration.NewFileStore(path)
	}
	return migration.NewMemoryStore()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	assetLookup, err := parseAddress("asset-contract-lookup", c.String("asset-contract-lookup"))
	if err != nil {
		return err
	}
	artifacts, err := artifact.LoadSet(c.String("artifacts"))
	if err != nil {
		return fmt.Errorf("failed to load artifacts: %w", err)
	}
	env, err := setupEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.writeMetrics(c)

	m := migration.NewMigrator(env.exec, artifacts, newStore(c), env.logger)
	result, err := m.MigrateMarketRegistryContracts(ctx, assetLookup, env.params)
	if err != nil {
		return fmt.Errorf("failed to migrate market registry contracts: %w", err)
	}
	if c.Bool("verify") {
		if err := m.Verify(ctx, assetLookup, result); err != nil {
			return err
		}
	}
	return printJSON(result)
}

func verifyAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	assetLookup, err := parseAddress("asset-contract-lookup", c.String("asset-contract-lookup"))
	if err != nil {
		return err
	}
	artifacts, err := artifact.LoadSet(c.String("artifacts"))
	if err != nil {
		return fmt.Errorf("failed to load artifacts: %w", err)
	}

	result := migration.DeploymentResult{}
	if path := c.String("state-file"); path != "" {
		state, err := migration.NewFileStore(path).Load(ctx)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("no migration recorded in %s", path)
		}
		for name, address := range state.Addresses {
			result[name] = address
		}
	}
	for flag, name := range map[string]string{
		"lookup": artifact.MarketContractLookup,
		"logic":  artifact.MarketLogic,
		"db":     artifact.MarketDB,
	} {
		if v := c.String(flag); v != "" {
			address, err := parseAddress(flag, v)
			if err != nil {
				return err
			}
			result[name] = address
		}
	}

	env, err := setupEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.writeMetrics(c)

	m := migration.NewMigrator(env.exec, artifacts, nil, env.logger)
	if err := m.Verify(ctx, assetLookup, result); err != nil {
		return err
	}
	fmt.Println("Deployment verified")
	return nil
}

func demandsAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	logicAddr, err := parseAddress("logic", c.String("logic"))
	if err != nil {
		return err
	}
	env, err := setupEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.writeMetrics(c)

	logic, err := market.NewMarketLogic(logicAddr, env.exec)
	if err != nil {
		return err
	}
	page, err := logic.ListDemands(ctx, nil, c.Uint64("start"), c.Uint64("limit"))
	if err != nil {
		return fmt.Errorf("failed to list demands: %w", err)
	}

	fmt.Printf("Demands: %d\n", page.Total)
	for i, d := range page.Records {
		fmt.Printf("  [%d] Owner: %s, Document: %s, DB: %s\n", page.Start+uint64(i), d.Owner.Hex(), d.PropertiesDocumentHash, d.DocumentDBURL)
	}
	return nil
}

func parseProperties(values []string) (document.Properties, error) {
	props := document.Properties{}
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected format: 'key=value')", v)
		}
		props[key] = value
	}
	return props, nil
}

func createDemandAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	logicAddr, err := parseAddress("logic", c.String("logic"))
	if err != nil {
		return err
	}
	props, err := parseProperties(c.StringSlice("property"))
	if err != nil {
		return err
	}
	docHash, err := document.Hash(props)
	if err != nil {
		return err
	}
	env, err := setupEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.writeMetrics(c)

	logic, err := market.NewMarketLogic(logicAddr, env.exec)
	if err != nil {
		return err
	}
	receipt, err := logic.CreateDemand(ctx, env.params, docHash, c.String("document-db-url"))
	if err != nil {
		return fmt.Errorf("failed to create demand: %w", err)
	}
	events, err := logic.ParseCreatedNewDemand(receipt)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("Created demand %s (document %s)\n", ev.DemandId, docHash)
	}
	return nil
}
