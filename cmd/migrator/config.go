package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	cli "github.com/urfave/cli/v2"
)

// connectionConfig is one network entry of a connection config file:
//
//	{"develop": {"web3": "http://localhost:8545", "deployKey": "0x..."}}
type connectionConfig struct {
	Web3      string
	DeployKey string
}

func loadConnectionConfig(path, network string) (*connectionConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read connection config %s: %w", path, err)
	}
	if !v.IsSet(network) {
		return nil, fmt.Errorf("network %q not found in %s", network, path)
	}
	return &connectionConfig{
		Web3:      v.GetString(network + ".web3"),
		DeployKey: v.GetString(network + ".deployKey"),
	}, nil
}

// resolveConnection merges the config file with flags. Flags given on the
// command line or through the environment win.
func resolveConnection(c *cli.Context) (*connectionConfig, error) {
	cfg := &connectionConfig{}
	if path := c.String("config"); path != "" {
		loaded, err := loadConnectionConfig(path, c.String("network"))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.IsSet("rpc-url") || cfg.Web3 == "" {
		cfg.Web3 = c.String("rpc-url")
	}
	if key := c.String("deploy-key"); key != "" {
		cfg.DeployKey = key
	}
	return cfg, nil
}
