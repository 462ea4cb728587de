package app

import (
	"context"
	"fmt"
	"os"

	"agentpay/internal/account"
	"agentpay/internal/bundler"
	"agentpay/internal/chain"
	"agentpay/internal/domain"
	"agentpay/internal/services/balance"
	"agentpay/internal/services/session"
	"agentpay/internal/services/transfer"
	"agentpay/internal/signer"
	"agentpay/internal/store"
)

// Wire bundles the stores, clients and services for the CLI and daemon.
type Wire struct {
	Owner     *signer.Local
	OwnerCfg  domain.OwnerConfig
	Vault     domain.Vault
	Grants    domain.GrantStore
	Chain     *chain.Client
	Bundler   *bundler.Client
	Accounts  *account.Installer
	Sessions  *session.Service
	Transfers *transfer.Service
	Balances  *balance.Service
}

// NewWire constructs the dependency graph from cfg. It dials the chain and
// bundler endpoints, so it needs a context.
func NewWire(ctx context.Context, cfg Config) (*Wire, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("wire: vault passphrase is required (AGENTPAY_PASSPHRASE)")
	}
	if cfg.OwnerKeyFile == "" {
		return nil, fmt.Errorf("wire: owner key file is required")
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("wire: create home: %w", err)
	}

	owner, err := signer.FromFile(cfg.OwnerKeyFile)
	if err != nil {
		return nil, err
	}
	ownerCfg, err := cfg.OwnerConfig(owner.Address())
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.Dial(ctx, cfg.RPCEndpoints)
	if err != nil {
		return nil, err
	}
	bundlerClient, err := bundler.Dial(ctx, cfg.BundlerURL)
	if err != nil {
		return nil, err
	}

	vault := store.NewFileVault(cfg.Home, cfg.Passphrase)
	grants := store.NewFileGrantStore(cfg.Home)

	gas := domain.DefaultGasParams()
	resolver := account.NewResolver(ownerCfg, chainClient)
	installer := account.NewInstaller(resolver, chainClient, bundlerClient, gas)

	return &Wire{
		Owner:     owner,
		OwnerCfg:  ownerCfg,
		Vault:     vault,
		Grants:    grants,
		Chain:     chainClient,
		Bundler:   bundlerClient,
		Accounts:  installer,
		Sessions:  session.New(installer, vault, grants, chainClient, bundlerClient, gas),
		Transfers: transfer.New(vault, grants, chainClient, bundlerClient, ownerCfg, gas),
		Balances:  balance.New(chainClient),
	}, nil
}
