package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"agentpay/internal/domain"
)

// Config holds runtime wiring options. Values come from an optional YAML
// file, overridden by AGENTPAY_* environment variables. The vault
// passphrase is environment-only so it never lands in a config file.
type Config struct {
	Home             string   `yaml:"home"`             // state directory, e.g. $HOME/.agentpay
	Listen           string   `yaml:"listen"`           // daemon bind address
	RPCEndpoints     []string `yaml:"rpcEndpoints"`     // chain read endpoints, in failover order
	BundlerURL       string   `yaml:"bundlerUrl"`       // user-operation submission endpoint
	ChainID          uint64   `yaml:"chainId"`
	EntryPoint       string   `yaml:"entryPoint"`
	Factory          string   `yaml:"factory"`
	SudoValidator    string   `yaml:"sudoValidator"`
	SessionValidator string   `yaml:"sessionValidator"`
	OwnerKeyFile     string   `yaml:"ownerKeyFile"` // hex-encoded owner key, 0600

	Passphrase string `yaml:"-"`
}

// DefaultHome returns the default state directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentpay"
	}
	return filepath.Join(home, ".agentpay")
}

// Load reads configuration from path, then applies environment overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Config{
		Home:   DefaultHome(),
		Listen: ":8480",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("AGENTPAY_HOME"); v != "" {
		c.Home = v
	}
	if v := os.Getenv("AGENTPAY_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("AGENTPAY_RPC_ENDPOINTS"); v != "" {
		c.RPCEndpoints = splitList(v)
	}
	if v := os.Getenv("AGENTPAY_BUNDLER_URL"); v != "" {
		c.BundlerURL = v
	}
	if v := os.Getenv("AGENTPAY_CHAIN_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse AGENTPAY_CHAIN_ID: %w", err)
		}
		c.ChainID = id
	}
	if v := os.Getenv("AGENTPAY_ENTRYPOINT"); v != "" {
		c.EntryPoint = v
	}
	if v := os.Getenv("AGENTPAY_FACTORY"); v != "" {
		c.Factory = v
	}
	if v := os.Getenv("AGENTPAY_SUDO_VALIDATOR"); v != "" {
		c.SudoValidator = v
	}
	if v := os.Getenv("AGENTPAY_SESSION_VALIDATOR"); v != "" {
		c.SessionValidator = v
	}
	if v := os.Getenv("AGENTPAY_OWNER_KEY_FILE"); v != "" {
		c.OwnerKeyFile = v
	}
	if v := os.Getenv("AGENTPAY_PASSPHRASE"); v != "" {
		c.Passphrase = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OwnerConfig assembles the on-chain module configuration, with the owner
// address taken from the loaded signing key.
func (c Config) OwnerConfig(owner common.Address) (domain.OwnerConfig, error) {
	addrs := map[string]string{
		"entryPoint":       c.EntryPoint,
		"factory":          c.Factory,
		"sudoValidator":    c.SudoValidator,
		"sessionValidator": c.SessionValidator,
	}
	for name, raw := range addrs {
		if !common.IsHexAddress(raw) {
			return domain.OwnerConfig{}, fmt.Errorf("config: %s is not a valid address: %q", name, raw)
		}
	}
	if c.ChainID == 0 {
		return domain.OwnerConfig{}, fmt.Errorf("config: chainId is required")
	}
	return domain.OwnerConfig{
		Owner:            owner,
		EntryPoint:       common.HexToAddress(c.EntryPoint),
		Factory:          common.HexToAddress(c.Factory),
		SudoValidator:    common.HexToAddress(c.SudoValidator),
		SessionValidator: common.HexToAddress(c.SessionValidator),
		ChainID:          c.ChainID,
	}, nil
}
