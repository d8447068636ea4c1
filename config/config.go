package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config carries the yieldgated service configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`
	// FactoryAddress is the identity the engines authorize factory-only
	// operations against.
	FactoryAddress string `toml:"FactoryAddress"`
	// VaultAddress is the module account custodying bid principal and
	// repayments until claimed.
	VaultAddress string `toml:"VaultAddress"`
	// APITokens authorize mutating RPC calls. An empty list disables auth,
	// which is only sensible for local development.
	APITokens []string `toml:"APITokens"`
	// PausedModules halts the named engines ("auction", "loan") at startup.
	PausedModules []string `toml:"PausedModules"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the address fields parse and are distinct.
func (c *Config) Validate() error {
	factory, err := parseAddress(c.FactoryAddress)
	if err != nil {
		return fmt.Errorf("config: FactoryAddress: %w", err)
	}
	vault, err := parseAddress(c.VaultAddress)
	if err != nil {
		return fmt.Errorf("config: VaultAddress: %w", err)
	}
	if factory == vault {
		return fmt.Errorf("config: FactoryAddress and VaultAddress must differ")
	}
	return nil
}

// Factory returns the parsed factory address. Validate must have passed.
func (c *Config) Factory() common.Address {
	addr, _ := parseAddress(c.FactoryAddress)
	return addr
}

// Vault returns the parsed vault address. Validate must have passed.
func (c *Config) Vault() common.Address {
	addr, _ := parseAddress(c.VaultAddress)
	return addr
}

func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./yieldgate-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}
	if cfg.APITokens == nil {
		cfg.APITokens = []string{}
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:  ":8545",
		DataDir:        "./yieldgate-data",
		Env:            "local",
		FactoryAddress: "0x0000000000000000000000000000000000000f4c",
		VaultAddress:   "0x00000000000000000000000000000000000a0175",
		APITokens:      []string{},
		PausedModules:  []string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
