// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/vaultbench/internal/chain"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownVault is returned when a vault key is not in the registry
var ErrUnknownVault = errors.New("unknown vault")

// Block resolution policies
const (
	ResolverLinear = "linear"
	ResolverBinary = "binary"
)

// Rate sources
const (
	RateSourceStatic = "static"
	RateSourceMorpho = "morpho"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Output directory for dumps and plots (always absolute)
	RPCURL        string
	ChainID       uint64
	BlockTime     int    // Assumed seconds per block for linear estimates
	Resolver      string // linear or binary
	AssetDecimals int    // Decimals of the vaults' underlying asset (USDC: 6)
	VaultAsset    string // Symbol in Assets every vault's asset() must match
	RPCTimeout    time.Duration
	Confirmations uint64 // Blocks behind the head before RPC results are cached
	MaxRetries    int
	RetryDelay    time.Duration
	LogLevel      string
	LogPretty     bool
	CacheDB       string // Optional SQLite cache path, empty disables it
	VaultsFile    string // Optional TOML vault registry
	Vaults        []domain.Vault
	Assets        map[string]domain.Asset
	Backtest      BacktestConfig
	Rates         RatesConfig
}

// BacktestConfig holds backtest parameters
type BacktestConfig struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64 // USD
	RiskFreeRate   float64 // Annual, as decimal
}

// RatesConfig selects and parameterizes the lending rate source
type RatesConfig struct {
	Source          string
	StaticSupplyAPR float64
	StaticBorrowAPR float64
	MorphoAPIURL    string
	MorphoMarketID  string
}

// vaultsFile is the TOML layout of VAULTS_FILE
type vaultsFile struct {
	Vaults []domain.Vault `toml:"vault"`
}

// DefaultVaults are the ERC4626 USDC vaults on Base
func DefaultVaults() []domain.Vault {
	return []domain.Vault{
		{Key: "Moonwell", Address: "0xc1256Ae5FF1cf2719D4937adb3bbCCab2E00A2Ca", Name: "Moonwell USDC Vault"},
		{Key: "Gauntlet", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Name: "Gauntlet USDC Vault"},
		{Key: "Re7", Address: "0x12AFDeFb2237a5963e7BAb3e2D46ad0eee70406e", Name: "Re7 USDC Vault"},
	}
}

// DefaultAssets are the supported underlying assets on Base
func DefaultAssets() map[string]domain.Asset {
	return map[string]domain.Asset{
		"USDC": {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	start, err := getEnvAsDate("BACKTEST_START", "2023-01-01")
	if err != nil {
		return nil, err
	}
	end, err := getEnvAsDate("BACKTEST_END", "2024-01-01")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:       absDataDir,
		RPCURL:        getEnv("RPC_URL", getEnv("BASE_RPC_URL", "https://mainnet.base.org")),
		ChainID:       uint64(getEnvAsInt("CHAIN_ID", 8453)),
		BlockTime:     getEnvAsInt("BLOCK_TIME_SECONDS", 2),
		Resolver:      getEnv("BLOCK_RESOLVER", ResolverLinear),
		AssetDecimals: getEnvAsInt("ASSET_DECIMALS", 6),
		VaultAsset:    getEnv("VAULT_ASSET", "USDC"),
		RPCTimeout:    time.Duration(getEnvAsInt("RPC_TIMEOUT_SECONDS", 30)) * time.Second,
		Confirmations: uint64(getEnvAsInt("CACHE_CONFIRMATIONS", 300)),
		MaxRetries:    getEnvAsInt("RPC_MAX_RETRIES", 3),
		RetryDelay:    time.Duration(getEnvAsInt("RPC_RETRY_DELAY_MS", 500)) * time.Millisecond,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", true),
		CacheDB:       getEnv("CACHE_DB", ""),
		VaultsFile:    getEnv("VAULTS_FILE", ""),
		Vaults:        DefaultVaults(),
		Assets:        DefaultAssets(),
		Backtest: BacktestConfig{
			StartDate:      start,
			EndDate:        end,
			InitialCapital: getEnvAsFloat("INITIAL_CAPITAL", 10000),
			RiskFreeRate:   getEnvAsFloat("RISK_FREE_RATE", 0.02),
		},
		Rates: RatesConfig{
			Source:          getEnv("RATE_SOURCE", RateSourceStatic),
			StaticSupplyAPR: getEnvAsFloat("STATIC_SUPPLY_APR", 0.03),
			StaticBorrowAPR: getEnvAsFloat("STATIC_BORROW_APR", 0.05),
			MorphoAPIURL:    getEnv("MORPHO_API_URL", "https://blue-api.morpho.org/graphql"),
			MorphoMarketID:  getEnv("MORPHO_MARKET_ID", ""),
		},
	}

	if cfg.VaultsFile != "" {
		vaults, err := LoadVaults(cfg.VaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.Vaults = vaults
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadVaults reads a TOML vault registry
func LoadVaults(path string) ([]domain.Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vaults file %s: %w", path, err)
	}

	var f vaultsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vaults file %s: %w", path, err)
	}
	if len(f.Vaults) == 0 {
		return nil, fmt.Errorf("vaults file %s defines no [[vault]] entries", path)
	}

	return f.Vaults, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME_SECONDS must be positive, got %d", c.BlockTime)
	}
	if c.Resolver != ResolverLinear && c.Resolver != ResolverBinary {
		return fmt.Errorf("BLOCK_RESOLVER must be %q or %q, got %q", ResolverLinear, ResolverBinary, c.Resolver)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("RPC_MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.AssetDecimals < 0 || c.AssetDecimals > 77 {
		return fmt.Errorf("ASSET_DECIMALS out of range: %d", c.AssetDecimals)
	}

	if c.VaultAsset != "" {
		if _, ok := c.Assets[c.VaultAsset]; !ok {
			return fmt.Errorf("VAULT_ASSET %q is not a supported asset", c.VaultAsset)
		}
	}

	seen := make(map[string]bool, len(c.Vaults))
	for _, v := range c.Vaults {
		if v.Key == "" {
			return fmt.Errorf("vault with address %s has no key", v.Address)
		}
		if seen[v.Key] {
			return fmt.Errorf("duplicate vault key %q", v.Key)
		}
		seen[v.Key] = true
		if _, err := chain.ChecksumAddress(v.Address); err != nil {
			return fmt.Errorf("vault %s has invalid address %q", v.Key, v.Address)
		}
	}

	if !c.Backtest.StartDate.Before(c.Backtest.EndDate) {
		return fmt.Errorf("BACKTEST_START must be before BACKTEST_END")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive")
	}

	switch c.Rates.Source {
	case RateSourceStatic:
	case RateSourceMorpho:
		if c.Rates.MorphoMarketID == "" {
			return fmt.Errorf("MORPHO_MARKET_ID is required when RATE_SOURCE=morpho")
		}
	default:
		return fmt.Errorf("unknown RATE_SOURCE %q", c.Rates.Source)
	}

	return nil
}

// Vault returns the registry entry for key
func (c *Config) Vault(key string) (domain.Vault, error) {
	for _, v := range c.Vaults {
		if v.Key == key {
			return v, nil
		}
	}
	return domain.Vault{}, fmt.Errorf("%w: %s", ErrUnknownVault, key)
}

// Asset returns the supported asset for symbol
func (c *Config) Asset(symbol string) (domain.Asset, error) {
	a, ok := c.Assets[symbol]
	if !ok {
		return domain.Asset{}, fmt.Errorf("unsupported asset %s", symbol)
	}
	return a, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDate(key, defaultValue string) (time.Time, error) {
	value := getEnv(key, defaultValue)
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return t, nil
}
