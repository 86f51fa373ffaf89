package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	for _, key := range []string{
		"RPC_URL", "BASE_RPC_URL", "BLOCK_RESOLVER", "VAULTS_FILE", "RATE_SOURCE",
		"BACKTEST_START", "BACKTEST_END", "INITIAL_CAPITAL", "RPC_MAX_RETRIES",
		"VAULT_ASSET", "CACHE_CONFIRMATIONS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mainnet.base.org", cfg.RPCURL)
	assert.Equal(t, uint64(8453), cfg.ChainID)
	assert.Equal(t, 2, cfg.BlockTime)
	assert.Equal(t, ResolverLinear, cfg.Resolver)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, uint64(300), cfg.Confirmations)
	assert.Equal(t, "USDC", cfg.VaultAsset)
	assert.Equal(t, 10000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 0.02, cfg.Backtest.RiskFreeRate)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Backtest.StartDate)
	assert.Len(t, cfg.Vaults, 3)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_RPCURLFallsBackToBaseRPCURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASE_RPC_URL", "https://base.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://base.example", cfg.RPCURL)

	t.Setenv("RPC_URL", "https://rpc.example")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example", cfg.RPCURL)
}

func TestLoad_InvalidResolver(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BLOCK_RESOLVER", "guess")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDate(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BACKTEST_START", "01/01/2023")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MorphoRequiresMarket(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_SOURCE", RateSourceMorpho)
	t.Setenv("MORPHO_MARKET_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_VaultsFile(t *testing.T) {
	setBaseEnv(t)

	path := filepath.Join(t.TempDir(), "vaults.toml")
	content := `
[[vault]]
key = "Steakhouse"
address = "0xbeeF010f9cb27031ad51e3333f9aF9C6B1228183"
name = "Steakhouse USDC"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("VAULTS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Vaults, 1)
	assert.Equal(t, "Steakhouse", cfg.Vaults[0].Key)
	assert.Equal(t, "Steakhouse USDC", cfg.Vaults[0].Name)
}

func TestLoadVaults_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.toml")
	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0644))

	_, err := LoadVaults(path)
	assert.Error(t, err)
}

func TestValidate_BadVaultAddress(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Vaults = append(cfg.Vaults, cfg.Vaults[0])
	assert.Error(t, cfg.Validate(), "duplicate keys are rejected")

	cfg.Vaults = DefaultVaults()
	cfg.Vaults[0].Address = "0x..."
	assert.Error(t, cfg.Validate())

	cfg.Vaults[0].Address = "c1256Ae5FF1cf2719D4937adb3bbCCab2E00A2Ca"
	assert.Error(t, cfg.Validate(), "addresses need the 0x prefix")
}

func TestLoad_UnknownVaultAsset(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VAULT_ASSET", "DAI")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VAULT_ASSET")
}

func TestVaultLookup(t *testing.T) {
	cfg := &Config{Vaults: DefaultVaults(), Assets: DefaultAssets()}

	v, err := cfg.Vault("Re7")
	require.NoError(t, err)
	assert.Equal(t, "Re7 USDC Vault", v.Name)

	_, err = cfg.Vault("Nope")
	assert.ErrorIs(t, err, ErrUnknownVault)

	usdc, err := cfg.Asset("USDC")
	require.NoError(t, err)
	assert.Equal(t, 6, usdc.Decimals)

	_, err = cfg.Asset("WETH")
	assert.Error(t, err)
}
