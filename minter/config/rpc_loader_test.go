package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	. "github.com/Cogwheel-Validator/spectra-nft-minter/minter/config"
	"github.com/zeebo/assert"
)

// helper to reset env vars with MINTER_ prefix between tests
func unsetMinterEnv() {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, EnvPrefix+"_") {
			if idx := strings.Index(e, "="); idx != -1 {
				_ = os.Unsetenv(e[:idx])
			}
		}
	}
}

// chdirTemp runs the test in an empty dir so godotenv.Load() finds no .env file
func chdirTemp(t *testing.T) {
	t.Helper()
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	_ = os.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpc_config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}
	return path
}

func TestLoadRPCMinterConfig_FromEnv_Defaults(t *testing.T) {
	unsetMinterEnv()
	chdirTemp(t)

	cfg, err := LoadRPCMinterConfig(nil)
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, cfg.Port, 8080)
	assert.Equal(t, cfg.EthRPCURL, DefaultEthRPCURL)
	assert.Equal(t, cfg.ContractAddress, DefaultContractAddress)
	assert.Equal(t, cfg.ABISource, DefaultABISource)
	assert.Equal(t, cfg.MintMethod, DefaultMintMethod)
	assert.Equal(t, cfg.MintTimeoutSeconds, 35)
	assert.Equal(t, cfg.MaxImageBytes, int64(10<<20))
	assert.Equal(t, cfg.MaxSessions, 1000)
	assert.Equal(t, cfg.SignerPrivateKey, "")
}

func TestLoadRPCMinterConfig_FromEnv_Overrides(t *testing.T) {
	unsetMinterEnv()
	chdirTemp(t)
	t.Cleanup(unsetMinterEnv)

	_ = os.Setenv("MINTER_PORT", "9191")
	_ = os.Setenv("MINTER_HOST", "0.0.0.0")
	_ = os.Setenv("MINTER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	_ = os.Setenv("MINTER_ETH_RPC_URL", "http://node:8545")
	_ = os.Setenv("MINTER_CHAIN_ID", "31337")
	_ = os.Setenv("MINTER_MAX_SESSIONS", "50")

	cfg, err := LoadRPCMinterConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assert.Equal(t, cfg.Port, 9191)
	assert.Equal(t, cfg.Host, "0.0.0.0")
	assert.Equal(t, len(cfg.AllowedOrigins), 2)
	assert.Equal(t, cfg.EthRPCURL, "http://node:8545")
	assert.Equal(t, cfg.ChainID, int64(31337))
	assert.Equal(t, cfg.MaxSessions, 50)
}

func TestLoadRPCMinterConfig_FromEnv_FailVerification(t *testing.T) {
	unsetMinterEnv()
	chdirTemp(t)
	t.Cleanup(unsetMinterEnv)

	_ = os.Setenv("MINTER_CONTRACT_ADDRESS", "not-an-address")

	_, err := LoadRPCMinterConfig(nil)
	if err == nil {
		t.Fatalf("expected error due to invalid contract address, got nil")
	}
}

func TestLoadRPCMinterConfig_FromEnv_NoSessionRoom(t *testing.T) {
	unsetMinterEnv()
	chdirTemp(t)
	t.Cleanup(unsetMinterEnv)

	_ = os.Setenv("MINTER_MAX_SESSIONS", "0")

	_, err := LoadRPCMinterConfig(nil)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "max_sessions"))
}

func TestLoadRPCMinterConfig_FromFile_Success(t *testing.T) {
	unsetMinterEnv()

	path := writeConfig(t, `
port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
eth_rpc_url = "http://10.0.0.2:8545"
contract_address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
signer_private_key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
mint_timeout_seconds = 10
`)

	cfg, err := LoadRPCMinterConfig(&path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assert.Equal(t, cfg.Port, 9090)
	assert.Equal(t, cfg.Host, "127.0.0.1")
	assert.Equal(t, len(cfg.AllowedOrigins), 1)
	assert.Equal(t, cfg.AllowedOrigins[0], "https://example.com")
	assert.Equal(t, cfg.EthRPCURL, "http://10.0.0.2:8545")
	assert.Equal(t, cfg.ContractAddress, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	assert.Equal(t, cfg.MintTimeoutSeconds, 10)
	// untouched keys keep their defaults
	assert.Equal(t, cfg.MintMethod, DefaultMintMethod)
	assert.Equal(t, cfg.ReceiptPollMillis, 1000)
}

func TestLoadRPCMinterConfig_FromFile_WrongExtension(t *testing.T) {
	unsetMinterEnv()
	p := "config.yaml"
	_, err := LoadRPCMinterConfig(&p)
	assert.Error(t, err)
}

func TestLoadRPCMinterConfig_FromFile_BadPrivateKey(t *testing.T) {
	unsetMinterEnv()
	path := writeConfig(t, `signer_private_key = "0x1234"`)

	_, err := LoadRPCMinterConfig(&path)
	assert.Error(t, err)
}

func TestLoadRPCMinterConfig_FileOverridesEnv(t *testing.T) {
	unsetMinterEnv()
	t.Cleanup(unsetMinterEnv)
	_ = os.Setenv("MINTER_PORT", "8000")
	_ = os.Setenv("MINTER_HOST", "0.0.0.0")

	path := writeConfig(t, `
port = 7000
host = "1.2.3.4"
`)
	cfg, err := LoadRPCMinterConfig(&path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7000 || cfg.Host != "1.2.3.4" {
		t.Errorf("expected file values to be used, got: %+v", cfg)
	}
}

func TestSampleConfig_RoundTrips(t *testing.T) {
	unsetMinterEnv()
	body, err := SampleConfig()
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "contract_address"))

	path := writeConfig(t, string(body))
	cfg, err := LoadRPCMinterConfig(&path)
	assert.NoError(t, err)
	assert.True(t, reflect.DeepEqual(*cfg, DefaultRPCMinterConfig()))
}
