package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every config key when reading from the environment
const EnvPrefix = "MINTER"

// LoadRPCMinterConfig loads the minter config from the given path, or from the environment
// when configPath is nil. Keys missing from either source keep their default value.
func LoadRPCMinterConfig(configPath *string) (*RPCMinterConfig, error) {
	v := viper.New()
	if err := loadDefaults(v); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}

	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

// SampleConfig renders the default configuration as TOML
func SampleConfig() ([]byte, error) {
	return toml.Marshal(DefaultRPCMinterConfig())
}

func loadDefaults(v *viper.Viper) error {
	body, err := SampleConfig()
	if err != nil {
		return err
	}
	v.SetConfigType("toml")
	return v.ReadConfig(bytes.NewReader(body))
}

func loadEnv(v *viper.Viper) (*RPCMinterConfig, error) {
	// .env is optional, the environment may come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

func loadFile(v *viper.Viper, configPath string) (*RPCMinterConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*RPCMinterConfig, error) {
	var config RPCMinterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *RPCMinterConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if config.EthRPCURL == "" {
		return fmt.Errorf("eth_rpc_url is required")
	}

	if !common.IsHexAddress(config.ContractAddress) {
		return fmt.Errorf("contract_address %q is not a hex address", config.ContractAddress)
	}

	if config.ABISource == "" {
		return fmt.Errorf("abi_source is required")
	}

	if config.MintMethod == "" {
		return fmt.Errorf("mint_method is required")
	}

	if config.SignerPrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(config.SignerPrivateKey, "0x")); err != nil {
			return fmt.Errorf("signer_private_key is invalid: %w", err)
		}
	}

	if config.ChainID < 0 {
		return fmt.Errorf("chain_id must not be negative")
	}

	if config.MintTimeoutSeconds <= 0 {
		return fmt.Errorf("mint_timeout_seconds must be positive")
	}

	if config.ReceiptPollMillis <= 0 {
		return fmt.Errorf("receipt_poll_millis must be positive")
	}

	if config.MaxImageBytes <= 0 {
		return fmt.Errorf("max_image_bytes must be positive")
	}

	if config.SessionIdleMinutes <= 0 {
		return fmt.Errorf("session_idle_minutes must be positive")
	}

	if config.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}

	return nil
}
