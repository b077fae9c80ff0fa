package config

type RPCMinterConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// chain configs
	EthRPCURL        string `toml:"eth_rpc_url" mapstructure:"eth_rpc_url"`
	ContractAddress  string `toml:"contract_address" mapstructure:"contract_address"`
	ABISource        string `toml:"abi_source" mapstructure:"abi_source"` // local path or go-getter URL
	MintMethod       string `toml:"mint_method" mapstructure:"mint_method"`
	SignerPrivateKey string `toml:"signer_private_key" mapstructure:"signer_private_key"` // empty = node-managed account
	ChainID          int64  `toml:"chain_id" mapstructure:"chain_id"`                     // 0 = ask the node

	MintTimeoutSeconds int `toml:"mint_timeout_seconds" mapstructure:"mint_timeout_seconds"`
	ReceiptPollMillis  int `toml:"receipt_poll_millis" mapstructure:"receipt_poll_millis"`

	// form configs
	MaxImageBytes      int64 `toml:"max_image_bytes" mapstructure:"max_image_bytes"`
	SessionIdleMinutes int   `toml:"session_idle_minutes" mapstructure:"session_idle_minutes"`
	MaxSessions        int   `toml:"max_sessions" mapstructure:"max_sessions"` // open page views held in memory

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`
}

// Defaults match a local Hardhat node with the MyNFT contract deployed first.
const (
	DefaultEthRPCURL       = "http://127.0.0.1:8545"
	DefaultContractAddress = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	DefaultABISource       = "artifacts/contracts/MyNFT.sol/MyNFT.json"
	DefaultMintMethod      = "mintNFT"
)

// DefaultRPCMinterConfig returns the configuration used when a key is not set
func DefaultRPCMinterConfig() RPCMinterConfig {
	return RPCMinterConfig{
		Port:                  8080,
		Host:                  "localhost",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		RatePerMinute:         120,
		MaxConcurrentRequests: 200,
		EthRPCURL:             DefaultEthRPCURL,
		ContractAddress:       DefaultContractAddress,
		ABISource:             DefaultABISource,
		MintMethod:            DefaultMintMethod,
		MintTimeoutSeconds:    35,
		ReceiptPollMillis:     1000,
		MaxImageBytes:         10 << 20,
		SessionIdleMinutes:    30,
		MaxSessions:           1000,
		ServiceName:           "spectra-nft-minter",
		ServiceVersion:        "1.0.0",
		Environment:           "development",
		OTLPTracesURL:         "localhost:4318",
		OTLPMetricsURL:        "localhost:4318",
		OTLPLogsURL:           "localhost:4318",
	}
}
