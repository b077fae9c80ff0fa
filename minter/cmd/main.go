package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/chain"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/config"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/rpc"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/session"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
	shareLogger(log)
}

func shareLogger(l zerolog.Logger) {
	rpc.SetLogger(l)
	chain.SetLogger(l)
	session.SetLogger(l)
}

func main() {
	configPath := flag.String("config", "", "TOML config file, env vars with the MINTER_ prefix are used when empty")
	printConfig := flag.Bool("print-config", false, "print a sample config and exit")
	flag.Parse()

	if *printConfig {
		sample, err := config.SampleConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to render sample config")
		}
		fmt.Print(string(sample))
		return
	}

	var path *string
	if *configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadRPCMinterConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Info().
		Str("config", *configPath).
		Str("eth_rpc", cfg.EthRPCURL).
		Str("contract", cfg.ContractAddress).
		Msg("Starting Spectra NFT minter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverConfig := buildServerConfig(cfg)

	// the form stays up without a contract and reports it as not loaded
	contract, err := connectContract(ctx, cfg)
	var minter session.Minter
	if err != nil {
		log.Error().Err(err).Msg("Failed to load contract, minting is disabled")
		serverConfig.ContractAddress = ""
	} else {
		minter = contract
		defer contract.Close()
	}

	previews := session.NewPreviewStore()
	limits := session.Limits{
		MaxFileBytes: cfg.MaxImageBytes,
		MintTimeout:  time.Duration(cfg.MintTimeoutSeconds) * time.Second,
	}
	idleTTL := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	registry := session.NewRegistry(func() *session.Controller {
		return session.NewController(minter, previews, limits)
	}, idleTTL, session.WithMaxSessions(cfg.MaxSessions))
	registry.Start(sweepInterval(idleTTL))
	defer registry.Stop()

	server, err := rpc.NewServer(ctx, serverConfig, registry, previews)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	if cfg.EnableLogs {
		log = log.Hook(rpc.OTelLogHook("spectra-nft-minter"))
		shareLogger(log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// connectContract loads the ABI and binds the contract at the configured endpoint
func connectContract(ctx context.Context, cfg *config.RPCMinterConfig) (*chain.Contract, error) {
	loadCtx, cancel := context.WithTimeout(ctx, config.ABIFetchTimeout)
	defer cancel()

	contractABI, err := config.NewDefaultABILoader().Load(loadCtx, cfg.ABISource)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", cfg.ABISource).Int("methods", len(contractABI.Methods)).Msg("Loaded contract ABI")

	return chain.Dial(ctx, chain.Options{
		RPCURL:       cfg.EthRPCURL,
		Address:      cfg.ContractAddress,
		ABI:          contractABI,
		Method:       cfg.MintMethod,
		PrivateKey:   cfg.SignerPrivateKey,
		ChainID:      cfg.ChainID,
		PollInterval: time.Duration(cfg.ReceiptPollMillis) * time.Millisecond,
	})
}

// sweepInterval checks for idle page views a few times per TTL
func sweepInterval(idleTTL time.Duration) time.Duration {
	return max(idleTTL/4, time.Second)
}

// buildServerConfig converts the loaded RPCMinterConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.RPCMinterConfig) *rpc.ServerConfig {
	mintTimeout := time.Duration(cfg.MintTimeoutSeconds) * time.Second

	serverConfig := &rpc.ServerConfig{
		Address:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins:  cfg.AllowedOrigins,
		EnableMetrics:   cfg.UsePrometheus,
		RequestTimeout:  mintTimeout + 15*time.Second,
		MaxImageBytes:   cfg.MaxImageBytes,
		ContractAddress: cfg.ContractAddress,
	}

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "spectra-nft-minter"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics || cfg.UsePrometheus,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
