package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "chain").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "chain").Logger()
}

var tracer = otel.Tracer("github.com/Cogwheel-Validator/spectra-nft-minter/minter/chain")

var (
	ErrInvalidRecipient = errors.New("recipient is not a hex address")
	ErrTxReverted       = errors.New("transaction reverted")
)

// Backend is the slice of the JSON-RPC API the contract needs.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.GasPricer
	ethereum.GasEstimator
	ethereum.PendingStateReader
	ethereum.TransactionSender
	ethereum.TransactionReader
}

// Options configures Dial
type Options struct {
	RPCURL     string
	Address    string
	ABI        abi.ABI
	Method     string
	PrivateKey string // hex, with or without 0x; empty uses the node's first account
	ChainID    int64  // 0 asks the node
	// PollInterval is how often the receipt is polled while waiting for inclusion
	PollInterval time.Duration
}

// Receipt is the outcome of a confirmed mint
type Receipt struct {
	TxHash      common.Hash
	From        common.Address
	BlockNumber uint64
	GasUsed     uint64
	Fee         decimal.Decimal // in ETH
}

// Contract is the connection handle: endpoint, contract address and ABI, plus the signer
// used to authorise mints. It is immutable once created.
type Contract struct {
	address      common.Address
	abi          abi.ABI
	method       string
	backend      Backend
	signer       Signer
	pollInterval time.Duration
	closeFn      func()
}

// Dial connects to the JSON-RPC endpoint and binds the contract. Dialing an http endpoint
// does not contact the node, so an unreachable node only shows up on the first mint.
func Dial(ctx context.Context, opts Options) (*Contract, error) {
	rpcClient, err := rpc.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", opts.RPCURL, err)
	}
	client := ethclient.NewClient(rpcClient)

	var signer Signer
	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to parse signer key: %w", err)
		}
		var chainID *big.Int
		if opts.ChainID > 0 {
			chainID = big.NewInt(opts.ChainID)
		}
		signer = NewKeySigner(client, key, chainID)
	} else {
		signer = NewNodeSigner(rpcClient)
	}

	contract, err := New(client, signer, opts.Address, opts.ABI, opts.Method)
	if err != nil {
		client.Close()
		return nil, err
	}
	if opts.PollInterval > 0 {
		contract.pollInterval = opts.PollInterval
	}
	contract.closeFn = client.Close

	log.Info().
		Str("rpc", opts.RPCURL).
		Str("contract", contract.address.Hex()).
		Str("method", contract.method).
		Str("signer", signer.Kind()).
		Msg("Contract binding ready")
	return contract, nil
}

// New binds an already connected backend. The mint method must take a single address.
func New(backend Backend, signer Signer, address string, contractABI abi.ABI, method string) (*Contract, error) {
	if !validAddress(address) {
		return nil, fmt.Errorf("contract address %q is not a valid address", address)
	}
	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("abi has no method %q", method)
	}
	if len(m.Inputs) != 1 || m.Inputs[0].Type.T != abi.AddressTy {
		return nil, fmt.Errorf("method %q must take a single address argument, has %s", method, m.Sig)
	}

	return &Contract{
		address:      common.HexToAddress(address),
		abi:          contractABI,
		method:       method,
		backend:      backend,
		signer:       signer,
		pollInterval: time.Second,
	}, nil
}

// Address returns the bound contract address
func (c *Contract) Address() common.Address {
	return c.address
}

// Close releases the RPC connection if Dial opened it
func (c *Contract) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Mint issues a token to recipient and blocks until the transaction is included.
// A reverted transaction is reported as ErrTxReverted.
func (c *Contract) Mint(ctx context.Context, recipient string) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "chain.Mint", trace.WithAttributes(
		attribute.String("contract", c.address.Hex()),
		attribute.String("method", c.method),
		attribute.String("recipient", recipient),
	))
	defer span.End()

	receipt, err := c.mint(ctx, recipient)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tx_hash", receipt.TxHash.Hex()),
		attribute.Int64("block", int64(receipt.BlockNumber)),
	)
	return receipt, nil
}

func (c *Contract) mint(ctx context.Context, recipient string) (*Receipt, error) {
	if !validAddress(recipient) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	data, err := c.abi.Pack(c.method, common.HexToAddress(recipient))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", c.method, err)
	}

	from, err := c.signer.Address(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire signer: %w", err)
	}

	txHash, err := c.signer.Submit(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", c.method, err)
	}
	log.Info().
		Str("tx", txHash.Hex()).
		Str("from", from.Hex()).
		Str("recipient", recipient).
		Msg("Mint submitted")

	receipt, err := waitReceipt(ctx, c.backend, txHash, c.pollInterval)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %d", ErrTxReverted, txHash.Hex(), blockNumber(receipt))
	}

	result := &Receipt{
		TxHash:      txHash,
		From:        from,
		GasUsed:     receipt.GasUsed,
		BlockNumber: blockNumber(receipt),
		Fee:         Fee(receipt),
	}
	return result, nil
}

// validAddress accepts 40 hex digits with an optional 0x prefix. Mixed case input must
// carry a correct EIP-55 checksum, single case input is taken as is.
func validAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	digits := s
	if has0xPrefix(s) {
		digits = s[2:]
	}
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return true
	}
	mixed, err := common.NewMixedcaseAddressFromString("0x" + digits)
	return err == nil && mixed.ValidChecksum()
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
