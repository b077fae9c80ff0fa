package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoAccounts = errors.New("node has no unlocked accounts")

// Signer authorises and submits a call to the contract
type Signer interface {
	// Kind names the signer for logs
	Kind() string
	// Address returns the account the transaction is sent from
	Address(ctx context.Context) (common.Address, error)
	// Submit sends a transaction calling to with data and returns its hash
	Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// KeySigner signs locally with a configured private key
type KeySigner struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	// nonce allocation and send must not interleave between sessions
	mu sync.Mutex
}

// NewKeySigner creates a KeySigner. A nil chainID is queried from the node on first use.
func NewKeySigner(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int) *KeySigner {
	return &KeySigner{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}
}

func (s *KeySigner) Kind() string { return "key" }

func (s *KeySigner) Address(context.Context) (common.Address, error) {
	return s.from, nil
}

func (s *KeySigner) Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID == nil {
		chainID, err := s.backend.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get chain id: %w", err)
		}
		s.chainID = chainID
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	// estimation also surfaces reverts before anything is broadcast
	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send tx: %w", err)
	}
	return signed.Hash(), nil
}

// RPCCaller is the raw JSON-RPC call surface, implemented by *rpc.Client
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// NodeSigner delegates signing to an account managed by the node (eth_accounts[0]),
// which is what a local Hardhat or anvil node offers.
type NodeSigner struct {
	rpc RPCCaller
}

// NewNodeSigner creates a NodeSigner
func NewNodeSigner(rpc RPCCaller) *NodeSigner {
	return &NodeSigner{rpc: rpc}
}

func (s *NodeSigner) Kind() string { return "node" }

func (s *NodeSigner) Address(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := s.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, fmt.Errorf("eth_accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accounts[0], nil
}

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func (s *NodeSigner) Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	from, err := s.Address(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	args := sendTxArgs{From: from, To: to, Data: data}
	if err := s.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}
