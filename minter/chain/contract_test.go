package chain_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/zeebo/assert"
)

const mintABI = `[
	{"inputs":[{"name":"recipient","type":"address"}],"name":"mintNFT","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],"name":"safeMint","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const (
	contractAddr  = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	recipientAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	nodeAccount   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func parseABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	assert.NoError(t, err)
	return parsed
}

func mintSelector() []byte {
	return crypto.Keccak256([]byte("mintNFT(address)"))[:4]
}

func TestNew_Validation(t *testing.T) {
	parsed := parseABI(t)

	_, err := chain.New(nil, nil, "0x1234", parsed, "mintNFT")
	assert.Error(t, err)

	_, err = chain.New(nil, nil, "0xe7f1725e7734CE288F8367e1Bb143E90bb3F0512", parsed, "mintNFT")
	assert.Error(t, err)

	_, err = chain.New(nil, nil, contractAddr, parsed, "burn")
	assert.Error(t, err)

	// safeMint takes (address,string)
	_, err = chain.New(nil, nil, contractAddr, parsed, "safeMint")
	assert.Error(t, err)

	c, err := chain.New(nil, nil, contractAddr, parsed, "mintNFT")
	assert.NoError(t, err)
	assert.Equal(t, c.Address(), common.HexToAddress(contractAddr))
}

type countingSigner struct {
	calls int
}

func (s *countingSigner) Kind() string { return "test" }
func (s *countingSigner) Address(context.Context) (common.Address, error) {
	s.calls++
	return common.HexToAddress(nodeAccount), nil
}
func (s *countingSigner) Submit(context.Context, common.Address, []byte) (common.Hash, error) {
	s.calls++
	return common.Hash{}, errors.New("unexpected submit")
}

func TestMint_InvalidRecipientNeverSigns(t *testing.T) {
	signer := &countingSigner{}
	c, err := chain.New(nil, signer, contractAddr, parseABI(t), "mintNFT")
	assert.NoError(t, err)

	badChecksum := "0x70997970c51812dc3A010C7d01b50e0d17dc79C8"
	for _, recipient := range []string{"alice", "0x123", " " + recipientAddr, badChecksum} {
		_, err = c.Mint(context.Background(), recipient)
		assert.True(t, errors.Is(err, chain.ErrInvalidRecipient))
	}
	assert.Equal(t, signer.calls, 0)
}

func TestMint_SingleCaseRecipientSkipsChecksum(t *testing.T) {
	signer := &countingSigner{}
	c, err := chain.New(nil, signer, contractAddr, parseABI(t), "mintNFT")
	assert.NoError(t, err)

	for _, recipient := range []string{
		strings.ToLower(recipientAddr),
		"0x" + strings.ToUpper(recipientAddr[2:]),
		recipientAddr[2:],
	} {
		_, err = c.Mint(context.Background(), recipient)
		assert.False(t, errors.Is(err, chain.ErrInvalidRecipient))
	}
	// each one got as far as the signer
	assert.Equal(t, signer.calls, 3)
}

// fakeNode is a minimal JSON-RPC node with one unlocked account
type fakeNode struct {
	mu           sync.Mutex
	status       string
	receiptPolls int
	sentData     []byte
	sentTo       common.Address
}

const txHash = "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var result any
	switch req.Method {
	case "eth_accounts":
		result = []string{nodeAccount}
	case "eth_sendTransaction":
		var args struct {
			To   common.Address `json:"to"`
			Data hexutil.Bytes  `json:"data"`
		}
		_ = json.Unmarshal(req.Params[0], &args)
		n.sentTo = args.To
		n.sentData = args.Data
		result = txHash
	case "eth_getTransactionReceipt":
		n.receiptPolls++
		if n.receiptPolls < 3 {
			result = nil
			break
		}
		result = map[string]any{
			"transactionHash":   txHash,
			"transactionIndex":  "0x0",
			"blockHash":         "0x" + strings.Repeat("ab", 32),
			"blockNumber":       "0x2a",
			"from":              nodeAccount,
			"to":                contractAddr,
			"cumulativeGasUsed": "0x186a0",
			"gasUsed":           "0x186a0",
			"effectiveGasPrice": "0x3b9aca00",
			"logs":              []any{},
			"logsBloom":         "0x" + strings.Repeat("00", 256),
			"status":            n.status,
			"type":              "0x0",
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
		return
	}

	resp, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

func dialFake(t *testing.T, node *fakeNode) *chain.Contract {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	c, err := chain.Dial(context.Background(), chain.Options{
		RPCURL:       srv.URL,
		Address:      contractAddr,
		ABI:          parseABI(t),
		Method:       "mintNFT",
		PollInterval: 10 * time.Millisecond,
	})
	assert.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestMint_NodeSigner_Success(t *testing.T) {
	node := &fakeNode{status: "0x1"}
	c := dialFake(t, node)

	receipt, err := c.Mint(context.Background(), recipientAddr)
	assert.NoError(t, err)
	assert.Equal(t, receipt.TxHash, common.HexToHash(txHash))
	assert.Equal(t, receipt.From, common.HexToAddress(nodeAccount))
	assert.Equal(t, receipt.BlockNumber, uint64(42))
	assert.Equal(t, receipt.GasUsed, uint64(100000))
	// 100000 gas * 1 gwei
	assert.Equal(t, receipt.Fee.String(), "0.0001")

	node.mu.Lock()
	defer node.mu.Unlock()
	assert.Equal(t, node.sentTo, common.HexToAddress(contractAddr))
	assert.True(t, bytes.Equal(node.sentData[:4], mintSelector()))
	assert.True(t, bytes.Equal(node.sentData[4:], common.LeftPadBytes(common.HexToAddress(recipientAddr).Bytes(), 32)))
	assert.True(t, node.receiptPolls >= 3)
}

func TestMint_NodeSigner_Reverted(t *testing.T) {
	c := dialFake(t, &fakeNode{status: "0x0"})

	_, err := c.Mint(context.Background(), recipientAddr)
	assert.True(t, errors.Is(err, chain.ErrTxReverted))
}

func TestMint_UnreachableNode(t *testing.T) {
	// Dial succeeds, the failure only shows up when minting
	c, err := chain.Dial(context.Background(), chain.Options{
		RPCURL:  "http://127.0.0.1:1",
		Address: contractAddr,
		ABI:     parseABI(t),
		Method:  "mintNFT",
	})
	assert.NoError(t, err)
	defer c.Close()

	_, err = c.Mint(context.Background(), recipientAddr)
	assert.Error(t, err)
}

func TestMint_KeySigner_SimulatedBackend(t *testing.T) {
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	backend := simulated.NewBackend(types.GenesisAlloc{from: {Balance: balance}})
	defer backend.Close()
	client := backend.Client()

	// the simulated chain has no contract code, a call to a plain account still mines
	c, err := chain.New(client, chain.NewKeySigner(client, key, nil), contractAddr, parseABI(t), "mintNFT")
	assert.NoError(t, err)

	type result struct {
		receipt *chain.Receipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		r, err := c.Mint(ctx, recipientAddr)
		done <- result{r, err}
	}()

	deadline := time.After(20 * time.Second)
	for {
		select {
		case res := <-done:
			assert.NoError(t, res.err)
			assert.Equal(t, res.receipt.From, from)
			assert.True(t, res.receipt.BlockNumber > 0)
			assert.True(t, res.receipt.GasUsed > 21000)
			assert.True(t, res.receipt.Fee.IsPositive())

			tx, _, err := client.TransactionByHash(context.Background(), res.receipt.TxHash)
			assert.NoError(t, err)
			assert.True(t, bytes.Equal(tx.Data()[:4], mintSelector()))
			return
		case <-time.After(50 * time.Millisecond):
			backend.Commit()
		case <-deadline:
			t.Fatalf("mint did not complete")
		}
	}
}
