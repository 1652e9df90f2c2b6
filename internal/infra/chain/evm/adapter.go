package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/infra/chain"
	"github.com/vietddude/breadwatch/internal/infra/rpc"
)

var _ chain.Adapter = (*EVMAdapter)(nil)

// ErrReverted is returned by WaitMined when the transaction failed on chain.
var ErrReverted = errors.New("transaction reverted")

// EVMAdapter reads and writes the Bread token over JSON-RPC.
type EVMAdapter struct {
	chainID  uint64
	client   rpc.RPCClient
	token    common.Address
	maxRange uint64
	signer   *Signer
	log      *slog.Logger

	receiptPoll time.Duration
}

// Option configures an EVMAdapter.
type Option func(*EVMAdapter)

// WithSigner enables Transfer for the signer's address.
func WithSigner(s *Signer) Option {
	return func(a *EVMAdapter) { a.signer = s }
}

// WithMaxRange caps the block span of a single eth_getLogs request.
func WithMaxRange(n uint64) Option {
	return func(a *EVMAdapter) {
		if n > 0 {
			a.maxRange = n
		}
	}
}

// WithReceiptPoll sets how often WaitMined polls for a receipt.
func WithReceiptPoll(d time.Duration) Option {
	return func(a *EVMAdapter) { a.receiptPoll = d }
}

func NewEVMAdapter(chainID uint64, client rpc.RPCClient, token common.Address, opts ...Option) *EVMAdapter {
	a := &EVMAdapter{
		chainID:     chainID,
		client:      client,
		token:       token,
		maxRange:    2000,
		log:         slog.Default().With("component", "evm"),
		receiptPoll: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Token returns the token contract address.
func (a *EVMAdapter) Token() common.Address {
	return a.token
}

// ChainID returns the configured chain id.
func (a *EVMAdapter) ChainID() uint64 {
	return a.chainID
}

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	op := rpc.NewHTTPOperation("eth_blockNumber", nil)
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response")
	}

	return parseHexString(blockHex)
}

func (a *EVMAdapter) GetBlock(ctx context.Context, blockNumber uint64) (*domain.Block, error) {
	op := rpc.NewHTTPOperation("eth_getBlockByNumber", []any{hexutil.EncodeUint64(blockNumber), false})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("block %d not found", blockNumber)
	}

	rawBlock, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid block format")
	}
	return parseBlock(rawBlock)
}

func parseBlock(raw map[string]any) (*domain.Block, error) {
	number, err := parseHexString(getString(raw["number"]))
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	timestamp, err := parseHexString(getString(raw["timestamp"]))
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}

	return &domain.Block{
		Number:    number,
		Hash:      getString(raw["hash"]),
		Timestamp: timestamp,
	}, nil
}

// BalanceOf calls balanceOf(owner) on the token.
func (a *EVMAdapter) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	out, err := a.CallContract(ctx, a.token, data)
	if err != nil {
		return nil, err
	}

	values, err := tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output %T", values[0])
	}
	return balance, nil
}

// CallContract runs eth_call against the latest block.
func (a *EVMAdapter) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	call := map[string]any{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("eth_call", []any{call, "latest"}))
	if err != nil {
		return nil, fmt.Errorf("eth_call failed: %w", err)
	}

	s, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("invalid eth_call response")
	}
	out, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode eth_call result: %w", err)
	}
	return out, nil
}

func parseHexString(hexStr string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex: %s", hexStr)
	}
	return n.Uint64(), nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// decodeResult round-trips a generic RPC result into a typed value.
func decodeResult(result any, out any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
