package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/breadwatch/internal/infra/rpc"
)

var testToken = common.HexToAddress("0x00000000000000000000000000000000000b4ead")

// MockClient implements rpc.RPCClient for testing
type MockClient struct {
	mu       sync.Mutex
	CallFunc func(ctx context.Context, method string, params []any) (any, error)
	methods  []string
}

func (m *MockClient) Execute(ctx context.Context, op rpc.Operation) (any, error) {
	m.mu.Lock()
	m.methods = append(m.methods, op.Name)
	m.mu.Unlock()
	if m.CallFunc != nil {
		return m.CallFunc(ctx, op.Name, op.Params)
	}
	return nil, nil
}

func (m *MockClient) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.methods...)
}

func word(n int64) string {
	return hexutil.Encode(common.BigToHash(big.NewInt(n)).Bytes())
}

func addressTopic(addr common.Address) string {
	return common.BytesToHash(addr.Bytes()).Hex()
}

func rawLog(topics []string, data string, block uint64, tx common.Hash) map[string]any {
	ts := make([]any, len(topics))
	for i, t := range topics {
		ts[i] = t
	}
	return map[string]any{
		"address":          testToken.Hex(),
		"topics":           ts,
		"data":             data,
		"blockNumber":      hexutil.EncodeUint64(block),
		"transactionHash":  tx.Hex(),
		"transactionIndex": "0x0",
		"blockHash":        common.Hash{}.Hex(),
		"logIndex":         "0x0",
		"removed":          false,
	}
}

func TestEVMAdapter_GetLatestBlock(t *testing.T) {
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method == "eth_blockNumber" {
				return "0x12d687", nil // 1234567 in hex
			}
			return nil, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken)
	height, err := adapter.GetLatestBlock(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 1234567 {
		t.Errorf("expected height 1234567, got %d", height)
	}
}

func TestEVMAdapter_GetBlock(t *testing.T) {
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_getBlockByNumber" {
				return nil, nil
			}
			if params[0] != "0x64" {
				t.Errorf("expected block param 0x64, got %v", params[0])
			}
			return map[string]any{
				"number":    "0x64",
				"hash":      "0xabc",
				"timestamp": "0x6553f100", // 2023-11-14 22:13:20 UTC
			}, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken)
	block, err := adapter.GetBlock(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), block.Number)
	assert.Equal(t, "0xabc", block.Hash)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), block.Time())
}

func TestEVMAdapter_GetBlockNotFound(t *testing.T) {
	adapter := NewEVMAdapter(8453, &MockClient{}, testToken)
	_, err := adapter.GetBlock(context.Background(), 100)
	require.Error(t, err)
}

func TestEVMAdapter_BalanceOf(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			require.Equal(t, "eth_call", method)
			call := params[0].(map[string]any)
			assert.Equal(t, testToken.Hex(), call["to"])

			data, err := hexutil.Decode(call["data"].(string))
			require.NoError(t, err)
			assert.Equal(t, tokenABI.Methods["balanceOf"].ID, data[:4])
			assert.Equal(t, owner, common.BytesToAddress(data[4:36]))
			return word(1500), nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken)
	balance, err := adapter.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Int64())
}

func TestEVMAdapter_QueryMintsFiltersBeneficiary(t *testing.T) {
	user := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := common.HexToHash("0x01")

	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			require.Equal(t, "eth_getLogs", method)
			filter := params[0].(map[string]any)
			topics := filter["topics"].([]any)
			require.Len(t, topics, 2)
			assert.Equal(t, MintTopic.Hex(), topics[0])
			assert.Equal(t, addressTopic(user), topics[1])

			return []any{
				rawLog([]string{MintTopic.Hex(), addressTopic(user)}, word(42), 7, tx),
			}, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken)
	events, err := adapter.QueryMints(context.Background(), 0, 10, &user)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, user, events[0].Beneficiary)
	assert.Equal(t, int64(42), events[0].Amount.Int64())
	assert.Equal(t, uint64(7), events[0].BlockNumber)
	assert.Equal(t, tx, events[0].TxHash)
}

func TestEVMAdapter_QueryMintsSplitsRange(t *testing.T) {
	var ranges [][2]string
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			filter := params[0].(map[string]any)
			ranges = append(ranges, [2]string{filter["fromBlock"].(string), filter["toBlock"].(string)})
			return []any{}, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken, WithMaxRange(10))
	_, err := adapter.QueryMints(context.Background(), 0, 24, nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"0x0", "0x9"}, {"0xa", "0x13"}, {"0x14", "0x18"}}, ranges)
}

func TestEVMAdapter_QueryTransfers(t *testing.T) {
	from := common.HexToAddress("0x3333333333333333333333333333333333333333")
	to := common.HexToAddress("0x4444444444444444444444444444444444444444")
	tx := common.HexToHash("0x02")

	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			removed := rawLog([]string{TransferTopic.Hex(), addressTopic(from), addressTopic(to)}, word(9), 11, common.HexToHash("0x03"))
			removed["removed"] = true
			return []any{
				rawLog([]string{TransferTopic.Hex(), addressTopic(from), addressTopic(to)}, word(5), 11, tx),
				removed,
			}, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken)
	transfers, err := adapter.QueryTransfers(context.Background(), 10, 12)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, from, transfers[0].From)
	assert.Equal(t, to, transfers[0].To)
	assert.Equal(t, int64(5), transfers[0].Amount.Int64())
	assert.True(t, transfers[0].Involves(to))
}

func TestEVMAdapter_TransferWithoutSigner(t *testing.T) {
	mock := &MockClient{}
	adapter := NewEVMAdapter(8453, mock, testToken)

	_, err := adapter.Transfer(context.Background(), common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1))
	require.ErrorIs(t, err, ErrNoSigner)
	assert.Empty(t, mock.Methods())
}

func TestEVMAdapter_Transfer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewSigner(hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)

	var sentRaw string
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			switch method {
			case "eth_getTransactionCount":
				return "0x3", nil
			case "eth_gasPrice":
				return "0x3b9aca00", nil
			case "eth_estimateGas":
				return "0x5208", nil
			case "eth_sendRawTransaction":
				sentRaw = params[0].(string)
				return "0xdead", nil
			}
			return nil, errors.New("unexpected method " + method)
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken, WithSigner(signer))
	hash, err := adapter.Transfer(context.Background(), signer.Address(), common.HexToAddress("0x05"), big.NewInt(100))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.NotEmpty(t, sentRaw)
	assert.Equal(t, []string{"eth_getTransactionCount", "eth_gasPrice", "eth_estimateGas", "eth_sendRawTransaction"}, mock.Methods())
}

func TestEVMAdapter_WaitMinedReverted(t *testing.T) {
	calls := 0
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			calls++
			if calls < 2 {
				return nil, nil
			}
			return map[string]any{"status": "0x0"}, nil
		},
	}

	adapter := NewEVMAdapter(8453, mock, testToken, WithReceiptPoll(time.Millisecond))
	err := adapter.WaitMined(context.Background(), common.HexToHash("0x01"))
	require.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, 2, calls)
}
