package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/breadwatch/internal/core/domain"
)

// Adapter defines the chain-level boundary used by the dashboard components.
type Adapter interface {
	BlockSource
	TokenReader
	LogSource

	// Transfer signs and broadcasts a token transfer from the configured wallet
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (common.Hash, error)

	// WaitMined blocks until the transaction has a receipt and reports its status
	WaitMined(ctx context.Context, txHash common.Hash) error

	// CallContract runs a read-only call against any contract
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// BlockSource reads block headers.
type BlockSource interface {
	// GetLatestBlock returns the latest block number on the chain
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlock fetches a block header by number
	GetBlock(ctx context.Context, blockNumber uint64) (*domain.Block, error)
}

// TokenReader reads token state.
type TokenReader interface {
	// BalanceOf returns the balance of owner in minor units
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// LogSource queries token event logs over an inclusive block range.
type LogSource interface {
	// QueryMints returns Mint events, optionally narrowed to one beneficiary
	QueryMints(ctx context.Context, fromBlock, toBlock uint64, beneficiary *common.Address) ([]domain.MintEvent, error)

	// QueryTransfers returns Transfer events
	QueryTransfers(ctx context.Context, fromBlock, toBlock uint64) ([]domain.TransferNotification, error)
}
