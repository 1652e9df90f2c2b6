package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferNotification represents a Transfer log emitted by the token contract.
type TransferNotification struct {
	From        common.Address
	To          common.Address
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// Involves reports whether addr is the sender or the receiver.
func (t TransferNotification) Involves(addr common.Address) bool {
	return t.From == addr || t.To == addr
}
