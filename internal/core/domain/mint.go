package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// UnknownTime is shown when a block timestamp could not be resolved.
const UnknownTime = "unknown time"

// TimeLayout is the display format for resolved mint timestamps.
const TimeLayout = "2006-01-02 15:04:05 UTC"

// MintEvent represents a Mint log emitted by the token contract.
type MintEvent struct {
	Beneficiary common.Address
	Amount      *big.Int
	TxHash      common.Hash
	BlockNumber uint64
}

// EventKey uniquely identifies a mint event.
type EventKey struct {
	BlockNumber uint64
	TxHash      common.Hash
}

func (k EventKey) String() string {
	return fmt.Sprintf("%d:%s", k.BlockNumber, k.TxHash.Hex())
}

// Key returns the uniqueness key of the event.
func (e MintEvent) Key() EventKey {
	return EventKey{BlockNumber: e.BlockNumber, TxHash: e.TxHash}
}

// TimestampedMintEvent is a MintEvent with its block time attached.
// Timestamp is zero when TimeLabel is UnknownTime.
type TimestampedMintEvent struct {
	MintEvent
	Timestamp time.Time
	TimeLabel string
}

// WithTime attaches a resolved block time.
func (e MintEvent) WithTime(t time.Time) TimestampedMintEvent {
	t = t.UTC()
	return TimestampedMintEvent{MintEvent: e, Timestamp: t, TimeLabel: t.Format(TimeLayout)}
}

// WithUnknownTime marks the block time as unresolved.
func (e MintEvent) WithUnknownTime() TimestampedMintEvent {
	return TimestampedMintEvent{MintEvent: e, TimeLabel: UnknownTime}
}

// TimeKnown reports whether the timestamp was resolved.
func (e TimestampedMintEvent) TimeKnown() bool {
	return !e.Timestamp.IsZero()
}
