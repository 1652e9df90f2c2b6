package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/breadwatch/internal/core/domain"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func mintAt(to common.Address, block uint64, tx string) domain.MintEvent {
	return domain.MintEvent{
		Beneficiary: to,
		Amount:      big.NewInt(int64(block) * 10),
		TxHash:      common.HexToHash(tx),
		BlockNumber: block,
	}
}

func stamped(ev domain.MintEvent) domain.TimestampedMintEvent {
	return ev.WithTime(time.Unix(int64(ev.BlockNumber)*12, 0))
}

func blocks(entries []domain.TimestampedMintEvent) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.BlockNumber
	}
	return out
}

func TestReplace_SortsDescending(t *testing.T) {
	l := Replace([]domain.TimestampedMintEvent{
		stamped(mintAt(alice, 5, "0x05")),
		stamped(mintAt(alice, 3, "0x03")),
		stamped(mintAt(alice, 9, "0x09")),
	})
	assert.Equal(t, []uint64{9, 5, 3}, blocks(l.Entries()))
}

func TestReplace_DropsRepeatedKeys(t *testing.T) {
	ev := stamped(mintAt(alice, 5, "0x05"))
	l := Replace([]domain.TimestampedMintEvent{ev, ev})
	assert.Equal(t, 1, l.Len())
}

func TestPrepend(t *testing.T) {
	base := Replace([]domain.TimestampedMintEvent{stamped(mintAt(alice, 5, "0x05"))})

	next, ok := base.Prepend(stamped(mintAt(alice, 2, "0x02")))
	require.True(t, ok)
	// Prepend does not reorder by block
	assert.Equal(t, []uint64{2, 5}, blocks(next.Entries()))
	assert.Equal(t, 1, base.Len(), "receiver must not change")

	same, ok := next.Prepend(stamped(mintAt(alice, 5, "0x05")))
	assert.False(t, ok)
	assert.Equal(t, 2, same.Len())
}

func TestPrepend_SameBlockDifferentTx(t *testing.T) {
	l, _ := Ledger{}.Prepend(stamped(mintAt(alice, 5, "0x05")))
	l, ok := l.Prepend(stamped(mintAt(alice, 5, "0x06")))
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestMerge_KeepsLiveEntriesMissingFromHistory(t *testing.T) {
	live, _ := Ledger{}.Prepend(stamped(mintAt(alice, 20, "0x20")))
	live, _ = live.Prepend(stamped(mintAt(alice, 9, "0x09")))

	merged := live.Merge([]domain.TimestampedMintEvent{
		stamped(mintAt(alice, 3, "0x03")),
		stamped(mintAt(alice, 9, "0x09")),
	})
	assert.Equal(t, []uint64{20, 9, 3}, blocks(merged.Entries()))
}

func TestEntries_ReturnsCopy(t *testing.T) {
	l := Replace([]domain.TimestampedMintEvent{stamped(mintAt(alice, 5, "0x05"))})
	entries := l.Entries()
	entries[0].BlockNumber = 99
	assert.Equal(t, uint64(5), l.Entries()[0].BlockNumber)
}
