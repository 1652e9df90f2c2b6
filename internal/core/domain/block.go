package domain

import "time"

// Block represents the subset of a block header the dashboard needs.
type Block struct {
	Number    uint64
	Hash      string
	Timestamp uint64
}

// Time returns the block timestamp as UTC time.
func (b *Block) Time() time.Time {
	return time.Unix(int64(b.Timestamp), 0).UTC()
}
