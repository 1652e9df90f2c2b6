// Package ledger reconciles historical and live Mint events into the ordered,
// deduplicated, timestamped history of the connected identity.
package ledger

import (
	"slices"
	"sort"

	"github.com/vietddude/breadwatch/internal/core/domain"
)

// Ledger is an immutable sequence of timestamped mint events, newest first.
// The zero value is the empty ledger. Reducers return a new Ledger and never
// modify the receiver.
type Ledger struct {
	entries []domain.TimestampedMintEvent
	keys    map[domain.EventKey]struct{}
}

// Replace returns a ledger holding events sorted by block number descending.
// Events with a repeated key keep their first occurrence.
func Replace(events []domain.TimestampedMintEvent) Ledger {
	sorted := make([]domain.TimestampedMintEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BlockNumber > sorted[j].BlockNumber
	})

	out := Ledger{
		entries: make([]domain.TimestampedMintEvent, 0, len(sorted)),
		keys:    make(map[domain.EventKey]struct{}, len(sorted)),
	}
	for _, ev := range sorted {
		k := ev.Key()
		if _, dup := out.keys[k]; dup {
			continue
		}
		out.keys[k] = struct{}{}
		out.entries = append(out.entries, ev)
	}
	return out
}

// Merge replaces the ledger with a historical batch. Entries already in l that
// the batch does not contain stay in front, in their current order.
func (l Ledger) Merge(historical []domain.TimestampedMintEvent) Ledger {
	next := Replace(historical)
	if len(l.entries) == 0 {
		return next
	}

	var carried []domain.TimestampedMintEvent
	for _, ev := range l.entries {
		if !next.Contains(ev.Key()) {
			carried = append(carried, ev)
		}
	}
	if len(carried) == 0 {
		return next
	}

	for _, ev := range carried {
		next.keys[ev.Key()] = struct{}{}
	}
	next.entries = append(carried, next.entries...)
	return next
}

// Prepend returns a ledger with ev at the front. It reports false, and returns
// l unchanged, when an entry with the same key already exists.
func (l Ledger) Prepend(ev domain.TimestampedMintEvent) (Ledger, bool) {
	k := ev.Key()
	if l.Contains(k) {
		return l, false
	}

	keys := make(map[domain.EventKey]struct{}, len(l.keys)+1)
	for key := range l.keys {
		keys[key] = struct{}{}
	}
	keys[k] = struct{}{}

	entries := make([]domain.TimestampedMintEvent, 0, len(l.entries)+1)
	entries = append(entries, ev)
	entries = append(entries, l.entries...)

	return Ledger{entries: entries, keys: keys}, true
}

// Contains reports whether an entry with key k exists.
func (l Ledger) Contains(k domain.EventKey) bool {
	_, ok := l.keys[k]
	return ok
}

// Len returns the number of entries.
func (l Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries, newest first.
func (l Ledger) Entries() []domain.TimestampedMintEvent {
	return slices.Clone(l.entries)
}
