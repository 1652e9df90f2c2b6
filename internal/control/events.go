package control

import "sync"

// EventType names a streamed dashboard update.
type EventType string

const (
	EventIdentity     EventType = "identity"
	EventLedger       EventType = "ledger"
	EventBalance      EventType = "balance"
	EventPending      EventType = "pending"
	EventNotification EventType = "notification"
)

// Event is one dashboard update.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

const subscriberBuffer = 32

// broadcaster fans events out to subscribers. A subscriber that falls behind
// loses events rather than blocking the publisher.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
