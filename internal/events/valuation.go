package events

import (
	"sync"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

// ValuationBroadcaster fans out portfolio snapshots to all subscribers via
// buffered channels. It keeps the API intentionally small so call sites
// can stay straightforward.
type ValuationBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan entity.Valuation]struct{}
	buffer int
}

// NewValuationBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewValuationBroadcaster(buffer int) *ValuationBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &ValuationBroadcaster{
		subs:   make(map[chan entity.Valuation]struct{}),
		buffer: buffer,
	}
}

// Publish sends the snapshot to all subscribers, dropping if a reader is slow.
func (b *ValuationBroadcaster) Publish(v entity.Valuation) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives snapshots until Unsubscribe is called.
func (b *ValuationBroadcaster) Subscribe() chan entity.Valuation {
	ch := make(chan entity.Valuation, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *ValuationBroadcaster) Unsubscribe(ch chan entity.Valuation) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
