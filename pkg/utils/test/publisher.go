package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/aurion/pkg/eventstream"
)

// MemoryPublisher is an eventstream.Publisher that keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*eventstream.FactEvent

	// Err, when set, is returned by every publish.
	Err error

	// Block, when non-nil, is received from before each publish returns.
	Block chan struct{}
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishFact(ctx context.Context, event *eventstream.FactEvent) error {
	if event == nil {
		return eventstream.ErrNilFactEvent
	}

	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the published events.
func (p *MemoryPublisher) Events() []*eventstream.FactEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.FactEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MemoryPublisher) Close() error {
	return nil
}

// ErrPublish is a canned publisher failure.
var ErrPublish = errors.New("publish failed")
