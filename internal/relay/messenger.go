package relay

import (
	"context"
	"sync"

	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// LocalMessenger delivers envelopes to a Handler in the same process. Each
// post is handled on its own goroutine, so a reply never arrives before Post
// returns.
type LocalMessenger struct {
	handler Handler

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ transport.Messenger = (*LocalMessenger)(nil)

// NewLocalMessenger creates an in-process messenger for h.
func NewLocalMessenger(h Handler) *LocalMessenger {
	return &LocalMessenger{handler: h}
}

// Post hands msg to the handler.
func (m *LocalMessenger) Post(ctx context.Context, msg *transport.Message) (<-chan *transport.Reply, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, qwerr.ErrRelayBroken
	}
	m.wg.Add(1)
	m.mu.Unlock()

	replies := make(chan *transport.Reply, 1)
	go func() {
		defer m.wg.Done()
		defer close(replies)
		replies <- m.handler.Handle(ctx, msg)
	}()
	return replies, nil
}

// Close rejects further posts and waits for the ones in flight.
func (m *LocalMessenger) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
