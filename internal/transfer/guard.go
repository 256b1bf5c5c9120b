package transfer

import (
	"context"
	"sync"
)

// Guard serializes work per wallet. Each wallet id maps to a one-slot
// channel that is created on first use and kept for the life of the process,
// so every caller for the same id contends on the same slot.
type Guard struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{slots: make(map[string]chan struct{})}
}

func (g *Guard) slot(walletID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[walletID]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[walletID] = s
	}
	return s
}

// WithWalletLock runs fn while holding the exclusive section for walletID.
// It waits as long as needed unless ctx ends first, in which case fn is not
// run and ctx.Err() is returned. The section is released when fn returns or
// panics.
func (g *Guard) WithWalletLock(ctx context.Context, walletID string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := g.slot(walletID)
	select {
	case s <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s }()
	return fn()
}
