package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
)

type inMemoryLedger struct {
	mu          sync.RWMutex
	seq         int64
	entries     []Transaction
	byReference map[string]int
	byKey       map[string]int
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local development.
func NewInMemory() Repository {
	return &inMemoryLedger{
		byReference: make(map[string]int),
		byKey:       make(map[string]int),
	}
}

func idempotencyIndex(ownerID, key string) string {
	return ownerID + ":" + key
}

func (l *inMemoryLedger) Append(_ context.Context, tx Transaction) (Transaction, error) {
	const op = "ledger.inMemoryLedger.Append"
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byReference[tx.Reference]; exists {
		return Transaction{}, apperr.Conflict(op, "duplicate transaction reference")
	}
	if tx.IdempotencyKey != "" {
		if _, exists := l.byKey[idempotencyIndex(tx.OwnerID, tx.IdempotencyKey)]; exists {
			return Transaction{}, apperr.Conflict(op, "idempotency key already used")
		}
	}

	l.seq++
	tx.Seq = l.seq
	l.entries = append(l.entries, tx)
	pos := len(l.entries) - 1
	l.byReference[tx.Reference] = pos
	if tx.IdempotencyKey != "" {
		l.byKey[idempotencyIndex(tx.OwnerID, tx.IdempotencyKey)] = pos
	}
	return tx, nil
}

func (l *inMemoryLedger) FindByReference(_ context.Context, reference string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.byReference[reference]
	if !ok {
		return Transaction{}, apperr.NotFound("ledger.inMemoryLedger.FindByReference", "transaction not found")
	}
	return l.entries[pos], nil
}

func (l *inMemoryLedger) FindByIdempotencyKey(_ context.Context, ownerID, key string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.byKey[idempotencyIndex(ownerID, key)]
	if !ok {
		return Transaction{}, apperr.NotFound("ledger.inMemoryLedger.FindByIdempotencyKey", "transaction not found")
	}
	return l.entries[pos], nil
}

func (l *inMemoryLedger) List(_ context.Context, filter ListFilter) ([]Transaction, error) {
	l.mu.RLock()
	matched := make([]Transaction, 0, len(l.entries))
	for _, tx := range l.entries {
		if filter.OwnerID == "" || tx.OwnerID == filter.OwnerID {
			matched = append(matched, tx)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return Newer(matched[i], matched[j]) })

	if filter.Offset >= len(matched) {
		return []Transaction{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
