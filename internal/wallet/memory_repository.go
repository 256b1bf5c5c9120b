package wallet

import (
	"context"
	"sync"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	owners  map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and local
// development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		owners:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.ID]; exists {
		return apperr.Conflict("wallet.memoryRepository.Create", "wallet exists")
	}
	if _, exists := r.owners[wallet.OwnerID]; exists {
		return apperr.Conflict("wallet.memoryRepository.Create", "wallet already exists for owner")
	}
	r.storage[wallet.ID] = wallet
	r.owners[wallet.OwnerID] = wallet.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[id]
	if !ok {
		return Wallet{}, apperr.NotFound("wallet.memoryRepository.Get", "wallet not found")
	}
	return wallet, nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[ownerID]
	if !ok {
		return Wallet{}, apperr.NotFound("wallet.memoryRepository.GetByOwner", "wallet not found")
	}
	return r.storage[id], nil
}

// GetForUpdate has no row lock to take; callers serialize through the guard.
func (r *memoryRepository) GetForUpdate(ctx context.Context, id string) (Wallet, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepository) UpdateBalances(_ context.Context, wallet Wallet) (Wallet, error) {
	const op = "wallet.memoryRepository.UpdateBalances"
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.storage[wallet.ID]
	if !ok {
		return Wallet{}, apperr.NotFound(op, "wallet not found")
	}
	if current.Version != wallet.Version {
		return Wallet{}, apperr.Conflict(op, "wallet was modified concurrently")
	}
	current.EvcBalance = wallet.EvcBalance
	current.BankBalance = wallet.BankBalance
	current.UpdatedAt = wallet.UpdatedAt
	current.Version++
	r.storage[wallet.ID] = current
	return current, nil
}
