package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// MemoryStore gives the in-memory repositories all-or-nothing units. Writes
// are staged on the unit and applied together under one commit lock after
// the wallet versions and ledger references are checked again. Readers that
// go through Wallets and Entries never observe half of a commit.
type MemoryStore struct {
	wallets wallet.Repository
	entries ledger.Repository

	commitMu sync.RWMutex
}

// NewMemoryStore wraps in-memory repositories.
func NewMemoryStore(wallets wallet.Repository, entries ledger.Repository) *MemoryStore {
	return &MemoryStore{wallets: wallets, entries: entries}
}

// Wallets returns the wallet repository with reads ordered against commits.
func (s *MemoryStore) Wallets() wallet.Repository {
	return committedWallets{Repository: s.wallets, mu: &s.commitMu}
}

// Entries returns the ledger with reads ordered against commits.
func (s *MemoryStore) Entries() ledger.Repository {
	return committedEntries{Repository: s.entries, mu: &s.commitMu}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{store: s, wallets: make(map[string]wallet.Wallet)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *MemoryStore) commit(ctx context.Context, tx *memoryTx) error {
	const op = "transfer.MemoryStore.commit"
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	for id, staged := range tx.wallets {
		current, err := s.wallets.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Version != staged.Version {
			return apperr.Conflict(op, "wallet was modified concurrently")
		}
	}
	for _, entry := range tx.entries {
		if err := s.checkUnique(ctx, entry); err != nil {
			return err
		}
	}

	for _, entry := range tx.entries {
		if _, err := s.entries.Append(ctx, entry); err != nil {
			return apperr.Internal(op, err)
		}
	}
	for _, staged := range tx.wallets {
		if _, err := s.wallets.UpdateBalances(ctx, staged); err != nil {
			return apperr.Internal(op, err)
		}
	}
	return nil
}

type committedWallets struct {
	wallet.Repository
	mu *sync.RWMutex
}

func (r committedWallets) Get(ctx context.Context, id string) (wallet.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Repository.Get(ctx, id)
}

func (r committedWallets) GetByOwner(ctx context.Context, ownerID string) (wallet.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Repository.GetByOwner(ctx, ownerID)
}

type committedEntries struct {
	ledger.Repository
	mu *sync.RWMutex
}

func (r committedEntries) FindByReference(ctx context.Context, reference string) (ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Repository.FindByReference(ctx, reference)
}

func (r committedEntries) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Repository.FindByIdempotencyKey(ctx, ownerID, key)
}

func (r committedEntries) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Repository.List(ctx, filter)
}

func (s *MemoryStore) checkUnique(ctx context.Context, entry ledger.Transaction) error {
	const op = "transfer.MemoryStore.checkUnique"
	_, err := s.entries.FindByReference(ctx, entry.Reference)
	if err == nil {
		return apperr.Conflict(op, "duplicate transaction reference")
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if entry.IdempotencyKey == "" {
		return nil
	}
	_, err = s.entries.FindByIdempotencyKey(ctx, entry.OwnerID, entry.IdempotencyKey)
	if err == nil {
		return apperr.Conflict(op, "idempotency key already used")
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// memoryTx records writes without touching the repositories. Staged wallets
// keep the version they were read at so commit can compare it.
type memoryTx struct {
	store   *MemoryStore
	wallets map[string]wallet.Wallet
	entries []ledger.Transaction
}

func (t *memoryTx) LockWallet(ctx context.Context, walletID string) (wallet.Wallet, error) {
	if staged, ok := t.wallets[walletID]; ok {
		staged.Version++
		return staged, nil
	}
	return t.store.wallets.GetForUpdate(ctx, walletID)
}

func (t *memoryTx) SaveWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	const op = "transfer.memoryTx.SaveWallet"
	if staged, ok := t.wallets[w.ID]; ok {
		if staged.Version+1 != w.Version {
			return wallet.Wallet{}, apperr.Conflict(op, "wallet was modified concurrently")
		}
		w.Version = staged.Version
	} else {
		current, err := t.store.wallets.Get(ctx, w.ID)
		if err != nil {
			return wallet.Wallet{}, err
		}
		if current.Version != w.Version {
			return wallet.Wallet{}, apperr.Conflict(op, "wallet was modified concurrently")
		}
	}
	t.wallets[w.ID] = w
	w.Version++
	return w, nil
}

func (t *memoryTx) FindEntryByKey(ctx context.Context, ownerID, key string) (ledger.Transaction, error) {
	for _, entry := range t.entries {
		if entry.OwnerID == ownerID && entry.IdempotencyKey == key {
			return entry, nil
		}
	}
	return t.store.entries.FindByIdempotencyKey(ctx, ownerID, key)
}

func (t *memoryTx) AppendEntry(ctx context.Context, entry ledger.Transaction) (ledger.Transaction, error) {
	const op = "transfer.memoryTx.AppendEntry"
	for _, staged := range t.entries {
		if staged.Reference == entry.Reference {
			return ledger.Transaction{}, apperr.Conflict(op, "duplicate transaction reference")
		}
		if entry.IdempotencyKey != "" && staged.OwnerID == entry.OwnerID && staged.IdempotencyKey == entry.IdempotencyKey {
			return ledger.Transaction{}, apperr.Conflict(op, "idempotency key already used")
		}
	}
	if err := t.store.checkUnique(ctx, entry); err != nil {
		return ledger.Transaction{}, err
	}
	t.entries = append(t.entries, entry)
	return entry, nil
}
