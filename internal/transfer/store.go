package transfer

import (
	"context"

	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// Tx is the view of both stores available inside one atomic unit.
type Tx interface {
	// LockWallet re-reads the wallet for mutation.
	LockWallet(ctx context.Context, walletID string) (wallet.Wallet, error)
	// SaveWallet writes balances if wallet.Version is still current.
	SaveWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	FindEntryByKey(ctx context.Context, ownerID, key string) (ledger.Transaction, error)
	AppendEntry(ctx context.Context, entry ledger.Transaction) (ledger.Transaction, error)
}

// Store runs fn as one atomic unit. If fn returns an error nothing it did is
// kept; otherwise every write becomes visible together.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// repoTx adapts a pair of repositories bound to the same database transaction.
type repoTx struct {
	wallets wallet.Repository
	entries ledger.Repository
}

func (t repoTx) LockWallet(ctx context.Context, walletID string) (wallet.Wallet, error) {
	return t.wallets.GetForUpdate(ctx, walletID)
}

func (t repoTx) SaveWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	return t.wallets.UpdateBalances(ctx, w)
}

func (t repoTx) FindEntryByKey(ctx context.Context, ownerID, key string) (ledger.Transaction, error) {
	return t.entries.FindByIdempotencyKey(ctx, ownerID, key)
}

func (t repoTx) AppendEntry(ctx context.Context, entry ledger.Transaction) (ledger.Transaction, error) {
	return t.entries.Append(ctx, entry)
}
