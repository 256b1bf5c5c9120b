package transfer

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// PostgresStore runs each unit in a single PostgreSQL transaction. The wallet
// row is locked with SELECT ... FOR UPDATE until commit.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store over db.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	const op = "transfer.PostgresStore.RunInTx"
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) // nolint:errcheck

	if err := fn(ctx, repoTx{
		wallets: wallet.NewPostgresRepository(tx),
		entries: ledger.NewPostgresLedger(tx),
	}); err != nil {
		return err
	}

	// Once the unit is built, finish it even if the caller goes away.
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}
