package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/infra"
)

// Repository persists wallets, one per owner.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	// GetForUpdate reads the wallet and, where the backend supports it, holds a
	// row lock until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (Wallet, error)
	// UpdateBalances writes both balances if the stored version still equals
	// wallet.Version and returns the wallet with its version incremented.
	UpdateBalances(ctx context.Context, wallet Wallet) (Wallet, error)
}

const walletColumns = `id::text, owner_id::text, evc_balance::text, bank_balance::text, currency, version, created_at, updated_at`

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository backed by PostgreSQL. db may be
// the pool or an open transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	const op = "wallet.PostgresRepository.Create"
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, evc_balance, bank_balance, currency, version, created_at, updated_at)
        VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8)`,
		wallet.ID, wallet.OwnerID, wallet.EvcBalance.String(), wallet.BankBalance.String(), string(wallet.Currency),
		wallet.Version, wallet.CreatedAt.UTC(), wallet.UpdatedAt.UTC())
	if infra.IsUniqueViolation(err, "") {
		return apperr.Conflict(op, "wallet already exists for owner")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	return scanWallet(row, "wallet.PostgresRepository.Get")
}

// GetByOwner fetches the wallet belonging to ownerID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row, "wallet.PostgresRepository.GetByOwner")
}

// GetForUpdate locks the wallet row for the rest of the transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	return scanWallet(row, "wallet.PostgresRepository.GetForUpdate")
}

// UpdateBalances performs a compare-and-swap on the version column.
func (r *PostgresRepository) UpdateBalances(ctx context.Context, wallet Wallet) (Wallet, error) {
	const op = "wallet.PostgresRepository.UpdateBalances"
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, `UPDATE wallets
        SET evc_balance = $1::numeric, bank_balance = $2::numeric, version = version + 1, updated_at = $3
        WHERE id = $4 AND version = $5
        RETURNING updated_at`,
		wallet.EvcBalance.String(), wallet.BankBalance.String(), wallet.UpdatedAt.UTC(), wallet.ID, wallet.Version,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, apperr.Conflict(op, "wallet was modified concurrently")
	}
	if err != nil {
		return Wallet{}, fmt.Errorf("%s: %w", op, err)
	}
	wallet.Version++
	wallet.UpdatedAt = updatedAt.UTC()
	return wallet, nil
}

func scanWallet(row pgx.Row, op string) (Wallet, error) {
	var w Wallet
	var evc, bank, currency string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&w.ID, &w.OwnerID, &evc, &bank, &currency, &w.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, apperr.NotFound(op, "wallet not found")
		}
		return Wallet{}, fmt.Errorf("%s: %w", op, err)
	}
	var err error
	if w.EvcBalance, err = decimal.NewFromString(evc); err != nil {
		return Wallet{}, fmt.Errorf("%s: parse evc_balance: %w", op, err)
	}
	if w.BankBalance, err = decimal.NewFromString(bank); err != nil {
		return Wallet{}, fmt.Errorf("%s: parse bank_balance: %w", op, err)
	}
	w.Currency = Currency(currency)
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}
