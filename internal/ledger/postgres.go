package ledger

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

const transactionColumns = `seq, id::text, wallet_id::text, owner_id::text, actor_id::text,
        amount::text, direction, status, reference, COALESCE(idempotency_key, ''), description,
        balance_before::text, balance_after::text, created_at`

// PostgresLedger persists ledger entries in the transactions table. It runs
// against a pool or, inside a unit of work, against a pgx.Tx.
type PostgresLedger struct {
	db infra.DBTX
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db infra.DBTX) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Append inserts an entry; the table rejects updates and deletes.
func (l *PostgresLedger) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	const op = "ledger.PostgresLedger.Append"
	var key any
	if tx.IdempotencyKey != "" {
		key = tx.IdempotencyKey
	}
	err := l.db.QueryRow(ctx, `INSERT INTO transactions (id, wallet_id, owner_id, actor_id, amount, direction, status,
            reference, idempotency_key, description, balance_before, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11::numeric, $12::numeric, $13)
        RETURNING seq`,
		tx.ID, tx.WalletID, tx.OwnerID, tx.ActorID, tx.Amount.String(), string(tx.Direction), string(tx.Status),
		tx.Reference, key, tx.Description, tx.BalanceBefore.String(), tx.BalanceAfter.String(), tx.CreatedAt.UTC(),
	).Scan(&tx.Seq)
	switch {
	case infra.IsUniqueViolation(err, "transactions_reference_key"):
		return Transaction{}, apperr.Conflict(op, "duplicate transaction reference")
	case infra.IsUniqueViolation(err, "transactions_owner_idempotency_key"):
		return Transaction{}, apperr.Conflict(op, "idempotency key already used")
	case err != nil:
		return Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

func (l *PostgresLedger) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	return scanOne(row, "ledger.PostgresLedger.FindByReference")
}

func (l *PostgresLedger) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE owner_id = $1 AND idempotency_key = $2`, ownerID, key)
	return scanOne(row, "ledger.PostgresLedger.FindByIdempotencyKey")
}

// List returns entries newest first. A zero limit means no limit.
func (l *PostgresLedger) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	const op = "ledger.PostgresLedger.List"
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	var (
		rows pgx.Rows
		err  error
	)
	if filter.OwnerID == "" {
		rows, err = l.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
            ORDER BY created_at DESC, seq DESC LIMIT $1 OFFSET $2`, limit, filter.Offset)
	} else {
		rows, err = l.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
            WHERE owner_id = $1
            ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`, filter.OwnerID, limit, filter.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanOne(row pgx.Row, op string) (Transaction, error) {
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, apperr.NotFound(op, "transaction not found")
		}
		return Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var amount, before, after, direction, status string
	var createdAt time.Time
	if err := row.Scan(&tx.Seq, &tx.ID, &tx.WalletID, &tx.OwnerID, &tx.ActorID, &amount, &direction, &status,
		&tx.Reference, &tx.IdempotencyKey, &tx.Description, &before, &after, &createdAt); err != nil {
		return Transaction{}, err
	}
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	if tx.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return Transaction{}, fmt.Errorf("parse balance_before: %w", err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return Transaction{}, fmt.Errorf("parse balance_after: %w", err)
	}
	tx.Direction = Direction(direction)
	tx.Status = Status(status)
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
