package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies which sub-balance a transaction moves funds from.
type Direction string

const (
	DirectionEVCToBank  Direction = "evc_to_bank"
	DirectionBankToEVC  Direction = "bank_to_evc"
	DirectionAdjustment Direction = "wallet_adjustment"
)

// Status of a ledger entry. Entries are written once and never change status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID             string
	WalletID       string
	OwnerID        string
	ActorID        string
	Amount         decimal.Decimal
	Direction      Direction
	Status         Status
	Reference      string
	IdempotencyKey string
	Description    string
	// BalanceBefore and BalanceAfter snapshot the sub-balance funds moved from.
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	CreatedAt     time.Time
	Seq           int64
}

// ListFilter narrows a history listing. An empty OwnerID lists every owner.
type ListFilter struct {
	OwnerID string
	Limit   int
	Offset  int
}

// Repository is the append-only ledger store.
type Repository interface {
	// Append inserts tx and returns it with the store-assigned Seq. A reused
	// reference or (owner, idempotency key) pair fails with a conflict.
	Append(ctx context.Context, tx Transaction) (Transaction, error)
	FindByReference(ctx context.Context, reference string) (Transaction, error)
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (Transaction, error)
	// List returns entries newest first, ordered by CreatedAt then Seq.
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
}

// Newer reports whether a sorts before b in history order.
func Newer(a, b Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}
