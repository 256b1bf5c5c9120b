package query

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Service answers balance and history reads straight from the stores.
type Service struct {
	wallets wallet.Repository
	entries ledger.Repository
}

// NewService builds a query service.
func NewService(wallets wallet.Repository, entries ledger.Repository) *Service {
	return &Service{wallets: wallets, entries: entries}
}

// Balance is the current state of a wallet.
type Balance struct {
	WalletID    string
	OwnerID     string
	EvcBalance  decimal.Decimal
	BankBalance decimal.Decimal
	Currency    wallet.Currency
	LastUpdated time.Time
}

// Balance returns the owner's balances as last committed.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	w, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Balance{}, apperr.NotFound("query.Service.Balance", "wallet not found")
		}
		return Balance{}, apperr.Unavailable("query.Service.Balance", err)
	}
	return Balance{
		WalletID:    w.ID,
		OwnerID:     w.OwnerID,
		EvcBalance:  w.EvcBalance,
		BankBalance: w.BankBalance,
		Currency:    w.Currency,
		LastUpdated: w.UpdatedAt,
	}, nil
}

// HistoryQuery selects entries. All lists every owner and ignores OwnerID;
// callers decide who may ask for it.
type HistoryQuery struct {
	OwnerID string
	All     bool
	Limit   int
	Offset  int
}

// Normalize fills the default limit and clamps limit and offset.
func (q HistoryQuery) Normalize() HistoryQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// History returns entries newest first.
func (s *Service) History(ctx context.Context, q HistoryQuery) ([]ledger.Transaction, error) {
	const op = "query.Service.History"
	q = q.Normalize()
	filter := ledger.ListFilter{OwnerID: q.OwnerID, Limit: q.Limit, Offset: q.Offset}
	if q.All {
		filter.OwnerID = ""
	} else if q.OwnerID == "" {
		return nil, apperr.Validation(op, "owner id is required")
	}

	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	return entries, nil
}
