package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
)

// Service provisions and reads wallets.
type Service struct {
	repo     Repository
	currency Currency
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a wallet service. Wallets are opened in currency, or USD
// when currency is empty or unknown.
func NewService(repo Repository, currency string, logger *slog.Logger) *Service {
	c := Currency(strings.ToUpper(currency))
	if !c.Valid() {
		c = CurrencyUSD
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, currency: c, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Provision opens the owner's wallet with both balances at zero. It is safe
// to call more than once; the existing wallet is returned.
func (s *Service) Provision(ctx context.Context, ownerID string) (Wallet, error) {
	const op = "wallet.Service.Provision"
	if _, err := uuid.Parse(ownerID); err != nil {
		return Wallet{}, apperr.Validation(op, "owner id must be a uuid")
	}

	existing, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Wallet{}, err
	}

	now := s.now()
	wallet := Wallet{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		EvcBalance:  decimal.Zero,
		BankBalance: decimal.Zero,
		Currency:    s.currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return s.repo.GetByOwner(ctx, ownerID)
		}
		return Wallet{}, err
	}
	s.logger.Info("wallet provisioned", "wallet_id", wallet.ID, "owner_id", ownerID, "currency", wallet.Currency)
	return wallet, nil
}
