package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/notification"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// Engine moves funds between the two sub-balances of a wallet and records
// every attempt in the ledger.
type Engine struct {
	wallets  wallet.Repository
	store    Store
	guard    *Guard
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(wallets wallet.Repository, store Store, guard *Guard, notifier notification.Notifier, logger *slog.Logger) *Engine {
	if guard == nil {
		guard = NewGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		wallets:  wallets,
		store:    store,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures one transfer request.
type TransferInput struct {
	OwnerID   string
	ActorID   string
	Direction ledger.Direction
	Amount    decimal.Decimal
	// IdempotencyKey makes retries return the first outcome. Optional.
	IdempotencyKey string
}

// AdjustInput captures an administrative balance correction. Delta is signed.
type AdjustInput struct {
	OwnerID        string
	ActorID        string
	Account        wallet.SubAccount
	Delta          decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// Result is the outcome of a transfer or adjustment.
type Result struct {
	Transaction ledger.Transaction
	EvcBalance  decimal.Decimal
	BankBalance decimal.Decimal
	Currency    wallet.Currency
	// Replayed is set when the outcome was recorded by an earlier call with
	// the same idempotency key.
	Replayed bool
}

// movement describes one ledger-recorded change to a single wallet.
type movement struct {
	direction   ledger.Direction
	amount      decimal.Decimal
	description string
	// apply returns the balances after the change, or ok=false when the
	// source sub-balance cannot cover it.
	apply func(w wallet.Wallet) (next wallet.Wallet, before, after decimal.Decimal, ok bool)
	// failure is recorded as the entry description when apply fails.
	failure string
}

// Transfer moves amount from one sub-balance of the owner's wallet to the
// other. If the source cannot cover it, a failed entry is recorded, balances
// are left alone and an insufficient funds error is returned together with
// the result.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (Result, error) {
	const op = "transfer.Engine.Transfer"
	var source, dest wallet.SubAccount
	switch in.Direction {
	case ledger.DirectionEVCToBank:
		source, dest = wallet.SubAccountEVC, wallet.SubAccountBank
	case ledger.DirectionBankToEVC:
		source, dest = wallet.SubAccountBank, wallet.SubAccountEVC
	default:
		return Result{}, apperr.Validation(op, "direction must be evc_to_bank or bank_to_evc")
	}
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		return Result{}, err
	}
	if in.ActorID == "" {
		in.ActorID = in.OwnerID
	}

	label := accountLabel(source) + " to " + accountLabel(dest)
	mv := movement{
		direction:   in.Direction,
		amount:      in.Amount,
		description: label + " transfer",
		failure:     label + " transfer failed: insufficient " + accountLabel(source) + " balance",
		apply: func(w wallet.Wallet) (wallet.Wallet, decimal.Decimal, decimal.Decimal, bool) {
			before := w.Balance(source)
			if before.LessThan(in.Amount) {
				return w, before, before, false
			}
			after := before.Sub(in.Amount)
			next := w.WithBalance(source, after).WithBalance(dest, w.Balance(dest).Add(in.Amount))
			return next, before, after, true
		},
	}
	return e.execute(ctx, op, in.OwnerID, in.ActorID, in.IdempotencyKey, mv)
}

// Adjust credits or debits one sub-balance as an administrative correction.
// It goes through the same exclusive section and atomic unit as Transfer. A
// debit larger than the sub-balance is recorded as failed.
func (e *Engine) Adjust(ctx context.Context, in AdjustInput) (Result, error) {
	const op = "transfer.Engine.Adjust"
	if in.Account != wallet.SubAccountEVC && in.Account != wallet.SubAccountBank {
		return Result{}, apperr.Validation(op, "account must be evc or bank")
	}
	if in.Delta.IsZero() {
		return Result{}, apperr.Validation(op, "delta must not be zero")
	}
	amount := in.Delta.Abs()
	if err := ledger.ValidateAmount(amount); err != nil {
		return Result{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Result{}, apperr.Validation(op, "reason is required")
	}

	verb := "credit"
	if in.Delta.IsNegative() {
		verb = "debit"
	}
	label := fmt.Sprintf("%s %s adjustment: %s", accountLabel(in.Account), verb, reason)
	mv := movement{
		direction:   ledger.DirectionAdjustment,
		amount:      amount,
		description: label,
		failure:     label + " (failed: insufficient " + accountLabel(in.Account) + " balance)",
		apply: func(w wallet.Wallet) (wallet.Wallet, decimal.Decimal, decimal.Decimal, bool) {
			before := w.Balance(in.Account)
			after := before.Add(in.Delta)
			if after.IsNegative() {
				return w, before, before, false
			}
			return w.WithBalance(in.Account, after), before, after, true
		},
	}
	return e.execute(ctx, op, in.OwnerID, in.ActorID, in.IdempotencyKey, mv)
}

func (e *Engine) execute(ctx context.Context, op, ownerID, actorID, key string, mv movement) (Result, error) {
	w, err := e.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Result{}, apperr.NotFound(op, "wallet not found")
		}
		return Result{}, storageError(op, err)
	}

	var res Result
	err = e.guard.WithWalletLock(ctx, w.ID, func() error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			res = Result{}
			// Key lookup must follow LockWallet: any writer holding the same
			// key has committed by then.
			current, err := tx.LockWallet(ctx, w.ID)
			if err != nil {
				return err
			}
			if key != "" {
				prior, err := tx.FindEntryByKey(ctx, ownerID, key)
				switch {
				case err == nil:
					return replay(op, current, prior, mv, &res)
				case !errors.Is(err, apperr.ErrNotFound):
					return err
				}
			}

			next, before, after, ok := mv.apply(current)

			entry := ledger.Transaction{
				ID:             uuid.New().String(),
				WalletID:       current.ID,
				OwnerID:        ownerID,
				ActorID:        actorID,
				Amount:         mv.amount,
				Direction:      mv.direction,
				Status:         ledger.StatusCompleted,
				Reference:      ledger.NewReference(mv.direction),
				IdempotencyKey: key,
				Description:    mv.description,
				BalanceBefore:  before,
				BalanceAfter:   after,
				CreatedAt:      e.now(),
			}
			if ok {
				next.UpdatedAt = entry.CreatedAt
				if current, err = tx.SaveWallet(ctx, next); err != nil {
					return err
				}
			} else {
				entry.Status = ledger.StatusFailed
				entry.Description = mv.failure
			}

			appended, err := tx.AppendEntry(ctx, entry)
			if err != nil {
				return err
			}
			res = Result{
				Transaction: appended,
				EvcBalance:  current.EvcBalance,
				BankBalance: current.BankBalance,
				Currency:    current.Currency,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, apperr.Unavailable(op, err)
		}
		return Result{}, storageError(op, err)
	}

	logger := e.logger.With(
		"op", op,
		"reference", res.Transaction.Reference,
		"owner_id", ownerID,
		"actor_id", actorID,
		"direction", res.Transaction.Direction,
		"amount", ledger.FormatAmount(res.Transaction.Amount),
		"status", res.Transaction.Status,
	)
	if res.Replayed {
		logger.Info("transaction replayed")
	} else {
		logger.Info("transaction recorded")
		e.notify(ctx, res, logger)
	}

	if res.Transaction.Status == ledger.StatusFailed {
		return res, apperr.InsufficientFunds(op, "insufficient "+failedAccount(res.Transaction)+" balance")
	}
	return res, nil
}

// replay fills res from an earlier entry recorded under the same key. The
// key must have been used for the same operation. current is the wallet as
// locked by this unit.
func replay(op string, current wallet.Wallet, prior ledger.Transaction, mv movement, res *Result) error {
	if prior.Direction != mv.direction || !prior.Amount.Equal(mv.amount) {
		return apperr.Conflict(op, "idempotency key was used for a different request")
	}
	*res = Result{
		Transaction: prior,
		EvcBalance:  current.EvcBalance,
		BankBalance: current.BankBalance,
		Currency:    current.Currency,
		Replayed:    true,
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, res Result, logger *slog.Logger) {
	if e.notifier == nil {
		return
	}
	kind := notification.KindTransactionCompleted
	if res.Transaction.Status == ledger.StatusFailed {
		kind = notification.KindTransactionFailed
	}
	msg := notification.Message{
		Kind:        kind,
		Destination: res.Transaction.OwnerID,
		ActorID:     res.Transaction.ActorID,
		Reference:   res.Transaction.Reference,
		Direction:   string(res.Transaction.Direction),
		Status:      string(res.Transaction.Status),
		Amount:      ledger.FormatAmount(res.Transaction.Amount),
		Currency:    string(res.Currency),
		Body:        res.Transaction.Description,
		OccurredAt:  res.Transaction.CreatedAt,
	}
	if err := e.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		logger.Warn("notification failed", "err", err)
	}
}

// storageError keeps classified errors and reports anything else as a
// storage failure, which callers may retry.
func storageError(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		return err
	}
	return apperr.Unavailable(op, err)
}

func accountLabel(a wallet.SubAccount) string {
	if a == wallet.SubAccountBank {
		return "bank"
	}
	return "EVC"
}

func failedAccount(tx ledger.Transaction) string {
	switch tx.Direction {
	case ledger.DirectionBankToEVC:
		return "bank"
	case ledger.DirectionEVCToBank:
		return "EVC"
	}
	if strings.HasPrefix(tx.Description, "bank") {
		return "bank"
	}
	return "EVC"
}
