package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/logging"
	"github.com/evc-wallet/evc_wallet/internal/transfer"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

type env struct {
	wallets wallet.Repository
	entries ledger.Repository
	engine  *transfer.Engine
	svc     *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	entries := ledger.NewInMemory()
	engine := transfer.NewEngine(wallets, transfer.NewMemoryStore(wallets, entries), transfer.NewGuard(), nil, logging.Discard())
	return &env{wallets: wallets, entries: entries, engine: engine, svc: NewService(wallets, entries)}
}

func (e *env) funded(t *testing.T, evc string) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewService(e.wallets, "USD", logging.Discard()).Provision(context.Background(), uuid.NewString())
	require.NoError(t, err)
	w.EvcBalance = decimal.RequireFromString(evc)
	w, err = e.wallets.UpdateBalances(context.Background(), w)
	require.NoError(t, err)
	return w
}

func (e *env) transfer(t *testing.T, owner string, direction ledger.Direction, amount string) ledger.Transaction {
	t.Helper()
	res, err := e.engine.Transfer(context.Background(), transfer.TransferInput{
		OwnerID:   owner,
		Direction: direction,
		Amount:    decimal.RequireFromString(amount),
	})
	if err != nil {
		require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	}
	return res.Transaction
}

func TestBalanceReflectsCommittedTransfers(t *testing.T) {
	e := newEnv(t)
	w := e.funded(t, "100")
	e.transfer(t, w.OwnerID, ledger.DirectionEVCToBank, "60")

	bal, err := e.svc.Balance(context.Background(), w.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", bal.EvcBalance.StringFixed(2))
	assert.Equal(t, "60.00", bal.BankBalance.StringFixed(2))
	assert.Equal(t, wallet.CurrencyUSD, bal.Currency)
	assert.False(t, bal.LastUpdated.IsZero())
}

func TestBalanceUnknownOwner(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Balance(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHistoryNewestFirstAndScoped(t *testing.T) {
	e := newEnv(t)
	mine := e.funded(t, "100")
	other := e.funded(t, "100")

	t1 := e.transfer(t, mine.OwnerID, ledger.DirectionEVCToBank, "60")
	e.transfer(t, other.OwnerID, ledger.DirectionEVCToBank, "1")
	t2 := e.transfer(t, mine.OwnerID, ledger.DirectionEVCToBank, "50")
	t3 := e.transfer(t, mine.OwnerID, ledger.DirectionBankToEVC, "60")

	history, err := e.svc.History(context.Background(), HistoryQuery{OwnerID: mine.OwnerID})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{t3.Reference, t2.Reference, t1.Reference},
		[]string{history[0].Reference, history[1].Reference, history[2].Reference})
	assert.Equal(t, ledger.StatusFailed, history[1].Status)
	for _, tx := range history {
		assert.Equal(t, mine.OwnerID, tx.OwnerID)
	}

	all, err := e.svc.History(context.Background(), HistoryQuery{All: true, OwnerID: mine.OwnerID})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestHistoryPaging(t *testing.T) {
	e := newEnv(t)
	w := e.funded(t, "1000")
	for i := 0; i < 5; i++ {
		e.transfer(t, w.OwnerID, ledger.DirectionEVCToBank, fmt.Sprintf("%d", i+1))
	}

	page, err := e.svc.History(context.Background(), HistoryQuery{OwnerID: w.OwnerID, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "4", page[0].Amount.String())
	assert.Equal(t, "3", page[1].Amount.String())

	all, err := e.svc.History(context.Background(), HistoryQuery{OwnerID: w.OwnerID, Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestHistoryRequiresOwnerUnlessAll(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.History(context.Background(), HistoryQuery{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
