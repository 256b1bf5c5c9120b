package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the denomination of both sub-balances of a wallet.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}

// SubAccount names one of the two balances a wallet holds.
type SubAccount string

const (
	SubAccountEVC  SubAccount = "evc"
	SubAccountBank SubAccount = "bank"
)

// Wallet holds one user's EVC and bank balances. Version increases by one on
// every balance mutation.
type Wallet struct {
	ID          string
	OwnerID     string
	EvcBalance  decimal.Decimal
	BankBalance decimal.Decimal
	Currency    Currency
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Balance returns the sub-balance named by account.
func (w Wallet) Balance(account SubAccount) decimal.Decimal {
	if account == SubAccountBank {
		return w.BankBalance
	}
	return w.EvcBalance
}

// WithBalance returns a copy of w with the named sub-balance replaced.
func (w Wallet) WithBalance(account SubAccount, amount decimal.Decimal) Wallet {
	if account == SubAccountBank {
		w.BankBalance = amount
	} else {
		w.EvcBalance = amount
	}
	return w
}
