package ledger

import "time"

// View is the JSON rendering of a ledger entry.
type View struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	WalletID      string    `json:"wallet_id"`
	UserID        string    `json:"user_id"`
	ActorID       string    `json:"actor_id,omitempty"`
	Direction     Direction `json:"type"`
	Status        Status    `json:"status"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewView renders tx with amounts fixed to two decimals.
func NewView(tx Transaction) View {
	return View{
		ID:            tx.ID,
		Reference:     tx.Reference,
		WalletID:      tx.WalletID,
		UserID:        tx.OwnerID,
		ActorID:       tx.ActorID,
		Direction:     tx.Direction,
		Status:        tx.Status,
		Amount:        FormatAmount(tx.Amount),
		BalanceBefore: FormatAmount(tx.BalanceBefore),
		BalanceAfter:  FormatAmount(tx.BalanceAfter),
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt,
	}
}

// NewViews renders a history page. The result is never nil.
func NewViews(txs []Transaction) []View {
	out := make([]View, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewView(tx))
	}
	return out
}
