package query

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/middleware"
)

// Handler exposes balance and history reads.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type balanceResponse struct {
	WalletID    string    `json:"wallet_id"`
	UserID      string    `json:"user_id"`
	EvcBalance  string    `json:"evc_balance"`
	BankBalance string    `json:"bank_balance"`
	Currency    string    `json:"currency"`
	LastUpdated time.Time `json:"last_updated"`
}

type historyResponse struct {
	Transactions []ledger.View `json:"transactions"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// target resolves the :userId parameter. "me" is the caller; anyone else
// requires the admin role.
func target(c *fiber.Ctx, op string) (string, error) {
	actor := middleware.ActorID(c)
	id := c.Params("userId")
	if id == "me" || id == actor {
		return actor, nil
	}
	if !middleware.IsAdmin(c) {
		return "", apperr.Forbidden(op, "you may only access your own wallet")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.Validation(op, "user id must be a uuid")
	}
	return id, nil
}

// Balance returns the balances of :userId.
func (h *Handler) Balance(c *fiber.Ctx) error {
	owner, err := target(c, "query.Handler.Balance")
	if err != nil {
		return err
	}
	b, err := h.svc.Balance(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{
		WalletID:    b.WalletID,
		UserID:      b.OwnerID,
		EvcBalance:  ledger.FormatAmount(b.EvcBalance),
		BankBalance: ledger.FormatAmount(b.BankBalance),
		Currency:    string(b.Currency),
		LastUpdated: b.LastUpdated,
	})
}

// History lists entries of :userId newest first. Without :userId, admins get
// every owner's entries.
func (h *Handler) History(c *fiber.Ctx) error {
	const op = "query.Handler.History"
	q := HistoryQuery{Limit: c.QueryInt("limit", DefaultLimit), Offset: c.QueryInt("offset", 0)}
	if c.Params("userId") == "" {
		if !middleware.IsAdmin(c) {
			return apperr.Forbidden(op, "only administrators may list all transactions")
		}
		q.All = true
	} else {
		owner, err := target(c, op)
		if err != nil {
			return err
		}
		q.OwnerID = owner
	}

	txs, err := h.svc.History(c.UserContext(), q)
	if err != nil {
		return err
	}
	q = q.Normalize()
	return c.Status(http.StatusOK).JSON(historyResponse{Transactions: ledger.NewViews(txs), Limit: q.Limit, Offset: q.Offset})
}
