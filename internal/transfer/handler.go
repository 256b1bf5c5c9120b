package transfer

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/httpx"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/middleware"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// Handler exposes transfer endpoints.
type Handler struct {
	engine   *Engine
	validate *httpx.Validator
}

func NewHandler(engine *Engine, validate *httpx.Validator) *Handler {
	return &Handler{engine: engine, validate: validate}
}

type transferRequest struct {
	Direction string      `json:"direction" validate:"required,oneof=evc_to_bank bank_to_evc"`
	Amount    json.Number `json:"amount" validate:"required"`
}

type amountRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
}

type adjustRequest struct {
	Account string      `json:"account" validate:"required,oneof=evc bank"`
	Delta   json.Number `json:"delta" validate:"required"`
	Reason  string      `json:"reason" validate:"required,max=255"`
}

type resultResponse struct {
	Transaction ledger.View `json:"transaction"`
	EvcBalance  string      `json:"evc_balance"`
	BankBalance string      `json:"bank_balance"`
	Currency    string      `json:"currency"`
	Replayed    bool        `json:"replayed,omitempty"`
}

func toResponse(res Result) resultResponse {
	return resultResponse{
		Transaction: ledger.NewView(res.Transaction),
		EvcBalance:  ledger.FormatAmount(res.EvcBalance),
		BankBalance: ledger.FormatAmount(res.BankBalance),
		Currency:    string(res.Currency),
		Replayed:    res.Replayed,
	}
}

// Transfer moves funds between the caller's own sub-balances. The wallet is
// always the authenticated user's.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := httpx.ParseBody(c, h.validate, &req); err != nil {
		return err
	}
	return h.transfer(c, ledger.Direction(req.Direction), req.Amount)
}

// EVCToBank is Transfer with the direction fixed to evc_to_bank.
func (h *Handler) EVCToBank(c *fiber.Ctx) error {
	return h.fixed(c, ledger.DirectionEVCToBank)
}

// BankToEVC is Transfer with the direction fixed to bank_to_evc.
func (h *Handler) BankToEVC(c *fiber.Ctx) error {
	return h.fixed(c, ledger.DirectionBankToEVC)
}

func (h *Handler) fixed(c *fiber.Ctx, direction ledger.Direction) error {
	var req amountRequest
	if err := httpx.ParseBody(c, h.validate, &req); err != nil {
		return err
	}
	return h.transfer(c, direction, req.Amount)
}

func (h *Handler) transfer(c *fiber.Ctx, direction ledger.Direction, raw json.Number) error {
	amount, err := ledger.ParseAmount(raw.String())
	if err != nil {
		return err
	}
	actor := middleware.ActorID(c)
	res, err := h.engine.Transfer(c.UserContext(), TransferInput{
		OwnerID:        actor,
		ActorID:        actor,
		Direction:      direction,
		Amount:         amount,
		IdempotencyKey: c.Get(middleware.IdempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(res))
}

// Adjust applies an administrative correction to the wallet of :userId.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	const op = "transfer.Handler.Adjust"
	owner := c.Params("userId")
	if _, err := uuid.Parse(owner); err != nil {
		return apperr.Validation(op, "user id must be a uuid")
	}
	var req adjustRequest
	if err := httpx.ParseBody(c, h.validate, &req); err != nil {
		return err
	}
	delta, err := decimal.NewFromString(req.Delta.String())
	if err != nil {
		return apperr.Validation(op, "delta must be a decimal number")
	}
	res, err := h.engine.Adjust(c.UserContext(), AdjustInput{
		OwnerID:        owner,
		ActorID:        middleware.ActorID(c),
		Account:        wallet.SubAccount(req.Account),
		Delta:          delta,
		Reason:         req.Reason,
		IdempotencyKey: c.Get(middleware.IdempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(res))
}
