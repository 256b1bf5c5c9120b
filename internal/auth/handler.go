package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/evc-wallet/evc_wallet/internal/httpx"
)

// Handler exposes the login endpoint.
type Handler struct {
	svc      *Service
	validate *httpx.Validator
}

func NewHandler(svc *Service, validate *httpx.Validator) *Handler {
	return &Handler{svc: svc, validate: validate}
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login validates credentials and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := httpx.ParseBody(c, h.validate, &req); err != nil {
		return err
	}
	pair, err := h.svc.Login(c.UserContext(), req.Phone, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(pair)
}
