package identity

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evc-wallet/evc_wallet/internal/httpx"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
)

// Handler exposes identity endpoints.
type Handler struct {
	service  *Service
	validate *httpx.Validator
	actorID  func(*fiber.Ctx) string
}

// NewHandler constructs an identity HTTP handler. actorID resolves the
// authenticated user of a request.
func NewHandler(service *Service, validate *httpx.Validator, actorID func(*fiber.Ctx) string) *Handler {
	return &Handler{service: service, validate: validate, actorID: actorID}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Phone    string `json:"phone" validate:"required,e164"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type walletResponse struct {
	ID          string `json:"id"`
	EvcBalance  string `json:"evc_balance"`
	BankBalance string `json:"bank_balance"`
	Currency    string `json:"currency"`
}

func toUserResponse(u User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Phone: u.Phone, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := httpx.ParseBody(c, h.validate, &req); err != nil {
		return err
	}
	user, w, err := h.service.Register(c.UserContext(), Registration{Name: req.Name, Phone: req.Phone, Password: req.Password})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user": toUserResponse(user),
		"wallet": walletResponse{
			ID:          w.ID,
			EvcBalance:  ledger.FormatAmount(w.EvcBalance),
			BankBalance: ledger.FormatAmount(w.BankBalance),
			Currency:    string(w.Currency),
		},
	})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), h.actorID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toUserResponse(user))
}
