package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

const minPasswordLen = 8

// WalletProvisioner opens the wallet of a newly registered user.
type WalletProvisioner interface {
	Provision(ctx context.Context, ownerID string) (wallet.Wallet, error)
}

// Service manages identity lifecycle.
type Service struct {
	repo    Repository
	wallets WalletProvisioner
	logger  *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, wallets WalletProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, wallets: wallets, logger: logger}
}

// Register creates a user with the user role and opens their wallet with
// zero balances. Admin accounts are never created here.
func (s *Service) Register(ctx context.Context, reg Registration) (User, wallet.Wallet, error) {
	const op = "identity.Service.Register"
	name := strings.TrimSpace(reg.Name)
	phone := strings.TrimSpace(reg.Phone)
	if name == "" || phone == "" {
		return User{}, wallet.Wallet{}, apperr.Validation(op, "name and phone are required")
	}
	if len(reg.Password) < minPasswordLen {
		return User{}, wallet.Wallet{}, apperr.Validation(op, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, wallet.Wallet{}, apperr.Internal(op, err)
	}

	user := User{
		ID:           uuid.New().String(),
		Name:         name,
		Phone:        phone,
		Role:         RoleUser,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, wallet.Wallet{}, err
	}

	w, err := s.wallets.Provision(ctx, user.ID)
	if err != nil {
		// Login provisions again, so the wallet is opened on first sign-in.
		s.logger.Error("wallet provisioning failed", "user_id", user.ID, "err", err)
		return User{}, wallet.Wallet{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "wallet_id", w.ID)
	return user, w, nil
}

// EnsureAdmin creates an administrator account with the given credentials
// unless the phone number is already registered. Administrators hold no wallet.
// A phone registered to a regular user is a conflict.
func (s *Service) EnsureAdmin(ctx context.Context, reg Registration) (User, error) {
	const op = "identity.Service.EnsureAdmin"
	phone := strings.TrimSpace(reg.Phone)
	existing, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil && existing.Role == RoleAdmin:
		return existing, nil
	case err == nil:
		return User{}, apperr.Conflict(op, "phone number belongs to a regular user")
	case !errors.Is(err, apperr.ErrNotFound):
		return User{}, err
	}
	if len(reg.Password) < minPasswordLen {
		return User{}, apperr.Validation(op, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperr.Internal(op, err)
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = "Administrator"
	}
	admin := User{
		ID:           uuid.New().String(),
		Name:         name,
		Phone:        phone,
		Role:         RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return User{}, err
	}
	s.logger.Info("administrator created", "user_id", admin.ID)
	return admin, nil
}

// Authenticate verifies a phone and password pair.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (User, error) {
	const op = "identity.Service.Authenticate"
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, apperr.Unauthorized(op, "invalid phone number or password")
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, apperr.Unauthorized(op, "invalid phone number or password")
	}
	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
