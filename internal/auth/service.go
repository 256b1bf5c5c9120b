package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/identity"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// Authenticator checks credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, phone, password string) (identity.User, error)
}

// WalletProvisioner opens a wallet if the user does not have one yet.
type WalletProvisioner interface {
	Provision(ctx context.Context, ownerID string) (wallet.Wallet, error)
}

// Service issues access tokens.
type Service struct {
	secret  []byte
	ttl     time.Duration
	users   Authenticator
	wallets WalletProvisioner
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a token service signing with secret.
func NewService(secret []byte, ttl time.Duration, users Authenticator, wallets WalletProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{secret: secret, ttl: ttl, users: users, wallets: wallets, logger: logger, now: time.Now}
}

// TokenPair is the login response.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	WalletID    string `json:"wallet_id,omitempty"`
}

// Login validates credentials and returns an access token. Users without a
// wallet get one here.
func (s *Service) Login(ctx context.Context, phone, password string) (TokenPair, error) {
	const op = "auth.Service.Login"
	user, err := s.users.Authenticate(ctx, phone, password)
	if err != nil {
		s.logger.Warn("login rejected", "err", err)
		return TokenPair{}, err
	}

	var walletID string
	if s.wallets != nil && user.Role == identity.RoleUser {
		w, err := s.wallets.Provision(ctx, user.ID)
		if err != nil {
			return TokenPair{}, err
		}
		walletID = w.ID
	}

	now := s.now()
	token, err := Sign(s.secret, Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	if err != nil {
		return TokenPair{}, apperr.Internal(op, err)
	}
	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return TokenPair{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
		UserID:      user.ID,
		Role:        user.Role,
		WalletID:    walletID,
	}, nil
}
