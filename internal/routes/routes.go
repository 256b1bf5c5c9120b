package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/evc-wallet/evc_wallet/internal/auth"
	"github.com/evc-wallet/evc_wallet/internal/config"
	"github.com/evc-wallet/evc_wallet/internal/httpx"
	"github.com/evc-wallet/evc_wallet/internal/identity"
	"github.com/evc-wallet/evc_wallet/internal/ledger"
	"github.com/evc-wallet/evc_wallet/internal/middleware"
	"github.com/evc-wallet/evc_wallet/internal/notification"
	"github.com/evc-wallet/evc_wallet/internal/query"
	"github.com/evc-wallet/evc_wallet/internal/transfer"
	"github.com/evc-wallet/evc_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// backends holds the stores for one deployment: Postgres when a pool is
// configured, in-memory otherwise.
type backends struct {
	users   identity.Repository
	wallets wallet.Repository
	entries ledger.Repository
	store   transfer.Store
}

func newBackends(db *pgxpool.Pool) backends {
	if db != nil {
		return backends{
			users:   identity.NewPostgresRepository(db),
			wallets: wallet.NewPostgresRepository(db),
			entries: ledger.NewPostgresLedger(db),
			store:   transfer.NewPostgresStore(db),
		}
	}
	store := transfer.NewMemoryStore(wallet.NewMemoryRepository(), ledger.NewInMemory())
	return backends{
		users:   identity.NewMemoryRepository(),
		wallets: store.Wallets(),
		entries: store.Entries(),
		store:   store,
	}
}

func newNotifier(d Deps) notification.Notifier {
	logged := notification.NewLoggerNotifier(d.Logger)
	if d.Cache == nil {
		return logged
	}
	return notification.Fanout{logged, notification.NewRedisNotifier(d.Cache, d.Cfg.NotificationChannel)}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	b := newBackends(d.DB)
	validate := httpx.NewValidator()
	secret := []byte(d.Cfg.JWTSecret)

	walletSvc := wallet.NewService(b.wallets, d.Cfg.DefaultCurrency, d.Logger)
	identitySvc := identity.NewService(b.users, walletSvc, d.Logger)
	authSvc := auth.NewService(secret, d.Cfg.AccessTokenTTL, identitySvc, walletSvc, d.Logger)
	engine := transfer.NewEngine(b.wallets, b.store, transfer.NewGuard(), newNotifier(d), d.Logger)
	querySvc := query.NewService(b.wallets, b.entries)

	if d.Cfg.AdminPhone != "" && d.Cfg.AdminPassword != "" {
		reg := identity.Registration{Phone: d.Cfg.AdminPhone, Password: d.Cfg.AdminPassword}
		if _, err := identitySvc.EnsureAdmin(context.Background(), reg); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	identityHandler := identity.NewHandler(identitySvc, validate, middleware.ActorID)
	authHandler := auth.NewHandler(authSvc, validate)
	transferHandler := transfer.NewHandler(engine, validate)
	queryHandler := query.NewHandler(querySvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	api.Post("/users", identityHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(secret))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	protected.Get("/users/me", identityHandler.Me)

	transfers := protected.Group("/transactions")
	limit := middleware.TransferRateLimit(d.Cache, d.Cfg.TransferRateLimit, d.Logger)
	transfers.Post("/transfer", limit, transferHandler.Transfer)
	transfers.Post("/evc-to-bank", limit, transferHandler.EVCToBank)
	transfers.Post("/bank-to-evc", limit, transferHandler.BankToEVC)
	transfers.Get("/balance/:userId", queryHandler.Balance)
	transfers.Get("/history/:userId?", queryHandler.History)

	admin := protected.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.Post("/wallets/:userId/adjustments", transferHandler.Adjust)

	return nil
}
