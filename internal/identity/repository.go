package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
	"github.com/evc-wallet/evc_wallet/internal/infra"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. A taken phone number is a conflict.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, name, phone, role, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, user.ID, user.Name, user.Phone, user.Role, user.PasswordHash, user.CreatedAt.UTC())
	if infra.IsUniqueViolation(err, "users_phone_key") {
		return apperr.Conflict("identity.PostgresRepository.Create", "phone number already registered")
	}
	if err != nil {
		return fmt.Errorf("identity.PostgresRepository.Create: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id::text, name, phone, role, password_hash, created_at FROM users WHERE id = $1`, id)
	return scanUser(row, "identity.PostgresRepository.FindByID")
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id::text, name, phone, role, password_hash, created_at FROM users WHERE phone = $1`, phone)
	return scanUser(row, "identity.PostgresRepository.FindByPhone")
}

func scanUser(row pgx.Row, op string) (User, error) {
	var (
		user      User
		createdAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Phone, &user.Role, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(op, "user not found")
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
