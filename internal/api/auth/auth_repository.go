package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	database "github.com/FACorreiaa/konomads/app/db"
	"github.com/FACorreiaa/konomads/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type AuthRepo interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error)
	CreateProviderUser(ctx context.Context, provider, providerID, username, email string) (*types.UserAuth, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*types.UserAuth, error)
	UpdatePassword(ctx context.Context, userID, newHashedPassword string) error

	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ConsumeRefreshToken revokes a live token and returns its owner.
	ConsumeRefreshToken(ctx context.Context, token string) (string, error)
	InvalidateRefreshToken(ctx context.Context, token string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error

	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ConsumePasswordReset marks a live reset token used and returns its owner.
	ConsumePasswordReset(ctx context.Context, token string) (string, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresAuthRepo(pgpool database.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id::text, username, email, COALESCE(password_hash, ''), provider, created_at`

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Provider, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error) {
	u, err := scanUser(r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		username, email, hashedPassword))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("username or email already registered: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) CreateProviderUser(ctx context.Context, provider, providerID, username, email string) (*types.UserAuth, error) {
	u, err := scanUser(r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, provider, provider_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		username, email, provider, providerID))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("provider user collides with an existing account: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert provider user: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) getUser(ctx context.Context, where string, args ...any) (*types.UserAuth, error) {
	u, err := scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return r.getUser(ctx, `lower(email) = lower($1)`, email)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	return r.getUser(ctx, `id = $1`, userID)
}

func (r *PostgresAuthRepo) GetUserByProvider(ctx context.Context, provider, providerID string) (*types.UserAuth, error) {
	return r.getUser(ctx, `provider = $1 AND provider_id = $2`, provider, providerID)
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHashedPassword, userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at)
		 VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.pgpool.QueryRow(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE token = $1 AND revoked_at IS NULL AND expires_at > now()
		 RETURNING user_id::text`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("refresh token expired or revoked: %w", types.ErrUnauthenticated)
		}
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE token = $1 AND revoked_at IS NULL`, token)
	if err != nil {
		return fmt.Errorf("invalidate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Refresh token already revoked or unknown")
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("invalidate all tokens: db update failed: %w", err)
	}
	r.logger.DebugContext(ctx, "Refresh tokens revoked",
		slog.String("userID", userID), slog.Int64("count", tag.RowsAffected()))
	return nil
}

func (r *PostgresAuthRepo) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO password_resets (user_id, token, expires_at)
		 VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("store password reset: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.pgpool.QueryRow(ctx,
		`UPDATE password_resets SET used_at = now()
		 WHERE token = $1 AND used_at IS NULL AND expires_at > now()
		 RETURNING user_id::text`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("reset link is invalid or has expired: %w", types.ErrValidation)
		}
		return "", fmt.Errorf("consume password reset: %w", err)
	}
	return userID, nil
}
