package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/konomads/app/db"
	"github.com/FACorreiaa/konomads/internal/types"
)

var _ ProfileRepository = (*PostgresProfileRepository)(nil)

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) error
	// SetAvatarKey stores key (nil clears it) and returns the key it replaced.
	SetAvatarKey(ctx context.Context, userID uuid.UUID, key *string) (*string, error)
}

type PostgresProfileRepository struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewProfileRepository(pgpool database.Pool, logger *slog.Logger) *PostgresProfileRepository {
	return &PostgresProfileRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

// GetProfile reads the user together with the optional profile row. Users that
// never edited their profile get empty profile fields.
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	var p types.Profile
	err := r.pgpool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, pr.display_name, pr.bio, pr.current_city_slug,
		       pr.avatar_key, COALESCE(pr.updated_at, u.created_at)
		FROM users u
		LEFT JOIN profiles pr ON pr.user_id = u.id
		WHERE u.id = $1`, userID,
	).Scan(&p.UserID, &p.Username, &p.Email, &p.DisplayName, &p.Bio, &p.CurrentCitySlug, &p.AvatarKey, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile upserts only the fields present in params. Empty strings clear
// the stored value.
func (r *PostgresProfileRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) error {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "UpdateProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "profiles"),
	))
	defer span.End()

	columns := []string{"user_id"}
	placeholders := []string{"$1"}
	updates := []string{"updated_at = now()"}
	args := []any{userID}

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		columns = append(columns, column)
		placeholders = append(placeholders, fmt.Sprintf("NULLIF($%d, '')", len(args)))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
		span.SetAttributes(attribute.Bool("update."+column, true))
	}
	add("display_name", params.DisplayName)
	add("bio", params.Bio)
	add("current_city_slug", params.CurrentCitySlug)

	if len(args) == 1 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO profiles (%s) VALUES (%s)
		ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	if _, err := r.pgpool.Exec(ctx, query, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepository) SetAvatarKey(ctx context.Context, userID uuid.UUID, key *string) (*string, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous *string
	err = tx.QueryRow(ctx, `SELECT avatar_key FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read avatar key: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO profiles (user_id, avatar_key) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET avatar_key = EXCLUDED.avatar_key, updated_at = now()`,
		userID, key); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to store avatar key: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit avatar key: %w", err)
	}
	return previous, nil
}
