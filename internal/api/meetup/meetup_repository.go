package meetup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	database "github.com/FACorreiaa/konomads/app/db"
	"github.com/FACorreiaa/konomads/internal/types"
)

var _ MeetupRepository = (*PostgresMeetupRepository)(nil)

type MeetupRepository interface {
	ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error)
	GetMeetup(ctx context.Context, id uuid.UUID) (*types.Meetup, error)
	ListParticipants(ctx context.Context, meetupID uuid.UUID) ([]types.Participant, error)
	IsParticipant(ctx context.Context, meetupID, userID uuid.UUID) (bool, error)
	// CreateMeetup inserts the meetup and seats its host in one transaction.
	CreateMeetup(ctx context.Context, hostID uuid.UUID, params types.CreateMeetupParams) (*types.Meetup, error)
	// AddParticipant seats userID unless the meetup is full. Joining twice is a no-op.
	AddParticipant(ctx context.Context, meetupID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, meetupID, userID uuid.UUID) error
	CancelMeetup(ctx context.Context, id uuid.UUID) error
}

type PostgresMeetupRepository struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewMeetupRepository(pgpool database.Pool, logger *slog.Logger) *PostgresMeetupRepository {
	return &PostgresMeetupRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

const meetupSelect = `
	SELECT m.id, m.host_id, COALESCE(NULLIF(pr.display_name, ''), u.username),
	       m.city_slug, m.title, m.description, m.location, m.starts_at, m.capacity,
	       (SELECT count(*) FROM meetup_participants mp WHERE mp.meetup_id = m.id)::int,
	       m.cancelled_at, m.created_at
	FROM meetups m
	JOIN users u ON u.id = m.host_id
	LEFT JOIN profiles pr ON pr.user_id = m.host_id`

func scanMeetup(row pgx.Row) (*types.Meetup, error) {
	var m types.Meetup
	err := row.Scan(&m.ID, &m.HostID, &m.HostName, &m.CitySlug, &m.Title, &m.Description,
		&m.Location, &m.StartsAt, &m.Capacity, &m.ParticipantCount, &m.CancelledAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListUpcoming returns meetups that have not started and were not cancelled,
// soonest first.
func (r *PostgresMeetupRepository) ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error) {
	rows, err := r.pgpool.Query(ctx, meetupSelect+`
		WHERE m.cancelled_at IS NULL
		  AND m.starts_at > now()
		  AND ($1::text IS NULL OR m.city_slug = $1)
		ORDER BY m.starts_at
		LIMIT $2`, citySlug, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetups: %w", err)
	}
	defer rows.Close()

	meetups := make([]types.Meetup, 0)
	for rows.Next() {
		m, err := scanMeetup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating meetups: %w", err)
	}
	return meetups, nil
}

func (r *PostgresMeetupRepository) GetMeetup(ctx context.Context, id uuid.UUID) (*types.Meetup, error) {
	m, err := scanMeetup(r.pgpool.QueryRow(ctx, meetupSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meetup %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find meetup: %w", err)
	}
	return m, nil
}

func (r *PostgresMeetupRepository) ListParticipants(ctx context.Context, meetupID uuid.UUID) ([]types.Participant, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT mp.user_id, COALESCE(NULLIF(pr.display_name, ''), u.username), mp.joined_at
		FROM meetup_participants mp
		JOIN users u ON u.id = mp.user_id
		LEFT JOIN profiles pr ON pr.user_id = mp.user_id
		WHERE mp.meetup_id = $1
		ORDER BY mp.joined_at`, meetupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]types.Participant, 0)
	for rows.Next() {
		var p types.Participant
		if err := rows.Scan(&p.UserID, &p.Username, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating participants: %w", err)
	}
	return participants, nil
}

func (r *PostgresMeetupRepository) IsParticipant(ctx context.Context, meetupID, userID uuid.UUID) (bool, error) {
	var joined bool
	err := r.pgpool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM meetup_participants WHERE meetup_id = $1 AND user_id = $2)`,
		meetupID, userID).Scan(&joined)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return joined, nil
}

func (r *PostgresMeetupRepository) CreateMeetup(ctx context.Context, hostID uuid.UUID, params types.CreateMeetupParams) (*types.Meetup, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO meetups (host_id, city_slug, title, description, location, starts_at, capacity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		hostID, params.CitySlug, params.Title, params.Description, params.Location, params.StartsAt, params.Capacity,
	).Scan(&id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("unknown city: %w", types.ErrValidation)
		}
		return nil, fmt.Errorf("failed to insert meetup: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO meetup_participants (meetup_id, user_id) VALUES ($1, $2)`, id, hostID); err != nil {
		return nil, fmt.Errorf("failed to seat host: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit meetup: %w", err)
	}

	r.logger.InfoContext(ctx, "Meetup created", slog.String("meetupID", id.String()))
	return r.GetMeetup(ctx, id)
}

func (r *PostgresMeetupRepository) AddParticipant(ctx context.Context, meetupID, userID uuid.UUID) error {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock serialises concurrent joins so capacity holds.
	var capacity int
	err = tx.QueryRow(ctx, `SELECT capacity FROM meetups WHERE id = $1 FOR UPDATE`, meetupID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("meetup %s: %w", meetupID, types.ErrNotFound)
		}
		return fmt.Errorf("failed to lock meetup: %w", err)
	}

	var count int
	var joined bool
	err = tx.QueryRow(ctx,
		`SELECT count(*)::int, COALESCE(bool_or(user_id = $2), false)
		 FROM meetup_participants WHERE meetup_id = $1`, meetupID, userID).Scan(&count, &joined)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if joined {
		return nil
	}
	if capacity > 0 && count >= capacity {
		return fmt.Errorf("meetup is full: %w", types.ErrConflict)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO meetup_participants (meetup_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, meetupID, userID); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit participant: %w", err)
	}
	return nil
}

func (r *PostgresMeetupRepository) RemoveParticipant(ctx context.Context, meetupID, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`DELETE FROM meetup_participants WHERE meetup_id = $1 AND user_id = $2`, meetupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (r *PostgresMeetupRepository) CancelMeetup(ctx context.Context, id uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE meetups SET cancelled_at = now() WHERE id = $1 AND cancelled_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel meetup: %w", err)
	}
	return nil
}
