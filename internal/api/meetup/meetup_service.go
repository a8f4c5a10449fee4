package meetup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/konomads/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

const (
	maxTitleLength       = 120
	maxLocationLength    = 200
	maxDescriptionLength = 2000
	maxCapacity          = 500

	DefaultListLimit = 50
)

type Service interface {
	ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error)
	GetMeetup(ctx context.Context, id uuid.UUID) (*types.MeetupDetail, error)
	CreateMeetup(ctx context.Context, hostID uuid.UUID, params types.CreateMeetupParams) (*types.Meetup, error)
	JoinMeetup(ctx context.Context, userID, meetupID uuid.UUID) error
	LeaveMeetup(ctx context.Context, userID, meetupID uuid.UUID) error
	CancelMeetup(ctx context.Context, userID, meetupID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   MeetupRepository
	now    func() time.Time
}

func NewMeetupService(repo MeetupRepository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func (s *ServiceImpl) ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if citySlug != nil && *citySlug == "" {
		citySlug = nil
	}
	return s.repo.ListUpcoming(ctx, citySlug, limit)
}

func (s *ServiceImpl) GetMeetup(ctx context.Context, id uuid.UUID) (*types.MeetupDetail, error) {
	ctx, span := otel.Tracer("MeetupService").Start(ctx, "GetMeetup", trace.WithAttributes(
		attribute.String("meetup.id", id.String()),
	))
	defer span.End()

	var detail types.MeetupDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.repo.GetMeetup(gctx, id)
		if err != nil {
			return err
		}
		detail.Meetup = *m
		return nil
	})
	g.Go(func() error {
		participants, err := s.repo.ListParticipants(gctx, id)
		if err != nil {
			return err
		}
		detail.Participants = participants
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &detail, nil
}

func (s *ServiceImpl) validate(params *types.CreateMeetupParams) error {
	params.Title = strings.TrimSpace(params.Title)
	params.Location = strings.TrimSpace(params.Location)
	params.Description = strings.TrimSpace(params.Description)
	params.CitySlug = strings.TrimSpace(params.CitySlug)

	switch n := utf8.RuneCountInString(params.Title); {
	case n == 0:
		return fmt.Errorf("title is required: %w", types.ErrValidation)
	case n > maxTitleLength:
		return fmt.Errorf("title must be at most %d characters: %w", maxTitleLength, types.ErrValidation)
	}
	switch n := utf8.RuneCountInString(params.Location); {
	case n == 0:
		return fmt.Errorf("location is required: %w", types.ErrValidation)
	case n > maxLocationLength:
		return fmt.Errorf("location must be at most %d characters: %w", maxLocationLength, types.ErrValidation)
	}
	if utf8.RuneCountInString(params.Description) > maxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters: %w", maxDescriptionLength, types.ErrValidation)
	}
	if params.CitySlug == "" {
		return fmt.Errorf("city is required: %w", types.ErrValidation)
	}
	if !params.StartsAt.After(s.now()) {
		return fmt.Errorf("start time must be in the future: %w", types.ErrValidation)
	}
	if params.Capacity < 0 || params.Capacity > maxCapacity {
		return fmt.Errorf("capacity must be between 0 and %d: %w", maxCapacity, types.ErrValidation)
	}
	return nil
}

// CreateMeetup stores a meetup with its host as the first participant.
func (s *ServiceImpl) CreateMeetup(ctx context.Context, hostID uuid.UUID, params types.CreateMeetupParams) (*types.Meetup, error) {
	ctx, span := otel.Tracer("MeetupService").Start(ctx, "CreateMeetup")
	defer span.End()
	l := s.logger.With(slog.String("method", "CreateMeetup"))

	if err := s.validate(&params); err != nil {
		return nil, err
	}
	m, err := s.repo.CreateMeetup(ctx, hostID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create meetup", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create meetup")
		return nil, err
	}
	return m, nil
}

// JoinMeetup is idempotent: joining a meetup twice succeeds. New participants
// are refused once the meetup is full, cancelled or has started.
func (s *ServiceImpl) JoinMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	ctx, span := otel.Tracer("MeetupService").Start(ctx, "JoinMeetup")
	defer span.End()

	joined, err := s.repo.IsParticipant(ctx, meetupID, userID)
	if err != nil {
		return err
	}
	if joined {
		return nil
	}

	m, err := s.repo.GetMeetup(ctx, meetupID)
	if err != nil {
		return err
	}
	switch {
	case m.CancelledAt != nil:
		return fmt.Errorf("meetup was cancelled: %w", types.ErrConflict)
	case !m.StartsAt.After(s.now()):
		return fmt.Errorf("meetup has already started: %w", types.ErrConflict)
	case m.Full():
		return fmt.Errorf("meetup is full: %w", types.ErrConflict)
	}
	return s.repo.AddParticipant(ctx, meetupID, userID)
}

// LeaveMeetup removes userID from the meetup. The host cannot leave their own
// meetup; they cancel it instead.
func (s *ServiceImpl) LeaveMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	m, err := s.repo.GetMeetup(ctx, meetupID)
	if err != nil {
		return err
	}
	if m.HostID == userID {
		return fmt.Errorf("hosts cannot leave their own meetup, cancel it instead: %w", types.ErrConflict)
	}
	return s.repo.RemoveParticipant(ctx, meetupID, userID)
}

func (s *ServiceImpl) CancelMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	m, err := s.repo.GetMeetup(ctx, meetupID)
	if err != nil {
		return err
	}
	if m.HostID != userID {
		return fmt.Errorf("only the host can cancel this meetup: %w", types.ErrForbidden)
	}
	if m.CancelledAt != nil {
		return nil
	}
	s.logger.InfoContext(ctx, "Meetup cancelled", slog.String("meetupID", meetupID.String()))
	return s.repo.CancelMeetup(ctx, meetupID)
}
