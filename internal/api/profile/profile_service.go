package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/konomads/app/storage"
	"github.com/FACorreiaa/konomads/internal/types"
)

// MaxAvatarSize is the largest avatar upload accepted, in bytes.
const MaxAvatarSize = 2 << 20

const (
	maxDisplayNameLength = 60
	maxBioLength         = 500
)

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error)
	UploadAvatar(ctx context.Context, userID uuid.UUID, r io.Reader) (*types.Profile, error)
	DeleteAvatar(ctx context.Context, userID uuid.UUID) error
}

type CityChecker interface {
	GetCity(ctx context.Context, slug string) (*types.City, error)
}

type UploadRecorder interface {
	RecordAvatarUpload(ctx context.Context, success bool)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     ProfileRepository
	cities   CityChecker
	store    storage.ObjectStore
	recorder UploadRecorder
}

func NewProfileService(repo ProfileRepository, cities CityChecker, store storage.ObjectStore, recorder UploadRecorder, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		cities:   cities,
		store:    store,
		recorder: recorder,
	}
}

func (s *ServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "GetProfile")
	defer span.End()

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if p.AvatarKey != nil {
		p.AvatarURL = s.store.URL(*p.AvatarKey)
	}
	return p, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func (s *ServiceImpl) validate(ctx context.Context, params *types.UpdateProfileParams) error {
	params.DisplayName = trimmed(params.DisplayName)
	params.Bio = trimmed(params.Bio)
	params.CurrentCitySlug = trimmed(params.CurrentCitySlug)

	if params.DisplayName != nil && utf8.RuneCountInString(*params.DisplayName) > maxDisplayNameLength {
		return fmt.Errorf("display name must be at most %d characters: %w", maxDisplayNameLength, types.ErrValidation)
	}
	if params.Bio != nil && utf8.RuneCountInString(*params.Bio) > maxBioLength {
		return fmt.Errorf("bio must be at most %d characters: %w", maxBioLength, types.ErrValidation)
	}
	if slug := params.CurrentCitySlug; slug != nil && *slug != "" {
		if _, err := s.cities.GetCity(ctx, *slug); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("unknown city %q: %w", *slug, types.ErrValidation)
			}
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "UpdateProfile")
	defer span.End()
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	if err := s.validate(ctx, &params); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, userID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update profile")
		return nil, err
	}
	l.InfoContext(ctx, "Profile updated")
	return s.GetProfile(ctx, userID)
}

// UploadAvatar sniffs the image type from its content, stores it under a new
// key and only then drops the previous object.
func (s *ServiceImpl) UploadAvatar(ctx context.Context, userID uuid.UUID, r io.Reader) (p *types.Profile, err error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "UploadAvatar")
	defer span.End()
	l := s.logger.With(slog.String("method", "UploadAvatar"), slog.String("userID", userID.String()))
	defer func() {
		if s.recorder != nil {
			s.recorder.RecordAvatarUpload(ctx, err == nil)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("avatar file is empty: %w", types.ErrValidation)
	case len(data) > MaxAvatarSize:
		return nil, fmt.Errorf("avatar must be at most 2 MiB: %w", types.ErrValidation)
	}

	contentType := http.DetectContentType(data)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("avatar must be a JPEG, PNG or WebP image: %w", types.ErrValidation)
	}
	span.SetAttributes(attribute.String("avatar.content_type", contentType), attribute.Int("avatar.size", len(data)))

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), ext)
	if err = s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		l.ErrorContext(ctx, "Failed to store avatar", slog.Any("error", err))
		span.RecordError(err)
		return nil, err
	}

	previous, err := s.repo.SetAvatarKey(ctx, userID, &key)
	if err != nil {
		l.ErrorContext(ctx, "Failed to save avatar key", slog.Any("error", err))
		span.RecordError(err)
		s.deleteObject(ctx, key)
		return nil, err
	}
	if previous != nil && *previous != key {
		s.deleteObject(ctx, *previous)
	}

	l.InfoContext(ctx, "Avatar uploaded", slog.String("key", key))
	return s.GetProfile(ctx, userID)
}

func (s *ServiceImpl) DeleteAvatar(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "DeleteAvatar")
	defer span.End()

	previous, err := s.repo.SetAvatarKey(ctx, userID, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if previous != nil {
		s.deleteObject(ctx, *previous)
	}
	return nil
}

// deleteObject removes an orphaned upload. Failures only leave garbage in the
// bucket, so they are logged and not returned.
func (s *ServiceImpl) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete avatar object", slog.String("key", key), slog.Any("error", err))
	}
}
