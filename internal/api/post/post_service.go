package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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
	maxTitleLength   = 200
	maxBodyLength    = 10000
	maxCommentLength = 2000

	DefaultListLimit = 50
)

type Service interface {
	ListPosts(ctx context.Context, citySlug *string, limit int) ([]types.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*types.PostDetail, error)
	CreatePost(ctx context.Context, authorID uuid.UUID, params types.CreatePostParams) (*types.Post, error)
	DeletePost(ctx context.Context, actorID, postID uuid.UUID) error

	ListComments(ctx context.Context, postID uuid.UUID) ([]types.Comment, error)
	AddComment(ctx context.Context, actorID, postID uuid.UUID, body string) (*types.Comment, error)
	DeleteComment(ctx context.Context, actorID, postID, commentID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   PostRepository
}

func NewPostService(repo PostRepository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// checkLength trims s and requires 1..max characters.
func checkLength(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", fmt.Errorf("%s is required: %w", field, types.ErrValidation)
	}
	if n > max {
		return "", fmt.Errorf("%s must be at most %d characters: %w", field, max, types.ErrValidation)
	}
	return s, nil
}

func (s *ServiceImpl) ListPosts(ctx context.Context, citySlug *string, limit int) ([]types.Post, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if citySlug != nil && *citySlug == "" {
		citySlug = nil
	}
	return s.repo.ListPosts(ctx, citySlug, limit)
}

// GetPost loads the post and its comments concurrently.
func (s *ServiceImpl) GetPost(ctx context.Context, id uuid.UUID) (*types.PostDetail, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "GetPost", trace.WithAttributes(
		attribute.String("post.id", id.String()),
	))
	defer span.End()

	var detail types.PostDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.repo.GetPost(gctx, id)
		if err != nil {
			return err
		}
		detail.Post = *p
		return nil
	})
	g.Go(func() error {
		comments, err := s.repo.ListComments(gctx, id)
		if err != nil {
			return err
		}
		detail.Comments = comments
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &detail, nil
}

func (s *ServiceImpl) CreatePost(ctx context.Context, authorID uuid.UUID, params types.CreatePostParams) (*types.Post, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "CreatePost")
	defer span.End()
	l := s.logger.With(slog.String("method", "CreatePost"))

	var err error
	if params.Title, err = checkLength("title", params.Title, maxTitleLength); err != nil {
		return nil, err
	}
	if params.Body, err = checkLength("body", params.Body, maxBodyLength); err != nil {
		return nil, err
	}
	if params.CitySlug != nil && strings.TrimSpace(*params.CitySlug) == "" {
		params.CitySlug = nil
	}

	p, err := s.repo.CreatePost(ctx, authorID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create post")
		return nil, err
	}
	return p, nil
}

// DeletePost removes a post; only its author may do so.
func (s *ServiceImpl) DeletePost(ctx context.Context, actorID, postID uuid.UUID) error {
	ctx, span := otel.Tracer("PostService").Start(ctx, "DeletePost")
	defer span.End()

	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != actorID {
		return fmt.Errorf("only the author can delete this post: %w", types.ErrForbidden)
	}
	return s.repo.DeletePost(ctx, postID)
}

func (s *ServiceImpl) ListComments(ctx context.Context, postID uuid.UUID) ([]types.Comment, error) {
	return s.repo.ListComments(ctx, postID)
}

func (s *ServiceImpl) AddComment(ctx context.Context, actorID, postID uuid.UUID, body string) (*types.Comment, error) {
	body, err := checkLength("comment", body, maxCommentLength)
	if err != nil {
		return nil, err
	}
	return s.repo.AddComment(ctx, postID, actorID, body)
}

// DeleteComment removes a comment; only its author may do so.
func (s *ServiceImpl) DeleteComment(ctx context.Context, actorID, postID, commentID uuid.UUID) error {
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.PostID != postID {
		return fmt.Errorf("comment %s on post %s: %w", commentID, postID, types.ErrNotFound)
	}
	if c.AuthorID != actorID {
		return fmt.Errorf("only the author can delete this comment: %w", types.ErrForbidden)
	}
	return s.repo.DeleteComment(ctx, commentID)
}
