package post

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

var _ PostRepository = (*PostgresPostRepository)(nil)

type PostRepository interface {
	ListPosts(ctx context.Context, citySlug *string, limit int) ([]types.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*types.Post, error)
	CreatePost(ctx context.Context, authorID uuid.UUID, params types.CreatePostParams) (*types.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error

	ListComments(ctx context.Context, postID uuid.UUID) ([]types.Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*types.Comment, error)
	AddComment(ctx context.Context, postID, authorID uuid.UUID, body string) (*types.Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
}

type PostgresPostRepository struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostRepository(pgpool database.Pool, logger *slog.Logger) *PostgresPostRepository {
	return &PostgresPostRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

const postSelect = `
	SELECT p.id, p.author_id, COALESCE(NULLIF(pr.display_name, ''), u.username),
	       p.city_slug, p.title, p.body,
	       (SELECT count(*) FROM comments c WHERE c.post_id = p.id)::int,
	       p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN profiles pr ON pr.user_id = p.author_id`

func scanPost(row pgx.Row) (*types.Post, error) {
	var p types.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.CitySlug, &p.Title, &p.Body,
		&p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns the newest posts, optionally limited to one city.
func (r *PostgresPostRepository) ListPosts(ctx context.Context, citySlug *string, limit int) ([]types.Post, error) {
	rows, err := r.pgpool.Query(ctx, postSelect+`
		WHERE ($1::text IS NULL OR p.city_slug = $1)
		ORDER BY p.created_at DESC
		LIMIT $2`, citySlug, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating posts: %w", err)
	}
	return posts, nil
}

func (r *PostgresPostRepository) GetPost(ctx context.Context, id uuid.UUID) (*types.Post, error) {
	p, err := scanPost(r.pgpool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return p, nil
}

func (r *PostgresPostRepository) CreatePost(ctx context.Context, authorID uuid.UUID, params types.CreatePostParams) (*types.Post, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO posts (author_id, city_slug, title, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		authorID, params.CitySlug, params.Title, params.Body).Scan(&id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("unknown city: %w", types.ErrValidation)
		}
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	r.logger.InfoContext(ctx, "Post created", slog.String("postID", id.String()))
	return r.GetPost(ctx, id)
}

func (r *PostgresPostRepository) DeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", id, types.ErrNotFound)
	}
	return nil
}

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, COALESCE(NULLIF(pr.display_name, ''), u.username),
	       c.body, c.created_at
	FROM comments c
	JOIN users u ON u.id = c.author_id
	LEFT JOIN profiles pr ON pr.user_id = c.author_id`

func scanComment(row pgx.Row) (*types.Comment, error) {
	var c types.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresPostRepository) ListComments(ctx context.Context, postID uuid.UUID) ([]types.Comment, error) {
	rows, err := r.pgpool.Query(ctx, commentSelect+`
		WHERE c.post_id = $1
		ORDER BY c.created_at`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating comments: %w", err)
	}
	return comments, nil
}

func (r *PostgresPostRepository) GetComment(ctx context.Context, id uuid.UUID) (*types.Comment, error) {
	c, err := scanComment(r.pgpool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return c, nil
}

func (r *PostgresPostRepository) AddComment(ctx context.Context, postID, authorID uuid.UUID, body string) (*types.Comment, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO comments (post_id, author_id, body)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		postID, authorID, body).Scan(&id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("post %s: %w", postID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return r.GetComment(ctx, id)
}

func (r *PostgresPostRepository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
	}
	return nil
}
