package types

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID           uuid.UUID `json:"id"`
	AuthorID     uuid.UUID `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	CitySlug     *string   `json:"city_slug,omitempty"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Comment struct {
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"post_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreatePostParams holds the form input for a new post.
type CreatePostParams struct {
	CitySlug *string
	Title    string
	Body     string
}

// PostDetail bundles a post with its comments for the detail page.
type PostDetail struct {
	Post     Post
	Comments []Comment
}
