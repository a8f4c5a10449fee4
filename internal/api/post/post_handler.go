package post

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view"
)

// CityLister supplies the city picker on the new-post form.
type CityLister interface {
	ListCities(ctx context.Context) ([]types.City, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
	cities  CityLister
	view    *view.Renderer
}

func NewPostHandler(service Service, cities CityLister, renderer *view.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cities:  cities,
		view:    renderer,
	}
}

func optionalSlug(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type listData struct {
	Posts    []types.Post
	CitySlug string
}

// ListPosts handles GET /posts?city=<slug>.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	citySlug := r.URL.Query().Get("city")
	posts, err := h.service.ListPosts(r.Context(), optionalSlug(citySlug), DefaultListLimit)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "posts", view.Page{
		Title: "Community",
		Data:  listData{Posts: posts, CitySlug: citySlug},
	})
}

type formData struct {
	Cities   []types.City
	CitySlug string
	Title    string
	Body     string
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, errMsg string, data formData) {
	cities, err := h.cities.ListCities(r.Context())
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	data.Cities = cities
	h.view.Render(w, r, status, "post_new", view.Page{Title: "New post", Error: errMsg, Data: data})
}

// NewPost handles GET /posts/new.
func (h *Handler) NewPost(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "", formData{CitySlug: r.URL.Query().Get("city")})
}

// CreatePost handles POST /posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	data := formData{
		CitySlug: r.PostFormValue("city"),
		Title:    r.PostFormValue("title"),
		Body:     r.PostFormValue("body"),
	}
	p, err := h.service.CreatePost(r.Context(), actorID, types.CreatePostParams{
		CitySlug: optionalSlug(data.CitySlug),
		Title:    data.Title,
		Body:     data.Body,
	})
	if err != nil {
		if api.StatusFromError(err) == http.StatusBadRequest {
			h.renderForm(w, r, http.StatusBadRequest, api.UserMessage(err), data)
			return
		}
		h.view.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/posts/%s", p.ID), http.StatusSeeOther)
}

type detailData struct {
	Detail    types.PostDetail
	CanDelete bool
	ViewerID  string
}

// GetPost handles GET /posts/{id}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	detail, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	data := detailData{Detail: *detail}
	if actorID, err := api.ActorID(r); err == nil {
		data.ViewerID = actorID.String()
		data.CanDelete = detail.Post.AuthorID == actorID
	}
	h.view.Render(w, r, http.StatusOK, "post", view.Page{Title: detail.Post.Title, Data: data})
}

// DeletePost handles POST /posts/{id}/delete.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	if err := h.service.DeletePost(r.Context(), actorID, id); err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.view.Redirect(w, r, "/posts", "Post deleted.")
}

// AddComment handles POST /posts/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	target := fmt.Sprintf("/posts/%s", id)
	if _, err := h.service.AddComment(r.Context(), actorID, id, r.PostFormValue("body")); err != nil {
		if api.StatusFromError(err) == http.StatusBadRequest {
			h.view.Redirect(w, r, target, api.UserMessage(err))
			return
		}
		h.view.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// DeleteComment handles POST /posts/{id}/comments/{commentID}/delete.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	commentID, err := api.PathUUID(r, "commentID")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	if err := h.service.DeleteComment(r.Context(), actorID, id, commentID); err != nil {
		h.view.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/posts/%s", id), http.StatusSeeOther)
}
