package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view"
)

// Room for the multipart envelope around the file itself.
const multipartOverhead = 64 << 10

type CityLister interface {
	ListCities(ctx context.Context) ([]types.City, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
	cities  CityLister
	view    *view.Renderer
}

func NewProfileHandler(service Service, cities CityLister, renderer *view.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cities:  cities,
		view:    renderer,
	}
}

type profileData struct {
	Profile *types.Profile
	Own     bool
}

func profileTitle(p *types.Profile) string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}

// MyProfile handles GET /profile.
func (h *Handler) MyProfile(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	p, err := h.service.GetProfile(r.Context(), actorID)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "profile", view.Page{Title: profileTitle(p), Data: profileData{Profile: p, Own: true}})
}

// UserProfile handles GET /users/{id}.
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	p, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	actorID, _ := api.ActorID(r)
	h.view.Render(w, r, http.StatusOK, "profile", view.Page{Title: profileTitle(p), Data: profileData{Profile: p, Own: actorID == id}})
}

type editData struct {
	Profile *types.Profile
	Cities  []types.City
}

func (h *Handler) renderEdit(w http.ResponseWriter, r *http.Request, status int, errMsg string, p *types.Profile) {
	cities, err := h.cities.ListCities(r.Context())
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.view.Render(w, r, status, "profile_edit", view.Page{Title: "Edit profile", Error: errMsg, Data: editData{Profile: p, Cities: cities}})
}

// EditProfile handles GET /profile/edit.
func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	p, err := h.service.GetProfile(r.Context(), actorID)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.renderEdit(w, r, http.StatusOK, "", p)
}

// UpdateProfile handles POST /profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.view.Error(w, r, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	var params types.UpdateProfileParams
	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}
	params.DisplayName = field("display_name")
	params.Bio = field("bio")
	params.CurrentCitySlug = field("current_city")

	if _, err := h.service.UpdateProfile(r.Context(), actorID, params); err != nil {
		if api.StatusFromError(err) != http.StatusBadRequest {
			h.view.Fail(w, r, err)
			return
		}
		// Re-render with what the user typed.
		p := &types.Profile{DisplayName: params.DisplayName, Bio: params.Bio, CurrentCitySlug: params.CurrentCitySlug}
		if current, gerr := h.service.GetProfile(r.Context(), actorID); gerr == nil {
			p.AvatarURL = current.AvatarURL
		}
		h.renderEdit(w, r, http.StatusBadRequest, api.UserMessage(err), p)
		return
	}
	h.view.Redirect(w, r, "/profile", "Profile updated.")
}

func (h *Handler) redirectEdit(w http.ResponseWriter, r *http.Request, flash string) {
	h.view.Redirect(w, r, "/profile/edit", flash)
}

// UploadAvatar handles POST /profile/avatar with a multipart "avatar" file.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	if r.ContentLength > MaxAvatarSize+multipartOverhead {
		h.redirectEdit(w, r, "avatar must be at most 2 MiB")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+multipartOverhead)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.redirectEdit(w, r, "avatar must be at most 2 MiB")
			return
		}
		h.redirectEdit(w, r, "Choose an image to upload.")
		return
	}
	defer file.Close()

	if _, err := h.service.UploadAvatar(r.Context(), actorID, file); err != nil {
		if api.StatusFromError(err) == http.StatusBadRequest {
			h.redirectEdit(w, r, api.UserMessage(err))
			return
		}
		h.view.Fail(w, r, err)
		return
	}
	h.redirectEdit(w, r, "Avatar updated.")
}

// DeleteAvatar handles POST /profile/avatar/delete.
func (h *Handler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	if err := h.service.DeleteAvatar(r.Context(), actorID); err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.redirectEdit(w, r, "Avatar removed.")
}
