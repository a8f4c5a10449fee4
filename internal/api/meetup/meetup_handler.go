package meetup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view"
)

// Meetup times are entered as Korean local time.
var kst = time.FixedZone("KST", 9*60*60)

const datetimeLocalLayout = "2006-01-02T15:04"

type CityLister interface {
	ListCities(ctx context.Context) ([]types.City, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
	cities  CityLister
	view    *view.Renderer
}

func NewMeetupHandler(service Service, cities CityLister, renderer *view.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cities:  cities,
		view:    renderer,
	}
}

type listData struct {
	Meetups  []types.Meetup
	CitySlug string
}

// ListMeetups handles GET /meetups?city=<slug>.
func (h *Handler) ListMeetups(w http.ResponseWriter, r *http.Request) {
	citySlug := r.URL.Query().Get("city")
	var slug *string
	if citySlug != "" {
		slug = &citySlug
	}
	meetups, err := h.service.ListUpcoming(r.Context(), slug, DefaultListLimit)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "meetups", view.Page{
		Title: "Meetups",
		Data:  listData{Meetups: meetups, CitySlug: citySlug},
	})
}

type formData struct {
	Cities      []types.City
	CitySlug    string
	Title       string
	Description string
	Location    string
	StartsAt    string
	Capacity    int
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, errMsg string, data formData) {
	cities, err := h.cities.ListCities(r.Context())
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	data.Cities = cities
	h.view.Render(w, r, status, "meetup_new", view.Page{Title: "Host a meetup", Error: errMsg, Data: data})
}

// NewMeetup handles GET /meetups/new.
func (h *Handler) NewMeetup(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "", formData{CitySlug: r.URL.Query().Get("city")})
}

func parseForm(r *http.Request) (formData, types.CreateMeetupParams, error) {
	data := formData{
		CitySlug:    r.PostFormValue("city"),
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Location:    r.PostFormValue("location"),
		StartsAt:    r.PostFormValue("starts_at"),
	}
	if c := strings.TrimSpace(r.PostFormValue("capacity")); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return data, types.CreateMeetupParams{}, fmt.Errorf("capacity must be a whole number: %w", types.ErrValidation)
		}
		data.Capacity = n
	}
	startsAt, err := time.ParseInLocation(datetimeLocalLayout, data.StartsAt, kst)
	if err != nil {
		return data, types.CreateMeetupParams{}, fmt.Errorf("start time is not valid: %w", types.ErrValidation)
	}
	return data, types.CreateMeetupParams{
		CitySlug:    data.CitySlug,
		Title:       data.Title,
		Description: data.Description,
		Location:    data.Location,
		StartsAt:    startsAt,
		Capacity:    data.Capacity,
	}, nil
}

// CreateMeetup handles POST /meetups.
func (h *Handler) CreateMeetup(w http.ResponseWriter, r *http.Request) {
	actorID, err := api.ActorID(r)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	data, params, err := parseForm(r)
	if err == nil {
		var m *types.Meetup
		if m, err = h.service.CreateMeetup(r.Context(), actorID, params); err == nil {
			http.Redirect(w, r, fmt.Sprintf("/meetups/%s", m.ID), http.StatusSeeOther)
			return
		}
	}
	if api.StatusFromError(err) == http.StatusBadRequest {
		h.renderForm(w, r, http.StatusBadRequest, api.UserMessage(err), data)
		return
	}
	h.view.Fail(w, r, err)
}

type detailData struct {
	Detail types.MeetupDetail
	IsHost bool
	Joined bool
}

// GetMeetup handles GET /meetups/{id}.
func (h *Handler) GetMeetup(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathUUID(r, "id")
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}
	detail, err := h.service.GetMeetup(r.Context(), id)
	if err != nil {
		h.view.Fail(w, r, err)
		return
	}

	data := detailData{Detail: *detail}
	if actorID, err := api.ActorID(r); err == nil {
		data.IsHost = detail.Meetup.HostID == actorID
		data.Joined = detail.Joined(actorID)
	}
	h.view.Render(w, r, http.StatusOK, "meetup", view.Page{Title: detail.Meetup.Title, Data: data})
}

// membership adapts a membership action to a POST handler that redirects back
// to the meetup page with a flash message.
func (h *Handler) membership(action func(ctx context.Context, userID, meetupID uuid.UUID) error, done string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		flash := done
		if err := action(r.Context(), actorID, id); err != nil {
			if api.StatusFromError(err) != http.StatusConflict {
				h.view.Fail(w, r, err)
				return
			}
			flash = api.UserMessage(err)
		}
		h.view.Redirect(w, r, "/meetups/"+id.String(), flash)
	}
}

// JoinMeetup handles POST /meetups/{id}/join.
func (h *Handler) JoinMeetup(w http.ResponseWriter, r *http.Request) {
	h.membership(h.service.JoinMeetup, "You're in!")(w, r)
}

// LeaveMeetup handles POST /meetups/{id}/leave.
func (h *Handler) LeaveMeetup(w http.ResponseWriter, r *http.Request) {
	h.membership(h.service.LeaveMeetup, "You left the meetup.")(w, r)
}

// CancelMeetup handles POST /meetups/{id}/cancel.
func (h *Handler) CancelMeetup(w http.ResponseWriter, r *http.Request) {
	h.membership(h.service.CancelMeetup, "Meetup cancelled.")(w, r)
}
