package meetup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view/viewtest"
)

type MockMeetupService struct {
	mock.Mock
}

func (m *MockMeetupService) ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error) {
	args := m.Called(ctx, citySlug, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Meetup), args.Error(1)
}

func (m *MockMeetupService) GetMeetup(ctx context.Context, id uuid.UUID) (*types.MeetupDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.MeetupDetail), args.Error(1)
}

func (m *MockMeetupService) CreateMeetup(ctx context.Context, hostID uuid.UUID, params types.CreateMeetupParams) (*types.Meetup, error) {
	args := m.Called(ctx, hostID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Meetup), args.Error(1)
}

func (m *MockMeetupService) JoinMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	return m.Called(ctx, userID, meetupID).Error(0)
}

func (m *MockMeetupService) LeaveMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	return m.Called(ctx, userID, meetupID).Error(0)
}

func (m *MockMeetupService) CancelMeetup(ctx context.Context, userID, meetupID uuid.UUID) error {
	return m.Called(ctx, userID, meetupID).Error(0)
}

type staticCities []types.City

func (s staticCities) ListCities(context.Context) ([]types.City, error) { return s, nil }

var viewer = uuid.MustParse("9d3a2f40-6b1e-4f7a-8c55-3e0b9a1d7c62")

func setupMeetupRouter(t *testing.T) (http.Handler, *MockMeetupService) {
	t.Helper()
	renderer := viewtest.NewRenderer(t)
	svc := new(MockMeetupService)
	h := NewMeetupHandler(svc, staticCities{{Slug: "jeju", Name: "Jeju"}, {Slug: "gangneung", Name: "Gangneung"}}, renderer, slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Test-Anonymous") == "" {
				p := &types.Principal{UserID: viewer.String(), Username: "haneul"}
				r = r.WithContext(appMiddleware.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/meetups", h.ListMeetups)
	r.Get("/meetups/new", h.NewMeetup)
	r.Post("/meetups", h.CreateMeetup)
	r.Get("/meetups/{id}", h.GetMeetup)
	r.Post("/meetups/{id}/join", h.JoinMeetup)
	r.Post("/meetups/{id}/leave", h.LeaveMeetup)
	r.Post("/meetups/{id}/cancel", h.CancelMeetup)
	return r, svc
}

func form(target string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestMeetupHandler_ListMeetups(t *testing.T) {
	r, svc := setupMeetupRouter(t)
	slug := "gangneung"
	svc.On("ListUpcoming", mock.Anything, &slug, DefaultListLimit).
		Return([]types.Meetup{{ID: uuid.New(), Title: "Anmok coffee street crawl", CitySlug: slug, StartsAt: time.Now().Add(time.Hour)}}, nil).Once()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meetups?city=gangneung", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Anmok coffee street crawl")
}

func TestMeetupHandler_CreateMeetup(t *testing.T) {
	values := url.Values{
		"city":      {"jeju"},
		"title":     {"Hallasan day hike"},
		"location":  {"Seongpanak trailhead"},
		"starts_at": {"2026-11-07T06:30"},
		"capacity":  {"8"},
	}

	t.Run("Success", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		id := uuid.New()
		want := types.CreateMeetupParams{
			CitySlug: "jeju",
			Title:    "Hallasan day hike",
			Location: "Seongpanak trailhead",
			StartsAt: time.Date(2026, 11, 7, 6, 30, 0, 0, kst),
			Capacity: 8,
		}
		svc.On("CreateMeetup", mock.Anything, viewer, mock.MatchedBy(func(p types.CreateMeetupParams) bool {
			return p.StartsAt.Equal(want.StartsAt) && p.Title == want.Title && p.Capacity == want.Capacity && p.CitySlug == want.CitySlug
		})).Return(&types.Meetup{ID: id}, nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups", values))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/meetups/"+id.String(), rr.Header().Get("Location"))
		svc.AssertExpectations(t)
	})

	t.Run("BadCapacity", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		bad := url.Values{}
		for k, v := range values {
			bad[k] = v
		}
		bad.Set("capacity", "lots")

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups", bad))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "capacity must be a whole number")
		assert.Contains(t, rr.Body.String(), "Hallasan day hike")
		svc.AssertNotCalled(t, "CreateMeetup", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ServiceValidation", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		svc.On("CreateMeetup", mock.Anything, viewer, mock.Anything).
			Return(nil, fmt.Errorf("start time must be in the future: %w", types.ErrValidation)).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups", values))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "start time must be in the future")
	})
}

func TestMeetupHandler_GetMeetup(t *testing.T) {
	id, host := uuid.New(), uuid.New()

	tests := []struct {
		name         string
		hostID       uuid.UUID
		participants []types.Participant
		capacity     int
		want         string
		notWant      string
	}{
		{"Host", viewer, []types.Participant{{UserID: viewer, Username: "haneul"}}, 10, "Cancel meetup", "/join"},
		{"Joined", host, []types.Participant{{UserID: host}, {UserID: viewer}}, 10, "/leave", "/join"},
		{"Open", host, []types.Participant{{UserID: host, Username: "dohyun"}}, 10, "/join", "/leave"},
		{"Full", host, []types.Participant{{UserID: host}}, 1, "full", "/join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, svc := setupMeetupRouter(t)
			detail := &types.MeetupDetail{
				Meetup: types.Meetup{
					ID: id, HostID: tt.hostID, Title: "Night market tour", CitySlug: "jeju",
					StartsAt: time.Now().Add(time.Hour), Capacity: tt.capacity, ParticipantCount: len(tt.participants),
				},
				Participants: tt.participants,
			}
			svc.On("GetMeetup", mock.Anything, id).Return(detail, nil).Once()

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meetups/"+id.String(), nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
			assert.NotContains(t, rr.Body.String(), tt.notWant)
		})
	}
}

func TestMeetupHandler_Membership(t *testing.T) {
	id := uuid.New()

	t.Run("Join", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		svc.On("JoinMeetup", mock.Anything, viewer, id).Return(nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups/"+id.String()+"/join", nil))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/meetups/"+id.String(), rr.Header().Get("Location"))
		assert.Equal(t, "You're in!", viewtest.Flash(t, rr))
	})

	t.Run("FullBecomesFlash", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		svc.On("JoinMeetup", mock.Anything, viewer, id).Return(fmt.Errorf("meetup is full: %w", types.ErrConflict)).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups/"+id.String()+"/join", nil))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/meetups/"+id.String(), rr.Header().Get("Location"))
		assert.Equal(t, "meetup is full", viewtest.Flash(t, rr))
	})

	t.Run("CancelForbidden", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		svc.On("CancelMeetup", mock.Anything, viewer, id).Return(types.ErrForbidden).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups/"+id.String()+"/cancel", nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Leave", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		svc.On("LeaveMeetup", mock.Anything, viewer, id).Return(nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, form("/meetups/"+id.String()+"/leave", nil))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Anonymous", func(t *testing.T) {
		r, svc := setupMeetupRouter(t)
		req := form("/meetups/"+id.String()+"/join", nil)
		req.Header.Set("X-Test-Anonymous", "1")

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		svc.AssertNotCalled(t, "JoinMeetup", mock.Anything, mock.Anything, mock.Anything)
	})
}
