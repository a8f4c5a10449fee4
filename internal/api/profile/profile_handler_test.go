package profile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view/viewtest"
)

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) UploadAvatar(ctx context.Context, userID uuid.UUID, r io.Reader) (*types.Profile, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, userID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) DeleteAvatar(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type staticCities []types.City

func (s staticCities) ListCities(context.Context) ([]types.City, error) { return s, nil }

var viewer = uuid.MustParse("1c7e5b2a-8f3d-4a6b-9e01-4d2c8b7a6f53")

func setupProfileRouter(t *testing.T) (http.Handler, *MockProfileService) {
	t.Helper()
	renderer := viewtest.NewRenderer(t)
	svc := new(MockProfileService)
	h := NewProfileHandler(svc, staticCities{{Slug: "sokcho", Name: "Sokcho"}}, renderer, slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Test-Anonymous") == "" {
				p := &types.Principal{UserID: viewer.String(), Username: "sora"}
				r = r.WithContext(appMiddleware.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/profile", h.MyProfile)
	r.Get("/profile/edit", h.EditProfile)
	r.Post("/profile", h.UpdateProfile)
	r.Post("/profile/avatar", h.UploadAvatar)
	r.Post("/profile/avatar/delete", h.DeleteAvatar)
	r.Get("/users/{id}", h.UserProfile)
	return r, svc
}

func avatarRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/profile/avatar", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestProfileHandler_MyProfile(t *testing.T) {
	r, svc := setupProfileRouter(t)
	svc.On("GetProfile", mock.Anything, viewer).
		Return(&types.Profile{UserID: viewer, Username: "sora", DisplayName: strPtr("Sora Kim"), AvatarURL: "https://cdn.test/a.png"}, nil).Once()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/profile", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Sora Kim")
	assert.Contains(t, body, "https://cdn.test/a.png")
	assert.Contains(t, body, "/profile/edit")
}

func TestProfileHandler_UserProfile(t *testing.T) {
	r, svc := setupProfileRouter(t)
	other := uuid.New()
	svc.On("GetProfile", mock.Anything, other).Return(&types.Profile{UserID: other, Username: "taeyang"}, nil).Once()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+other.String(), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "taeyang")
	assert.NotContains(t, rr.Body.String(), "/profile/edit")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/nobody", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProfileHandler_UpdateProfile(t *testing.T) {
	values := url.Values{"display_name": {"Sora"}, "bio": {"Surfing in Yangyang"}, "current_city": {"sokcho"}}
	params := types.UpdateProfileParams{DisplayName: strPtr("Sora"), Bio: strPtr("Surfing in Yangyang"), CurrentCitySlug: strPtr("sokcho")}

	t.Run("Success", func(t *testing.T) {
		r, svc := setupProfileRouter(t)
		svc.On("UpdateProfile", mock.Anything, viewer, params).Return(&types.Profile{UserID: viewer}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/profile", rr.Header().Get("Location"))
		assert.Equal(t, "Profile updated.", viewtest.Flash(t, rr))
	})

	t.Run("Validation", func(t *testing.T) {
		r, svc := setupProfileRouter(t)
		svc.On("UpdateProfile", mock.Anything, viewer, params).
			Return(nil, fmt.Errorf("bio must be at most 500 characters: %w", types.ErrValidation)).Once()
		svc.On("GetProfile", mock.Anything, viewer).Return(&types.Profile{UserID: viewer}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "bio must be at most 500 characters")
		assert.Contains(t, rr.Body.String(), "Surfing in Yangyang")
	})
}

func TestProfileHandler_UploadAvatar(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, svc := setupProfileRouter(t)
		svc.On("UploadAvatar", mock.Anything, viewer, pngHeader).Return(&types.Profile{UserID: viewer}, nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, avatarRequest(t, pngHeader))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "Avatar updated.", viewtest.Flash(t, rr))
		svc.AssertExpectations(t)
	})

	t.Run("RejectedType", func(t *testing.T) {
		r, svc := setupProfileRouter(t)
		svc.On("UploadAvatar", mock.Anything, viewer, mock.Anything).
			Return(nil, fmt.Errorf("avatar must be a JPEG, PNG or WebP image: %w", types.ErrValidation)).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, avatarRequest(t, []byte("GIF89a")))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "avatar must be a JPEG, PNG or WebP image", viewtest.Flash(t, rr))
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		r, svc := setupProfileRouter(t)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, avatarRequest(t, make([]byte, MaxAvatarSize+multipartOverhead)))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "avatar must be at most 2 MiB", viewtest.Flash(t, rr))
		svc.AssertNotCalled(t, "UploadAvatar", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingFile", func(t *testing.T) {
		r, _ := setupProfileRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/profile/avatar", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "Choose an image to upload.", viewtest.Flash(t, rr))
	})
}

func TestProfileHandler_DeleteAvatar(t *testing.T) {
	r, svc := setupProfileRouter(t)
	svc.On("DeleteAvatar", mock.Anything, viewer).Return(nil).Once()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/profile/avatar/delete", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/profile/edit", rr.Header().Get("Location"))
	assert.Equal(t, "Avatar removed.", viewtest.Flash(t, rr))
}

func TestProfileHandler_Anonymous(t *testing.T) {
	r, svc := setupProfileRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("X-Test-Anonymous", "1")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}
