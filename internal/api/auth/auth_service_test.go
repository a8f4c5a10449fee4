package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/konomads/config"
	"github.com/FACorreiaa/konomads/internal/types"
)

// MockAuthRepo is a mock implementation of the AuthRepo interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) userResult(args mock.Arguments) (*types.UserAuth, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, username, email, hashedPassword string) (*types.UserAuth, error) {
	return m.userResult(m.Called(ctx, username, email, hashedPassword))
}

func (m *MockAuthRepo) CreateProviderUser(ctx context.Context, provider, providerID, username, email string) (*types.UserAuth, error) {
	return m.userResult(m.Called(ctx, provider, providerID, username, email))
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return m.userResult(m.Called(ctx, email))
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	return m.userResult(m.Called(ctx, userID))
}

func (m *MockAuthRepo) GetUserByProvider(ctx context.Context, provider, providerID string) (*types.UserAuth, error) {
	return m.userResult(m.Called(ctx, provider, providerID))
}

func (m *MockAuthRepo) UpdatePassword(ctx context.Context, userID, newHashedPassword string) error {
	return m.Called(ctx, userID, newHashedPassword).Error(0)
}

func (m *MockAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, expiresAt).Error(0)
}

func (m *MockAuthRepo) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAuthRepo) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, expiresAt).Error(0)
}

func (m *MockAuthRepo) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to, subject, body})
	return f.err
}

type countingRecorder struct {
	logins        map[bool]int
	registrations int
}

func (c *countingRecorder) RecordLogin(_ context.Context, success bool) { c.logins[success]++ }
func (c *countingRecorder) RecordRegistration(context.Context)          { c.registrations++ }

func testConfig() *config.Config {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:        "test-access-secret",
			Issuer:           "konomads",
			Audience:         "konomads-web",
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  7 * 24 * time.Hour,
			PasswordResetTTL: time.Hour,
		},
	}
	cfg.Server.BaseURL = "https://konomads.test/"
	return cfg
}

type serviceFixture struct {
	service  *AuthServiceImpl
	repo     *MockAuthRepo
	mailer   *fakeMailer
	recorder *countingRecorder
	now      time.Time
}

func setupAuthService() serviceFixture {
	repo := new(MockAuthRepo)
	m := &fakeMailer{}
	rec := &countingRecorder{logins: map[bool]int{}}
	svc := NewAuthService(repo, testConfig(), m, rec, slog.Default())
	now := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return now }
	return serviceFixture{service: svc, repo: repo, mailer: m, recorder: rec, now: now}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Username: "minji", Email: "minji@example.com"}
		f.repo.On("CreateUser", mock.Anything, "minji", "minji@example.com", mock.MatchedBy(func(h string) bool {
			return bcrypt.CompareHashAndPassword([]byte(h), []byte("hunter2hunter2")) == nil
		})).Return(user, nil).Once()

		got, err := f.service.Register(context.Background(), " minji ", "Minji@Example.com", "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, user, got)
		assert.Equal(t, 1, f.recorder.registrations)
		f.repo.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name, username, email, password string
		}{
			{"ShortUsername", "mj", "mj@example.com", "hunter2hunter2"},
			{"UsernameWithSpaces", "min ji", "mj@example.com", "hunter2hunter2"},
			{"BadEmail", "minji", "not-an-email", "hunter2hunter2"},
			{"ShortPassword", "minji", "mj@example.com", "short"},
			{"LongPassword", "minji", "mj@example.com", strings.Repeat("x", 73)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := setupAuthService()
				_, err := f.service.Register(context.Background(), tt.username, tt.email, tt.password)
				assert.ErrorIs(t, err, types.ErrValidation)
				f.repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("CreateUser", mock.Anything, "minji", "minji@example.com", mock.AnythingOfType("string")).
			Return(nil, types.ErrConflict).Once()

		_, err := f.service.Register(context.Background(), "minji", "minji@example.com", "hunter2hunter2")
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.Equal(t, 0, f.recorder.registrations)
	})
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Username: "minji", Email: "minji@example.com", Password: hashed(t, "hunter2hunter2")}
		f.repo.On("GetUserByEmail", mock.Anything, "minji@example.com").Return(user, nil).Once()
		f.repo.On("StoreRefreshToken", mock.Anything, "u-1", mock.AnythingOfType("string"), f.now.Add(7*24*time.Hour)).Return(nil).Once()

		access, refresh, err := f.service.Login(context.Background(), "minji@example.com", "hunter2hunter2")
		require.NoError(t, err)
		assert.NotEmpty(t, refresh)

		claims, err := NewJWTSessionVerifier(testConfig().JWT, slog.Default()).ParseAccessToken(access)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.UserID)
		assert.Equal(t, "minji", claims.Username)
		assert.Equal(t, 1, f.recorder.logins[true])
		f.repo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Email: "minji@example.com", Password: hashed(t, "hunter2hunter2")}
		f.repo.On("GetUserByEmail", mock.Anything, "minji@example.com").Return(user, nil).Once()

		_, _, err := f.service.Login(context.Background(), "minji@example.com", "wrong-password")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		assert.Equal(t, 1, f.recorder.logins[false])
		f.repo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		_, _, err := f.service.Login(context.Background(), "ghost@example.com", "whatever1")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("ProviderOnlyAccount", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-2", Email: "g@example.com", Provider: "google"}
		f.repo.On("GetUserByEmail", mock.Anything, "g@example.com").Return(user, nil).Once()

		_, _, err := f.service.Login(context.Background(), "g@example.com", "")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		f := setupAuthService()
		dbErr := errors.New("connection reset")
		f.repo.On("GetUserByEmail", mock.Anything, "minji@example.com").Return(nil, dbErr).Once()

		_, _, err := f.service.Login(context.Background(), "minji@example.com", "hunter2hunter2")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestLogout(t *testing.T) {
	f := setupAuthService()
	f.repo.On("InvalidateRefreshToken", mock.Anything, "refresh-1").Return(nil).Once()

	require.NoError(t, f.service.Logout(context.Background(), "refresh-1"))
	require.NoError(t, f.service.Logout(context.Background(), ""))
	f.repo.AssertExpectations(t)
}

func TestRefreshSession(t *testing.T) {
	t.Run("Rotates", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Username: "minji", Email: "minji@example.com"}
		f.repo.On("ConsumeRefreshToken", mock.Anything, "old-refresh").Return("u-1", nil).Once()
		f.repo.On("GetUserByID", mock.Anything, "u-1").Return(user, nil).Once()
		f.repo.On("StoreRefreshToken", mock.Anything, "u-1", mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()

		access, refresh, err := f.service.RefreshSession(context.Background(), "old-refresh")
		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEqual(t, "old-refresh", refresh)
		f.repo.AssertExpectations(t)
	})

	t.Run("Revoked", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("ConsumeRefreshToken", mock.Anything, "old-refresh").Return("", types.ErrUnauthenticated).Once()

		_, _, err := f.service.RefreshSession(context.Background(), "old-refresh")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("Empty", func(t *testing.T) {
		f := setupAuthService()
		_, _, err := f.service.RefreshSession(context.Background(), "")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	t.Run("KnownEmail", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Username: "minji", Email: "minji@example.com"}
		f.repo.On("GetUserByEmail", mock.Anything, "minji@example.com").Return(user, nil).Once()
		f.repo.On("CreatePasswordReset", mock.Anything, "u-1", mock.AnythingOfType("string"), f.now.Add(time.Hour)).Return(nil).Once()

		require.NoError(t, f.service.RequestPasswordReset(context.Background(), "minji@example.com"))
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "minji@example.com", f.mailer.sent[0].to)

		token := f.repo.Calls[1].Arguments.String(2)
		assert.Contains(t, f.mailer.sent[0].body, "https://konomads.test/reset-password?token="+token)
		f.repo.AssertExpectations(t)
	})

	t.Run("UnknownEmailIsSilent", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		require.NoError(t, f.service.RequestPasswordReset(context.Background(), "ghost@example.com"))
		assert.Empty(t, f.mailer.sent)
	})

	t.Run("MailFailure", func(t *testing.T) {
		f := setupAuthService()
		f.mailer.err = errors.New("smtp down")
		user := &types.UserAuth{ID: "u-1", Email: "minji@example.com"}
		f.repo.On("GetUserByEmail", mock.Anything, "minji@example.com").Return(user, nil).Once()
		f.repo.On("CreatePasswordReset", mock.Anything, "u-1", mock.Anything, mock.Anything).Return(nil).Once()

		assert.Error(t, f.service.RequestPasswordReset(context.Background(), "minji@example.com"))
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("ConsumePasswordReset", mock.Anything, "reset-1").Return("u-1", nil).Once()
		f.repo.On("UpdatePassword", mock.Anything, "u-1", mock.AnythingOfType("string")).Return(nil).Once()
		f.repo.On("InvalidateAllUserRefreshTokens", mock.Anything, "u-1").Return(nil).Once()

		require.NoError(t, f.service.ResetPassword(context.Background(), "reset-1", "a-new-password"))
		f.repo.AssertExpectations(t)
	})

	t.Run("WeakPasswordKeepsToken", func(t *testing.T) {
		f := setupAuthService()
		err := f.service.ResetPassword(context.Background(), "reset-1", "short")
		assert.ErrorIs(t, err, types.ErrValidation)
		f.repo.AssertNotCalled(t, "ConsumePasswordReset", mock.Anything, mock.Anything)
	})

	t.Run("UsedToken", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("ConsumePasswordReset", mock.Anything, "reset-1").Return("", types.ErrValidation).Once()

		err := f.service.ResetPassword(context.Background(), "reset-1", "a-new-password")
		assert.ErrorIs(t, err, types.ErrValidation)
		f.repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUpdatePassword(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Password: hashed(t, "old-password")}
		f.repo.On("GetUserByID", mock.Anything, "u-1").Return(user, nil).Once()
		f.repo.On("UpdatePassword", mock.Anything, "u-1", mock.AnythingOfType("string")).Return(nil).Once()
		f.repo.On("InvalidateAllUserRefreshTokens", mock.Anything, "u-1").Return(nil).Once()

		require.NoError(t, f.service.UpdatePassword(context.Background(), "u-1", "old-password", "new-password"))
		f.repo.AssertExpectations(t)
	})

	t.Run("WrongCurrentPassword", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-1", Password: hashed(t, "old-password")}
		f.repo.On("GetUserByID", mock.Anything, "u-1").Return(user, nil).Once()

		err := f.service.UpdatePassword(context.Background(), "u-1", "guess", "new-password")
		assert.ErrorIs(t, err, types.ErrValidation)
		f.repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ProviderAccountSetsFirstPassword", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByID", mock.Anything, "u-2").Return(&types.UserAuth{ID: "u-2", Provider: "google"}, nil).Once()
		f.repo.On("UpdatePassword", mock.Anything, "u-2", mock.AnythingOfType("string")).Return(nil).Once()
		f.repo.On("InvalidateAllUserRefreshTokens", mock.Anything, "u-2").Return(nil).Once()

		require.NoError(t, f.service.UpdatePassword(context.Background(), "u-2", "", "new-password"))
	})
}

func TestGetOrCreateUserFromProvider(t *testing.T) {
	gu := goth.User{UserID: "g-123", Email: "jisoo@example.com", NickName: "jisoo.k", Name: "Jisoo Kim"}

	t.Run("ExistingLink", func(t *testing.T) {
		f := setupAuthService()
		user := &types.UserAuth{ID: "u-3", Provider: "google"}
		f.repo.On("GetUserByProvider", mock.Anything, "google", "g-123").Return(user, nil).Once()

		got, err := f.service.GetOrCreateUserFromProvider(context.Background(), "google", gu)
		require.NoError(t, err)
		assert.Equal(t, "u-3", got.ID)
		assert.Equal(t, 0, f.recorder.registrations)
	})

	t.Run("EmailTakenByPasswordAccount", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByProvider", mock.Anything, "google", "g-123").Return(nil, types.ErrNotFound).Once()
		f.repo.On("GetUserByEmail", mock.Anything, "jisoo@example.com").Return(&types.UserAuth{ID: "u-1"}, nil).Once()

		_, err := f.service.GetOrCreateUserFromProvider(context.Background(), "google", gu)
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("CreatesWithUsernameRetry", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByProvider", mock.Anything, "google", "g-123").Return(nil, types.ErrNotFound).Once()
		f.repo.On("GetUserByEmail", mock.Anything, "jisoo@example.com").Return(nil, types.ErrNotFound).Once()
		f.repo.On("CreateProviderUser", mock.Anything, "google", "g-123", "jisook", "jisoo@example.com").
			Return(nil, types.ErrConflict).Once()
		f.repo.On("CreateProviderUser", mock.Anything, "google", "g-123", mock.MatchedBy(func(name string) bool {
			return strings.HasPrefix(name, "jisook-") && len(name) == len("jisook-")+6
		}), "jisoo@example.com").Return(&types.UserAuth{ID: "u-4", Username: "jisook-abc123"}, nil).Once()

		got, err := f.service.GetOrCreateUserFromProvider(context.Background(), "google", gu)
		require.NoError(t, err)
		assert.Equal(t, "u-4", got.ID)
		assert.Equal(t, 1, f.recorder.registrations)
		f.repo.AssertExpectations(t)
	})

	t.Run("MissingEmail", func(t *testing.T) {
		f := setupAuthService()
		f.repo.On("GetUserByProvider", mock.Anything, "google", "g-9").Return(nil, types.ErrNotFound).Once()

		_, err := f.service.GetOrCreateUserFromProvider(context.Background(), "google", goth.User{UserID: "g-9"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestProviderUsername(t *testing.T) {
	assert.Equal(t, "jisook", providerUsername(goth.User{NickName: "jisoo.k"}))
	assert.Equal(t, "JisooKim", providerUsername(goth.User{Name: "Jisoo Kim"}))
	assert.Equal(t, "traveller", providerUsername(goth.User{NickName: "x", Email: "traveller@example.com"}))
	assert.Equal(t, "nomad", providerUsername(goth.User{}))
}
