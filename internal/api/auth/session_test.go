package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/konomads/config"
	"github.com/FACorreiaa/konomads/internal/types"
)

func signToken(t *testing.T, cfg config.JWTConfig, method jwt.SigningMethod, mutate func(*types.Claims)) string {
	t.Helper()
	now := time.Now()
	claims := types.Claims{
		UserID:   "u-1",
		Username: "minji",
		Email:    "minji@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
		},
	}
	if mutate != nil {
		mutate(&claims)
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(cfg.SecretKey))
	require.NoError(t, err)
	return s
}

func requestWithAccess(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/posts", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	}
	return r
}

func TestJWTSessionVerifier(t *testing.T) {
	cfg := testConfig().JWT
	verifier := NewJWTSessionVerifier(cfg, slog.Default())

	t.Run("ValidCookie", func(t *testing.T) {
		p, err := verifier.Verify(context.Background(), requestWithAccess(signToken(t, cfg, jwt.SigningMethodHS256, nil)))
		require.NoError(t, err)
		assert.Equal(t, &types.Principal{UserID: "u-1", Username: "minji", Email: "minji@example.com"}, p)
	})

	rejected := []struct {
		name  string
		token string
	}{
		{"NoCookie", ""},
		{"Garbage", "not-a-jwt"},
		{"Expired", signToken(t, cfg, jwt.SigningMethodHS256, func(c *types.Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})},
		{"MissingExpiry", signToken(t, cfg, jwt.SigningMethodHS256, func(c *types.Claims) { c.ExpiresAt = nil })},
		{"WrongIssuer", signToken(t, cfg, jwt.SigningMethodHS256, func(c *types.Claims) { c.Issuer = "someone-else" })},
		{"WrongAudience", signToken(t, cfg, jwt.SigningMethodHS256, func(c *types.Claims) {
			c.Audience = jwt.ClaimStrings{"mobile"}
		})},
		{"WrongAlgorithm", signToken(t, cfg, jwt.SigningMethodHS512, nil)},
		{"WrongSecret", signToken(t, config.JWTConfig{SecretKey: "other", Issuer: cfg.Issuer, Audience: cfg.Audience}, jwt.SigningMethodHS256, nil)},
		{"NoUserID", signToken(t, cfg, jwt.SigningMethodHS256, func(c *types.Claims) { c.UserID = "" })},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			p, err := verifier.Verify(context.Background(), requestWithAccess(tt.token))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, types.ErrUnauthenticated)
		})
	}
}

func TestCookieSettings(t *testing.T) {
	c := CookieSettings{Secure: true, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}

	rr := httptest.NewRecorder()
	c.set(rr, "access", "refresh")
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, RefreshTokenCookie, cookies[1].Name)
	assert.Equal(t, 86400, cookies[1].MaxAge)

	rr = httptest.NewRecorder()
	c.clear(rr)
	for _, cookie := range rr.Result().Cookies() {
		assert.Empty(t, cookie.Value)
		assert.Negative(t, cookie.MaxAge)
	}
}
