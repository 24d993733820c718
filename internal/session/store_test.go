package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "test-secret", time.Hour), mr
}

func TestStore_IssueValidate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "alice")
	require.NoError(t, err)

	userID, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestStore_Validate_Failures(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	valid, err := store.Issue(ctx, "alice")
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "alice",
		RegisteredClaims: jwt.RegisteredClaims{ID: "x"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential func() string
		expected   error
	}{
		{
			name:       "missing",
			credential: func() string { return "" },
			expected:   ErrNoCredential,
		},
		{
			name:       "garbage",
			credential: func() string { return "not-a-jwt" },
			expected:   ErrInvalidSession,
		},
		{
			name:       "wrong_secret",
			credential: func() string { return foreign },
			expected:   ErrInvalidSession,
		},
		{
			name: "record_gone",
			credential: func() string {
				mr.FlushAll()
				return valid
			},
			expected: ErrSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Validate(ctx, tt.credential())
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestStore_Expired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	issuedAt := time.Now().Add(-2 * time.Hour)
	store.now = func() time.Time { return issuedAt }
	token, err := store.Issue(ctx, "alice")
	require.NoError(t, err)

	store.now = time.Now
	_, err = store.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestStore_Revoke(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name:     "cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: "c1"}) },
			expected: "c1",
		},
		{
			name:     "bearer",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer b1") },
			expected: "b1",
		},
		{
			name:     "query",
			setup:    func(r *http.Request) { r.URL.RawQuery = "token=q1" },
			expected: "q1",
		},
		{
			name: "cookie_wins",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session", Value: "c1"})
				r.Header.Set("Authorization", "Bearer b1")
			},
			expected: "c1",
		},
		{
			name:     "none",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(r)
			assert.Equal(t, tt.expected, CredentialFromRequest(r, "session"))
		})
	}
}
