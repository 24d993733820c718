// Package session issues and validates login sessions. The same Store backs
// HTTP middleware and WebSocket authentication, so a socket trusts exactly
// the identities the HTTP layer trusts.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNoCredential    = errors.New("session credential missing")
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session revoked or unknown")
)

// Validator resolves a session credential to a user identity.
type Validator interface {
	Validate(ctx context.Context, credential string) (string, error)
}

// Claims carried in the signed session cookie. The session ID is the key of
// the server-side record, which is what makes logout effective.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Store struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, secret string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func key(sessionID string) string {
	return "session:" + sessionID
}

// Issue creates a session record for userID and returns the signed credential.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue session: empty user id")
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	if err := s.client.Set(ctx, key(claims.ID), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate checks the credential's signature and expiry, then confirms the
// session record still exists and belongs to the same user.
func (s *Store) Validate(ctx context.Context, credential string) (string, error) {
	claims, err := s.parse(credential)
	if err != nil {
		return "", err
	}

	userID, err := s.client.Get(ctx, key(claims.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if userID != claims.UserID {
		return "", ErrInvalidSession
	}
	return userID, nil
}

// Revoke deletes the session record; the credential stops validating
// immediately even though its signature remains valid.
func (s *Store) Revoke(ctx context.Context, credential string) error {
	claims, err := s.parse(credential)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key(claims.ID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Store) parse(credential string) (*Claims, error) {
	if credential == "" {
		return nil, ErrNoCredential
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// CredentialFromRequest extracts the session credential from the cookie,
// falling back to a bearer token and then a token query parameter for
// non-browser clients that cannot set cookies on the upgrade request.
func CredentialFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}
