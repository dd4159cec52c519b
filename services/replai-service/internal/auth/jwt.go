// Package auth issues and verifies session tokens, hashes passwords and
// guards routes with a Bearer token middleware.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

const (
	issuer = "replai"

	// DefaultTokenExpiry is used when no session lifetime is configured
	DefaultTokenExpiry = 7 * 24 * time.Hour
	// StateExpiry bounds the OAuth connect round trip
	StateExpiry = 10 * time.Minute

	purposeSession = "session"
	purposeState   = "oauth_state"
)

var (
	// ErrInvalidToken indicates the JWT token is invalid
	ErrInvalidToken = fmt.Errorf("%w: invalid token", apperr.ErrAuthentication)
	// ErrTokenExpired indicates the JWT token has expired
	ErrTokenExpired = fmt.Errorf("%w: token expired", apperr.ErrAuthentication)
)

// Claims represents the claims in a JWT token
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email,omitempty"`
	Purpose string    `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager handles JWT token generation and validation
type Manager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewManager creates a new Manager instance
func NewManager(secret string, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &Manager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Issue generates a session token for a user
func (m *Manager) Issue(userID uuid.UUID, email string) (string, time.Time, error) {
	return m.sign(userID, email, purposeSession, m.expiry)
}

// Parse validates a session token and returns its claims
func (m *Manager) Parse(token string) (*Claims, error) {
	return m.parse(token, purposeSession)
}

// IssueState returns a short-lived signed OAuth state carrying the user id,
// so the callback can attribute the connection without server-side storage.
func (m *Manager) IssueState(userID uuid.UUID) (string, error) {
	s, _, err := m.sign(userID, "", purposeState, StateExpiry)
	return s, err
}

// ParseState validates an OAuth state and returns the user id it carries.
func (m *Manager) ParseState(state string) (uuid.UUID, error) {
	claims, err := m.parse(state, purposeState)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func (m *Manager) sign(userID uuid.UUID, email, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *Manager) parse(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
