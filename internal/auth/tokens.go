package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mmynk/splitthat/internal/storage"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims represents the custom JWT claims for a session token.
// The subject is the local user ID.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is issued at login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// AccessExpiresAt is when the access token stops being accepted.
	AccessExpiresAt time.Time
}

// TokenManager issues and checks session tokens. The hash of each user's
// current refresh token is kept in the user store, so issuing a new pair
// invalidates the previous refresh token.
type TokenManager struct {
	secretKey  []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      storage.UserStore
	now        func() time.Time
}

// NewTokenManager creates a token manager signing with HMAC. algorithm is
// one of HS256, HS384 or HS512. Zero TTLs use the defaults.
func NewTokenManager(secretKey, algorithm string, accessTTL, refreshTTL time.Duration, users storage.UserStore) (*TokenManager, error) {
	if len(secretKey) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{
		secretKey:  []byte(secretKey),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
		now:        time.Now,
	}, nil
}

// Issue creates an access and a refresh token for the user and records the
// refresh token's hash.
func (m *TokenManager) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	now := m.now()
	access, err := m.sign(userID, AccessToken, now, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(userID, RefreshToken, now, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	hash, err := HashRefreshToken(refresh)
	if err != nil {
		return nil, err
	}
	if err := m.users.SetRefreshTokenHash(ctx, userID, hash); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: now.Add(m.accessTTL),
	}, nil
}

// VerifyAccess checks an access token and returns the user ID it was
// issued to.
func (m *TokenManager) VerifyAccess(tokenString string) (string, error) {
	claims, err := m.parse(tokenString, AccessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Rotate exchanges a refresh token for a new access token. The refresh
// token itself stays valid until it expires or a new pair is issued.
func (m *TokenManager) Rotate(ctx context.Context, refreshToken string) (string, error) {
	claims, err := m.parse(refreshToken, RefreshToken)
	if err != nil {
		return "", err
	}

	user, err := m.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if !VerifyRefreshToken(refreshToken, user.RefreshTokenHash) {
		return "", ErrInvalidToken
	}

	return m.sign(user.ID, AccessToken, m.now(), m.accessTTL)
}

func (m *TokenManager) sign(userID string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (m *TokenManager) parse(tokenString string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return m.secretKey, nil
		},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
