package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenType string

const (
	Access TokenType = "access"
)

const (
	DefaultAccessTTL = 12 * time.Hour

	issuer = "control-center"
	keyID  = "v1"
)

// Claims carries the camera owner in the standard subject claim.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID is the subject, the id of the user whose cameras the token can reach.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager signs and verifies HS256 access tokens for the console API.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	parser     *jwt.Parser
}

func NewManager(signingKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Manager{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithIssuedAt(),
		),
	}
}

func (m *Manager) GenerateAccessToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		TokenType: Access,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID

	return token.SignedString(m.signingKey)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != Access {
		return nil, fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}
