package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/tokens"
	"go.uber.org/zap"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens      TokenValidator
	defaultUser uuid.UUID
	logger      *zap.Logger
}

// NewJWTAuth builds the bearer-token middleware. A non-nil defaultUser is
// assumed for requests that carry no Authorization header at all.
func NewJWTAuth(t TokenValidator, defaultUser uuid.UUID, logger *zap.Logger) *JWTAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTAuth{tokens: t, defaultUser: defaultUser, logger: logger.Named("auth")}
}

// Middleware verifies the JWT and injects AuthContext
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.defaultUser == uuid.Nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := WithAuthContext(r.Context(), &AuthContext{UserID: m.defaultUser})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.TokenType != tokens.Access {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.UserID())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ac := &AuthContext{
			UserID:  userID,
			TokenID: claims.ID,
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}
