package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

type middlewareConfig struct {
	devIdentity *Identity
	loader      IdentityLoader
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithDevIdentity makes the middleware accept "Bearer dev" as the given identity.
func WithDevIdentity(identity *Identity) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.devIdentity = identity
	}
}

// WithIdentityLoader refreshes the token's identity from storage on every request.
func WithIdentityLoader(loader IdentityLoader) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.loader = loader
	}
}

// Middleware returns HTTP middleware that validates JWT access tokens and
// binds the resulting Identity to the request context.
func Middleware(tokenSvc *TokenService, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if token == "dev" && cfg.devIdentity != nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), cfg.devIdentity)))
				return
			}

			identity, err := tokenSvc.ValidateToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// Reject refresh tokens on non-refresh endpoints
			if identity.TokenType != TokenTypeAccess {
				writeAuthError(w, http.StatusUnauthorized, "access token required")
				return
			}

			if cfg.loader != nil {
				current, loadErr := cfg.loader.LoadIdentity(r.Context(), identity.UserID)
				if loadErr != nil {
					if errors.Is(loadErr, ErrUserNotFound) {
						writeAuthError(w, http.StatusUnauthorized, "invalid token")
						return
					}
					slog.Error("loading identity", "user_id", identity.UserID, "error", loadErr)
					writeAuthError(w, http.StatusInternalServerError, "identity lookup failed")
					return
				}
				current.TokenType = identity.TokenType
				identity = current
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return token, nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
