package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the storage the auth handler needs.
type CredentialStore interface {
	IdentityLoader
	LookupCredentials(ctx context.Context, email string) (*Identity, string, error)
}

// Handler handles authentication HTTP endpoints.
type Handler struct {
	tokenSvc *TokenService
	store    CredentialStore
	events   EventRecorder
	validate *validator.Validate
}

func NewHandler(tokenSvc *TokenService, store CredentialStore, events EventRecorder) *Handler {
	return &Handler{
		tokenSvc: tokenSvc,
		store:    store,
		events:   events,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the public auth routes on the given mux.
// HandleLogout must be mounted behind Middleware by the caller.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.HandleLogin)
	mux.HandleFunc("POST /auth/token/refresh", h.HandleRefresh)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin exchanges email and password for an access and refresh token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	identity, hash, err := h.store.LookupCredentials(r.Context(), req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		slog.Error("looking up credentials", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	if identity == nil || hash == "" || !identity.Active ||
		bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ErrInvalidCredentials.Error()})
		return
	}

	if !h.issueTokens(w, identity) {
		return
	}
	if h.events != nil {
		h.events.RecordLogin(r.Context(), identity)
	}
}

// HandleLogout records the logout of the authenticated actor. Tokens are
// stateless, so clients discard them.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	if h.events != nil {
		h.events.RecordLogout(r.Context(), identity)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh exchanges a refresh token for new access + refresh tokens.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	identity, err := h.tokenSvc.ValidateToken(req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	if identity.TokenType != TokenTypeRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "refresh token required"})
		return
	}

	// Pick up role and tenant changes made since the refresh token was issued.
	current, err := h.store.LoadIdentity(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
			return
		}
		slog.Error("loading identity", "user_id", identity.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token refresh failed"})
		return
	}
	if !current.Active {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user is inactive"})
		return
	}

	h.issueTokens(w, current)
}

func (h *Handler) issueTokens(w http.ResponseWriter, identity *Identity) bool {
	accessToken, err := h.tokenSvc.CreateAccessToken(identity)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token creation failed"})
		return false
	}

	refreshToken, err := h.tokenSvc.CreateRefreshToken(identity)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token creation failed"})
		return false
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
