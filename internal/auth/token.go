package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type coursegridClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	TenantID  string `json:"tid,omitempty"`
	Email     string `json:"email,omitempty"`
	RoleName  string `json:"role,omitempty"`
	TokenType string `json:"type"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	signingKey         []byte
	issuer             string
	expiryHours        int
	refreshExpiryHours int
}

func NewTokenService(signingKey, issuer string, expiryHours, refreshExpiryHours int) *TokenService {
	return &TokenService{
		signingKey:         []byte(signingKey),
		issuer:             issuer,
		expiryHours:        expiryHours,
		refreshExpiryHours: refreshExpiryHours,
	}
}

func (s *TokenService) CreateAccessToken(identity *Identity) (string, error) {
	return s.createToken(identity, TokenTypeAccess, s.expiryHours)
}

func (s *TokenService) CreateRefreshToken(identity *Identity) (string, error) {
	return s.createToken(identity, TokenTypeRefresh, s.refreshExpiryHours)
}

func (s *TokenService) createToken(identity *Identity, tokenType string, expiryHours int) (string, error) {
	now := time.Now()

	claims := coursegridClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expiryHours) * time.Hour)),
		},
		UserID:    identity.UserID,
		TenantID:  identity.TenantID,
		Email:     identity.Email,
		RoleName:  identity.RoleName,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken parses a signed token. Tokens are only issued to active
// users, so the returned identity is marked active; the middleware's
// IdentityLoader overrides this with the stored state when configured.
func (s *TokenService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &coursegridClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*coursegridClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Email:     claims.Email,
		RoleName:  claims.RoleName,
		Active:    true,
		TokenType: claims.TokenType,
	}, nil
}
