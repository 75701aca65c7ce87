// Package auth verifies bearer tokens on protected routes, issues tokens for
// logged-in users and hashes account passwords.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
	"github.com/patric-chuzhbe/recipebook/internal/models"
)

// Auth validates and issues HS256 JSON Web Tokens.
type Auth struct {
	// signingKey is the secret shared by the token issuer and the verifier.
	signingKey []byte

	// tokenTTL is the lifetime of tokens built by BuildJWTString.
	tokenTTL time.Duration
}

// Claims represents the JWT claims used by the system.
// UserID is the canonical claim; LegacyID is accepted from tokens that carry
// the user id under "id".
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	LegacyID string `json:"id,omitempty"`
}

// Subject returns the acting user id carried by the claims.
func (c *Claims) Subject() string {
	if c.UserID != "" {
		return c.UserID
	}

	return c.LegacyID
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

var (
	ErrNoToken       = errors.New("authorization header is missing")
	ErrTokenNotFound = errors.New("authorization header carries no token")
	ErrInvalidToken  = errors.New("invalid token")
)

// New creates an Auth that signs and verifies with signingKey.
func New(signingKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
	}
}

// UserIDFromContext returns the acting user id attached by AuthenticateUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID attaches userID to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// AuthenticateUser is the token verifier stage of protected routes. It answers
// 401 when no token is presented, 400 when the token does not verify, and
// otherwise puts the acting user id in the request context.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString, err := getTokenStringFromAuthorizationHeader(request)
		if errors.Is(err, ErrNoToken) {
			logger.Log.Debugln("No authorization header")
			writeMessage(response, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		if err != nil {
			logger.Log.Debugln("Token missing in authorization header")
			writeMessage(response, http.StatusUnauthorized, "Access denied. No token found.")
			return
		}

		claims, err := a.ParseClaims(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.ParseClaims()`: ", zap.Error(err))
			writeMessage(response, http.StatusBadRequest, "Invalid token")
			return
		}

		logger.SetUserID(request.Context(), claims.Subject())
		requestWithCtx := request.WithContext(WithUserID(request.Context(), claims.Subject()))
		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

// getTokenStringFromAuthorizationHeader takes the second space-separated
// element of the Authorization header, whatever the scheme word is.
func getTokenStringFromAuthorizationHeader(request *http.Request) (string, error) {
	authHeader := request.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) < 2 || parts[1] == "" {
		return "", ErrTokenNotFound
	}

	return parts[1], nil
}

// ParseClaims verifies signature, algorithm and expiry of tokenString.
func (a *Auth) ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// BuildJWTString issues a signed token for userID that expires after the
// configured TTL.
func (a *Auth) BuildJWTString(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(models.MessageResponse{Message: message}); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}
