package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/recipebook/internal/models"
)

func TestBuildAndParse(t *testing.T) {
	a := New([]byte("secret"), time.Hour)
	userID := models.NewID()

	token, err := a.BuildJWTString(userID)
	require.NoError(t, err)

	claims, err := a.ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject())
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = New([]byte("other"), time.Hour).ParseClaims(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseClaimsRejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": models.NewID()})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = New([]byte("secret"), time.Hour).ParseClaims(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateUser(t *testing.T) {
	a := New([]byte("secret"), time.Hour)
	userID := models.NewID()
	token, err := a.BuildJWTString(userID)
	require.NoError(t, err)

	var seenUserID string
	var reached bool
	handler := a.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seenUserID, _ = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		wantCode   int
		wantBody   string
		wantReach  bool
		wantUserID string
	}{
		{
			name:     "missing header",
			wantCode: http.StatusUnauthorized,
			wantBody: `{"message":"Access denied. No token provided."}`,
		},
		{
			name:     "no token after the scheme",
			header:   "Bearer ",
			wantCode: http.StatusUnauthorized,
			wantBody: `{"message":"Access denied. No token found."}`,
		},
		{
			name:     "bad token",
			header:   "Bearer abc.def.ghi",
			wantCode: http.StatusBadRequest,
			wantBody: `{"message":"Invalid token"}`,
		},
		{
			name:       "valid token",
			header:     "Bearer " + token,
			wantCode:   http.StatusOK,
			wantReach:  true,
			wantUserID: userID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached, seenUserID = false, ""

			request := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantCode, recorder.Code)
			assert.Equal(t, tt.wantReach, reached)
			assert.Equal(t, tt.wantUserID, seenUserID)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, CheckPassword(hash, "secret1"))
	assert.ErrorIs(t, CheckPassword(hash, "secret2"), models.ErrInvalidCredentials)
}
